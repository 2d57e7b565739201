// Package config loads mkvprocessor settings from TOML.
//
// Load reads the file (or falls back to defaults when it is missing),
// expands ~ in every path, applies the MKVPROCESSOR_INPUT_DIR override and
// validates the result. Sections mirror the processing stages: paths, scan,
// classifier, signature, naming, routing, extraction, manifest, workflow,
// logging and metrics. CreateSample writes the embedded sample_config.toml.
package config
