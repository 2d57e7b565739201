// Package main hosts the mkvprocessor CLI entrypoint and command graph.
//
// The Cobra command tree loads the TOML configuration once, builds the
// structured logger, and hands off to the internal packages: pipeline for
// processing runs, watch for folder monitoring, and manifest for history
// maintenance. Commands here only parse flags and render results.
package main
