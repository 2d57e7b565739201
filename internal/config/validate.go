package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNaming(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateManifest(); err != nil {
		return err
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		return errors.New("paths.input_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		return errors.New("paths.manifest_path must be set")
	}
	return c.ValidateInputFolder(c.Paths.InputDir)
}

// ValidateInputFolder rejects a scan folder that is also an output folder.
// Outputs written there would be picked up as new inputs by the next run.
// Output folders nested inside it are fine; the scan skips them.
func (c *Config) ValidateInputFolder(folder string) error {
	root := filepath.Clean(folder)
	outputs := []struct{ key, dir string }{
		{"paths.output_dir", c.Paths.OutputDir},
		{"paths.dubbed_dir", c.Paths.DubbedDir},
		{"paths.original_dir", c.Paths.OriginalDir},
		{"paths.subtitle_dir", c.Paths.SubtitleDir},
	}
	for _, out := range outputs {
		if strings.TrimSpace(out.dir) == "" {
			continue
		}
		if filepath.Clean(out.dir) == root {
			return fmt.Errorf("%s must differ from the input folder %s", out.key, root)
		}
	}
	return nil
}

func (c *Config) validateNaming() error {
	if !strings.Contains(c.Naming.Template, "{stem}") {
		return errors.New("naming.template must contain {stem}")
	}
	if strings.ContainsAny(c.Naming.Template, `/\`) {
		return errors.New("naming.template must not contain path separators")
	}
	for i, bucket := range c.Naming.Resolutions {
		if bucket.Tag == "" {
			return fmt.Errorf("naming.resolutions[%d].tag must be set", i)
		}
		if bucket.MinWidth < 0 || bucket.MinHeight < 0 {
			return fmt.Errorf("naming.resolutions[%d] thresholds must be >= 0", i)
		}
		if i > 0 {
			prev := c.Naming.Resolutions[i-1]
			if bucket.MinWidth > prev.MinWidth || bucket.MinHeight > prev.MinHeight {
				return fmt.Errorf("naming.resolutions must be ordered largest first (%s after %s)", bucket.Tag, prev.Tag)
			}
		}
	}
	return nil
}

func (c *Config) validateExtraction() error {
	return ensurePositiveMap(map[string]int{
		"extraction.timeout_seconds":    c.Extraction.TimeoutSeconds,
		"extraction.max_attempts":       c.Extraction.MaxAttempts,
		"extraction.initial_backoff_ms": c.Extraction.InitialBackoffMS,
		"extraction.max_backoff_ms":     c.Extraction.MaxBackoffMS,
	})
}

func (c *Config) validateManifest() error {
	switch c.Manifest.Backend {
	case "jsonl", "sqlite":
		return nil
	default:
		return fmt.Errorf("manifest.backend: unsupported value %q (want jsonl or sqlite)", c.Manifest.Backend)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
