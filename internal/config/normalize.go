package config

import (
	"fmt"
	"os"
	"strings"
)

// Normalize applies defaults and path expansion. Load calls it; callers that
// build a Config by hand call it before use.
func (c *Config) Normalize() error {
	return c.normalize()
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeClassifier()
	c.normalizeSignature()
	c.normalizeNaming()
	c.normalizeExtraction()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("MKVPROCESSOR_INPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.InputDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.InputDir) == "" {
		c.Paths.InputDir = defaultInputDir
	}
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.DubbedDir, err = expandPath(strings.TrimSpace(c.Paths.DubbedDir)); err != nil {
		return fmt.Errorf("paths.dubbed_dir: %w", err)
	}
	if c.Paths.OriginalDir, err = expandPath(strings.TrimSpace(c.Paths.OriginalDir)); err != nil {
		return fmt.Errorf("paths.original_dir: %w", err)
	}
	if c.Paths.SubtitleDir, err = expandPath(strings.TrimSpace(c.Paths.SubtitleDir)); err != nil {
		return fmt.Errorf("paths.subtitle_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Manifest.Backend = strings.ToLower(strings.TrimSpace(c.Manifest.Backend))
	if c.Manifest.Backend == "" {
		c.Manifest.Backend = defaultManifestBackend
	}
	if strings.TrimSpace(c.Paths.ManifestPath) == "" {
		c.Paths.ManifestPath = defaultManifestPath
		if c.Manifest.Backend == "sqlite" {
			c.Paths.ManifestPath = defaultSQLiteManifest
		}
	}
	if c.Paths.ManifestPath, err = expandPath(c.Paths.ManifestPath); err != nil {
		return fmt.Errorf("paths.manifest_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	exts := make([]string, 0, len(c.Scan.Extensions))
	seen := make(map[string]struct{}, len(c.Scan.Extensions))
	for _, ext := range c.Scan.Extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = []string{".mkv"}
	}
	c.Scan.Extensions = exts
}

func (c *Config) normalizeClassifier() {
	c.Classifier.CodecPreference = lowerUnique(c.Classifier.CodecPreference)
	if len(c.Classifier.CodecPreference) == 0 {
		c.Classifier.CodecPreference = append([]string(nil), DefaultCodecPreference...)
	}
	c.Classifier.AudioLanguages = lowerUnique(c.Classifier.AudioLanguages)
	c.Classifier.SubtitleLanguages = lowerUnique(c.Classifier.SubtitleLanguages)
	c.Classifier.PreferredLanguage = strings.ToLower(strings.TrimSpace(c.Classifier.PreferredLanguage))
	c.Routing.DubbedLanguage = strings.ToLower(strings.TrimSpace(c.Routing.DubbedLanguage))
}

func (c *Config) normalizeSignature() {
	if c.Signature.SampleBytes <= 0 {
		c.Signature.SampleBytes = defaultSampleBytes
	}
}

func (c *Config) normalizeNaming() {
	c.Naming.Template = strings.TrimSpace(c.Naming.Template)
	if c.Naming.Template == "" {
		c.Naming.Template = defaultNamingTemplate
	}
	if len(c.Naming.Resolutions) == 0 {
		c.Naming.Resolutions = append([]ResolutionBucket(nil), DefaultResolutions...)
	}
	for i := range c.Naming.Resolutions {
		c.Naming.Resolutions[i].Tag = strings.TrimSpace(c.Naming.Resolutions[i].Tag)
	}
}

func (c *Config) normalizeExtraction() {
	c.Extraction.FFmpegBinary = strings.TrimSpace(c.Extraction.FFmpegBinary)
	c.Extraction.FFprobeBinary = strings.TrimSpace(c.Extraction.FFprobeBinary)
	if c.Extraction.TimeoutSeconds <= 0 {
		c.Extraction.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.Extraction.MaxAttempts <= 0 {
		c.Extraction.MaxAttempts = defaultMaxAttempts
	}
	if c.Extraction.InitialBackoffMS <= 0 {
		c.Extraction.InitialBackoffMS = defaultInitialBackoffMS
	}
	if c.Extraction.MaxBackoffMS <= 0 {
		c.Extraction.MaxBackoffMS = defaultMaxBackoffMS
	}
	if c.Extraction.MinFreeGiB < 0 {
		c.Extraction.MinFreeGiB = 0
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.WatchDebounceSeconds <= 0 {
		c.Workflow.WatchDebounceSeconds = defaultWatchDebounceSecs
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Metrics.TextfilePath = strings.TrimSpace(c.Metrics.TextfilePath)
	if c.Metrics.TextfilePath != "" {
		if expanded, err := expandPath(c.Metrics.TextfilePath); err == nil {
			c.Metrics.TextfilePath = expanded
		}
	}
}

func lowerUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
