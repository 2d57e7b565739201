package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/HThanh-how/mkvprocesser/internal/deps"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output directory configuration.
type Paths struct {
	InputDir     string `toml:"input_dir"`
	OutputDir    string `toml:"output_dir"`
	DubbedDir    string `toml:"dubbed_dir"`
	OriginalDir  string `toml:"original_dir"`
	SubtitleDir  string `toml:"subtitle_dir"`
	LogDir       string `toml:"log_dir"`
	ManifestPath string `toml:"manifest_path"`
}

// Scan controls which files in the input folder are considered.
type Scan struct {
	Extensions []string `toml:"extensions"`
	Recursive  bool     `toml:"recursive"`
}

// Classifier contains track ranking and filtering settings.
type Classifier struct {
	// CodecPreference ranks audio codecs, best first. Unlisted codecs rank last.
	CodecPreference   []string `toml:"codec_preference"`
	ExcludeUnknown    bool     `toml:"exclude_unknown"`
	PreferredLanguage string   `toml:"preferred_language"`
	AudioLanguages    []string `toml:"audio_languages"`
	SubtitleLanguages []string `toml:"subtitle_languages"`
}

// Signature contains content fingerprint settings.
type Signature struct {
	SampleBytes int64 `toml:"sample_bytes"`
	// Strict rejects files too short for prefix/suffix sampling instead of
	// hashing them whole.
	Strict bool `toml:"strict"`
}

// ResolutionBucket maps a minimum frame size to a naming tag.
type ResolutionBucket struct {
	Tag       string `toml:"tag"`
	MinWidth  int    `toml:"min_width"`
	MinHeight int    `toml:"min_height"`
}

// Naming contains output filename settings.
type Naming struct {
	Template    string             `toml:"template"`
	Resolutions []ResolutionBucket `toml:"resolutions"`
}

// Routing decides which folder receives each extracted audio track.
type Routing struct {
	DubbedLanguage string `toml:"dubbed_language"`
}

// Extraction contains external tool and retry settings.
type Extraction struct {
	FFmpegBinary     string `toml:"ffmpeg_binary"`
	FFprobeBinary    string `toml:"ffprobe_binary"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxAttempts      int    `toml:"max_attempts"`
	InitialBackoffMS int    `toml:"initial_backoff_ms"`
	MaxBackoffMS     int    `toml:"max_backoff_ms"`
	MinFreeGiB       int    `toml:"min_free_gib"`
}

// Manifest selects the durable processing record backend.
type Manifest struct {
	Backend string `toml:"backend"`
}

// Workflow contains run scheduling settings.
type Workflow struct {
	Workers              int  `toml:"workers"`
	WatchDebounceSeconds int  `toml:"watch_debounce_seconds"`
	DryRun               bool `toml:"dry_run"`
	ForceReprocess       bool `toml:"force_reprocess"`
	WriteRunSnapshot     bool `toml:"write_run_snapshot"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics controls prometheus textfile export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Config encapsulates all configuration values for mkvprocessor.
//
// Configuration sections by subsystem:
//   - Paths: input folder, output folders, logs and manifest location
//   - Scan: file extensions and recursion
//   - Classifier: audio codec ranking and language filters
//   - Signature: sampling budget for content fingerprints
//   - Naming: filename template and resolution buckets
//   - Routing: dubbed/original folder selection
//   - Extraction: ffmpeg/ffprobe binaries, timeouts and retry policy
//   - Manifest: storage backend
//   - Workflow: worker count, watch debounce, dry run
//   - Logging: log format and level
//   - Metrics: prometheus textfile output
type Config struct {
	Paths      Paths      `toml:"paths"`
	Scan       Scan       `toml:"scan"`
	Classifier Classifier `toml:"classifier"`
	Signature  Signature  `toml:"signature"`
	Naming     Naming     `toml:"naming"`
	Routing    Routing    `toml:"routing"`
	Extraction Extraction `toml:"extraction"`
	Manifest   Manifest   `toml:"manifest"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, log and manifest directories. The
// input folder is never created; a missing input is reported by the run.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.LogDir, filepath.Dir(c.Paths.ManifestPath)}
	for _, dir := range []string{c.Paths.DubbedDir, c.Paths.OriginalDir, c.Paths.SubtitleDir} {
		if strings.TrimSpace(dir) != "" {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFprobeBinary returns the ffprobe executable used for probing. Without an
// explicit setting, an ffprobe next to the configured ffmpeg is preferred.
func (c *Config) FFprobeBinary() string {
	return deps.ResolveFFprobe(c.FFmpegBinary(), c.Extraction.FFprobeBinary)
}

// FFmpegBinary returns the ffmpeg executable used for extraction.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Extraction.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Extraction.FFmpegBinary
}

// DubbedOutputDir returns the folder for audio in the dubbed language.
func (c *Config) DubbedOutputDir() string {
	return firstNonEmpty(c.Paths.DubbedDir, c.Paths.OutputDir)
}

// OriginalOutputDir returns the folder for audio in any other language.
func (c *Config) OriginalOutputDir() string {
	return firstNonEmpty(c.Paths.OriginalDir, c.Paths.OutputDir)
}

// SubtitleOutputDir returns the folder for extracted subtitles.
func (c *Config) SubtitleOutputDir() string {
	return firstNonEmpty(c.Paths.SubtitleDir, c.Paths.OutputDir)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
