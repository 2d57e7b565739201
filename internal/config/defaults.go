package config

const (
	defaultConfigPath        = "~/.config/mkvprocessor/config.toml"
	projectConfigName        = "mkvprocessor.toml"
	defaultInputDir          = "."
	defaultOutputDir         = "~/Videos/mkvprocessor"
	defaultLogDir            = "~/.local/share/mkvprocessor/logs"
	defaultManifestPath      = "~/.local/share/mkvprocessor/manifest.jsonl"
	defaultSQLiteManifest    = "~/.local/share/mkvprocessor/manifest.db"
	defaultSampleBytes       = 1 << 20
	defaultNamingTemplate    = "{resolution}_{language}_{audio}_{year}_{stem}"
	defaultDubbedLanguage    = "vie"
	defaultFFmpegBinary      = "ffmpeg"
	defaultTimeoutSeconds    = 1800
	defaultMaxAttempts       = 3
	defaultInitialBackoffMS  = 500
	defaultMaxBackoffMS      = 10000
	defaultMinFreeGiB        = 2
	defaultManifestBackend   = "jsonl"
	defaultWorkers           = 2
	defaultWatchDebounceSecs = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// DefaultCodecPreference ranks lossless codecs first, then lossy surround, then stereo codecs.
var DefaultCodecPreference = []string{"truehd", "flac", "pcm", "dts", "eac3", "ac3", "opus", "aac", "vorbis", "mp3"}

// DefaultResolutions lists the naming buckets from largest to smallest.
var DefaultResolutions = []ResolutionBucket{
	{Tag: "8K", MinWidth: 7680, MinHeight: 4320},
	{Tag: "4K", MinWidth: 3840, MinHeight: 2160},
	{Tag: "2K", MinWidth: 2560, MinHeight: 1440},
	{Tag: "FHD", MinWidth: 1920, MinHeight: 1080},
	{Tag: "HD", MinWidth: 1280, MinHeight: 720},
	{Tag: "SD", MinWidth: 1, MinHeight: 1},
}

// Default returns a Config populated with repository defaults. List-valued
// settings stay empty so decoded TOML arrays never append to them; normalize
// fills them in.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:     defaultInputDir,
			OutputDir:    defaultOutputDir,
			LogDir:       defaultLogDir,
			ManifestPath: "",
		},
		Signature: Signature{
			SampleBytes: defaultSampleBytes,
		},
		Naming: Naming{
			Template: defaultNamingTemplate,
		},
		Routing: Routing{
			DubbedLanguage: defaultDubbedLanguage,
		},
		Extraction: Extraction{
			FFmpegBinary:     defaultFFmpegBinary,
			TimeoutSeconds:   defaultTimeoutSeconds,
			MaxAttempts:      defaultMaxAttempts,
			InitialBackoffMS: defaultInitialBackoffMS,
			MaxBackoffMS:     defaultMaxBackoffMS,
			MinFreeGiB:       defaultMinFreeGiB,
		},
		Manifest: Manifest{
			Backend: defaultManifestBackend,
		},
		Workflow: Workflow{
			Workers:              defaultWorkers,
			WatchDebounceSeconds: defaultWatchDebounceSecs,
			WriteRunSnapshot:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
