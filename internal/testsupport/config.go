package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HThanh-how/mkvprocesser/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a normalized config seeded with unique temp directories
// per test. It applies any provided options before normalizing.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ManifestPath = filepath.Join(base, "manifest.jsonl")
	cfgVal.Workflow.WriteRunSnapshot = false
	cfgVal.Extraction.MinFreeGiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Normalize(); err != nil {
		t.Fatalf("normalize config: %v", err)
	}
	return builder.cfg
}

// WithBackend switches the manifest backend and points it at a fresh path.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Manifest.Backend = backend
		name := "manifest.jsonl"
		if backend == "sqlite" {
			name = "manifest.db"
		}
		b.cfg.Paths.ManifestPath = filepath.Join(b.baseDir, name)
	}
}

// WithSplitOutputs routes dubbed, original and subtitle outputs to separate
// folders under the test root.
func WithSplitOutputs() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.DubbedDir = filepath.Join(b.baseDir, "dubbed")
		b.cfg.Paths.OriginalDir = filepath.Join(b.baseDir, "original")
		b.cfg.Paths.SubtitleDir = filepath.Join(b.baseDir, "subtitles")
	}
}

// WithWorkers sets the worker pool size.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
