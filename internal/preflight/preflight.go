package preflight

import (
	"github.com/HThanh-how/mkvprocesser/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config. Output folders
// are expected to exist; call cfg.EnsureDirectories first.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Input directory", cfg.Paths.InputDir, ReadOnly),
	}

	seen := map[string]bool{}
	outputs := []struct {
		name string
		path string
	}{
		{"Output directory", cfg.Paths.OutputDir},
		{"Dubbed directory", cfg.DubbedOutputDir()},
		{"Original directory", cfg.OriginalOutputDir()},
		{"Subtitle directory", cfg.SubtitleOutputDir()},
		{"Log directory", cfg.Paths.LogDir},
	}
	for _, out := range outputs {
		if out.path == "" || seen[out.path] {
			continue
		}
		seen[out.path] = true
		results = append(results, CheckDirectoryAccess(out.name, out.path, ReadWrite))
	}

	if cfg.Extraction.MinFreeGiB > 0 {
		results = append(results, CheckFreeSpace("Free space", cfg.Paths.OutputDir, uint64(cfg.Extraction.MinFreeGiB)<<30))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
