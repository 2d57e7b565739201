package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HThanh-how/mkvprocesser/internal/manifest"
	"github.com/HThanh-how/mkvprocesser/internal/pipeline"
)

// ffprobeFixture describes a 4K file with one DTS 5.1 Vietnamese track and one
// English subtitle.
const ffprobeFixture = `{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "width": 3840, "height": 2160},
    {"index": 1, "codec_name": "dts", "codec_type": "audio", "channels": 6, "channel_layout": "5.1(side)", "tags": {"language": "vie"}},
    {"index": 2, "codec_name": "subrip", "codec_type": "subtitle", "tags": {"language": "eng"}}
  ],
  "format": {"duration": "5400.250000", "size": "1024"}
}`

type cliTestEnv struct {
	baseDir    string
	inputDir   string
	outputDir  string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("MKVPROCESSOR_INPUT_DIR", "")
	env := &cliTestEnv{
		baseDir:    base,
		inputDir:   filepath.Join(base, "input"),
		outputDir:  filepath.Join(base, "output"),
		configPath: filepath.Join(base, "config.toml"),
	}
	if err := os.MkdirAll(env.inputDir, 0o755); err != nil {
		t.Fatalf("mkdir input: %v", err)
	}

	binDir := filepath.Join(base, "bin")
	writeStub(t, filepath.Join(binDir, "ffprobe"), "cat <<'JSON'\n"+ffprobeFixture+"\nJSON\n")
	// ffmpeg writes a placeholder to its last argument, the output path.
	writeStub(t, filepath.Join(binDir, "ffmpeg"), "for last; do :; done\nprintf 'track' > \"$last\"\n")

	content := fmt.Sprintf(`[paths]
input_dir = %q
output_dir = %q
log_dir = %q
manifest_path = %q

[extraction]
ffmpeg_binary = %q
ffprobe_binary = %q
min_free_gib = 0
initial_backoff_ms = 1
max_backoff_ms = 2

[workflow]
write_run_snapshot = false

[logging]
level = "warn"
`,
		env.inputDir,
		env.outputDir,
		filepath.Join(base, "logs"),
		filepath.Join(base, "manifest.jsonl"),
		filepath.Join(binDir, "ffmpeg"),
		filepath.Join(binDir, "ffprobe"),
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func writeStub(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir stub dir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func (e *cliTestEnv) addMovie(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.inputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func decodeSummary(t *testing.T, out string) pipeline.Summary {
	t.Helper()
	var summary pipeline.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	return summary
}

func TestProcessCommandExtractsThenSkips(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addMovie(t, "Movie.mkv", "movie content")

	out, stderr, err := runCLI(t, []string{"process", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v\nstderr: %s", err, stderr)
	}
	summary := decodeSummary(t, out)
	if summary.Success != 1 {
		t.Fatalf("expected one success: %+v", summary.Files)
	}
	for _, name := range []string{"4K_VIE_DTS_Movie.mkv", "4K_VIE_DTS_Movie.eng.srt"} {
		if _, err := os.Stat(filepath.Join(env.outputDir, name)); err != nil {
			t.Fatalf("expected output %s: %v", name, err)
		}
	}

	out, _, err = runCLI(t, []string{"process"}, env.configPath)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	requireContains(t, out, "0 success, 0 failed, 1 skipped")
}

func TestProcessDryRunWritesNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addMovie(t, "Movie.mkv", "movie content")

	out, _, err := runCLI(t, []string{"process", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("process --dry-run: %v", err)
	}
	requireContains(t, out, "Dry run:")
	requireContains(t, out, "4K_VIE_DTS_Movie.mkv")
	if _, err := os.Stat(filepath.Join(env.outputDir, "4K_VIE_DTS_Movie.mkv")); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote output (stat err=%v)", err)
	}
}

func TestProcessFailOnError(t *testing.T) {
	env := setupCLITestEnv(t)
	// Overwrite the probe stub with one that fails.
	writeStub(t, filepath.Join(env.baseDir, "bin", "ffprobe"), "echo 'Invalid data found when processing input' >&2\nexit 1\n")
	env.addMovie(t, "Broken.mkv", "not a movie")

	out, _, err := runCLI(t, []string{"process"}, env.configPath)
	if err != nil {
		t.Fatalf("process without --fail-on-error: %v", err)
	}
	requireContains(t, out, "1 failed")

	_, _, err = runCLI(t, []string{"process", "--fail-on-error"}, env.configPath)
	if err == nil {
		t.Fatal("expected error with --fail-on-error")
	}
}

func TestProcessRecordsFailuresWhenFFmpegMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.Remove(filepath.Join(env.baseDir, "bin", "ffmpeg")); err != nil {
		t.Fatalf("remove ffmpeg stub: %v", err)
	}
	env.addMovie(t, "Movie.mkv", "movie content")

	out, stderr, err := runCLI(t, []string{"process"}, env.configPath)
	if err != nil {
		t.Fatalf("missing ffmpeg must not abort the run: %v", err)
	}
	requireContains(t, stderr, "required tools missing")
	requireContains(t, out, "1 failed")

	out, _, err = runCLI(t, []string{"manifest", "list", "--outcome", "failed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest list: %v", err)
	}
	var entries []manifest.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || !strings.Contains(entries[0].Reason, "ffmpeg binary not found") {
		t.Fatalf("expected one failed record naming the missing binary, got %+v", entries)
	}
}

func TestManifestCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addMovie(t, "Movie.mkv", "movie content")
	if _, _, err := runCLI(t, []string{"process"}, env.configPath); err != nil {
		t.Fatalf("process: %v", err)
	}

	out, _, err := runCLI(t, []string{"manifest", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest list: %v", err)
	}
	var entries []manifest.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != manifest.OutcomeSuccess {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	out, _, err = runCLI(t, []string{"manifest", "list", "--outcome", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest list --outcome: %v", err)
	}
	requireContains(t, out, "Manifest is empty")

	out, _, err = runCLI(t, []string{"manifest", "show", entries[0].Key()}, env.configPath)
	if err != nil {
		t.Fatalf("manifest show: %v", err)
	}
	requireContains(t, out, "Next run:  skip")
	requireContains(t, out, "Output:   4K_VIE_DTS_Movie.eng.srt")

	out, _, err = runCLI(t, []string{"manifest", "compact"}, env.configPath)
	if err != nil {
		t.Fatalf("manifest compact: %v", err)
	}
	requireContains(t, out, "removed 0 entries, 1 remain")
}

func TestManifestIgnore(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.addMovie(t, "Extras.mkv", "extras content")

	out, _, err := runCLI(t, []string{"manifest", "ignore", path}, env.configPath)
	if err != nil {
		t.Fatalf("manifest ignore: %v", err)
	}
	requireContains(t, out, "Extras.mkv: ignored")

	out, _, err = runCLI(t, []string{"process"}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "0 success, 0 failed, 1 skipped")
}

func TestManifestMerge(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addMovie(t, "Movie.mkv", "movie content")
	if _, _, err := runCLI(t, []string{"process"}, env.configPath); err != nil {
		t.Fatalf("process: %v", err)
	}

	merged := filepath.Join(env.baseDir, "merged.jsonl")
	out, _, err := runCLI(t, []string{"manifest", "merge", merged, filepath.Join(env.baseDir, "manifest.jsonl")}, "")
	if err != nil {
		t.Fatalf("manifest merge: %v", err)
	}
	requireContains(t, out, "read 1 entries, wrote 1")
	if _, err := os.Stat(merged); err != nil {
		t.Fatalf("expected merged manifest: %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigShowPrintsEffectiveValues(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, env.outputDir)
	requireContains(t, out, "min_free_gib = 0")
}

func TestDoctorPassesWithStubs(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "FFprobe:")
	requireContains(t, out, "All checks passed")
}
