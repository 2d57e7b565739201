package ffprobe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const samplePayload = `{
  "streams": [
    {"index": 0, "codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 900, "disposition": {"attached_pic": 1}},
    {"index": 1, "codec_name": "hevc", "codec_type": "video", "width": 3840, "height": 1608},
    {"index": 2, "codec_name": "dts", "codec_type": "audio", "channels": 6, "channel_layout": "5.1(side)", "tags": {"language": "vie", "title": "Thuyet minh"}},
    {"index": 3, "codec_name": "subrip", "codec_type": "subtitle", "tags": {"LANGUAGE": "eng"}}
  ],
  "format": {"filename": "Movie.mkv", "duration": "7265.4321", "size": "1000", "tags": {"DATE": "2019-05-01", "title": "Movie"}}
}`

func TestParseExtractsNamingInputs(t *testing.T) {
	result, err := Parse("Movie.mkv", []byte(samplePayload))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	width, height, ok := result.Resolution()
	if !ok || width != 3840 || height != 1608 {
		t.Fatalf("expected 3840x1608 from the real video stream, got %dx%d ok=%v", width, height, ok)
	}
	millis, ok := result.DurationMillis()
	if !ok || millis != 7265432 {
		t.Fatalf("unexpected duration millis: %d ok=%v", millis, ok)
	}
	if year := result.Year(); year != 2019 {
		t.Fatalf("expected year 2019 from DATE tag, got %d", year)
	}
	if result.Title() != "Movie" {
		t.Fatalf("unexpected title %q", result.Title())
	}
	if result.AudioStreamCount() != 1 {
		t.Fatalf("expected 1 audio stream, got %d", result.AudioStreamCount())
	}
	if Tag(result.Streams[3].Tags, "language") != "eng" {
		t.Fatalf("expected case-insensitive tag lookup")
	}
}

func TestParseInvalidPayload(t *testing.T) {
	_, err := Parse("bad.mkv", []byte("{"))
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if probeErr.Transient {
		t.Fatal("parse failures are not transient")
	}
	if probeErr.ErrorKind() != "probe" {
		t.Fatalf("unexpected kind %q", probeErr.ErrorKind())
	}
}

func TestResultHelpersHandleMissingValues(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if _, ok := result.DurationMillis(); ok {
		t.Fatal("expected no duration")
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if _, _, ok := result.Resolution(); ok {
		t.Fatal("expected no resolution without video streams")
	}
	if result.Year() != 0 {
		t.Fatalf("expected no year, got %d", result.Year())
	}
}

func TestInspectMissingBinaryIsTransient(t *testing.T) {
	binary := filepath.Join(t.TempDir(), "missing", "ffprobe")
	_, err := Inspect(context.Background(), binary, "/in/Movie.mkv")
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if !probeErr.Transient {
		t.Fatalf("missing binary should be transient: %v", err)
	}
}

func TestInspectToolFailureIsNotTransient(t *testing.T) {
	binary := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n"
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err := Inspect(context.Background(), binary, "/in/Movie.mkv")
	var probeErr *ProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected ProbeError, got %v", err)
	}
	if probeErr.Transient {
		t.Fatalf("bad input should not be retried: %v", err)
	}
	if probeErr.Detail != "Invalid data found when processing input" {
		t.Fatalf("unexpected detail %q", probeErr.Detail)
	}
}
