package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleHandlerRendersComponentAndFile(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = NewComponentLogger(logger, "pipeline")
	logger.Info("file processed",
		String(FieldFile, "/media/in/Movie.2019.mkv"),
		String("target_name", "4K_VIE_DTS_2019_Movie.mkv"),
		String(FieldOutcome, "success"),
	)

	out := buf.String()
	if !strings.Contains(out, "INFO [pipeline] Movie.2019.mkv - file processed") {
		t.Fatalf("unexpected header: %q", out)
	}
	outcomeAt := strings.Index(out, "Outcome: success")
	targetAt := strings.Index(out, "Target Name:")
	if outcomeAt < 0 || targetAt < 0 || outcomeAt > targetAt {
		t.Fatalf("expected highlighted outcome before target name, got %q", out)
	}
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", out)
	}
}

func TestNewWritesJSONCopyToFile(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")
	logger, err := New(Options{Level: "info", Format: "console", Console: &console, FilePath: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Warn("disk low", String(FieldEventType, "disk_space"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one JSON line, got %d: %q", len(lines), data)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["level"] != "warn" || record[FieldEventType] != "disk_space" {
		t.Fatalf("unexpected record: %v", record)
	}
	if ts, ok := record["time"].(string); !ok || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("expected UTC time key, got %v", record)
	}
	if !strings.Contains(console.String(), "disk low") {
		t.Fatalf("expected console copy, got %q", console.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "retrying", "extract_retry", String(FieldErrorHint, "check ffmpeg"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[FieldEventType] != "extract_retry" {
		t.Fatalf("expected event type, got %v", record[FieldEventType])
	}
	if record[FieldErrorHint] != "check ffmpeg" {
		t.Fatalf("expected caller hint preserved, got %v", record[FieldErrorHint])
	}
	if record[FieldImpact] == nil {
		t.Fatal("expected default impact")
	}
}

func TestWithContextAddsRunAndFile(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := ContextWithFile(ContextWithRunID(context.Background(), "run-1"), "/in/a.mkv")
	WithContext(ctx, base).Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[FieldRunID] != "run-1" || record[FieldFile] != "/in/a.mkv" {
		t.Fatalf("unexpected context fields: %v", record)
	}
}

func TestTeeHandlerFiltersSinksIndependently(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer
	h := &teeHandler{
		console: slog.NewJSONHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		file:    slog.NewJSONHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h).With(String(FieldComponent, "test"))
	logger.Debug("debug only")

	if consoleBuf.Len() != 0 {
		t.Fatalf("console should drop debug, got %q", consoleBuf.String())
	}
	if !strings.Contains(fileBuf.String(), `"component":"test"`) {
		t.Fatalf("file should receive record with attrs, got %q", fileBuf.String())
	}
}

func TestLogFileKeepsInfoWhenConsoleIsQuiet(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), LogFileName)
	logger, err := New(Options{Level: "warn", Console: &console, FilePath: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("run complete")

	if console.Len() != 0 {
		t.Fatalf("console should drop info at warn level, got %q", console.String())
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "run complete") {
		t.Fatalf("expected info record in file, got %q", data)
	}
}
