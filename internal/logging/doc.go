// Package logging assembles structured slog loggers used across mkvprocessor.
//
// It owns the console and JSON handlers, fans records out to the run log file
// under the configured log directory, and exposes context helpers so pipeline
// code tags log lines with the run ID and the file being processed. NewNop
// provides a silent logger for tests and wiring code that cannot fail.
package logging
