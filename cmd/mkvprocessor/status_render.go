package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/HThanh-how/mkvprocesser/internal/manifest"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 20

// renderCheckLine formats one doctor check as "  label: [OK] detail".
func renderCheckLine(label string, kind statusKind, detail string, colorize bool) string {
	status := "[" + statusKindLabel(kind) + "]"
	if detail != "" {
		status += " " + detail
	}
	return fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", paint(status, kind, colorize))
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func outcomeKind(outcome manifest.Outcome) statusKind {
	switch outcome {
	case manifest.OutcomeSuccess:
		return statusOK
	case manifest.OutcomeFailed:
		return statusError
	case manifest.OutcomeSkipped:
		return statusInfo
	default:
		return statusWarn
	}
}

func paint(text string, kind statusKind, colorize bool) string {
	if !colorize {
		return text
	}
	color := ""
	switch kind {
	case statusOK:
		color = ansiGreen
	case statusWarn:
		color = ansiYellow
	case statusError:
		color = ansiRed
	case statusInfo:
		color = ansiBlue
	}
	if color == "" {
		return text
	}
	return color + text + ansiReset
}

func renderSectionHeader(title string) string {
	return "== " + strings.TrimSpace(title) + " =="
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
