package extract

import (
	"fmt"
	"strings"
)

// Reason classifies why a track extraction failed.
type Reason string

const (
	// ReasonNotFound means the tool binary, the source or a path component
	// was missing, which happens on removable or network storage and is worth
	// retrying.
	ReasonNotFound Reason = "not_found"
	// ReasonTimeout means the per-call deadline expired.
	ReasonTimeout Reason = "timeout"
	// ReasonInvalidTrack means the stream index does not exist in the source.
	ReasonInvalidTrack Reason = "invalid_track"
	// ReasonUnsupported means the codec cannot be written to the target format.
	ReasonUnsupported Reason = "unsupported"
	// ReasonFailed covers every other tool failure.
	ReasonFailed Reason = "failed"
	// ReasonAborted means the run was hard-stopped before the track finished.
	ReasonAborted Reason = "aborted"
)

// Transient reports whether a retry can reasonably succeed.
func (r Reason) Transient() bool {
	return r == ReasonNotFound || r == ReasonTimeout
}

// ExtractionError reports a failed track extraction.
type ExtractionError struct {
	Source     string
	Output     string
	TrackIndex int
	Reason     Reason
	Detail     string
	Err        error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "extract track %d of %s: %s", e.TrackIndex, e.Source, e.Reason)
	if e.Detail != "" {
		b.WriteString(" (" + e.Detail + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for logging and run summaries.
func (e *ExtractionError) ErrorKind() string { return "extraction" }

// Transient reports whether the failure is worth retrying.
func (e *ExtractionError) Transient() bool { return e.Reason.Transient() }

// classifyStderr maps ffmpeg diagnostics to a Reason.
func classifyStderr(stderr string) Reason {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "resource temporarily unavailable"):
		return ReasonNotFound
	case strings.Contains(lower, "matches no streams"),
		strings.Contains(lower, "invalid stream specifier"):
		return ReasonInvalidTrack
	case strings.Contains(lower, "not currently supported in container"),
		strings.Contains(lower, "could not find tag for codec"),
		strings.Contains(lower, "unsupported codec"),
		strings.Contains(lower, "subtitle encoding currently only possible from text to text or bitmap to bitmap"),
		strings.Contains(lower, "not supported"):
		return ReasonUnsupported
	default:
		return ReasonFailed
	}
}

// lastLine returns the final non-empty line of tool output for error detail.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
