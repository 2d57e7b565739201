package manifest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HThanh-how/mkvprocesser/internal/signature"
)

// Outcome is the terminal result recorded for one file.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ParseOutcome validates a user-supplied outcome name.
func ParseOutcome(value string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(value))); o {
	case OutcomeSuccess, OutcomeFailed, OutcomeSkipped:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q (want success, failed or skipped)", value)
	}
}

// Entry is one immutable manifest record.
type Entry struct {
	ID            string                  `json:"id"`
	Signature     signature.FileSignature `json:"signature"`
	SourcePath    string                  `json:"source_path"`
	Outcome       Outcome                 `json:"outcome"`
	Reason        string                  `json:"reason,omitempty"`
	ProducedNames []string                `json:"produced_names"`
	Timestamp     time.Time               `json:"timestamp"`
	RunID         string                  `json:"run_id,omitempty"`
}

// Key returns the signature key the entry is indexed under.
func (e Entry) Key() string {
	return e.Signature.Key()
}

func (e Entry) validate() error {
	if e.Signature.ContentHash == "" || e.Signature.DurationMillis < 0 {
		return errors.New("missing signature")
	}
	// Duration-less signatures only key failures of files that could not be probed.
	if e.Signature.DurationMillis == 0 && e.Outcome == OutcomeSuccess {
		return errors.New("success entry requires a probed duration")
	}
	switch e.Outcome {
	case OutcomeSuccess, OutcomeFailed, OutcomeSkipped:
	default:
		return fmt.Errorf("invalid outcome %q", e.Outcome)
	}
	if e.Timestamp.IsZero() {
		return errors.New("missing timestamp")
	}
	return nil
}

// ErrDuplicateSuccess is returned when a second success is recorded for the
// same content signature.
var ErrDuplicateSuccess = errors.New("content already has a success entry")

// ErrLocked is returned when another process holds the manifest.
var ErrLocked = errors.New("manifest is in use by another run")

// ManifestWriteError reports an entry that could not be durably persisted.
// The in-memory index is left unchanged so the file is reprocessed next run.
type ManifestWriteError struct {
	Key string
	Err error
}

func (e *ManifestWriteError) Error() string {
	return fmt.Sprintf("manifest write %s: %v", e.Key, e.Err)
}

func (e *ManifestWriteError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for logging and run summaries.
func (e *ManifestWriteError) ErrorKind() string { return "manifest_write" }

// LoadStats summarizes a manifest load.
type LoadStats struct {
	Entries    int `json:"entries"`
	Corrupt    int `json:"corrupt"`
	Signatures int `json:"signatures"`
}
