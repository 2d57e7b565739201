package pipeline

import (
	"errors"
	"time"

	"github.com/HThanh-how/mkvprocesser/internal/extract"
	"github.com/HThanh-how/mkvprocesser/internal/manifest"
)

// FileResult is the terminal report for one dispatched file.
type FileResult struct {
	Path      string           `json:"path"`
	Signature string           `json:"signature,omitempty"`
	State     extract.State    `json:"state"`
	Outcome   manifest.Outcome `json:"outcome"`
	Reason    string           `json:"reason"`
	ErrorKind string           `json:"error_kind,omitempty"`
	FinalName string           `json:"final_name,omitempty"`
	// Planned lists the outputs a dry run would have written.
	Planned  []string `json:"planned,omitempty"`
	Produced []string `json:"produced,omitempty"`
	// Recorded is false when no manifest entry was written for the file:
	// skips, dry runs, hard-stop aborts and manifest write failures.
	Recorded bool          `json:"recorded"`
	Aborted  bool          `json:"aborted,omitempty"`
	// Forced marks content processed again although the manifest had
	// settled it. Its existing entry is kept and nothing new is recorded.
	Forced   bool          `json:"forced,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns"`
}

// Summary reports a whole run.
type Summary struct {
	RunID      string    `json:"run_id"`
	Folder     string    `json:"folder"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scanned    int       `json:"scanned"`
	Success    int       `json:"success"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Unrecorded int       `json:"unrecorded"`
	Aborted    int       `json:"aborted"`
	// NotDispatched counts scanned files left untouched because the run was
	// cancelled first.
	NotDispatched int          `json:"not_dispatched"`
	Files         []FileResult `json:"files"`
}

func (s *Summary) add(result FileResult) {
	switch result.Outcome {
	case manifest.OutcomeSuccess:
		s.Success++
	case manifest.OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	if result.Aborted {
		s.Aborted++
	}
	// Skips are never recorded and forced results keep the entry they
	// replayed, so neither counts here.
	if !result.Recorded && !result.Forced && result.Outcome != manifest.OutcomeSkipped {
		s.Unrecorded++
	}
	s.Files = append(s.Files, result)
}

// HasFailures reports whether any file failed or could not be recorded.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Unrecorded > 0
}

// errorKind returns the taxonomy label of err, or "" when it has none.
func errorKind(err error) string {
	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return ""
}
