package extract

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
)

// Policy bounds retries of transient failures.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// PolicyFromConfig reads the extraction retry settings.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts:    cfg.Extraction.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Extraction.InitialBackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Extraction.MaxBackoffMS) * time.Millisecond,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialBackoff
	expo.MaxInterval = p.MaxBackoff
	expo.MaxElapsedTime = 0
	expo.Reset()
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)
}

// Retry runs op until it succeeds, fails with an error transient rejects, or
// the policy's attempts run out. It returns the attempt count and the last
// error.
func Retry(ctx context.Context, policy Policy, op func(context.Context) error, transient func(error) bool, notify func(error, time.Duration)) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy.backOff(ctx), notify)
	return attempts, err
}

// TrackResult is the outcome of one requested track.
type TrackResult struct {
	Request  Request
	Attempts int
	Err      error
}

// Result is the outcome of extracting every requested track of one file.
type Result struct {
	Tracks []TrackResult
	// Produced lists the output names written, in request order.
	Produced []string
	// Aborted is set when a hard stop interrupted the file.
	Aborted bool
}

// Succeeded reports whether every requested track was written.
func (r Result) Succeeded() bool {
	if r.Aborted {
		return false
	}
	for _, track := range r.Tracks {
		if track.Err != nil {
			return false
		}
	}
	return true
}

// Failures returns the failed track results.
func (r Result) Failures() []TrackResult {
	var out []TrackResult
	for _, track := range r.Tracks {
		if track.Err != nil {
			out = append(out, track)
		}
	}
	return out
}

// Orchestrator extracts a file's tracks one after another. A failed track
// never prevents its siblings from being attempted.
type Orchestrator struct {
	extractor Extractor
	policy    Policy
	logger    *slog.Logger
}

// NewOrchestrator wires an extractor to a retry policy.
func NewOrchestrator(extractor Extractor, policy Policy, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		policy:    policy,
		logger:    logging.NewComponentLogger(logger, "extract"),
	}
}

// Run extracts every request. Cancelling ctx is a hard stop: the current
// track is abandoned and the remaining ones are reported as aborted.
func (o *Orchestrator) Run(ctx context.Context, requests []Request) Result {
	result := Result{Tracks: make([]TrackResult, 0, len(requests))}
	for _, req := range requests {
		if ctx.Err() != nil {
			result.Aborted = true
			result.Tracks = append(result.Tracks, TrackResult{Request: req, Err: abortedError(req, ctx.Err())})
			continue
		}

		track := o.runOne(ctx, req)
		if isAborted(track.Err) {
			result.Aborted = true
		}
		if track.Err == nil {
			result.Produced = append(result.Produced, filepath.Base(req.Output))
		}
		result.Tracks = append(result.Tracks, track)
	}
	return result
}

func (o *Orchestrator) runOne(ctx context.Context, req Request) TrackResult {
	logger := o.logger.With(
		logging.String(logging.FieldFile, req.Source),
		logging.Int(logging.FieldTrackIndex, req.Track.Index),
	)
	attempts, err := Retry(ctx, o.policy,
		func(ctx context.Context) error { return o.extractor.Extract(ctx, req) },
		isTransient,
		func(err error, wait time.Duration) {
			logger.Info("retrying track extraction",
				logging.String(logging.FieldEventType, "extract_retry"),
				logging.Duration("wait", wait),
				logging.Error(err),
			)
		},
	)
	if err != nil && ctx.Err() != nil {
		err = abortedError(req, err)
	}
	if err != nil {
		var extErr *ExtractionError
		if !errors.As(err, &extErr) {
			err = &ExtractionError{Source: req.Source, Output: req.Output, TrackIndex: req.Track.Index, Reason: ReasonFailed, Err: err}
		}
		logging.WarnWithContext(logger, "track extraction failed", "extract_track_failed",
			logging.String("reason", string(reasonOf(err))),
			logging.Int("attempts", attempts),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the ffmpeg error in the log file"),
			logging.String(logging.FieldImpact, "file will be recorded as failed and retried next run"),
		)
		return TrackResult{Request: req, Attempts: attempts, Err: err}
	}
	logger.Info("track extracted",
		logging.String(logging.FieldEventType, "extract_track_done"),
		logging.String("output", req.Output),
		logging.Int("attempts", attempts),
	)
	return TrackResult{Request: req, Attempts: attempts}
}

func abortedError(req Request, cause error) error {
	var extErr *ExtractionError
	if errors.As(cause, &extErr) && extErr.Reason == ReasonAborted {
		return extErr
	}
	return &ExtractionError{Source: req.Source, Output: req.Output, TrackIndex: req.Track.Index, Reason: ReasonAborted, Err: cause}
}

func isTransient(err error) bool {
	var extErr *ExtractionError
	return errors.As(err, &extErr) && extErr.Transient()
}

func isAborted(err error) bool {
	return reasonOf(err) == ReasonAborted
}

func reasonOf(err error) Reason {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Reason
	}
	if err != nil {
		return ReasonFailed
	}
	return ""
}
