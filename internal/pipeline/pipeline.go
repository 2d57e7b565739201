package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/extract"
	"github.com/HThanh-how/mkvprocesser/internal/language"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/manifest"
	"github.com/HThanh-how/mkvprocesser/internal/media/ffprobe"
	"github.com/HThanh-how/mkvprocesser/internal/metrics"
	"github.com/HThanh-how/mkvprocesser/internal/naming"
	"github.com/HThanh-how/mkvprocesser/internal/preflight"
	"github.com/HThanh-how/mkvprocesser/internal/signature"
	"github.com/HThanh-how/mkvprocesser/internal/tracks"
)

const reasonAborted = "aborted by hard stop"

// Pipeline processes every media file of a folder against one manifest.
type Pipeline struct {
	cfg          *config.Config
	manifest     *manifest.Manifest
	prober       Prober
	extractor    extract.Extractor
	classifier   *tracks.Classifier
	signer       *signature.Engine
	policy       extract.Policy
	metrics      *metrics.Metrics
	logger       *slog.Logger
	freeBytes    func(string) (uint64, error)
	orchestrator *extract.Orchestrator
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithProber replaces the ffprobe prober.
func WithProber(p Prober) Option {
	return func(pl *Pipeline) {
		if p != nil {
			pl.prober = p
		}
	}
}

// WithExtractor replaces the ffmpeg extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(pl *Pipeline) {
		if e != nil {
			pl.extractor = e
		}
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(pl *Pipeline) {
		if logger != nil {
			pl.logger = logger
		}
	}
}

// WithFreeSpaceFunc replaces the free-space probe (primarily for tests).
func WithFreeSpaceFunc(fn func(string) (uint64, error)) Option {
	return func(pl *Pipeline) {
		if fn != nil {
			pl.freeBytes = fn
		}
	}
}

// New wires a pipeline. The config is treated as an immutable snapshot.
func New(cfg *config.Config, m *manifest.Manifest, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		manifest:   m,
		classifier: tracks.NewClassifier(tracks.OptionsFromConfig(cfg)),
		signer:     signature.NewEngine(cfg.Signature.SampleBytes, cfg.Signature.Strict),
		policy:     extract.PolicyFromConfig(cfg),
		logger:     logging.NewNop(),
		freeBytes:  preflight.FreeBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.prober == nil {
		p.prober = NewFFprobe(cfg)
	}
	if p.extractor == nil {
		p.extractor = extract.NewFFmpeg(cfg, p.logger)
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	p.orchestrator = extract.NewOrchestrator(p.extractor, p.policy, p.logger)
	return p
}

// RunOptions controls one run.
type RunOptions struct {
	// Folder overrides paths.input_dir.
	Folder string
	// HardStop, when cancelled, aborts in-flight extraction. Cancelling the
	// Run context only stops dispatch.
	HardStop context.Context
	// DryRun plans names without extracting or recording.
	DryRun bool
	// Force processes content the manifest already records as done or
	// skipped. Those entries are left untouched.
	Force bool
}

// run holds the state shared by the workers of one run.
type run struct {
	id       string
	engine   *naming.Engine
	dryRun   bool
	force    bool
	mu       sync.Mutex
	inflight map[string]string
}

// claim reserves a content signature for this run. It returns the path that
// already holds it when another file in the run has the same content.
func (r *run) claim(key, path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.inflight[key]; ok {
		return owner, false
	}
	r.inflight[key] = path
	return "", true
}

type job struct {
	index int
	path  string
}

// Run scans the folder and processes every candidate file with a bounded
// worker pool. The returned error is non-nil only when the run could not
// start; per-file failures are reported in the summary.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	folder := strings.TrimSpace(opts.Folder)
	if folder == "" {
		folder = p.cfg.Paths.InputDir
	}
	folder, err := config.ExpandPath(folder)
	if err != nil {
		return Summary{}, err
	}
	if err := p.cfg.ValidateInputFolder(folder); err != nil {
		return Summary{}, err
	}

	files, err := Scan(folder, p.cfg.Scan, outputDirs(p.cfg)...)
	if err != nil {
		return Summary{}, err
	}
	engine, err := naming.NewEngine(p.cfg, naming.NewClaims())
	if err != nil {
		return Summary{}, fmt.Errorf("naming template: %w", err)
	}

	r := &run{
		id:       uuid.NewString(),
		engine:   engine,
		dryRun:   opts.DryRun || p.cfg.Workflow.DryRun,
		force:    opts.Force || p.cfg.Workflow.ForceReprocess,
		inflight: make(map[string]string),
	}
	ctx = logging.ContextWithRunID(ctx, r.id)
	logger := logging.WithContext(ctx, p.logger)
	summary := Summary{RunID: r.id, Folder: folder, DryRun: r.dryRun, StartedAt: time.Now().UTC(), Scanned: len(files)}

	workers := p.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("folder", folder),
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.Bool("dry_run", r.dryRun),
		logging.Bool("force", r.force),
	)

	// In-flight files finish on a context detached from ctx; only HardStop
	// reaches them.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	if opts.HardStop != nil {
		stop := context.AfterFunc(opts.HardStop, cancelWork)
		defer stop()
	}

	results := make([]*FileResult, len(files))
	jobs := make(chan job)
	var g errgroup.Group
	g.Go(func() error {
		defer close(jobs)
		for i, path := range files {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case jobs <- job{index: i, path: path}:
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for j := range jobs {
				result := p.processFile(workCtx, r, j.path)
				results[j.index] = &result
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range results {
		if result == nil {
			summary.NotDispatched++
			continue
		}
		summary.add(*result)
	}
	summary.FinishedAt = time.Now().UTC()
	p.finish(ctx, logger, summary)
	return summary, nil
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, summary Summary) {
	p.metrics.RunFinished(len(p.manifest.Entries()), summary.FinishedAt)
	if err := p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath); err != nil {
		logging.WarnWithContext(logger, "metrics export failed", "metrics_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metrics.textfile_path permissions"),
			logging.String(logging.FieldImpact, "metrics for this run are not exported"),
		)
	}
	if p.cfg.Workflow.WriteRunSnapshot && !summary.DryRun {
		path, err := WriteSnapshot(p.cfg.Paths.LogDir, summary)
		if err != nil {
			logging.WarnWithContext(logger, "run snapshot failed", "run_snapshot_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.log_dir permissions"),
				logging.String(logging.FieldImpact, "run report is only available in the log"),
			)
		} else {
			logger.Debug("run snapshot written", logging.String("path", path))
		}
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("scanned", summary.Scanned),
		logging.Int("success", summary.Success),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("unrecorded", summary.Unrecorded),
		logging.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	if summary.Aborted > 0 {
		attrs = append(attrs, logging.Int("aborted", summary.Aborted))
	}
	if summary.NotDispatched > 0 {
		attrs = append(attrs, logging.Int("not_dispatched", summary.NotDispatched))
	}
	if ctx.Err() != nil {
		attrs = append(attrs, logging.Bool("cancelled", true))
	}
	logger.Info("run complete", logging.Args(attrs...)...)
}

// fileRun carries one file through the state machine.
type fileRun struct {
	p       *Pipeline
	ctx     context.Context
	logger  *slog.Logger
	machine *extract.Machine
	result  FileResult
	started time.Time
}

func (f *fileRun) advance(next extract.State) {
	if err := f.machine.Transition(next); err != nil {
		logging.ErrorWithContext(f.logger, "illegal state transition", "state_transition_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "report this as a bug"),
		)
		return
	}
	f.logger.Debug("state changed", logging.String(logging.FieldState, string(next)))
}

func (p *Pipeline) processFile(ctx context.Context, r *run, path string) FileResult {
	ctx = logging.ContextWithFile(ctx, path)
	f := &fileRun{
		p:       p,
		ctx:     ctx,
		logger:  logging.WithContext(ctx, p.logger),
		machine: extract.NewMachine(),
		result:  FileResult{Path: path},
		started: time.Now(),
	}
	f.advance(extract.StateProbing)

	probe, err := p.probe(ctx, f.logger, path)
	if err != nil {
		return f.fail(err, p.failureSignature(ctx, path))
	}
	millis, _ := probe.DurationMillis()
	f.logger.Debug("file probed",
		logging.String(logging.FieldEventType, "file_probed"),
		logging.Int("streams", len(probe.Streams)),
		logging.Int("audio_streams", probe.AudioStreamCount()),
		logging.Duration("duration", time.Duration(millis)*time.Millisecond),
		logging.Int("container_bytes", int(probe.SizeBytes())),
	)
	sig, err := p.signer.Compute(ctx, path, millis)
	if err != nil {
		return f.fail(err, p.failureSignature(ctx, path))
	}
	f.result.Signature = sig.Key()
	f.logger = f.logger.With(logging.String(logging.FieldSignature, sig.Key()))

	f.advance(extract.StateClassifying)
	verdict := p.manifest.ShouldProcess(sig)
	switch {
	case !verdict.Process && !r.force:
		return f.skip(verdict.Reason)
	case !verdict.Process:
		f.result.Forced = true
		f.logger.Info("processing recorded content again",
			logging.String(logging.FieldEventType, "file_forced"),
			logging.String("prior_outcome", string(verdict.Prior.Outcome)),
			logging.String("prior_reason", verdict.Reason),
		)
	case verdict.Prior != nil:
		f.logger.Info("previous attempt failed; processing again",
			logging.String(logging.FieldEventType, "file_retry"),
			logging.String("prior_reason", verdict.Prior.Reason),
		)
	}
	if owner, ok := r.claim(sig.Key(), path); !ok {
		return f.skip("same content as " + owner + " in this run")
	}
	classification, err := p.classifier.Classify(probe.Streams)
	if err != nil {
		return f.fail(err, sig)
	}
	f.logger.Debug("tracks classified",
		logging.String(logging.FieldDecisionType, "classification"),
		logging.String("primary", classification.Primary.Label()),
		logging.String("primary_language", language.DisplayName(classification.Primary.Language)),
		logging.Int("retained", len(classification.Retained())),
		logging.Int("audio", len(classification.Audio)),
		logging.Int("subtitles", len(classification.Subtitles)),
		logging.Int("discarded", len(classification.Discarded)),
	)

	f.advance(extract.StateNaming)
	width, height, _ := probe.Resolution()
	plan := r.engine.Plan(naming.Input{
		SourcePath:     path,
		Classification: classification,
		Width:          width,
		Height:         height,
		Year:           probe.Year(),
		Title:          probe.Title(),
	})
	f.result.FinalName = plan.Decision.FinalName
	f.logger.Info("naming decided",
		logging.String(logging.FieldDecisionType, "naming"),
		logging.String("final_name", plan.Decision.FinalName),
		logging.Int("targets", len(plan.Targets)),
	)
	if r.dryRun {
		for _, target := range plan.Targets {
			f.result.Planned = append(f.result.Planned, target.Name)
		}
		return f.skip(fmt.Sprintf("dry run: would write %d outputs", len(plan.Targets)))
	}
	if err := p.checkFreeSpace(path, plan); err != nil {
		return f.fail(err, sig)
	}

	f.advance(extract.StateExtracting)
	requests := make([]extract.Request, 0, len(plan.Targets))
	for _, target := range plan.Targets {
		requests = append(requests, extract.Request{Source: path, Track: target.Track, Output: target.Path()})
	}
	outcome := p.orchestrator.Run(ctx, requests)
	for _, track := range outcome.Tracks {
		p.metrics.ObserveTrack(string(track.Request.Track.Kind), track.Err == nil, track.Attempts)
	}
	return f.finishExtraction(sig, outcome)
}

func (p *Pipeline) probe(ctx context.Context, logger *slog.Logger, path string) (ffprobe.Result, error) {
	var result ffprobe.Result
	_, err := extract.Retry(ctx, p.policy,
		func(ctx context.Context) error {
			var err error
			result, err = p.prober.Probe(ctx, path)
			return err
		},
		isTransientProbe,
		func(err error, wait time.Duration) {
			logger.Info("retrying probe",
				logging.String(logging.FieldEventType, "probe_retry"),
				logging.Duration("wait", wait),
				logging.Error(err),
			)
		},
	)
	if err != nil {
		var probeErr *ffprobe.ProbeError
		if !errors.As(err, &probeErr) && ctx.Err() == nil {
			err = &ffprobe.ProbeError{Path: path, Err: err}
		}
		return ffprobe.Result{}, err
	}
	return result, nil
}

// failureSignature keys the failure record of a file that never got a full
// content signature.
func (p *Pipeline) failureSignature(ctx context.Context, path string) signature.FileSignature {
	if sig, err := p.signer.ComputeUnprobed(ctx, path); err == nil {
		return sig
	}
	return signature.PathSignature(path)
}

func (p *Pipeline) checkFreeSpace(path string, plan naming.Plan) error {
	minFree := p.cfg.Extraction.MinFreeGiB
	if minFree <= 0 {
		return nil
	}
	var size uint64
	if info, err := os.Stat(path); err == nil {
		size = uint64(info.Size())
	}
	need := uint64(minFree)<<30 + size
	seen := make(map[string]struct{})
	for _, target := range plan.Targets {
		if _, ok := seen[target.Dir]; ok {
			continue
		}
		seen[target.Dir] = struct{}{}
		if err := os.MkdirAll(target.Dir, 0o755); err != nil {
			return &DiskSpaceError{Dir: target.Dir, Err: err}
		}
		free, err := p.freeBytes(target.Dir)
		if err != nil {
			return &DiskSpaceError{Dir: target.Dir, Err: err}
		}
		if free < need {
			return &DiskSpaceError{Dir: target.Dir, Free: free, Need: need}
		}
	}
	return nil
}

// DiskSpaceError reports an output folder without room for a file's tracks.
type DiskSpaceError struct {
	Dir  string
	Free uint64
	Need uint64
	Err  error
}

func (e *DiskSpaceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("check free space in %s: %v", e.Dir, e.Err)
	}
	return fmt.Sprintf("insufficient disk space in %s: %.1f GiB free, %.1f GiB needed",
		e.Dir, float64(e.Free)/(1<<30), float64(e.Need)/(1<<30))
}

func (e *DiskSpaceError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for logging and run summaries.
func (e *DiskSpaceError) ErrorKind() string { return "disk_space" }

func (f *fileRun) skip(reason string) FileResult {
	f.advance(extract.StateSkipped)
	f.result.Outcome = manifest.OutcomeSkipped
	f.result.Reason = reason
	f.logger.Info("file skipped",
		logging.String(logging.FieldEventType, "file_skipped"),
		logging.String("reason", reason),
	)
	return f.done()
}

// fail ends a file before extraction. A hard stop is reported but never
// recorded, so the file is retried on the next run.
func (f *fileRun) fail(err error, sig signature.FileSignature) FileResult {
	f.advance(extract.StateFailed)
	f.result.Outcome = manifest.OutcomeFailed
	if f.ctx.Err() != nil {
		f.result.Reason = reasonAborted
		f.result.Aborted = true
		f.logUnrecorded()
		return f.done()
	}

	f.result.Reason = failureReason(err)
	f.result.ErrorKind = errorKind(err)
	if f.result.Signature == "" {
		f.result.Signature = sig.Key()
	}
	logging.WarnWithContext(f.logger, "file failed", "file_failed",
		logging.String(logging.FieldErrorKind, f.result.ErrorKind),
		logging.String("reason", f.result.Reason),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, failureHint(f.result.ErrorKind)),
		logging.String(logging.FieldImpact, "file is recorded as failed and retried next run"),
	)
	f.record(sig)
	return f.done()
}

func (f *fileRun) finishExtraction(sig signature.FileSignature, outcome extract.Result) FileResult {
	f.result.Produced = outcome.Produced
	switch {
	case outcome.Aborted:
		f.advance(extract.StateAborted)
		f.result.Outcome = manifest.OutcomeFailed
		f.result.Reason = reasonAborted
		f.result.Aborted = true
		f.result.ErrorKind = "extraction"
		f.removeOutputs(outcome)
		f.result.Produced = nil
		f.logUnrecorded()
		return f.done()
	case outcome.Succeeded():
		f.advance(extract.StateSuccess)
		f.result.Outcome = manifest.OutcomeSuccess
		f.result.Reason = fmt.Sprintf("extracted %d tracks", len(outcome.Tracks))
		f.logger.Info("file processed",
			logging.String(logging.FieldEventType, "file_success"),
			logging.String("final_name", f.result.FinalName),
			logging.Int("produced", len(outcome.Produced)),
		)
	default:
		f.advance(extract.StatePartialFailure)
		failures := outcome.Failures()
		f.result.Outcome = manifest.OutcomeFailed
		f.result.ErrorKind = "extraction"
		f.result.Reason = fmt.Sprintf("%d of %d tracks failed: %s", len(failures), len(outcome.Tracks), failures[0].Err.Error())
		logging.WarnWithContext(f.logger, "file partially extracted", "file_partial_failure",
			logging.Int("failed_tracks", len(failures)),
			logging.Int("produced", len(outcome.Produced)),
			logging.String("reason", f.result.Reason),
			logging.String(logging.FieldErrorHint, "inspect the ffmpeg errors above; produced outputs are kept"),
			logging.String(logging.FieldImpact, "file is recorded as failed and retried next run"),
		)
	}
	f.record(sig)
	return f.done()
}

func (f *fileRun) record(sig signature.FileSignature) {
	if f.result.Forced {
		f.logger.Info("forced result not recorded; manifest entry kept",
			logging.String(logging.FieldEventType, "file_forced_unrecorded"),
			logging.String("outcome", string(f.result.Outcome)),
		)
		return
	}
	entry := manifest.Entry{
		Signature:     sig,
		SourcePath:    f.result.Path,
		Outcome:       f.result.Outcome,
		Reason:        f.result.Reason,
		ProducedNames: f.result.Produced,
	}
	// A hard stop must not lose the record of work that already finished.
	_, err := f.p.manifest.Record(context.WithoutCancel(f.ctx), entry)
	if err == nil {
		f.result.Recorded = true
		return
	}
	f.p.metrics.ManifestWriteFailed()
	if errors.Is(err, manifest.ErrDuplicateSuccess) {
		logging.WarnWithContext(f.logger, "manifest already holds a success for this content", "manifest_duplicate_success",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "another copy of this file was processed concurrently"),
			logging.String(logging.FieldImpact, "this result is not recorded"),
		)
		return
	}
	logging.ErrorWithContext(f.logger, "manifest write failed", "manifest_write_failed",
		logging.Alert("manifest_write"),
		logging.String(logging.FieldErrorKind, errorKind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check manifest storage; the file will be processed again next run"),
		logging.String(logging.FieldImpact, "outcome not recorded"),
	)
}

func (f *fileRun) logUnrecorded() {
	logging.WarnWithContext(f.logger, "file aborted; outcome not recorded", "file_aborted",
		logging.String(logging.FieldState, string(f.machine.State())),
		logging.String(logging.FieldErrorHint, "the file will be processed again next run"),
		logging.String(logging.FieldImpact, "partial outputs were removed"),
	)
}

func (f *fileRun) removeOutputs(outcome extract.Result) {
	for _, track := range outcome.Tracks {
		if track.Err != nil {
			continue
		}
		if err := os.Remove(track.Request.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("remove aborted output failed",
				logging.String("output", track.Request.Output),
				logging.Error(err),
				logging.String(logging.FieldEventType, "output_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "delete the file by hand"),
			)
		}
	}
}

func (f *fileRun) done() FileResult {
	f.result.State = f.machine.State()
	f.result.Elapsed = time.Since(f.started)
	f.p.metrics.ObserveFile(string(f.result.Outcome), f.result.Elapsed)
	return f.result
}

func failureReason(err error) string {
	var classErr *tracks.ClassificationError
	if errors.As(err, &classErr) {
		return classErr.Reason
	}
	return err.Error()
}

func failureHint(kind string) string {
	switch kind {
	case "probe":
		return "run ffprobe on the file by hand; it may be truncated or not a media file"
	case "classification":
		return "check the file's audio tracks and the classifier language filters"
	case "signature":
		return "check that the file is readable and fully copied"
	case "disk_space":
		return "free space in the output folder or lower extraction.min_free_gib"
	default:
		return "see the error for details"
	}
}

// outputDirs lists the folders a run may write into.
func outputDirs(cfg *config.Config) []string {
	dirs := []string{cfg.DubbedOutputDir(), cfg.OriginalOutputDir(), cfg.SubtitleOutputDir()}
	out := dirs[:0]
	seen := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		out = append(out, dir)
	}
	return out
}

// ErrAlreadyRecorded is returned by Ignore for content that already has a
// success or skipped entry.
var ErrAlreadyRecorded = errors.New("content already recorded")

// Ignore records path as skipped so future runs never process its content.
func (p *Pipeline) Ignore(ctx context.Context, path, reason string) (manifest.Entry, error) {
	probe, err := p.probe(ctx, p.logger, path)
	if err != nil {
		return manifest.Entry{}, err
	}
	millis, _ := probe.DurationMillis()
	sig, err := p.signer.Compute(ctx, path, millis)
	if err != nil {
		return manifest.Entry{}, err
	}
	if verdict := p.manifest.ShouldProcess(sig); !verdict.Process {
		return *verdict.Prior, fmt.Errorf("%w: %s", ErrAlreadyRecorded, verdict.Reason)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "ignored by user"
	}
	entry, err := p.manifest.Record(ctx, manifest.Entry{
		Signature:  sig,
		SourcePath: path,
		Outcome:    manifest.OutcomeSkipped,
		Reason:     reason,
	})
	if err != nil {
		return entry, err
	}
	p.logger.Info("file ignored",
		logging.String(logging.FieldEventType, "file_ignored"),
		logging.String(logging.FieldFile, path),
		logging.String(logging.FieldSignature, sig.Key()),
	)
	return entry, nil
}
