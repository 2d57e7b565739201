package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/language"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/tracks"
)

// partSuffix marks an output that is still being written.
const partSuffix = ".part"

// Request describes one track to extract.
type Request struct {
	Source string
	Track  tracks.Descriptor
	Output string
}

// Extractor writes one track to its output path.
type Extractor interface {
	Extract(ctx context.Context, req Request) error
}

// commandRunner executes a tool and returns its stderr.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// FFmpeg extracts tracks with stream copy. Audio outputs keep the video
// streams so the result is a playable file in that language; subtitles become
// sidecar files.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
	run     commandRunner
}

// FFmpegOption customizes an FFmpeg extractor.
type FFmpegOption func(*FFmpeg)

// WithCommandRunner injects a custom command runner (primarily for tests).
func WithCommandRunner(r commandRunner) FFmpegOption {
	return func(f *FFmpeg) {
		if r != nil {
			f.run = r
		}
	}
}

// NewFFmpeg builds the default extractor from configuration.
func NewFFmpeg(cfg *config.Config, logger *slog.Logger, opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{
		binary:  cfg.FFmpegBinary(),
		timeout: time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second,
		logger:  logging.NewComponentLogger(logger, "ffmpeg"),
		run:     defaultCommandRunner,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Extract implements Extractor. Output is written to "<output>.part" and
// renamed into place only when ffmpeg succeeds.
func (f *FFmpeg) Extract(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Output) == "" {
		return &ExtractionError{Source: req.Source, TrackIndex: req.Track.Index, Reason: ReasonFailed, Detail: "output path required"}
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return &ExtractionError{Source: req.Source, Output: req.Output, TrackIndex: req.Track.Index, Reason: ReasonFailed, Detail: "create output dir", Err: err}
	}

	tmpPath := req.Output + partSuffix
	args, err := ffmpegArgs(req, tmpPath)
	if err != nil {
		return &ExtractionError{Source: req.Source, Output: req.Output, TrackIndex: req.Track.Index, Reason: ReasonUnsupported, Err: err}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	f.logger.Debug("executing ffmpeg",
		logging.String(logging.FieldFile, req.Source),
		logging.Int(logging.FieldTrackIndex, req.Track.Index),
		logging.String("output", req.Output),
		logging.String("args", strings.Join(args, " ")),
	)

	stderr, runErr := f.run(callCtx, f.binary, args...)
	if runErr != nil {
		_ = os.Remove(tmpPath)
		extErr := &ExtractionError{
			Source:     req.Source,
			Output:     req.Output,
			TrackIndex: req.Track.Index,
			Reason:     classifyStderr(string(stderr)),
			Detail:     lastLine(string(stderr)),
			Err:        runErr,
		}
		switch {
		case ctx.Err() != nil:
			extErr.Reason = ReasonAborted
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			extErr.Reason = ReasonTimeout
		case missingBinary(runErr):
			extErr.Reason = ReasonNotFound
			extErr.Detail = "ffmpeg binary not found"
		}
		return extErr
	}

	info, err := os.Stat(tmpPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(tmpPath)
		return &ExtractionError{Source: req.Source, Output: req.Output, TrackIndex: req.Track.Index, Reason: ReasonFailed, Detail: "ffmpeg produced no output", Err: err}
	}
	if err := os.Rename(tmpPath, req.Output); err != nil {
		_ = os.Remove(tmpPath)
		return &ExtractionError{Source: req.Source, Output: req.Output, TrackIndex: req.Track.Index, Reason: ReasonFailed, Detail: "finalize output", Err: err}
	}
	return nil
}

// missingBinary reports whether the tool itself could not be started. A
// binary on a mount that is not up yet is retried like a missing source.
func missingBinary(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// muxerFormats maps output extensions to ffmpeg muxers. The ".part" suffix
// hides the real extension, so the format is always passed explicitly.
var muxerFormats = map[string]string{
	".mkv": "matroska",
	".mks": "matroska",
	".srt": "srt",
	".ass": "ass",
	".vtt": "webvtt",
	".sup": "sup",
}

func ffmpegArgs(req Request, tmpPath string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(req.Output))
	format, ok := muxerFormats[ext]
	if !ok {
		return nil, fmt.Errorf("no muxer for %q", ext)
	}
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-i", req.Source}
	stream := "0:" + strconv.Itoa(req.Track.Index)
	lang := language.Normalize(req.Track.Language)
	if lang == language.Unknown {
		lang = "und"
	}

	switch req.Track.Kind {
	case tracks.KindAudio:
		args = append(args,
			"-map", "0:V?",
			"-map", stream,
			"-c", "copy",
			"-metadata:s:a:0", "language="+lang,
			"-disposition:a:0", "default",
		)
	case tracks.KindSubtitle:
		codec := "copy"
		if ext == ".srt" && !isSubRip(req.Track.Codec) {
			codec = "srt"
		}
		args = append(args,
			"-map", stream,
			"-c:s", codec,
			"-metadata:s:s:0", "language="+lang,
		)
	default:
		return nil, fmt.Errorf("unsupported track kind %q", req.Track.Kind)
	}
	args = append(args, "-f", format, tmpPath)
	return args, nil
}

func isSubRip(codec string) bool {
	switch strings.ToLower(codec) {
	case "subrip", "srt":
		return true
	default:
		return false
	}
}
