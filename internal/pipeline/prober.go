package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/media/ffprobe"
)

// probeTimeout bounds a single ffprobe invocation. Probing reads container
// headers only, so a slow probe usually means a stalled mount.
const probeTimeout = 2 * time.Minute

// Prober returns the stream metadata of one media file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	return f(ctx, path)
}

// FFprobe probes files with the configured ffprobe binary.
type FFprobe struct {
	binary  string
	timeout time.Duration
}

// NewFFprobe builds the default prober.
func NewFFprobe(cfg *config.Config) *FFprobe {
	return &FFprobe{binary: cfg.FFprobeBinary(), timeout: probeTimeout}
}

// Probe implements Prober.
func (f *FFprobe) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return ffprobe.Inspect(callCtx, f.binary, path)
}

func isTransientProbe(err error) bool {
	var probeErr *ffprobe.ProbeError
	return errors.As(err, &probeErr) && probeErr.Transient
}
