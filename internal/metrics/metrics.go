package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters for processing runs. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// File metrics
	FilesTotal          *prometheus.CounterVec
	FileDurationSeconds *prometheus.HistogramVec

	// Track metrics
	TracksTotal       *prometheus.CounterVec
	ExtractRetryTotal prometheus.Counter

	// Manifest metrics
	ManifestWriteFailuresTotal prometheus.Counter
	ManifestEntries            prometheus.Gauge

	// Run metrics
	LastRunTimestamp prometheus.Gauge
	RunsTotal        prometheus.Counter
}

// New creates a Metrics instance backed by its own registry so repeated runs
// in one process and parallel tests never collide on registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkvprocessor_files_total",
				Help: "Files that reached a terminal outcome",
			},
			[]string{"outcome"},
		),
		FileDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mkvprocessor_file_duration_seconds",
				Help:    "Wall time spent per file",
				Buckets: prometheus.ExponentialBuckets(0.5, 4, 8),
			},
			[]string{"outcome"},
		),

		TracksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkvprocessor_tracks_total",
				Help: "Track extractions by kind and result",
			},
			[]string{"kind", "result"},
		),
		ExtractRetryTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mkvprocessor_extract_attempts_retried_total",
				Help: "Extraction attempts beyond the first",
			},
		),

		ManifestWriteFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mkvprocessor_manifest_write_failures_total",
				Help: "Manifest records that could not be persisted",
			},
		),
		ManifestEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkvprocessor_manifest_entries",
				Help: "Entries in the manifest after the last run",
			},
		),

		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkvprocessor_last_run_timestamp_seconds",
				Help: "Unix time the last run finished",
			},
		),
		RunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mkvprocessor_runs_total",
				Help: "Completed processing runs",
			},
		),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFile counts one file outcome and its duration.
func (m *Metrics) ObserveFile(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(outcome).Inc()
	m.FileDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveTrack counts one track extraction and any retries it needed.
func (m *Metrics) ObserveTrack(kind string, ok bool, attempts int) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failed"
	}
	m.TracksTotal.WithLabelValues(kind, result).Inc()
	if attempts > 1 {
		m.ExtractRetryTotal.Add(float64(attempts - 1))
	}
}

// ManifestWriteFailed counts a record that could not be persisted.
func (m *Metrics) ManifestWriteFailed() {
	if m == nil {
		return
	}
	m.ManifestWriteFailuresTotal.Inc()
}

// RunFinished stamps the end of a run.
func (m *Metrics) RunFinished(manifestEntries int, at time.Time) {
	if m == nil {
		return
	}
	m.RunsTotal.Inc()
	m.ManifestEntries.Set(float64(manifestEntries))
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile exports the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
