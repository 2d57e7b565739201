package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/signature"
)

// Manifest is the in-memory index over a durable Store. Record calls are
// serialized; lookups only take a read lock.
type Manifest struct {
	store  Store
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.RWMutex
	index   map[string]Entry
	entries []Entry
	stats   LoadStats
}

// Open opens the configured store and loads its index.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Manifest, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	m, err := Load(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return m, nil
}

// Load builds a Manifest from every entry in store. Corrupt records are
// skipped with a warning.
func Load(ctx context.Context, store Store, logger *slog.Logger) (*Manifest, error) {
	m := &Manifest{
		store:  store,
		logger: logging.NewComponentLogger(logger, "manifest"),
		index:  make(map[string]Entry),
	}
	entries, stats, err := store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	for _, entry := range entries {
		m.indexLocked(entry)
	}
	m.entries = entries
	stats.Signatures = len(m.index)
	m.stats = stats

	if stats.Corrupt > 0 {
		logging.WarnWithContext(m.logger, "skipped corrupt manifest records", "manifest_corrupt_records",
			logging.Int("corrupt", stats.Corrupt),
			logging.Int("loaded", stats.Entries),
			logging.String(logging.FieldErrorHint, "run 'mkvprocessor manifest compact' to rewrite the log"),
			logging.String(logging.FieldImpact, "files behind the corrupt records will be processed again"),
		)
	}
	m.logger.Debug("manifest loaded",
		logging.String(logging.FieldEventType, "manifest_loaded"),
		logging.Int("entries", stats.Entries),
		logging.Int("signatures", stats.Signatures),
	)
	return m, nil
}

// indexLocked keeps the success entry for a signature if one exists,
// otherwise the latest entry.
func (m *Manifest) indexLocked(entry Entry) {
	key := entry.Key()
	if existing, ok := m.index[key]; ok && existing.Outcome == OutcomeSuccess && entry.Outcome != OutcomeSuccess {
		return
	}
	m.index[key] = entry
}

// Lookup returns the governing entry for sig: its success entry if one
// exists, otherwise the most recent entry.
func (m *Manifest) Lookup(sig signature.FileSignature) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.index[sig.Key()]
	return entry, ok
}

// Record durably appends entry and then updates the index. A store failure
// returns *ManifestWriteError and leaves the index unchanged. Missing IDs and
// timestamps are filled in.
func (m *Manifest) Record(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.RunID == "" {
		if runID, ok := logging.RunIDFromContext(ctx); ok {
			entry.RunID = runID
		}
	}
	if err := entry.validate(); err != nil {
		return entry, fmt.Errorf("record manifest entry: %w", err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if entry.Outcome == OutcomeSuccess {
		if prior, ok := m.Lookup(entry.Signature); ok && prior.Outcome == OutcomeSuccess {
			return entry, fmt.Errorf("%w: %s (recorded for %s)", ErrDuplicateSuccess, entry.Key(), prior.SourcePath)
		}
	}

	if err := m.store.Append(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateSuccess) {
			return entry, err
		}
		return entry, &ManifestWriteError{Key: entry.Key(), Err: err}
	}

	m.mu.Lock()
	m.indexLocked(entry)
	m.entries = append(m.entries, entry)
	m.mu.Unlock()
	return entry, nil
}

// Verdict is the re-processing decision for one signature.
type Verdict struct {
	Process bool
	Reason  string
	Prior   *Entry
}

// ShouldProcess applies the re-processing policy: prior success or skipped
// entries suppress processing, prior failures are retried.
func (m *Manifest) ShouldProcess(sig signature.FileSignature) Verdict {
	prior, ok := m.Lookup(sig)
	if !ok {
		return Verdict{Process: true, Reason: "new content"}
	}
	switch prior.Outcome {
	case OutcomeSuccess:
		return Verdict{
			Reason: fmt.Sprintf("already processed from %s at %s", prior.SourcePath, prior.Timestamp.Format(time.RFC3339)),
			Prior:  &prior,
		}
	case OutcomeSkipped:
		reason := "previously skipped"
		if prior.Reason != "" {
			reason += ": " + prior.Reason
		}
		return Verdict{Reason: reason, Prior: &prior}
	default:
		reason := "retrying after failure"
		if prior.Reason != "" {
			reason += ": " + prior.Reason
		}
		return Verdict{Process: true, Reason: reason, Prior: &prior}
	}
}

// Entries returns every entry in append order.
func (m *Manifest) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// History returns every entry recorded for sig in append order.
func (m *Manifest) History(sig signature.FileSignature) []Entry {
	key := sig.Key()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, entry := range m.entries {
		if entry.Key() == key {
			out = append(out, entry)
		}
	}
	return out
}

// Stats returns the counts observed at load time.
func (m *Manifest) Stats() LoadStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Compact rewrites the store keeping only the governing entry per signature.
// It returns the number of entries removed.
func (m *Manifest) Compact(ctx context.Context) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	keep := compactEntries(m.entries)
	before := len(m.entries)
	m.mu.RUnlock()

	if err := m.store.Compact(ctx, keep); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.entries = keep
	m.mu.Unlock()

	removed := before - len(keep)
	m.logger.Info("manifest compacted",
		logging.String(logging.FieldEventType, "manifest_compacted"),
		logging.Int("kept", len(keep)),
		logging.Int("removed", removed),
	)
	return removed, nil
}

// compactEntries keeps the success entry per signature, or the latest entry
// when none succeeded, ordered by timestamp.
func compactEntries(entries []Entry) []Entry {
	index := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		key := entry.Key()
		if existing, ok := index[key]; ok {
			if existing.Outcome == OutcomeSuccess && entry.Outcome != OutcomeSuccess {
				continue
			}
			if existing.Outcome == entry.Outcome && existing.Timestamp.After(entry.Timestamp) {
				continue
			}
		}
		index[key] = entry
	}
	out := make([]Entry, 0, len(index))
	for _, entry := range index {
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Key() < out[j].Key()
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Close closes the underlying store.
func (m *Manifest) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}
