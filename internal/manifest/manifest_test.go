package manifest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/manifest"
	"github.com/HThanh-how/mkvprocesser/internal/signature"
	"github.com/HThanh-how/mkvprocesser/internal/testsupport"
)

func sig(seed string, millis int64) signature.FileSignature {
	hash := strings.Repeat(seed, 64)[:64]
	return signature.FileSignature{ContentHash: hash, DurationMillis: millis, Sampling: signature.SamplingEnds}
}

func openManifest(t *testing.T, backend string) (*manifest.Manifest, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBackend(backend))
	m, err := manifest.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open(%s): %v", backend, err)
	}
	return m, cfg.Paths.ManifestPath
}

func reopen(t *testing.T, backend, path string) *manifest.Manifest {
	t.Helper()
	var (
		store manifest.Store
		err   error
	)
	if backend == "sqlite" {
		store, err = manifest.OpenSQLite(path)
	} else {
		store, err = manifest.OpenJSONL(path)
	}
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	m, err := manifest.Load(context.Background(), store, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRecordPersistsAcrossReopen(t *testing.T) {
	for _, backend := range []string{"jsonl", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			m, path := openManifest(t, backend)

			a := sig("a", 5000)
			if _, err := m.Record(ctx, manifest.Entry{Signature: a, SourcePath: "/in/a.mkv", Outcome: manifest.OutcomeFailed, Reason: "probe"}); err != nil {
				t.Fatalf("Record failed entry: %v", err)
			}
			recorded, err := m.Record(ctx, manifest.Entry{
				Signature:     a,
				SourcePath:    "/in/a.mkv",
				Outcome:       manifest.OutcomeSuccess,
				ProducedNames: []string{"4K_VIE_DTS_a.mkv", "4K_VIE_DTS_a.eng.srt"},
			})
			if err != nil {
				t.Fatalf("Record success entry: %v", err)
			}
			if recorded.ID == "" || recorded.Timestamp.IsZero() {
				t.Fatalf("expected id and timestamp to be filled, got %+v", recorded)
			}
			if err := m.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			again := reopen(t, backend, path)
			entry, ok := again.Lookup(a)
			if !ok {
				t.Fatal("expected entry after reopen")
			}
			if entry.Outcome != manifest.OutcomeSuccess {
				t.Fatalf("Lookup outcome = %s, want success", entry.Outcome)
			}
			if len(entry.ProducedNames) != 2 || entry.ProducedNames[1] != "4K_VIE_DTS_a.eng.srt" {
				t.Fatalf("unexpected produced names %v", entry.ProducedNames)
			}
			if got := len(again.Entries()); got != 2 {
				t.Fatalf("expected 2 entries after reopen, got %d", got)
			}
			if got := len(again.History(a)); got != 2 {
				t.Fatalf("expected 2 history entries, got %d", got)
			}
		})
	}
}

func TestRecordRejectsDuplicateSuccess(t *testing.T) {
	for _, backend := range []string{"jsonl", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			m, _ := openManifest(t, backend)
			t.Cleanup(func() { _ = m.Close() })

			a := sig("b", 1000)
			if _, err := m.Record(ctx, manifest.Entry{Signature: a, SourcePath: "/in/one.mkv", Outcome: manifest.OutcomeSuccess}); err != nil {
				t.Fatalf("first Record: %v", err)
			}
			_, err := m.Record(ctx, manifest.Entry{Signature: a, SourcePath: "/in/copy.mkv", Outcome: manifest.OutcomeSuccess})
			if !errors.Is(err, manifest.ErrDuplicateSuccess) {
				t.Fatalf("expected ErrDuplicateSuccess, got %v", err)
			}
			if got := len(m.Entries()); got != 1 {
				t.Fatalf("expected 1 entry, got %d", got)
			}
		})
	}
}

func TestConcurrentRecordsStayIntact(t *testing.T) {
	const writers, perWriter = 8, 20
	for _, backend := range []string{"jsonl", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			m, path := openManifest(t, backend)
			shared := sig("f", 7000)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				errs      []error
				sharedWon int
			)
			for w := 0; w < writers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWriter; i++ {
						own := signature.FileSignature{ContentHash: fmt.Sprintf("%064x", w*perWriter+i+1), DurationMillis: 1000, Sampling: signature.SamplingEnds}
						_, err := m.Record(ctx, manifest.Entry{
							Signature:     own,
							SourcePath:    fmt.Sprintf("/in/%d-%d.mkv", w, i),
							Outcome:       manifest.OutcomeSuccess,
							ProducedNames: []string{fmt.Sprintf("4K_VIE_DTS_%d-%d.mkv", w, i)},
						})
						if err != nil {
							mu.Lock()
							errs = append(errs, err)
							mu.Unlock()
						}
					}
					_, err := m.Record(ctx, manifest.Entry{Signature: shared, SourcePath: fmt.Sprintf("/in/copy-%d.mkv", w), Outcome: manifest.OutcomeSuccess})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						sharedWon++
					case !errors.Is(err, manifest.ErrDuplicateSuccess):
						errs = append(errs, err)
					}
				}(w)
			}
			wg.Wait()

			if len(errs) > 0 {
				t.Fatalf("Record errors: %v", errs)
			}
			if sharedWon != 1 {
				t.Fatalf("expected exactly one success for shared content, got %d", sharedWon)
			}
			want := writers*perWriter + 1
			if got := len(m.Entries()); got != want {
				t.Fatalf("Entries = %d, want %d", got, want)
			}
			if err := m.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			again := reopen(t, backend, path)
			if stats := again.Stats(); stats.Corrupt != 0 || stats.Entries != want {
				t.Fatalf("reloaded stats %+v, want %d entries and no corrupt records", stats, want)
			}
			if got := len(again.History(shared)); got != 1 {
				t.Fatalf("shared content history = %d entries, want 1", got)
			}
		})
	}
}

func TestRecordRejectsInvalidEntries(t *testing.T) {
	m, _ := openManifest(t, "jsonl")
	t.Cleanup(func() { _ = m.Close() })

	tests := []struct {
		name  string
		entry manifest.Entry
	}{
		{name: "missing signature", entry: manifest.Entry{Outcome: manifest.OutcomeFailed}},
		{name: "bad outcome", entry: manifest.Entry{Signature: sig("c", 1), Outcome: "done"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Record(context.Background(), tt.entry); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

type failingStore struct {
	manifest.Store
	appendErr error
}

func (s *failingStore) Append(context.Context, manifest.Entry) error { return s.appendErr }

func TestRecordWriteFailureLeavesIndexUnchanged(t *testing.T) {
	dir := t.TempDir()
	inner, err := manifest.OpenJSONL(filepath.Join(dir, "manifest.jsonl"))
	if err != nil {
		t.Fatalf("OpenJSONL: %v", err)
	}
	store := &failingStore{Store: inner, appendErr: errors.New("disk full")}
	m, err := manifest.Load(context.Background(), store, logging.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	a := sig("d", 42)
	_, err = m.Record(context.Background(), manifest.Entry{Signature: a, SourcePath: "/in/d.mkv", Outcome: manifest.OutcomeSuccess})
	var writeErr *manifest.ManifestWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected ManifestWriteError, got %v", err)
	}
	if writeErr.ErrorKind() != "manifest_write" {
		t.Fatalf("unexpected error kind %q", writeErr.ErrorKind())
	}
	if _, ok := m.Lookup(a); ok {
		t.Fatal("index must not change after a failed write")
	}
}

func TestShouldProcessPolicy(t *testing.T) {
	ctx := context.Background()
	m, _ := openManifest(t, "jsonl")
	t.Cleanup(func() { _ = m.Close() })

	done, failed, skipped, fresh := sig("1", 10), sig("2", 10), sig("3", 10), sig("4", 10)
	for _, e := range []manifest.Entry{
		{Signature: done, SourcePath: "/in/done.mkv", Outcome: manifest.OutcomeSuccess},
		{Signature: failed, SourcePath: "/in/failed.mkv", Outcome: manifest.OutcomeFailed, Reason: "no audio track"},
		{Signature: skipped, SourcePath: "/in/skipped.mkv", Outcome: manifest.OutcomeSkipped, Reason: "ignored by user"},
	} {
		if _, err := m.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	tests := []struct {
		name    string
		sig     signature.FileSignature
		process bool
		prior   bool
	}{
		{name: "success skips", sig: done, process: false, prior: true},
		{name: "failed retries", sig: failed, process: true, prior: true},
		{name: "skipped stays skipped", sig: skipped, process: false, prior: true},
		{name: "new content", sig: fresh, process: true, prior: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := m.ShouldProcess(tt.sig)
			if verdict.Process != tt.process {
				t.Fatalf("Process = %v, want %v (%s)", verdict.Process, tt.process, verdict.Reason)
			}
			if (verdict.Prior != nil) != tt.prior {
				t.Fatalf("Prior presence = %v, want %v", verdict.Prior != nil, tt.prior)
			}
			if verdict.Reason == "" {
				t.Fatal("expected a reason")
			}
		})
	}
}

func TestLookupPrefersSuccessOverLaterFailure(t *testing.T) {
	ctx := context.Background()
	m, _ := openManifest(t, "jsonl")
	t.Cleanup(func() { _ = m.Close() })

	a := sig("e", 77)
	for _, outcome := range []manifest.Outcome{manifest.OutcomeSuccess, manifest.OutcomeFailed} {
		if _, err := m.Record(ctx, manifest.Entry{Signature: a, SourcePath: "/in/e.mkv", Outcome: outcome}); err != nil {
			t.Fatalf("Record %s: %v", outcome, err)
		}
	}
	entry, ok := m.Lookup(a)
	if !ok || entry.Outcome != manifest.OutcomeSuccess {
		t.Fatalf("Lookup = %+v, %v; want success entry", entry, ok)
	}
}

func TestLoadSkipsCorruptLines(t *testing.T) {
	ctx := context.Background()
	m, path := openManifest(t, "jsonl")
	if _, err := m.Record(ctx, manifest.Entry{Signature: sig("f", 9), SourcePath: "/in/f.mkv", Outcome: manifest.OutcomeSuccess}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	// A garbage line plus a torn record without a trailing newline.
	if _, err := f.WriteString("not json\n{\"id\":\"x\",\"signature\":{\"content_ha"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	_ = f.Close()

	again := reopen(t, "jsonl", path)
	if stats := again.Stats(); stats.Corrupt != 2 || stats.Entries != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, err := again.Record(ctx, manifest.Entry{Signature: sig("g", 9), SourcePath: "/in/g.mkv", Outcome: manifest.OutcomeFailed}); err != nil {
		t.Fatalf("Record after corrupt tail: %v", err)
	}
	_ = again.Close()

	third := reopen(t, "jsonl", path)
	if stats := third.Stats(); stats.Entries != 2 || stats.Corrupt != 2 {
		t.Fatalf("torn tail should not swallow the next record, stats %+v", stats)
	}
}

func TestJSONLStoreIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	first, err := manifest.OpenJSONL(path)
	if err != nil {
		t.Fatalf("OpenJSONL: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })

	if _, err := manifest.OpenJSONL(path); !errors.Is(err, manifest.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestCompactKeepsGoverningEntries(t *testing.T) {
	for _, backend := range []string{"jsonl", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			m, path := openManifest(t, backend)

			a, b := sig("h", 1), sig("i", 1)
			entries := []manifest.Entry{
				{Signature: a, SourcePath: "/in/a.mkv", Outcome: manifest.OutcomeFailed},
				{Signature: a, SourcePath: "/in/a.mkv", Outcome: manifest.OutcomeSuccess},
				{Signature: b, SourcePath: "/in/b.mkv", Outcome: manifest.OutcomeFailed, Reason: "first"},
				{Signature: b, SourcePath: "/in/b.mkv", Outcome: manifest.OutcomeFailed, Reason: "second"},
			}
			for i, e := range entries {
				e.Timestamp = time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC)
				if _, err := m.Record(ctx, e); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}

			removed, err := m.Compact(ctx)
			if err != nil {
				t.Fatalf("Compact: %v", err)
			}
			if removed != 2 {
				t.Fatalf("removed = %d, want 2", removed)
			}
			_ = m.Close()

			again := reopen(t, backend, path)
			kept := again.Entries()
			if len(kept) != 2 {
				t.Fatalf("expected 2 entries after compact, got %d", len(kept))
			}
			if entry, _ := again.Lookup(a); entry.Outcome != manifest.OutcomeSuccess {
				t.Fatalf("expected success entry for a, got %s", entry.Outcome)
			}
			if entry, _ := again.Lookup(b); entry.Reason != "second" {
				t.Fatalf("expected latest failure for b, got %q", entry.Reason)
			}
		})
	}
}

func TestMergeDeduplicatesBySignature(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	shared := sig("j", 500)

	write := func(name string, entries ...manifest.Entry) string {
		path := filepath.Join(dir, name)
		store, err := manifest.OpenJSONL(path)
		if err != nil {
			t.Fatalf("OpenJSONL: %v", err)
		}
		m, err := manifest.Load(ctx, store, logging.NewNop())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		for _, e := range entries {
			if _, err := m.Record(ctx, e); err != nil {
				t.Fatalf("Record: %v", err)
			}
		}
		_ = m.Close()
		return path
	}

	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	left := write("left.jsonl",
		manifest.Entry{Signature: shared, SourcePath: "/a/x.mkv", Outcome: manifest.OutcomeFailed, Timestamp: t0},
		manifest.Entry{Signature: sig("k", 1), SourcePath: "/a/y.mkv", Outcome: manifest.OutcomeSuccess, Timestamp: t0.Add(time.Minute)},
	)
	right := write("right.jsonl",
		manifest.Entry{Signature: shared, SourcePath: "/b/x.mkv", Outcome: manifest.OutcomeSuccess, Timestamp: t0.Add(2 * time.Minute)},
	)

	out := filepath.Join(dir, "merged.jsonl")
	stats, err := manifest.Merge(ctx, out, left, right)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.Read != 3 || stats.Written != 2 {
		t.Fatalf("unexpected merge stats %+v", stats)
	}

	merged := reopen(t, "jsonl", out)
	entry, ok := merged.Lookup(shared)
	if !ok || entry.Outcome != manifest.OutcomeSuccess || entry.SourcePath != "/b/x.mkv" {
		t.Fatalf("expected success from right manifest, got %+v", entry)
	}
	entries := merged.Entries()
	if entries[0].SourcePath != "/a/y.mkv" {
		t.Fatalf("expected entries sorted by timestamp, got %v first", entries[0].SourcePath)
	}
}

func TestParseOutcome(t *testing.T) {
	if got, err := manifest.ParseOutcome(" Success "); err != nil || got != manifest.OutcomeSuccess {
		t.Fatalf("ParseOutcome = %q, %v", got, err)
	}
	if _, err := manifest.ParseOutcome("done"); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}
