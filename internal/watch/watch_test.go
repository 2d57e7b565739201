package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HThanh-how/mkvprocesser/internal/logging"
	"github.com/HThanh-how/mkvprocesser/internal/testsupport"
	"github.com/HThanh-how/mkvprocesser/internal/watch"
)

type runCounter struct {
	n     atomic.Int32
	fired chan struct{}
}

func newRunCounter() *runCounter {
	return &runCounter{fired: make(chan struct{}, 16)}
}

func (r *runCounter) trigger(context.Context) error {
	r.n.Add(1)
	r.fired <- struct{}{}
	return nil
}

func (r *runCounter) wait(t *testing.T, timeout time.Duration) bool {
	t.Helper()
	select {
	case <-r.fired:
		return true
	case <-time.After(timeout):
		return false
	}
}

func startWatcher(t *testing.T, opts watch.Options, counter *runCounter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := watch.New(opts, counter.trigger, logging.NewNop())
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	if !counter.wait(t, 2*time.Second) {
		t.Fatal("watcher did not run at startup")
	}
}

func TestWatcherTriggersOnNewMedia(t *testing.T) {
	dir := t.TempDir()
	counter := newRunCounter()
	startWatcher(t, watch.Options{Folder: dir, Extensions: []string{".mkv"}, Debounce: 50 * time.Millisecond}, counter)

	// A burst of writes to one file coalesces into a single run.
	path := filepath.Join(dir, "Movie.mkv")
	for i := 0; i < 5; i++ {
		testsupport.WriteFile(t, path, int64(1024*(i+1)))
	}
	if !counter.wait(t, 3*time.Second) {
		t.Fatal("expected a run after a new media file")
	}
	if counter.wait(t, 300*time.Millisecond) {
		t.Fatal("burst of writes triggered more than one run")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	counter := newRunCounter()
	startWatcher(t, watch.Options{Folder: dir, Extensions: []string{".mkv"}, Debounce: 50 * time.Millisecond}, counter)

	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(dir, "Movie.mkv.part"), 10)
	testsupport.WriteFile(t, filepath.Join(dir, ".hidden.mkv"), 10)
	if counter.wait(t, 400*time.Millisecond) {
		t.Fatal("unrelated files triggered a run")
	}
}

func TestWatcherFollowsNewSubfolders(t *testing.T) {
	dir := t.TempDir()
	counter := newRunCounter()
	startWatcher(t, watch.Options{Folder: dir, Extensions: []string{".mkv"}, Recursive: true, Debounce: 100 * time.Millisecond}, counter)

	season := filepath.Join(dir, "Season 1")
	if err := os.Mkdir(season, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// The folder creation alone schedules a run.
	if !counter.wait(t, 3*time.Second) {
		t.Fatal("expected a run after a new subfolder")
	}
	testsupport.WriteFile(t, filepath.Join(season, "e01.mkv"), 2048)
	if !counter.wait(t, 3*time.Second) {
		t.Fatal("expected a run after media in the new subfolder")
	}
}

func TestWatcherMissingFolder(t *testing.T) {
	w := watch.New(watch.Options{Folder: filepath.Join(t.TempDir(), "missing")}, func(context.Context) error { return nil }, logging.NewNop())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing folder")
	}
}
