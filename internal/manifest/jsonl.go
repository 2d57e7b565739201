package manifest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// JSONLStore keeps one JSON object per line and fsyncs after every append.
// An exclusive lock file is held for the store's lifetime.
type JSONLStore struct {
	mu   sync.Mutex
	path string
	file logFile
	lock *flock.Flock
	// torn is set when a failed append could not be rolled back; the next
	// append then starts on a fresh line.
	torn bool
}

// logFile is the subset of *os.File the store writes through.
type logFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
	Close() error
}

// OpenJSONL opens (creating if needed) the manifest log at path.
func OpenJSONL(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire manifest lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}

	file, err := openAppend(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &JSONLStore{path: path, file: file, lock: lock}, nil
}

// openAppend opens the log for appending and terminates a torn final line
// left by a crash so the next record starts on its own line.
func openAppend(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	if info.Size() == 0 {
		return file, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("read manifest tail: %w", err)
	}
	if last[0] != '\n' {
		if _, err := file.Write([]byte{'\n'}); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("repair manifest tail: %w", err)
		}
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("sync manifest: %w", err)
		}
	}
	return file, nil
}

// Path returns the log location.
func (s *JSONLStore) Path() string {
	return s.path
}

// LoadAll implements Store.
func (s *JSONLStore) LoadAll(ctx context.Context) ([]Entry, LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return decodeJSONL(ctx, f)
}

func decodeJSONL(ctx context.Context, r io.Reader) ([]Entry, LoadStats, error) {
	var (
		entries []Entry
		stats   LoadStats
	)
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var entry Entry
			if decodeErr := json.Unmarshal(line, &entry); decodeErr != nil || entry.validate() != nil {
				stats.Corrupt++
			} else {
				entries = append(entries, entry)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read manifest: %w", err)
		}
	}
	stats.Entries = len(entries)
	return entries, stats, nil
}

// Append implements Store.
func (s *JSONLStore) Append(_ context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	payload = append(payload, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("manifest store closed")
	}
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat manifest: %w", err)
	}
	if s.torn {
		payload = append([]byte{'\n'}, payload...)
	}
	if _, err := s.file.Write(payload); err != nil {
		s.rollback(info.Size())
		return fmt.Errorf("append entry: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		s.rollback(info.Size())
		return fmt.Errorf("sync manifest: %w", err)
	}
	s.torn = false
	return nil
}

// rollback drops the bytes of a failed append so the next record is not
// glued onto a fragment.
func (s *JSONLStore) rollback(size int64) {
	if err := s.file.Truncate(size); err != nil {
		s.torn = true
	}
}

// Compact implements Store by writing keep to a temp file and renaming it
// over the log.
func (s *JSONLStore) Compact(_ context.Context, keep []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("manifest store closed")
	}

	if err := writeJSONLFile(s.path, keep); err != nil {
		return err
	}
	_ = s.file.Close()
	file, err := openAppend(s.path)
	if err != nil {
		s.file = nil
		return err
	}
	s.file = file
	return nil
}

// writeJSONLFile atomically replaces path with entries.
func writeJSONLFile(path string, entries []Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			cleanup()
			return fmt.Errorf("encode entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}

// Close releases the file handle and the lock.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.file != nil {
		errs = append(errs, s.file.Close())
		s.file = nil
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
		s.lock = nil
	}
	return errors.Join(errs...)
}
