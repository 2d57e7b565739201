package manifest

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// MergeStats summarizes a Merge call.
type MergeStats struct {
	Inputs  int `json:"inputs"`
	Read    int `json:"read"`
	Corrupt int `json:"corrupt"`
	Written int `json:"written"`
}

// Merge combines JSONL manifests from several machines into out, keeping one
// governing entry per signature ordered by timestamp. out may also appear
// among inputs.
func Merge(ctx context.Context, out string, inputs ...string) (MergeStats, error) {
	stats := MergeStats{Inputs: len(inputs)}
	if len(inputs) == 0 {
		return stats, fmt.Errorf("merge: no input manifests")
	}

	lock := flock.New(out + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return stats, fmt.Errorf("acquire manifest lock: %w", err)
	}
	if !ok {
		return stats, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	var all []Entry
	for _, path := range inputs {
		entries, loadStats, err := readJSONLFile(ctx, path)
		if err != nil {
			return stats, err
		}
		stats.Read += loadStats.Entries
		stats.Corrupt += loadStats.Corrupt
		all = append(all, entries...)
	}

	merged := compactEntries(all)
	if err := writeJSONLFile(out, merged); err != nil {
		return stats, err
	}
	stats.Written = len(merged)
	return stats, nil
}

func readJSONLFile(ctx context.Context, path string) ([]Entry, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()
	entries, stats, err := decodeJSONL(ctx, f)
	if err != nil {
		return nil, stats, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return entries, stats, nil
}
