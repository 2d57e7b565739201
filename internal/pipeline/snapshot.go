package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const snapshotTimeLayout = "20060102T150405Z"

// WriteSnapshot stores summary as run_<timestamp>.json in dir and returns the
// file path. The file appears atomically.
func WriteSnapshot(dir string, summary Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run snapshot: %w", err)
	}
	name := fmt.Sprintf("run_%s_%s.json", summary.FinishedAt.UTC().Format(snapshotTimeLayout), shortID(summary.RunID))
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".run-*.json")
	if err != nil {
		return "", fmt.Errorf("create run snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write run snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close run snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("finalize run snapshot: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
