package manifest

import (
	"context"
	"fmt"

	"github.com/HThanh-how/mkvprocesser/internal/config"
)

// Store is the durable backend behind a Manifest.
type Store interface {
	// LoadAll returns every readable entry in append order. Records that
	// cannot be decoded are skipped and counted in LoadStats.Corrupt.
	LoadAll(ctx context.Context) ([]Entry, LoadStats, error)
	// Append durably persists one entry before returning.
	Append(ctx context.Context, entry Entry) error
	// Compact replaces the stored log with keep.
	Compact(ctx context.Context, keep []Entry) error
	Close() error
}

// OpenStore opens the backend selected by manifest.backend.
func OpenStore(cfg *config.Config) (Store, error) {
	switch cfg.Manifest.Backend {
	case "", "jsonl":
		return OpenJSONL(cfg.Paths.ManifestPath)
	case "sqlite":
		return OpenSQLite(cfg.Paths.ManifestPath)
	default:
		return nil, fmt.Errorf("unsupported manifest backend %q", cfg.Manifest.Backend)
	}
}
