package manifest

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HThanh-how/mkvprocesser/internal/signature"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	sqliteConstraintCode    = 19
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore persists entries in a SQLite database. A partial unique index
// enforces a single success row per signature.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the manifest database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (export with 'mkvprocessor manifest list --json' and recreate)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func sqliteCode(err error) int {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Extended result codes carry the primary code in the low byte.
		return coder.Code() & 0xff
	}
	return 0
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if sqliteCode(err) == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isConstraint(err error) bool {
	if err == nil {
		return false
	}
	return sqliteCode(err) == sqliteConstraintCode || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

const insertEntrySQL = `INSERT INTO manifest_entries
	(id, signature_key, content_hash, duration_ms, sampling, source_path, outcome, reason, produced_names, recorded_at, run_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func entryArgs(entry Entry) ([]any, error) {
	names := entry.ProducedNames
	if names == nil {
		names = []string{}
	}
	encoded, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode produced names: %w", err)
	}
	return []any{
		entry.ID,
		entry.Key(),
		entry.Signature.ContentHash,
		entry.Signature.DurationMillis,
		string(entry.Signature.Sampling),
		entry.SourcePath,
		string(entry.Outcome),
		entry.Reason,
		string(encoded),
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.RunID,
	}, nil
}

// Append implements Store. With synchronous=FULL the commit is durable when
// the statement returns.
func (s *SQLiteStore) Append(ctx context.Context, entry Entry) error {
	args, err := entryArgs(entry)
	if err != nil {
		return err
	}
	if err := s.execWithRetry(ctx, insertEntrySQL, args...); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSuccess, entry.Key())
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// LoadAll implements Store. Rows with undecodable columns count as corrupt.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Entry, LoadStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content_hash, duration_ms, sampling, source_path, outcome,
		reason, produced_names, recorded_at, run_id FROM manifest_entries ORDER BY seq`)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("query manifest: %w", err)
	}
	defer rows.Close()

	var (
		entries []Entry
		stats   LoadStats
	)
	for rows.Next() {
		var (
			entry      Entry
			sampling   string
			outcome    string
			names      string
			recordedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.Signature.ContentHash, &entry.Signature.DurationMillis, &sampling,
			&entry.SourcePath, &outcome, &entry.Reason, &names, &recordedAt, &entry.RunID); err != nil {
			stats.Corrupt++
			continue
		}
		entry.Signature.Sampling = signature.Sampling(sampling)
		entry.Outcome = Outcome(outcome)
		if err := json.Unmarshal([]byte(names), &entry.ProducedNames); err != nil {
			stats.Corrupt++
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			stats.Corrupt++
			continue
		}
		entry.Timestamp = ts
		if entry.validate() != nil {
			stats.Corrupt++
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("read manifest: %w", err)
	}
	stats.Entries = len(entries)
	return entries, stats, nil
}

// Compact implements Store by rewriting the table in one transaction and
// reclaiming space afterwards.
func (s *SQLiteStore) Compact(ctx context.Context, keep []Entry) error {
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, "DELETE FROM manifest_entries"); err != nil {
			return err
		}
		for _, entry := range keep {
			args, err := entryArgs(entry)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, insertEntrySQL, args...); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("compact manifest: %w", err)
	}
	if err := s.execWithRetry(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum manifest: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
