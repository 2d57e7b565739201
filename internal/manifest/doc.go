// Package manifest records which file contents have been processed and with
// what outcome, so repeated runs over a growing folder skip unchanged files.
//
// The durable log is append-only. Every Record call is persisted before the
// in-memory index changes (fsync for the JSONL backend, a synchronous commit
// for SQLite), so a crash loses at most the in-flight file. At most one
// success entry may exist per content signature.
//
// Two backends implement Store: JSONLStore (default, one JSON object per line
// guarded by a lock file) and SQLiteStore (WAL mode, busy retry). Compact and
// Merge rewrite logs through a temp file and rename.
package manifest
