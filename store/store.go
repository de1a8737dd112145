// Package store is the durable persistence layer: identity config, known
// peers, group membership, and message history, backed by a single SQLite
// file under the OS-appropriate per-user data directory. Schema bootstrap
// is idempotent and its failure is fatal; every other operation returns
// an error rather than panicking. The package does not log failures
// itself.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS peers (
	peer_id   TEXT PRIMARY KEY,
	username  TEXT NOT NULL,
	last_ip   TEXT,
	last_seen TEXT
);
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	from_id         TEXT NOT NULL,
	from_name       TEXT NOT NULL,
	content         TEXT NOT NULL,
	timestamp       TEXT NOT NULL,
	is_group        INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'sent'
);
CREATE INDEX IF NOT EXISTS idx_messages_conv
	ON messages(conversation_id, timestamp);
CREATE TABLE IF NOT EXISTS groups (
	group_id   TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL,
	peer_id  TEXT NOT NULL,
	PRIMARY KEY (group_id, peer_id)
);
`

// Store is a synchronous, single-writer SQLite-backed persistence layer.
// A mutex serializes access the same way the teacher's connection tables
// are guarded: the shortest possible critical section, never held across
// unrelated I/O.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open bootstraps (creating the parent directory and schema if needed) and
// returns a Store backed by the SQLite file at path. Schema bootstrap
// failure is returned, not panicked; the caller treats it as fatal at
// startup per the spec's error taxonomy.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver tolerates at most one writer well
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the OS-appropriate per-user data directory for appName.
func DataDir(appName string) string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = "."
		}
		return filepath.Join(base, appName)
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			home = "."
		}
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		home := os.Getenv("HOME")
		if home == "" {
			home = "."
		}
		return filepath.Join(home, ".local", "share", appName)
	}
}

// DefaultPath returns the default database file path for appName.
func DefaultPath(appName string) string {
	return filepath.Join(DataDir(appName), appName+".db")
}
