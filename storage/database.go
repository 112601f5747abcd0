package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDBFileName is the SQLite filename under the app data dir.
	DefaultDBFileName = "peerdrop.db"
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS transfers (
  file_id     TEXT NOT NULL,
  session_id  TEXT NOT NULL,
  direction   TEXT NOT NULL CHECK(direction IN ('send','receive')),
  filename    TEXT NOT NULL,
  size_bytes  INTEGER NOT NULL,
  mime_type   TEXT NOT NULL DEFAULT '',
  stored_path TEXT NOT NULL DEFAULT '',
  status      TEXT NOT NULL CHECK(status IN ('announced','complete','failed','cancelled')) DEFAULT 'announced',
  started_at  INTEGER NOT NULL,
  finished_at INTEGER,
  PRIMARY KEY (file_id, direction)
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_transfers_session_time
ON transfers (session_id, started_at DESC, file_id);
`,
}

// Store is a thin wrapper around a SQLite connection holding transfer
// history.
type Store struct {
	db *sql.DB

	closeOnce sync.Once
}

// Open opens (or creates) the database under the given data directory and
// runs migrations.
func Open(dataDir string) (*Store, string, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create storage directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	store, err := OpenPath(dbPath)
	if err != nil {
		return nil, "", err
	}

	return store, dbPath, nil
}

// OpenPath opens SQLite at an explicit path and runs schema migrations.
func OpenPath(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.enableWALMode(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func (s *Store) enableWALMode() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	return nil
}

func (s *Store) applyMigrations() error {
	for i, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
