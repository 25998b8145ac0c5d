package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements storage using SQLite (the default local backend)
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite storage. ":memory:" is accepted for tests.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting into one database per pooled connection.
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{sqlStore: &sqlStore{db: db, logger: logger}}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		repo_url TEXT NOT NULL,
		data TEXT NOT NULL,
		narrative TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		repo_id TEXT NOT NULL,
		path TEXT NOT NULL,
		content TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL,
		fetched_at DATETIME NOT NULL,
		PRIMARY KEY (repo_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_files_repo ON files(repo_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
