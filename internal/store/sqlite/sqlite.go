// Package sqlite is the local-build store driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/sqlstore"
)

// Dialect is the sqlstore dialect for modernc.org/sqlite.
var Dialect = sqlstore.Dialect{Name: "sqlite", IsConflict: isConflict}

// Open opens (or creates) a SQLite database at path with WAL journaling and
// foreign keys enabled. ":memory:" yields a single-connection in-memory database.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(ON)"
	} else {
		// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the sidebar tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS folders (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            color TEXT NOT NULL,
            user_id TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id, name, id);`,
		`CREATE TABLE IF NOT EXISTS tags (
            id TEXT PRIMARY KEY,
            label TEXT NOT NULL,
            color TEXT NOT NULL,
            user_id TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tags_user ON tags(user_id, label, id);`,
		`CREATE TABLE IF NOT EXISTS threads (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            visibility TEXT NOT NULL CHECK (visibility IN ('public','private')),
            user_id TEXT NOT NULL,
            folder_id TEXT,
            updated_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_threads_user_order ON threads(user_id, created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_threads_folder_order ON threads(user_id, folder_id, created_at DESC, id DESC);`,
		`CREATE TABLE IF NOT EXISTS thread_tags (
            thread_id TEXT NOT NULL,
            tag_id TEXT NOT NULL,
            PRIMARY KEY(thread_id, tag_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_thread_tags_tag ON thread_tags(tag_id);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// New returns a store over db.
func New(db *sql.DB) *sqlstore.Store { return sqlstore.New(db, Dialect) }

// OpenStore opens path, ensures the schema and returns the store.
func OpenStore(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

func isConflict(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
