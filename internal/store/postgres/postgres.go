package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store/sqlstore"
)

// Dialect is the sqlstore dialect for the pgx stdlib driver.
var Dialect = sqlstore.Dialect{Name: "postgres", Numbered: true, IsConflict: isConflict}

// Schema is the DDL applied by EnsureSchema. Text keys use the C collation so
// the database orders ids exactly like the Go comparison does.
const Schema = `
CREATE TABLE IF NOT EXISTS folders (
    id TEXT COLLATE "C" PRIMARY KEY,
    name TEXT COLLATE "C" NOT NULL,
    color TEXT NOT NULL,
    user_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id, name, id);
CREATE TABLE IF NOT EXISTS tags (
    id TEXT COLLATE "C" PRIMARY KEY,
    label TEXT COLLATE "C" NOT NULL,
    color TEXT NOT NULL,
    user_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tags_user ON tags(user_id, label, id);
CREATE TABLE IF NOT EXISTS threads (
    id TEXT COLLATE "C" PRIMARY KEY,
    title TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    visibility TEXT NOT NULL CHECK (visibility IN ('public','private')),
    user_id TEXT NOT NULL,
    folder_id TEXT,
    updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_threads_user_order ON threads(user_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_threads_folder_order ON threads(user_id, folder_id, created_at DESC, id DESC);
CREATE TABLE IF NOT EXISTS thread_tags (
    thread_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    PRIMARY KEY(thread_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_thread_tags_tag ON thread_tags(tag_id);
`

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies Schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) *sqlstore.Store { return sqlstore.New(db, Dialect) }

// OpenStore opens dsn, ensures the schema and returns the store.
func OpenStore(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
