package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaLockID int64 = 2026101901

// EnsureSchema creates the catalog and review tables. Concurrent callers are
// serialized by an advisory lock held for the transaction.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	external_id TEXT,
	isbn TEXT NOT NULL DEFAULT '',
	cover_url TEXT NOT NULL DEFAULT '',
	genres JSONB NOT NULL DEFAULT '[]'::jsonb,
	publication_year INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	page_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_books_external_id ON books(external_id);
CREATE INDEX IF NOT EXISTS idx_books_created_at ON books(created_at DESC);

CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	chat_id BIGINT NOT NULL DEFAULT 0,
	message_id INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	hint TEXT NOT NULL DEFAULT '',
	book_id TEXT NOT NULL REFERENCES books(id),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_book_id ON reviews(book_id);
CREATE INDEX IF NOT EXISTS idx_reviews_user_id ON reviews(user_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
