package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/deepsearch/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	content_type TEXT,
	body BLOB,
	duration_ms INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL -- unix nanoseconds
);
CREATE INDEX IF NOT EXISTS pages_url_fetched_at ON pages (url, fetched_at DESC);
`

// New opens (creating if needed) an SQLite page cache at dsn.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, p *storage.Page) error {
	const query = `
	INSERT INTO pages (id, url, status_code, content_type, body, duration_ms, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		p.ID,
		p.URL,
		p.StatusCode,
		p.ContentType,
		p.Body,
		p.Duration.Milliseconds(),
		p.FetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save page %s: %w", p.URL, err)
	}
	return nil
}

func (b *sqliteBackend) Latest(ctx context.Context, url string, maxAge time.Duration) (*storage.Page, error) {
	query := `SELECT id, url, status_code, content_type, body, duration_ms, fetched_at FROM pages WHERE url = ?`
	args := []any{url}
	if maxAge > 0 {
		query += ` AND fetched_at >= ?`
		args = append(args, time.Now().Add(-maxAge).UnixNano())
	}
	query += ` ORDER BY fetched_at DESC LIMIT 1`

	var p storage.Page
	var durationMs, fetchedAt int64
	err := b.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.URL, &p.StatusCode, &p.ContentType, &p.Body, &durationMs, &fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", url, err)
	}

	p.Duration = time.Duration(durationMs) * time.Millisecond
	p.FetchedAt = time.Unix(0, fetchedAt).UTC()
	return &p, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
