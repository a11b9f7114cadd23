package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FranksOps/deepsearch/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	status_code INTEGER NOT NULL,
	content_type TEXT,
	body BYTEA,
	duration_ms BIGINT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pages_url_fetched_at ON pages (url, fetched_at DESC);
`

// New connects to Postgres and ensures the page cache table exists. A shared
// cache lets several deepsearch processes reuse each other's fetches.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, p *storage.Page) error {
	const query = `
	INSERT INTO pages (id, url, status_code, content_type, body, duration_ms, fetched_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
	`

	_, err := b.pool.Exec(ctx, query,
		p.ID,
		p.URL,
		p.StatusCode,
		p.ContentType,
		p.Body,
		p.Duration.Milliseconds(),
		p.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("save page %s: %w", p.URL, err)
	}
	return nil
}

func (b *postgresBackend) Latest(ctx context.Context, url string, maxAge time.Duration) (*storage.Page, error) {
	query := `SELECT id, url, status_code, content_type, body, duration_ms, fetched_at FROM pages WHERE url = $1`
	args := []any{url}
	if maxAge > 0 {
		query += ` AND fetched_at >= $2`
		args = append(args, time.Now().Add(-maxAge))
	}
	query += ` ORDER BY fetched_at DESC LIMIT 1`

	var p storage.Page
	var durationMs int64
	err := b.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.URL, &p.StatusCode, &p.ContentType, &p.Body, &durationMs, &p.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", url, err)
	}

	p.Duration = time.Duration(durationMs) * time.Millisecond
	return &p, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
