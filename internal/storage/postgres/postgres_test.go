package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/deepsearch/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if DEEPSEARCH_TEST_PG_DSN is set
	dsn := os.Getenv("DEEPSEARCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: DEEPSEARCH_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	url := "https://example-pg.test/" + uuid.NewString()
	page := &storage.Page{
		ID:          uuid.NewString(),
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("<p>pg</p>"),
		Duration:    50 * time.Millisecond,
		FetchedAt:   time.Now().UTC(),
	}
	if err := b.Save(ctx, page); err != nil {
		t.Fatalf("Failed to save page: %v", err)
	}

	got, err := b.Latest(ctx, url, time.Hour)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	if got.ID != page.ID || string(got.Body) != string(page.Body) {
		t.Errorf("Expected %+v, got %+v", page, got)
	}
	if got.FetchedAt.Unix() != page.FetchedAt.Unix() {
		t.Errorf("Expected FetchedAt %v, got %v", page.FetchedAt, got.FetchedAt)
	}

	if _, err := b.Latest(ctx, url+"/missing", 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
