package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/deepsearch/internal/storage"
)

func TestSQLiteBackend(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "pages.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	old := &storage.Page{
		ID:          "old",
		URL:         "https://en.wikipedia.org/wiki/Paris",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("<p>old</p>"),
		Duration:    40 * time.Millisecond,
		FetchedAt:   now.Add(-3 * time.Hour),
	}
	fresh := &storage.Page{
		ID:          "fresh",
		URL:         old.URL,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte("<p>fresh</p>"),
		Duration:    50 * time.Millisecond,
		FetchedAt:   now,
	}
	for _, p := range []*storage.Page{old, fresh} {
		if err := b.Save(ctx, p); err != nil {
			t.Fatalf("Failed to save page: %v", err)
		}
	}

	got, err := b.Latest(ctx, old.URL, time.Hour)
	if err != nil {
		t.Fatalf("Failed to load page: %v", err)
	}
	if got.ID != "fresh" {
		t.Errorf("Expected newest page, got %s", got.ID)
	}
	if string(got.Body) != "<p>fresh</p>" {
		t.Errorf("Expected body to round trip, got %s", got.Body)
	}
	if got.Duration.Milliseconds() != 50 {
		t.Errorf("Expected duration 50ms, got %v", got.Duration)
	}
	if got.ContentType != "text/html" {
		t.Errorf("Expected content type text/html, got %s", got.ContentType)
	}

	if _, err := b.Latest(ctx, "https://missing.example", 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown url, got %v", err)
	}
}

func TestSQLiteBackend_StaleIsMiss(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "pages.db"))
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	page := &storage.Page{
		ID:         "stale",
		URL:        "https://example.org",
		StatusCode: 200,
		FetchedAt:  time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := b.Save(ctx, page); err != nil {
		t.Fatalf("Failed to save page: %v", err)
	}

	if _, err := b.Latest(ctx, page.URL, time.Hour); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected stale page to miss, got %v", err)
	}
	if _, err := b.Latest(ctx, page.URL, 0); err != nil {
		t.Errorf("Expected unbounded lookup to hit, got %v", err)
	}
}
