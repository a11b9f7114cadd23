package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Latest when no fresh copy of a page exists.
var ErrNotFound = errors.New("page not cached")

// Page is a fetched document kept so repeated queries can skip the network.
type Page struct {
	ID          string
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
	FetchedAt   time.Time
}

// Backend persists fetched pages.
type Backend interface {
	Save(ctx context.Context, page *Page) error
	// Latest returns the newest copy of url fetched within maxAge.
	// maxAge <= 0 accepts any age.
	Latest(ctx context.Context, url string, maxAge time.Duration) (*Page, error)
	Close() error
}
