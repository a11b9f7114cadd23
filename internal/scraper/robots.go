package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// RobotsAuditor fetches, caches and enforces robots.txt per origin.
type RobotsAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	cache   map[string]*robotsEntry
}

// robotsEntry lets concurrent lookups for one origin share a single fetch.
type robotsEntry struct {
	ready chan struct{}
	data  *robotstxt.RobotsData
}

// NewRobotsAuditor creates a new instance.
func NewRobotsAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotsEntry),
	}
}

// Allowed reports whether agent may fetch targetURL. A missing or unreadable
// robots.txt allows everything.
func (r *RobotsAuditor) Allowed(ctx context.Context, targetURL, agent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data := r.lookup(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(agent).Test(path), nil
}

func (r *RobotsAuditor) lookup(ctx context.Context, origin string) *robotstxt.RobotsData {
	r.mu.Lock()
	entry, exists := r.cache[origin]
	if !exists {
		entry = &robotsEntry{ready: make(chan struct{})}
		r.cache[origin] = entry
	}
	r.mu.Unlock()

	if exists {
		select {
		case <-entry.ready:
			return entry.data
		case <-ctx.Done():
			return nil
		}
	}

	defer close(entry.ready)
	entry.data = r.fetch(ctx, origin)
	return entry.data
}

func (r *RobotsAuditor) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	resp, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil {
		r.logger.Debug("robots.txt fetch failed, defaulting to allow", "origin", origin, "err", err)
		return nil
	}
	if resp.StatusCode >= 400 {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		r.logger.Debug("robots.txt parse failed, defaulting to allow", "origin", origin, "err", err)
		return nil
	}
	return data
}
