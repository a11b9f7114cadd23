package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/deepsearch/internal/storage"
	"github.com/FranksOps/deepsearch/pkg/httpclient"
)

type memCache struct {
	mu    sync.Mutex
	pages map[string]*storage.Page
}

func newMemCache() *memCache { return &memCache{pages: map[string]*storage.Page{}} }

func (m *memCache) Save(_ context.Context, p *storage.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[p.URL] = p
	return nil
}

func (m *memCache) Latest(_ context.Context, url string, _ time.Duration) (*storage.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pages[url]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memCache) Close() error { return nil }

func newTestScraper(t *testing.T, cfg Config) *Scraper {
	t.Helper()
	cfg.Fetch.Profile = httpclient.ProfileGo
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 5 * time.Second
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create scraper: %v", err)
	}
	return s
}

func TestScrapeMany_PreservesOrderAndIsolatesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(80 * time.Millisecond)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "slow page")
	})
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "fast page")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	s := newTestScraper(t, Config{})
	urls := []string{ts.URL + "/slow", ts.URL + "/broken", ts.URL + "/fast"}

	start := time.Now()
	results := s.ScrapeMany(context.Background(), urls)
	elapsed := time.Since(start)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Text(NoExtraction) != "slow page" {
		t.Errorf("slot 0: expected slow page, got %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrHTTPStatus) {
		t.Errorf("slot 1: expected ErrHTTPStatus, got %v", results[1].Err)
	}
	if results[1].Text(NoExtraction) != "" {
		t.Error("failed result must not carry text")
	}
	if results[2].Text(NoExtraction) != "fast page" {
		t.Errorf("slot 2: expected fast page, got %+v", results[2])
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("expected concurrent fetches, batch took %v", elapsed)
	}
}

func TestScrapeMany_BatchTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	s := newTestScraper(t, Config{BatchTimeout: 50 * time.Millisecond})

	start := time.Now()
	results := s.ScrapeMany(context.Background(), []string{ts.URL})
	if time.Since(start) > time.Second {
		t.Errorf("batch timeout not enforced, took %v", time.Since(start))
	}
	if results[0].Err == nil {
		t.Error("expected timed out fetch to fail")
	}
}

func TestScrapeMany_BotChallenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	s := newTestScraper(t, Config{})
	res := s.ScrapeMany(context.Background(), []string{ts.URL})[0]
	if !errors.Is(res.Err, ErrBotChallenge) {
		t.Errorf("expected ErrBotChallenge, got %v", res.Err)
	}
}

func TestScrapeMany_RespectsRobots(t *testing.T) {
	var pageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: deepsearch\nDisallow: /private\n")
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		pageHits.Add(1)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	s := newTestScraper(t, Config{RespectRobots: true})
	res := s.ScrapeMany(context.Background(), []string{ts.URL + "/private"})[0]
	if !errors.Is(res.Err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", res.Err)
	}
	if pageHits.Load() != 0 {
		t.Error("disallowed page must not be fetched")
	}
}

func TestScrapeMany_UsesCache(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><p>cached body</p></body></html>")
	}))
	defer ts.Close()

	cache := newMemCache()
	s := newTestScraper(t, Config{Cache: cache, Extractor: Extractor{Strategies: []Strategy{PlainText}}})

	first := s.ScrapeMany(context.Background(), []string{ts.URL})[0]
	second := s.ScrapeMany(context.Background(), []string{ts.URL})[0]

	if first.FromCache || !second.FromCache {
		t.Errorf("expected miss then hit, got %v then %v", first.FromCache, second.FromCache)
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single network fetch, got %d", hits.Load())
	}
	if !strings.Contains(second.Text(PlainText), "cached body") {
		t.Errorf("expected cached text, got %q", second.Text(PlainText))
	}
	if s.Primary() != PlainText {
		t.Errorf("expected first strategy to be primary, got %s", s.Primary())
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"en.wikipedia.org/wiki/Paris": "https://en.wikipedia.org/wiki/Paris",
		"http://example.com/a":        "http://example.com/a",
	}
	for in, want := range cases {
		got, err := normalizeURL(in)
		if err != nil || got != want {
			t.Errorf("normalizeURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "ftp://example.com/file", "https://"} {
		if _, err := normalizeURL(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
