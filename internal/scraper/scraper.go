package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/deepsearch/internal/metrics"
	"github.com/FranksOps/deepsearch/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBotChallenge is returned for pages served by a bot manager's interstitial.
	ErrBotChallenge = errors.New("bot challenge")
	// ErrDisallowed is returned when robots.txt forbids the fetch.
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrHTTPStatus is returned for responses with status >= 400.
	ErrHTTPStatus = errors.New("unexpected http status")
)

const (
	DefaultConcurrency  = 8
	DefaultBatchTimeout = 30 * time.Second
	DefaultRobotsAgent  = "deepsearch"
)

// Config configures a Scraper.
type Config struct {
	Fetch     FetchConfig
	Extractor Extractor
	// Concurrency bounds parallel fetches within one batch.
	Concurrency int
	// BatchTimeout bounds one ScrapeMany call.
	BatchTimeout  time.Duration
	RespectRobots bool
	RobotsAgent   string
	// Cache, when set, is consulted before the network and filled after.
	Cache    storage.Backend
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Result is the outcome of scraping one URL.
type Result struct {
	URL         string
	Extractions map[Strategy]string
	FromCache   bool
	Err         error
}

// Text returns the extraction for s, or "" if the scrape failed.
func (r Result) Text(s Strategy) string {
	if r.Err != nil {
		return ""
	}
	return r.Extractions[s]
}

// Scraper fetches batches of pages and extracts their text.
type Scraper struct {
	fetcher *Fetcher
	robots  *RobotsAuditor
	cfg     Config
	logger  *slog.Logger
}

// New builds a Scraper and its underlying Fetcher.
func New(cfg Config) (*Scraper, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = DefaultRobotsAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Fetch.Logger == nil {
		cfg.Fetch.Logger = cfg.Logger
	}

	fetcher, err := NewFetcher(cfg.Fetch)
	if err != nil {
		return nil, err
	}

	s := &Scraper{fetcher: fetcher, cfg: cfg, logger: cfg.Logger}
	if cfg.RespectRobots {
		s.robots = NewRobotsAuditor(fetcher, cfg.Logger)
	}
	return s, nil
}

// Primary is the strategy whose output feeds ranking.
func (s *Scraper) Primary() Strategy {
	if len(s.cfg.Extractor.Strategies) == 0 {
		return NoExtraction
	}
	return s.cfg.Extractor.Strategies[0]
}

// ScrapeMany fetches every URL concurrently and returns one Result per input,
// in input order. Individual failures are reported in Result.Err; the batch
// as a whole never fails.
func (s *Scraper) ScrapeMany(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = s.scrape(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			metrics.DegradationsTotal.WithLabelValues(metrics.DegradeFetch).Inc()
			s.logger.Warn("source fetch failed", "url", r.URL, "err", r.Err)
		}
	}
	return results
}

func (s *Scraper) scrape(ctx context.Context, raw string) Result {
	target, err := normalizeURL(raw)
	if err != nil {
		return Result{URL: raw, Err: err}
	}
	res := Result{URL: target}

	body, contentType, cached, err := s.load(ctx, target)
	if err != nil {
		res.Err = err
		return res
	}
	res.FromCache = cached

	res.Extractions, err = s.cfg.Extractor.Extract(body, contentType)
	if err != nil {
		res.Err = fmt.Errorf("extract %s: %w", target, err)
	}
	return res
}

func (s *Scraper) load(ctx context.Context, target string) (body []byte, contentType string, cached bool, err error) {
	if s.cfg.Cache != nil {
		page, err := s.cfg.Cache.Latest(ctx, target, s.cfg.CacheTTL)
		switch {
		case err == nil:
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return page.Body, page.ContentType, true, nil
		case errors.Is(err, storage.ErrNotFound):
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		default:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("page cache lookup failed", "url", target, "err", err)
		}
	}

	if s.robots != nil {
		ok, err := s.robots.Allowed(ctx, target, s.cfg.RobotsAgent)
		if err != nil {
			return nil, "", false, err
		}
		if !ok {
			return nil, "", false, fmt.Errorf("%s: %w", target, ErrDisallowed)
		}
	}

	resp, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, "", false, err
	}
	if resp.DetectionSrc != "" {
		return nil, "", false, fmt.Errorf("%s: %w (%s)", target, ErrBotChallenge, resp.DetectionSrc)
	}
	if resp.StatusCode >= 400 {
		return nil, "", false, fmt.Errorf("%s: %w %d", target, ErrHTTPStatus, resp.StatusCode)
	}

	contentType = resp.Header.Get("Content-Type")
	if s.cfg.Cache != nil {
		page := &storage.Page{
			ID:          uuid.NewString(),
			URL:         target,
			StatusCode:  resp.StatusCode,
			ContentType: contentType,
			Body:        resp.Body,
			Duration:    resp.Duration,
			FetchedAt:   resp.FetchedAt,
		}
		if err := s.cfg.Cache.Save(ctx, page); err != nil {
			s.logger.Warn("page cache save failed", "url", target, "err", err)
		}
	}
	return resp.Body, contentType, false, nil
}

// normalizeURL accepts scheme-less links such as "en.wikipedia.org/wiki/X".
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u.String(), nil
}
