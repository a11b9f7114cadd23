package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/deepsearch/internal/bypass"
	"github.com/FranksOps/deepsearch/internal/metrics"
	"github.com/FranksOps/deepsearch/pkg/httpclient"
	"github.com/FranksOps/deepsearch/pkg/proxy"
	"github.com/FranksOps/deepsearch/pkg/ratelimit"
	"github.com/FranksOps/deepsearch/pkg/useragent"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures how individual pages are requested.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Profile      httpclient.Profile
	Limiter      *ratelimit.Limiter
	Logger       *slog.Logger
}

// Response is a fetched page before content extraction.
type Response struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectionSrc string // bot manager that challenged the request, if any
	FetchedAt    time.Time
}

// Fetcher performs single URL fetches through a fingerprinted client.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a Fetcher. A single client is held across requests
// so connections and cookies are reused.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil, useragent.Sequential)
	}
	if cfg.Profile == "" {
		cfg.Profile = httpclient.ProfileChrome
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy is chosen per request and carried on the request context so
	// one transport can serve the whole rotation.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Profile:      cfg.Profile,
		Proxy:        proxyFunc,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: cfg.Logger}, nil
}

// Fetch issues a GET for targetURL. Any HTTP response, including error
// statuses and bot challenges, is returned with a nil error; err is set only
// when no response was obtained.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	domain := hostOf(targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		metrics.RecordFetch(domain, 0, "", 0, time.Since(start))
		return nil, err
	}
	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, readErr := f.client.ReadBody(resp)
	out := &Response{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
		FetchedAt:  start.UTC(),
	}
	out.DetectionSrc = bypass.Detect(bypass.Response{
		StatusCode: out.StatusCode,
		Header:     out.Header,
		Body:       out.Body,
	}, bypass.DefaultSignatures())

	metrics.RecordFetch(domain, out.StatusCode, out.DetectionSrc, len(out.Body), out.Duration)
	f.logger.Debug("fetched", "url", targetURL, "status", out.StatusCode, "bytes", len(out.Body), "duration", out.Duration)

	if readErr != nil {
		return nil, readErr
	}
	return out, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
