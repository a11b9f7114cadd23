package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when reporting on a proxy the pool never issued.
var ErrUnknownProxy = errors.New("proxy not in pool")

// endpoint tracks the health of one upstream proxy.
type endpoint struct {
	url           *url.URL
	failures      int
	successes     int
	disabledUntil time.Time
}

func (e *endpoint) available(now time.Time) bool {
	if e.disabledUntil.IsZero() {
		return true
	}
	if now.After(e.disabledUntil) {
		e.disabledUntil = time.Time{}
		e.failures = 0
		return true
	}
	return false
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before a proxy is benched. Defaults to 3.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out. Defaults to 5 minutes.
	Cooldown time.Duration
}

// Pool rotates page fetches across a set of upstream proxies, benching the
// ones that keep failing.
type Pool struct {
	mu          sync.Mutex
	endpoints   []*endpoint
	byURL       map[string]*endpoint
	next        int
	maxFailures int
	cooldown    time.Duration
}

// NewPool creates an empty pool.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Pool{
		byURL:       make(map[string]*endpoint),
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// LoadFile adds one proxy per line from path, skipping blanks and '#' comments.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open proxy list: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read proxy list: %w", err)
	}

	return p.Add(urls...)
}

// Add registers proxies. Entries without a scheme are treated as http.
// Duplicates are ignored.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		key := u.String()
		if _, dup := p.byURL[key]; dup {
			continue
		}
		e := &endpoint{url: u}
		p.endpoints = append(p.endpoints, e)
		p.byURL[key] = e
	}
	return nil
}

// Len reports how many proxies are registered.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next available proxy in rotation, or nil when the pool is
// empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for range p.endpoints {
		e := p.endpoints[p.next]
		p.next = (p.next + 1) % len(p.endpoints)
		if e.available(now) {
			return e.url
		}
	}
	return nil
}

// MarkSuccess credits a proxy and forgives one prior failure.
func (p *Pool) MarkSuccess(u *url.URL) error {
	return p.update(u, func(e *endpoint) {
		e.successes++
		if e.failures > 0 {
			e.failures--
		}
	})
}

// MarkFailure records a failure, benching the proxy for the cooldown once it
// reaches MaxFailures.
func (p *Pool) MarkFailure(u *url.URL) error {
	return p.update(u, func(e *endpoint) {
		e.failures++
		if e.failures >= p.maxFailures {
			e.disabledUntil = time.Now().Add(p.cooldown)
		}
	})
}

func (p *Pool) update(u *url.URL, fn func(*endpoint)) error {
	if u == nil {
		return errors.New("nil proxy url")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byURL[u.String()]
	if !ok {
		return fmt.Errorf("%s: %w", u.Redacted(), ErrUnknownProxy)
	}
	fn(e)
	return nil
}
