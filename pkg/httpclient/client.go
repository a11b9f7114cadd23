package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// DefaultMaxBodyBytes caps response bodies read through ReadBody.
const DefaultMaxBodyBytes int64 = 5 << 20

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout time.Duration
	// MaxRedirects < 0 disables redirect following entirely.
	MaxRedirects int
	UseCookieJar bool
	// Profile selects a fingerprinted transport when Transport is nil.
	Profile Profile
	// Proxy is installed on the fingerprinted transport. Ignored when
	// Transport is set.
	Proxy func(*http.Request) (*url.URL, error)
	// Transport overrides Profile and Proxy.
	Transport    http.RoundTripper
	MaxBodyBytes int64
}

// Client wraps a standard http.Client with redirect, cookie and body-size
// policies shared by every outbound call in the module.
type Client struct {
	*http.Client
	maxBody int64
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		limit := cfg.MaxRedirects
		if limit == 0 {
			limit = 10
		}
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.Jar = jar
	}

	switch {
	case cfg.Transport != nil:
		c.Transport = cfg.Transport
	case cfg.Profile != "":
		t, err := Transport(cfg.Profile, cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("transport: %w", err)
		}
		c.Transport = t
	}

	return &Client{Client: c, maxBody: cfg.MaxBodyBytes}, nil
}

// Do executes an HTTP request bound to ctx, independent of the context the
// request was built with.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("nil context")
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	return resp, nil
}

// ReadBody drains resp.Body up to the client's size cap and closes it.
func (c *Client) ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return body, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
