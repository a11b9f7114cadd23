package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/deepsearch/pkg/httpclient"
)

// DefaultSearXNGURL is where a locally run SearXNG instance listens.
const DefaultSearXNGURL = "http://localhost:8080"

// searxngResponse models the relevant portion of the SearXNG JSON response.
type searxngResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		Content       string `json:"content"`
		PublishedDate string `json:"publishedDate"`
		Engine        string `json:"engine"`
	} `json:"results"`
}

// SearXNG searches the web via a SearXNG instance's JSON API.
type SearXNG struct {
	client      *httpclient.Client
	instanceURL string
	apiKey      string
}

// NewSearXNG creates a provider for the instance at instanceURL. apiKey is
// optional and sent as X-API-Key for instances behind an auth proxy.
func NewSearXNG(instanceURL, apiKey string) (*SearXNG, error) {
	if instanceURL == "" {
		instanceURL = DefaultSearXNGURL
	}
	client, err := httpclient.New(httpclient.Config{
		Timeout:      15 * time.Second,
		MaxBodyBytes: 512 << 10,
	})
	if err != nil {
		return nil, err
	}
	return &SearXNG{
		client:      client,
		instanceURL: strings.TrimRight(instanceURL, "/"),
		apiKey:      apiKey,
	}, nil
}

func (s *SearXNG) Name() string { return "searxng" }

func (s *SearXNG) Search(ctx context.Context, query string, limit int) (SourceSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.instanceURL+"/search", nil)
	if err != nil {
		return SourceSet{}, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("pageno", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return SourceSet{}, fmt.Errorf("search request: %w", err)
	}
	body, err := s.client.ReadBody(resp)
	if err != nil {
		return SourceSet{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return SourceSet{}, fmt.Errorf("searxng search failed (HTTP %d): %s", resp.StatusCode, truncate(body, 256))
	}

	var parsed searxngResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SourceSet{}, fmt.Errorf("parse response: %w", err)
	}

	set := SourceSet{Organic: make([]Record, 0, len(parsed.Results))}
	for _, r := range parsed.Results {
		if limit > 0 && len(set.Organic) >= limit {
			break
		}
		set.Organic = append(set.Organic, Record{
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Content,
			Date:    r.PublishedDate,
		})
	}
	return set, nil
}
