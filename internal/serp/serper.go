package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FranksOps/deepsearch/pkg/httpclient"
)

// DefaultSerperURL is the Serper Google search endpoint.
const DefaultSerperURL = "https://google.serper.dev/search"

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// Serper queries Google through the serper.dev API.
type Serper struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
}

// NewSerper creates a Serper provider. An empty endpoint selects DefaultSerperURL.
func NewSerper(apiKey, endpoint string) (*Serper, error) {
	if apiKey == "" {
		return nil, errors.New("serper: api key is required")
	}
	if endpoint == "" {
		endpoint = DefaultSerperURL
	}
	client, err := httpclient.New(httpclient.Config{Timeout: 15 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Serper{client: client, endpoint: endpoint, apiKey: apiKey}, nil
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Search(ctx context.Context, query string, limit int) (SourceSet, error) {
	if limit < 0 {
		return SourceSet{}, fmt.Errorf("limit cannot be negative: %d", limit)
	}

	payload, err := json.Marshal(serperRequest{Q: query, Num: limit})
	if err != nil {
		return SourceSet{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return SourceSet{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return SourceSet{}, fmt.Errorf("search request: %w", err)
	}
	body, err := s.client.ReadBody(resp)
	if err != nil {
		return SourceSet{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return SourceSet{}, fmt.Errorf("serper search failed (HTTP %d): %s", resp.StatusCode, truncate(body, 256))
	}

	var parsed serperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return SourceSet{}, fmt.Errorf("parse response: %w", err)
	}

	set := SourceSet{Organic: make([]Record, 0, len(parsed.Organic))}
	for _, r := range parsed.Organic {
		if limit > 0 && len(set.Organic) >= limit {
			break
		}
		set.Organic = append(set.Organic, Record{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
			Date:    r.Date,
		})
	}
	return set, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
