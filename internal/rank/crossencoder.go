package rank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/FranksOps/deepsearch/pkg/httpclient"
)

// DefaultCrossEncoderURL is Jina's hosted rerank endpoint.
const DefaultCrossEncoderURL = "https://api.jina.ai/v1/rerank"

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// CrossEncoder scores fragments with a hosted cross-encoder through the
// Jina/Cohere style /rerank API (also served by Infinity).
type CrossEncoder struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	model    string
}

// CrossEncoderConfig holds the rerank endpoint settings.
type CrossEncoderConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewCrossEncoder creates a CrossEncoder reranker.
func NewCrossEncoder(cfg CrossEncoderConfig) (*CrossEncoder, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultCrossEncoderURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &CrossEncoder{client: client, endpoint: cfg.Endpoint, apiKey: cfg.APIKey, model: cfg.Model}, nil
}

func (c *CrossEncoder) Rerank(ctx context.Context, query string, fragments []string, k int) ([]string, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	// Ask for every score and select locally so tie-breaking stays ours.
	payload, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: fragments})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	body, err := c.client.ReadBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank failed (HTTP %d): %s", resp.StatusCode, body)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}

	scores := make([]float64, len(fragments))
	for i := range scores {
		scores[i] = -1
	}
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(fragments) {
			return nil, fmt.Errorf("rerank response index %d out of range", r.Index)
		}
		scores[r.Index] = r.RelevanceScore
	}
	return topK(fragments, scores, k), nil
}
