package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingReranker scores fragments by cosine similarity between their
// embedding and the query's.
type EmbeddingReranker struct {
	embedder Embedder
}

// NewEmbeddingReranker creates a reranker backed by e.
func NewEmbeddingReranker(e Embedder) *EmbeddingReranker {
	return &EmbeddingReranker{embedder: e}
}

func (r *EmbeddingReranker) Rerank(ctx context.Context, query string, fragments []string, k int) ([]string, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	vecs, err := r.embedder.Embed(ctx, append([]string{query}, fragments...))
	if err != nil {
		return nil, fmt.Errorf("embed fragments: %w", err)
	}
	if len(vecs) != len(fragments)+1 {
		return nil, fmt.Errorf("embed fragments: got %d vectors for %d inputs", len(vecs), len(fragments)+1)
	}

	scores := make([]float64, len(fragments))
	for i := range fragments {
		scores[i] = cosine(vecs[0], vecs[i+1])
	}
	return topK(fragments, scores, k), nil
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint, such as an
// Infinity server or the OpenAI API itself.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	batch  int
}

// OpenAIEmbedderConfig holds the embedding endpoint settings.
type OpenAIEmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// BatchSize caps inputs per request. Defaults to 64.
	BatchSize int
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(cfg.Model),
		batch:  cfg.BatchSize,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batch {
		end := min(start+e.batch, len(texts))
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:          texts[start:end],
			Model:          e.model,
			EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		})
		if err != nil {
			return nil, parseAPIError(err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding response has %d vectors, want %d", len(resp.Data), end-start)
		}

		batch := make([][]float32, end-start)
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
			}
			batch[d.Index] = d.Embedding
		}
		out = append(out, batch...)
	}
	return out, nil
}

// parseAPIError extracts a readable message from an OpenAI-compatible error.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(reqErr.Body, &body) == nil && body.Detail != "" {
			return fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, body.Detail)
		}
		return fmt.Errorf("embedding API error %d: %w", reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("embedding request: %w", err)
}
