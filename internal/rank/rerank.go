package rank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/FranksOps/deepsearch/internal/metrics"
)

// ErrUnknownBackend is returned by ParseBackend for unrecognised names.
var ErrUnknownBackend = errors.New("unknown reranker backend")

// Backend selects a Reranker implementation.
type Backend string

const (
	// BackendEmbedding ranks by cosine similarity of embeddings.
	BackendEmbedding Backend = "embedding"
	// BackendCrossEncoder delegates scoring to a rerank endpoint.
	BackendCrossEncoder Backend = "cross-encoder"
	// BackendLexical ranks by query-term overlap, locally.
	BackendLexical Backend = "lexical"
)

// ParseBackend maps a configured name onto a Backend. "infinity" and "jina"
// are accepted as the names of the services usually behind each backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", string(BackendEmbedding), "infinity":
		return BackendEmbedding, nil
	case string(BackendCrossEncoder), "jina":
		return BackendCrossEncoder, nil
	case string(BackendLexical):
		return BackendLexical, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Reranker orders fragments by relevance to query and keeps the best k.
// Implementations must be deterministic for identical input, break ties by
// original position, and return every fragment when there are fewer than k.
type Reranker interface {
	Rerank(ctx context.Context, query string, fragments []string, k int) ([]string, error)
}

// topK returns the k highest scoring fragments, ties broken by position.
func topK(fragments []string, scores []float64, k int) []string {
	idx := make([]int, len(fragments))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	if k <= 0 || k > len(idx) {
		k = len(idx)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = fragments[idx[i]]
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// instrumented records rerank latency per backend.
type instrumented struct {
	inner   Reranker
	backend Backend
}

// Instrument wraps r so each call is observed in the rerank duration histogram.
func Instrument(r Reranker, backend Backend) Reranker {
	return &instrumented{inner: r, backend: backend}
}

func (i *instrumented) Rerank(ctx context.Context, query string, fragments []string, k int) ([]string, error) {
	start := time.Now()
	out, err := i.inner.Rerank(ctx, query, fragments, k)
	metrics.RerankDuration.WithLabelValues(string(i.backend), metrics.Outcome(err)).Observe(time.Since(start).Seconds())
	return out, err
}
