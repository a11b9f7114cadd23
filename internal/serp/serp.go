// Package serp models web search results and the providers that produce them.
package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/deepsearch/internal/metrics"
)

// ErrSearchUnavailable marks a search that failed or returned no data.
var ErrSearchUnavailable = errors.New("search unavailable")

// Record is one organic search hit. Content is empty until the source
// processor attaches ranked page text to it.
type Record struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
	Date    string `json:"date,omitempty"`
	Content string `json:"content,omitempty"`
}

// SourceSet is an ordered list of search hits.
type SourceSet struct {
	Organic []Record `json:"organic"`
}

// Clone returns a deep copy whose records can be mutated freely.
func (s SourceSet) Clone() SourceSet {
	if s.Organic == nil {
		return SourceSet{Organic: []Record{}}
	}
	return SourceSet{Organic: append([]Record(nil), s.Organic...)}
}

// Sources is anything that can be normalised into a SourceSet: a provider
// Outcome, an already unwrapped SourceSet, or a bare slice of Records.
type Sources interface {
	Resolve() (SourceSet, error)
}

// Resolve implements Sources.
func (s SourceSet) Resolve() (SourceSet, error) { return s, nil }

// Records is a bare result list.
type Records []Record

// Resolve implements Sources.
func (r Records) Resolve() (SourceSet, error) { return SourceSet{Organic: r}, nil }

// Outcome is the result of one search call: either data or the reason there is none.
type Outcome struct {
	Data *SourceSet
	Err  error
}

// Success wraps a result set.
func Success(set SourceSet) Outcome { return Outcome{Data: &set} }

// Failure records why a search produced nothing.
func Failure(err error) Outcome {
	if err == nil {
		err = ErrSearchUnavailable
	}
	return Outcome{Err: err}
}

// OK reports whether the outcome carries data.
func (o Outcome) OK() bool { return o.Err == nil && o.Data != nil }

// Resolve implements Sources. A failed or empty outcome yields an error
// wrapping ErrSearchUnavailable.
func (o Outcome) Resolve() (SourceSet, error) {
	if o.Err != nil {
		if errors.Is(o.Err, ErrSearchUnavailable) {
			return SourceSet{}, o.Err
		}
		return SourceSet{}, fmt.Errorf("%w: %w", ErrSearchUnavailable, o.Err)
	}
	if o.Data == nil {
		return SourceSet{}, fmt.Errorf("%w: no data returned", ErrSearchUnavailable)
	}
	return *o.Data, nil
}

// Provider is a web search backend. limit caps the number of organic results.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) (SourceSet, error)
}

// Lookup runs one search and folds any error into the returned Outcome.
func Lookup(ctx context.Context, p Provider, query string, limit int, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = slog.Default()
	}

	set, err := p.Search(ctx, query, limit)
	metrics.SearchRequestsTotal.WithLabelValues(p.Name(), metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warn("search failed", "provider", p.Name(), "query", query, "err", err)
		return Failure(err)
	}

	logger.Debug("search completed", "provider", p.Name(), "query", query, "results", len(set.Organic))
	return Success(set)
}
