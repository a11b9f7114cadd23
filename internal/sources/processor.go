// Package sources decides which search hits are worth fetching and enriches
// them with the page fragments most relevant to the query.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/deepsearch/internal/metrics"
	"github.com/FranksOps/deepsearch/internal/rank"
	"github.com/FranksOps/deepsearch/internal/scraper"
	"github.com/FranksOps/deepsearch/internal/serp"
)

const DefaultTopResults = 5

// DefaultTrustedDomains is the fast-mode allowlist.
var DefaultTrustedDomains = []string{"wikipedia.org"}

// Scraper fetches a batch of URLs. Results align with the input order.
type Scraper interface {
	ScrapeMany(ctx context.Context, urls []string) []scraper.Result
}

// Config configures a Processor.
type Config struct {
	Scraper  Scraper
	Reranker rank.Reranker
	// Chunker defaults to rank.NewChunker().
	Chunker *rank.Chunker
	// Strategy selects which extraction feeds the chunker.
	Strategy       scraper.Strategy
	TopResults     int
	TrustedDomains []string
	// Concurrency bounds parallel reranking within one call. Defaults to 4.
	Concurrency int
	Logger      *slog.Logger
}

// Processor turns raw search hits into enriched ones. It keeps no per-call
// state and is safe for concurrent use.
type Processor struct {
	scraper     Scraper
	reranker    rank.Reranker
	chunker     *rank.Chunker
	strategy    scraper.Strategy
	topResults  int
	trusted     []string
	concurrency int
	logger      *slog.Logger
}

// New creates a Processor. Scraper and Reranker are required.
func New(cfg Config) (*Processor, error) {
	if cfg.Scraper == nil {
		return nil, fmt.Errorf("sources: scraper is required")
	}
	if cfg.Reranker == nil {
		return nil, fmt.Errorf("sources: reranker is required")
	}
	if cfg.Chunker == nil {
		cfg.Chunker = rank.NewChunker()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = scraper.NoExtraction
	}
	if cfg.TopResults <= 0 {
		cfg.TopResults = DefaultTopResults
	}
	if cfg.TrustedDomains == nil {
		cfg.TrustedDomains = DefaultTrustedDomains
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	trusted := make([]string, 0, len(cfg.TrustedDomains))
	for _, d := range cfg.TrustedDomains {
		if d = strings.ToLower(strings.Trim(strings.TrimSpace(d), ".")); d != "" {
			trusted = append(trusted, d)
		}
	}

	return &Processor{
		scraper:     cfg.Scraper,
		reranker:    cfg.Reranker,
		chunker:     cfg.Chunker,
		strategy:    cfg.Strategy,
		topResults:  cfg.TopResults,
		trusted:     trusted,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}, nil
}

// Process selects, fetches and ranks up to n sources for query. The result
// never has more than n records and keeps the input order. Failures degrade
// to less content, never to an error: a failed search yields an empty set.
func (p *Processor) Process(ctx context.Context, src serp.Sources, n int, query string, pro bool) (out serp.SourceSet) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DegradationsTotal.WithLabelValues(metrics.DegradeProcess).Inc()
			p.logger.Error("source processing aborted", "query", query, "panic", r)
			out = serp.SourceSet{Organic: []serp.Record{}}
		}
	}()

	if src == nil {
		return serp.SourceSet{Organic: []serp.Record{}}
	}
	set, err := src.Resolve()
	if err != nil {
		metrics.DegradationsTotal.WithLabelValues(metrics.DegradeSearch).Inc()
		p.logger.Warn("no usable search results", "query", query, "err", err)
		return serp.SourceSet{Organic: []serp.Record{}}
	}

	records := set.Clone().Organic
	if n < 0 {
		n = 0
	}
	if len(records) > n {
		records = records[:n]
	}

	candidates := p.candidates(records, pro)
	p.logger.Debug("source candidates", "query", query, "pro", pro, "records", len(records), "candidates", candidateLinks(records, candidates))
	if len(candidates) == 0 {
		return serp.SourceSet{Organic: records}
	}

	urls := make([]string, len(candidates))
	for i, idx := range candidates {
		urls[i] = records[idx].Link
	}
	pages := p.scraper.ScrapeMany(ctx, urls)

	contents := p.reduce(ctx, query, pages)
	for i, idx := range candidates {
		if i < len(contents) {
			records[idx].Content = contents[i]
		}
	}
	return serp.SourceSet{Organic: records}
}

// candidates returns the indices of records eligible for fetching.
func (p *Processor) candidates(records []serp.Record, pro bool) []int {
	var idx []int
	for i, r := range records {
		if strings.TrimSpace(r.Link) == "" {
			continue
		}
		if pro {
			idx = append(idx, i)
			continue
		}
		if p.trustedHost(r.Link) {
			return []int{i}
		}
	}
	return idx
}

func (p *Processor) trustedHost(link string) bool {
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range p.trusted {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// reduce ranks each page's fragments concurrently. contents[i] belongs to
// pages[i]; a failed page or ranking leaves its slot empty.
func (p *Processor) reduce(ctx context.Context, query string, pages []scraper.Result) []string {
	contents := make([]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, page := range pages {
		if page.Err != nil {
			continue
		}
		g.Go(func() error {
			contents[i] = p.reducePage(gctx, query, page)
			return nil
		})
	}
	_ = g.Wait()
	return contents
}

func (p *Processor) reducePage(ctx context.Context, query string, page scraper.Result) (content string) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DegradationsTotal.WithLabelValues(metrics.DegradeReduce).Inc()
			p.logger.Warn("content reduction panicked", "url", page.URL, "panic", r)
			content = ""
		}
	}()

	fragments := p.chunker.Split(page.Text(p.strategy))
	if len(fragments) == 0 {
		p.logger.Debug("page has no text", "url", page.URL, "strategy", p.strategy)
		return ""
	}

	ranked, err := p.reranker.Rerank(ctx, query, fragments, p.topResults)
	if err != nil {
		metrics.DegradationsTotal.WithLabelValues(metrics.DegradeReduce).Inc()
		p.logger.Warn("rerank failed", "url", page.URL, "fragments", len(fragments), "err", err)
		return ""
	}
	p.logger.Debug("reranked page", "url", page.URL, "fragments", len(fragments), "kept", len(ranked))
	return strings.Join(ranked, "\n")
}

func candidateLinks(records []serp.Record, idx []int) []string {
	links := make([]string, len(idx))
	for i, j := range idx {
		links[i] = records[j].Link
	}
	return links
}
