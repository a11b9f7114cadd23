package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/deepsearch/internal/agent"
	"github.com/FranksOps/deepsearch/internal/config"
	"github.com/FranksOps/deepsearch/internal/llm"
	"github.com/FranksOps/deepsearch/internal/metrics"
	"github.com/FranksOps/deepsearch/internal/rank"
	"github.com/FranksOps/deepsearch/internal/scraper"
	"github.com/FranksOps/deepsearch/internal/serp"
	"github.com/FranksOps/deepsearch/internal/sources"
	"github.com/FranksOps/deepsearch/internal/storage"
	"github.com/FranksOps/deepsearch/internal/storage/postgres"
	"github.com/FranksOps/deepsearch/internal/storage/sqlite"
	"github.com/FranksOps/deepsearch/pkg/httpclient"
	"github.com/FranksOps/deepsearch/pkg/proxy"
	"github.com/FranksOps/deepsearch/pkg/ratelimit"
	"github.com/FranksOps/deepsearch/pkg/useragent"
)

// app owns every long-lived component built from the configuration.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	agent   *agent.Agent
	cache   storage.Backend
	metrics *metrics.Server
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close(ctx)
		}
	}()

	if cfg.Metrics.Port > 0 {
		a.metrics = metrics.Start(cfg.Metrics.Port, logger)
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	}

	if a.cache, err = openCache(ctx, cfg.Storage); err != nil {
		return nil, err
	}

	provider, err := newProvider(cfg.Search)
	if err != nil {
		return nil, err
	}

	scr, err := newScraper(cfg, a.cache, logger)
	if err != nil {
		return nil, err
	}

	reranker, err := newReranker(cfg.Reranker)
	if err != nil {
		return nil, err
	}

	processor, err := sources.New(sources.Config{
		Scraper:        scr,
		Reranker:       reranker,
		Chunker:        rank.NewChunker(rank.WithChunkSize(cfg.Processor.ChunkSize), rank.WithOverlap(cfg.Processor.ChunkOverlap)),
		Strategy:       scr.Primary(),
		TopResults:     cfg.Processor.TopResults,
		TrustedDomains: cfg.Processor.TrustedDomains,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	completer := llm.NewBreaker(llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Logger:  logger,
	}), llm.BreakerConfig{
		Failures: cfg.LLM.BreakerFailures,
		Timeout:  cfg.LLM.BreakerTimeout,
		Logger:   logger,
	})

	a.agent, err = agent.New(agent.Config{
		Search:          provider,
		Processor:       processor,
		Completer:       completer,
		SystemPrompt:    cfg.Agent.SystemPrompt,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		TopP:            cfg.LLM.TopP,
		MaxContextChars: cfg.Agent.MaxContextChars,
		Timeout:         cfg.Agent.Timeout,
		Defaults:        agent.Options{MaxSources: cfg.Agent.MaxSources, ProMode: cfg.Agent.ProMode},
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the cache and stops the metrics server.
func (a *app) Close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing page cache", "err", err)
		}
	}
	if err := a.metrics.Stop(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("stopping metrics server", "err", err)
	}
}

func openCache(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, nil
	}
}

func newProvider(cfg config.SearchConfig) (serp.Provider, error) {
	switch cfg.Provider {
	case "serper":
		return serp.NewSerper(cfg.SerperAPIKey, cfg.SerperURL)
	case "searxng":
		return serp.NewSearXNG(cfg.SearXNGURL, cfg.SearXNGAPIKey)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

func newScraper(cfg config.Config, cache storage.Backend, logger *slog.Logger) (*scraper.Scraper, error) {
	profile, err := httpclient.ParseProfile(cfg.Scraper.Fingerprint)
	if err != nil {
		return nil, err
	}

	strategies := make([]scraper.Strategy, 0, len(cfg.Processor.Strategies))
	for _, s := range cfg.Processor.Strategies {
		st, err := scraper.ParseStrategy(s)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, st)
	}

	var proxies *proxy.Pool
	if len(cfg.Scraper.Proxies) > 0 || cfg.Scraper.ProxyFile != "" {
		proxies = proxy.NewPool(proxy.Config{})
		if err := proxies.Add(cfg.Scraper.Proxies...); err != nil {
			return nil, fmt.Errorf("scraper.proxies: %w", err)
		}
		if cfg.Scraper.ProxyFile != "" {
			if err := proxies.LoadFile(cfg.Scraper.ProxyFile); err != nil {
				return nil, fmt.Errorf("scraper.proxy_file: %w", err)
			}
		}
		logger.Info("proxy rotation enabled", "proxies", proxies.Len())
	}

	uas := useragent.NewPool(cfg.Scraper.UserAgents, useragent.Random)
	logger.Debug("user agent rotation", "agents", uas.Len())

	return scraper.New(scraper.Config{
		Fetch: scraper.FetchConfig{
			Timeout:      cfg.Scraper.Timeout,
			UseCookieJar: true,
			MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
			ProxyPool:    proxies,
			UAPool:       uas,
			Profile:      profile,
			Limiter:      ratelimit.NewLimiter(cfg.Scraper.RequestsPerSecond, cfg.Scraper.Jitter),
			Logger:       logger,
		},
		Extractor:     scraper.Extractor{Strategies: strategies, FilterContent: cfg.Processor.FilterContent},
		Concurrency:   cfg.Scraper.Concurrency,
		BatchTimeout:  cfg.Scraper.BatchTimeout,
		RespectRobots: cfg.Scraper.RespectRobots,
		Cache:         cache,
		CacheTTL:      cfg.Storage.CacheTTL,
		Logger:        logger,
	})
}

func newReranker(cfg config.RerankerConfig) (rank.Reranker, error) {
	backend, err := rank.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	var r rank.Reranker
	switch backend {
	case rank.BackendLexical:
		r = rank.NewLexical()
	case rank.BackendCrossEncoder:
		model := cfg.Model
		if model == "" {
			model = "jina-reranker-v2-base-multilingual"
		}
		ce, err := rank.NewCrossEncoder(rank.CrossEncoderConfig{Endpoint: cfg.BaseURL, APIKey: cfg.APIKey, Model: model})
		if err != nil {
			return nil, err
		}
		r = ce
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:7997"
		}
		model := cfg.Model
		if model == "" {
			model = "BAAI/bge-small-en-v1.5"
		}
		r = rank.NewEmbeddingReranker(rank.NewOpenAIEmbedder(rank.OpenAIEmbedderConfig{
			APIKey:  cfg.APIKey,
			BaseURL: baseURL,
			Model:   model,
		}))
	}
	return rank.Instrument(r, backend), nil
}
