// Package config loads deepsearch settings from an optional YAML file and
// DEEPSEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DEEPSEARCH_LLM_API_KEY.
const EnvPrefix = "DEEPSEARCH"

// Config holds the deepsearch configuration.
type Config struct {
	Search    SearchConfig    `mapstructure:"search"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Reranker  RerankerConfig  `mapstructure:"reranker"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// SearchConfig selects and configures the search provider.
type SearchConfig struct {
	Provider      string `mapstructure:"provider"` // serper, searxng
	SerperAPIKey  string `mapstructure:"serper_api_key"`
	SerperURL     string `mapstructure:"serper_url"`
	SearXNGURL    string `mapstructure:"searxng_url"`
	SearXNGAPIKey string `mapstructure:"searxng_api_key"`
}

// ScraperConfig holds page fetching settings.
type ScraperConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
	Concurrency       int           `mapstructure:"concurrency"`
	Fingerprint       string        `mapstructure:"fingerprint"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Jitter            float64       `mapstructure:"jitter"` // fraction of the request interval, 0..1
	RespectRobots     bool          `mapstructure:"respect_robots"`
	Proxies           []string      `mapstructure:"proxies"`
	ProxyFile         string        `mapstructure:"proxy_file"`
	UserAgents        []string      `mapstructure:"user_agents"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
}

// ProcessorConfig holds source selection and ranking settings.
type ProcessorConfig struct {
	TopResults     int      `mapstructure:"top_results"`
	Strategies     []string `mapstructure:"strategies"`
	FilterContent  bool     `mapstructure:"filter_content"`
	TrustedDomains []string `mapstructure:"trusted_domains"`
	ChunkSize      int      `mapstructure:"chunk_size"`
	ChunkOverlap   int      `mapstructure:"chunk_overlap"`
}

// RerankerConfig selects the ranking backend.
type RerankerConfig struct {
	Backend string `mapstructure:"backend"` // embedding, cross-encoder, lexical
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// LLMConfig holds completion backend settings.
type LLMConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	TopP            float32       `mapstructure:"top_p"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// AgentConfig holds per-query defaults.
type AgentConfig struct {
	SystemPrompt    string        `mapstructure:"system_prompt"`
	MaxSources      int           `mapstructure:"max_sources"`
	ProMode         bool          `mapstructure:"pro_mode"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxContextChars int           `mapstructure:"max_context_chars"`
}

// StorageConfig selects the page cache.
type StorageConfig struct {
	Driver   string        `mapstructure:"driver"` // none, sqlite, postgres
	DSN      string        `mapstructure:"dsn"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Port int `mapstructure:"port"` // 0 disables
}

// Load reads path (if non-empty) and the environment into a Config, applies
// defaults and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file, and so booleans that default to true survive Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("search.provider", "searxng")
	v.SetDefault("search.serper_api_key", "")
	v.SetDefault("search.serper_url", "https://google.serper.dev/search")
	v.SetDefault("search.searxng_url", "http://localhost:8080")
	v.SetDefault("search.searxng_api_key", "")

	v.SetDefault("scraper.timeout", 15*time.Second)
	v.SetDefault("scraper.batch_timeout", 30*time.Second)
	v.SetDefault("scraper.concurrency", 8)
	v.SetDefault("scraper.fingerprint", "chrome")
	v.SetDefault("scraper.requests_per_second", 0)
	v.SetDefault("scraper.jitter", 0.0)
	v.SetDefault("scraper.respect_robots", true)
	v.SetDefault("scraper.proxies", []string{})
	v.SetDefault("scraper.proxy_file", "")
	v.SetDefault("scraper.user_agents", []string{})
	v.SetDefault("scraper.max_body_bytes", 5<<20)

	v.SetDefault("processor.top_results", 5)
	v.SetDefault("processor.strategies", []string{"no_extraction"})
	v.SetDefault("processor.filter_content", true)
	v.SetDefault("processor.trusted_domains", []string{"wikipedia.org"})
	v.SetDefault("processor.chunk_size", 150)
	v.SetDefault("processor.chunk_overlap", 50)

	v.SetDefault("reranker.backend", "embedding")
	v.SetDefault("reranker.base_url", "")
	v.SetDefault("reranker.api_key", "")
	v.SetDefault("reranker.model", "")

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.top_p", 0.3)
	v.SetDefault("llm.breaker_failures", 5)
	v.SetDefault("llm.breaker_timeout", 30*time.Second)

	v.SetDefault("agent.system_prompt", "")
	v.SetDefault("agent.max_sources", 2)
	v.SetDefault("agent.pro_mode", false)
	v.SetDefault("agent.timeout", 2*time.Minute)
	v.SetDefault("agent.max_context_chars", 0)

	v.SetDefault("storage.driver", "none")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.cache_ttl", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.port", 0)
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Search.Provider == "" {
		c.Search.Provider = "searxng"
	}
	if c.Scraper.Timeout <= 0 {
		c.Scraper.Timeout = 15 * time.Second
	}
	if c.Scraper.BatchTimeout <= 0 {
		c.Scraper.BatchTimeout = 30 * time.Second
	}
	if c.Scraper.Concurrency <= 0 {
		c.Scraper.Concurrency = 8
	}
	if c.Scraper.MaxBodyBytes <= 0 {
		c.Scraper.MaxBodyBytes = 5 << 20
	}
	if c.Processor.TopResults <= 0 {
		c.Processor.TopResults = 5
	}
	if len(c.Processor.Strategies) == 0 {
		c.Processor.Strategies = []string{"no_extraction"}
	}
	if c.Processor.ChunkSize <= 0 {
		c.Processor.ChunkSize = 150
	}
	if c.Processor.ChunkOverlap < 0 {
		c.Processor.ChunkOverlap = 0
	}
	if c.Reranker.Backend == "" {
		c.Reranker.Backend = "embedding"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.Agent.MaxSources <= 0 {
		c.Agent.MaxSources = 2
	}
	if c.Agent.Timeout <= 0 {
		c.Agent.Timeout = 2 * time.Minute
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "none"
	}
	if c.Storage.CacheTTL <= 0 {
		c.Storage.CacheTTL = time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error

	switch c.Search.Provider {
	case "serper":
		if c.Search.SerperAPIKey == "" {
			errs = append(errs, errors.New("search.serper_api_key is required for the serper provider"))
		}
	case "searxng":
		if c.Search.SearXNGURL == "" {
			errs = append(errs, errors.New("search.searxng_url is required for the searxng provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("search.provider must be \"serper\" or \"searxng\", got %q", c.Search.Provider))
	}

	switch c.Reranker.Backend {
	case "embedding", "infinity", "cross-encoder", "jina", "lexical":
	default:
		errs = append(errs, fmt.Errorf("reranker.backend must be embedding, cross-encoder or lexical, got %q", c.Reranker.Backend))
	}

	for _, s := range c.Processor.Strategies {
		switch s {
		case "no_extraction", "plain_text", "raw_html":
		default:
			errs = append(errs, fmt.Errorf("processor.strategies: unknown strategy %q", s))
		}
	}

	switch c.Storage.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be none, sqlite or postgres, got %q", c.Storage.Driver))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	if c.Scraper.Jitter < 0 || c.Scraper.Jitter > 1 {
		errs = append(errs, fmt.Errorf("scraper.jitter must be within [0, 1], got %v", c.Scraper.Jitter))
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		errs = append(errs, fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port))
	}
	if c.LLM.Temperature < 0 || c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature must be >= 0 and llm.top_p within [0, 1]"))
	}

	return errors.Join(errs...)
}
