// Package agent answers questions by searching the web, ranking what it
// finds, and asking a language model to summarise it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/deepsearch/internal/llm"
	"github.com/FranksOps/deepsearch/internal/prompt"
	"github.com/FranksOps/deepsearch/internal/serp"
)

const (
	DefaultMaxSources  = 2
	DefaultTemperature = 0.2
	DefaultTopP        = 0.3
	DefaultTimeout     = 2 * time.Minute
)

// Processor enriches search results with ranked page content.
type Processor interface {
	Process(ctx context.Context, src serp.Sources, n int, query string, pro bool) serp.SourceSet
}

// Options are the per-query knobs.
type Options struct {
	MaxSources int  `json:"max_sources"`
	ProMode    bool `json:"pro_mode"`
}

// Config wires an Agent to its collaborators.
type Config struct {
	Search    serp.Provider
	Processor Processor
	Completer llm.Completer

	SystemPrompt string
	Model        string
	Temperature  float32
	TopP         float32
	// MaxContextChars bounds the context block. 0 means unbounded.
	MaxContextChars int
	// Timeout bounds AskSync.
	Timeout time.Duration
	// Defaults apply to Tool and to zero MaxSources in Options.
	Defaults Options
	Logger   *slog.Logger
}

// Agent runs the search, rank and answer pipeline. It is safe for
// concurrent use.
type Agent struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and creates an Agent. Zero Temperature and TopP take the
// package defaults; pass a tiny positive value to force near-greedy sampling.
func New(cfg Config) (*Agent, error) {
	switch {
	case cfg.Search == nil:
		return nil, errors.New("agent: search provider is required")
	case cfg.Processor == nil:
		return nil, errors.New("agent: processor is required")
	case cfg.Completer == nil:
		return nil, errors.New("agent: completer is required")
	}

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompt.DefaultSystemPrompt
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.TopP == 0 {
		cfg.TopP = DefaultTopP
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Defaults.MaxSources <= 0 {
		cfg.Defaults.MaxSources = DefaultMaxSources
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Agent{cfg: cfg, logger: cfg.Logger}, nil
}

// Defaults returns the configured per-query options.
func (a *Agent) Defaults() Options { return a.cfg.Defaults }

// Run records one pass through the pipeline.
type Run struct {
	ID        string
	Query     string
	Options   Options
	Provider  string
	SearchErr error
	Sources   serp.SourceSet
	Context   string
	Answer    string

	StartedAt      time.Time
	SearchTime     time.Duration
	ProcessTime    time.Duration
	CompletionTime time.Duration
}

func (a *Agent) normalize(opts Options) Options {
	if opts.MaxSources <= 0 {
		opts.MaxSources = a.cfg.Defaults.MaxSources
	}
	return opts
}

// Prepare searches, processes the results and builds the context, leaving
// Answer empty. A failed search produces the empty-results context.
func (a *Agent) Prepare(ctx context.Context, query string, opts Options) *Run {
	opts = a.normalize(opts)
	run := &Run{
		ID:        uuid.NewString(),
		Query:     query,
		Options:   opts,
		Provider:  a.cfg.Search.Name(),
		StartedAt: time.Now(),
	}
	logger := a.logger.With("run", run.ID)

	start := time.Now()
	outcome := serp.Lookup(ctx, a.cfg.Search, query, opts.MaxSources, logger)
	run.SearchTime = time.Since(start)

	if !outcome.OK() {
		_, run.SearchErr = outcome.Resolve()
		logger.Warn("search failed, continuing with empty results", "query", query, "err", run.SearchErr)
		run.Sources = serp.SourceSet{Organic: []serp.Record{}}
	} else {
		start = time.Now()
		run.Sources = a.cfg.Processor.Process(ctx, outcome, opts.MaxSources, query, opts.ProMode)
		run.ProcessTime = time.Since(start)
	}

	run.Context = prompt.BuildContext(run.Sources, a.cfg.MaxContextChars)
	logger.Info("context built", "query", query, "pro", opts.ProMode, "sources", len(run.Sources.Organic),
		"chars", len(run.Context), "search_time", run.SearchTime, "process_time", run.ProcessTime)
	return run
}

// Execute runs the whole pipeline. The returned Run is never nil; on a
// completion error it holds everything up to the failed call.
func (a *Agent) Execute(ctx context.Context, query string, opts Options) (*Run, error) {
	run := a.Prepare(ctx, query, opts)

	start := time.Now()
	answer, err := a.cfg.Completer.Complete(ctx, llm.Request{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.cfg.SystemPrompt},
			{Role: llm.RoleUser, Content: prompt.UserMessage(run.Context, query)},
		},
		Temperature: a.cfg.Temperature,
		TopP:        a.cfg.TopP,
	})
	run.CompletionTime = time.Since(start)
	if err != nil {
		if !errors.Is(err, llm.ErrCompletion) {
			err = fmt.Errorf("%w: %w", llm.ErrCompletion, err)
		}
		a.logger.Error("completion failed", "run", run.ID, "query", query, "err", err)
		return run, err
	}

	run.Answer = answer
	a.logger.Info("answer ready", "run", run.ID, "completion_time", run.CompletionTime)
	return run, nil
}

// SearchAndBuildContext returns only the context block for query.
func (a *Agent) SearchAndBuildContext(ctx context.Context, query string, opts Options) string {
	return a.Prepare(ctx, query, opts).Context
}

// Ask answers query. Completion errors wrap llm.ErrCompletion.
func (a *Agent) Ask(ctx context.Context, query string, opts Options) (string, error) {
	run, err := a.Execute(ctx, query, opts)
	if err != nil {
		return "", err
	}
	return run.Answer, nil
}

// Result is delivered by AskAsync.
type Result struct {
	Answer  string
	Context string
	Err     error
}

// AskAsync runs the pipeline on its own goroutine. The channel receives
// exactly one Result and is then closed.
func (a *Agent) AskAsync(ctx context.Context, query string, opts Options) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		run, err := a.Execute(ctx, query, opts)
		ch <- Result{Answer: run.Answer, Context: run.Context, Err: err}
	}()
	return ch
}

// AskSync blocks until the pipeline finishes or the configured timeout
// elapses, and returns both the answer and the context it was built from.
func (a *Agent) AskSync(query string, opts Options) (answer, searchContext string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()

	res := <-a.AskAsync(ctx, query, opts)
	return res.Answer, res.Context, res.Err
}
