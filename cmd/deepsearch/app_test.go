package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/FranksOps/deepsearch/internal/agent"
	"github.com/FranksOps/deepsearch/internal/config"
)

func TestQueryOptions(t *testing.T) {
	defaults := agent.Options{MaxSources: 2, ProMode: false}

	cmd := &cobra.Command{}
	cmd.Flags().Bool("pro", false, "")
	cmd.Flags().IntP("max-sources", "n", 0, "")

	opts, err := queryOptions(cmd, defaults)
	if err != nil || opts != defaults {
		t.Fatalf("unchanged flags: opts = %+v, err = %v", opts, err)
	}

	if err := cmd.Flags().Parse([]string{"--pro", "-n", "5"}); err != nil {
		t.Fatal(err)
	}
	opts, err = queryOptions(cmd, defaults)
	if err != nil {
		t.Fatal(err)
	}
	if !opts.ProMode || opts.MaxSources != 5 {
		t.Errorf("opts = %+v", opts)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		if _, err := newLogger(config.LogConfig{Level: "DEBUG", Format: format}); err != nil {
			t.Errorf("format %s: %v", format, err)
		}
	}
	if _, err := newLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewProvider(t *testing.T) {
	if p, err := newProvider(config.SearchConfig{Provider: "searxng", SearXNGURL: "http://localhost:8080"}); err != nil || p.Name() != "searxng" {
		t.Errorf("searxng: %v, %v", p, err)
	}
	if p, err := newProvider(config.SearchConfig{Provider: "serper", SerperAPIKey: "k"}); err != nil || p.Name() != "serper" {
		t.Errorf("serper: %v, %v", p, err)
	}
	if _, err := newProvider(config.SearchConfig{Provider: "bing"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewReranker(t *testing.T) {
	for _, backend := range []string{"embedding", "infinity", "cross-encoder", "jina", "lexical"} {
		if _, err := newReranker(config.RerankerConfig{Backend: backend}); err != nil {
			t.Errorf("%s: %v", backend, err)
		}
	}
	if _, err := newReranker(config.RerankerConfig{Backend: "bm25"}); err == nil {
		t.Error("expected error")
	}
}

func TestNewApp_SQLiteCache(t *testing.T) {
	cfg := config.Config{
		Search:  config.SearchConfig{Provider: "searxng", SearXNGURL: "http://localhost:8080"},
		Storage: config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "pages.db")},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())

	if a.cache == nil || a.agent == nil {
		t.Errorf("app = %+v", a)
	}
	if got := a.agent.Defaults(); got.MaxSources != 2 || got.ProMode {
		t.Errorf("defaults = %+v", got)
	}
}
