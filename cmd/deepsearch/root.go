package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/deepsearch/internal/config"
)

var (
	configPath  string
	logLevel    string
	metricsPort int
)

var rootCmd = &cobra.Command{
	Use:   "deepsearch",
	Short: "Answer questions from ranked web search results",
	Long: `deepsearch searches the web, fetches the most relevant sources, ranks their
content against the question and asks a language model for a grounded answer.

Configuration is read from --config (YAML) and DEEPSEARCH_* environment
variables, e.g. DEEPSEARCH_LLM_API_KEY or DEEPSEARCH_SEARCH_PROVIDER.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", -1, "override metrics.port (0 disables)")
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if metricsPort >= 0 {
		cfg.Metrics.Port = metricsPort
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
// Logs go to stderr so stdout stays clean for answers and MCP traffic.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
