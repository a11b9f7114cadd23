package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/deepsearch/internal/agent"
	"github.com/FranksOps/deepsearch/internal/report"
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question from web search results",
	Long: `Search the web for the query, rank the best sources and print the model's answer.

Examples:
  deepsearch ask "What is the capital of France?"
  deepsearch ask --pro --max-sources 5 "How do transformers use attention?"
  deepsearch ask --format json "Who wrote Dune?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Print the search context without calling the model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runContext,
}

func init() {
	for _, cmd := range []*cobra.Command{askCmd, contextCmd} {
		cmd.Flags().Bool("pro", false, "fetch and rank every result instead of trusted domains only (default from agent.pro_mode)")
		cmd.Flags().IntP("max-sources", "n", 0, "number of search results to use (default from agent.max_sources)")
	}
	askCmd.Flags().StringP("format", "f", "text", "output format: text or json")
	askCmd.Flags().Bool("show-context", false, "include the assembled context in the output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(contextCmd)
}

// queryOptions merges command flags over the agent defaults.
func queryOptions(cmd *cobra.Command, defaults agent.Options) (agent.Options, error) {
	opts := defaults
	if cmd.Flags().Changed("pro") {
		pro, err := cmd.Flags().GetBool("pro")
		if err != nil {
			return opts, fmt.Errorf("getting pro flag: %w", err)
		}
		opts.ProMode = pro
	}
	n, err := cmd.Flags().GetInt("max-sources")
	if err != nil {
		return opts, fmt.Errorf("getting max-sources flag: %w", err)
	}
	if n > 0 {
		opts.MaxSources = n
	}
	return opts, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	showContext, _ := cmd.Flags().GetBool("show-context")

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	opts, err := queryOptions(cmd, a.agent.Defaults())
	if err != nil {
		return err
	}

	run, runErr := a.agent.Execute(cmd.Context(), strings.Join(args, " "), opts)
	summary := report.GenerateSummary(run, runErr, showContext || format == "json")

	if format == "json" {
		if err := report.WriteJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else if err := report.WriteText(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	return runErr
}

func runContext(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	opts, err := queryOptions(cmd, a.agent.Defaults())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), a.agent.SearchAndBuildContext(cmd.Context(), strings.Join(args, " "), opts))
	return err
}

// setup loads configuration, installs the logger and builds the app.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, logger)
}
