package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranksOps/deepsearch/internal/agent"
	"github.com/FranksOps/deepsearch/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the web_search tool over MCP",
	Long: `Start a Model Context Protocol server exposing a single web_search tool.

By default the server speaks JSON-RPC over stdio. Use --port to serve the
streamable HTTP transport instead.

Tool calls run in pro mode with agent.max_sources sources unless --pro=false
or --max-sources say otherwise.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.Flags().Bool("pro", true, "run tool calls in pro mode")
	mcpCmd.Flags().IntP("max-sources", "n", 0, "number of search results per call (default from agent.max_sources)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	pro, err := cmd.Flags().GetBool("pro")
	if err != nil {
		return fmt.Errorf("getting pro flag: %w", err)
	}
	maxSources, err := cmd.Flags().GetInt("max-sources")
	if err != nil {
		return fmt.Errorf("getting max-sources flag: %w", err)
	}

	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	tool := agent.NewTool(a.agent, agent.Options{MaxSources: maxSources, ProMode: pro})
	server, err := mcpserver.New(tool, a.logger)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		a.logger.Info("mcp server listening", "addr", "http://localhost"+addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	a.logger.Info("mcp server running on stdio", "tool", agent.ToolName)
	return server.Run(cmd.Context())
}
