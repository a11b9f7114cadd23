package mcpserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/FranksOps/deepsearch/internal/agent"
)

// SearchInput is the input schema for the web_search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"The search query to perform"`
}

// SearchOutput is the output schema for the web_search tool.
type SearchOutput struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        agent.ToolName,
		Description: agent.ToolDescription,
	}, s.handleWebSearch)
}

func (s *Server) handleWebSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, errors.New("query is required")
	}

	out, err := s.tool.Forward(ctx, query)
	if err != nil {
		s.logger.Warn("web_search failed", "query", query, "err", err)
		return nil, SearchOutput{}, err
	}

	// The answer doubles as the text content shown to the calling model.
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Answer}},
	}, SearchOutput{Answer: out.Answer, Context: out.Context}, nil
}
