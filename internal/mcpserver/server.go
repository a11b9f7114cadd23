// Package mcpserver exposes the web_search tool over the Model Context
// Protocol.
package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/FranksOps/deepsearch/internal/agent"
)

// Version is the MCP server version.
const Version = "0.1.0"

// ErrMissingTool is returned when no search tool is provided.
var ErrMissingTool = errors.New("mcpserver: search tool is required")

// Searcher answers one web search query.
type Searcher interface {
	Forward(ctx context.Context, query string) (agent.ToolOutput, error)
}

// Server is the MCP server for deepsearch.
type Server struct {
	tool   Searcher
	server *mcp.Server
	logger *slog.Logger
}

// New creates an MCP server exposing tool.
func New(tool Searcher, logger *slog.Logger) (*Server, error) {
	if tool == nil {
		return nil, ErrMissingTool
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tool:   tool,
		server: mcp.NewServer(&mcp.Implementation{Name: "deepsearch", Version: Version}, nil),
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("mcp http shutdown", "err", err)
		}
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
