package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/FranksOps/deepsearch/internal/agent"
)

type mockTool struct {
	query string
	out   agent.ToolOutput
	err   error
}

func (m *mockTool) Forward(_ context.Context, query string) (agent.ToolOutput, error) {
	m.query = query
	return m.out, m.err
}

func newTestServer(t *testing.T, tool Searcher) *Server {
	t.Helper()
	s, err := New(tool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHandleWebSearch(t *testing.T) {
	tool := &mockTool{out: agent.ToolOutput{Answer: "Paris.", Context: "[1] France"}}
	s := newTestServer(t, tool)

	res, out, err := s.handleWebSearch(context.Background(), nil, SearchInput{Query: "  capital of France "})
	if err != nil {
		t.Fatal(err)
	}
	if tool.query != "capital of France" {
		t.Errorf("query = %q", tool.query)
	}
	if out.Answer != "Paris." || out.Context != "[1] France" {
		t.Errorf("out = %+v", out)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	if text, ok := res.Content[0].(*mcp.TextContent); !ok || text.Text != "Paris." {
		t.Errorf("content[0] = %#v", res.Content[0])
	}
}

func TestHandleWebSearch_Errors(t *testing.T) {
	boom := errors.New("boom")
	s := newTestServer(t, &mockTool{err: boom})

	if _, _, err := s.handleWebSearch(context.Background(), nil, SearchInput{Query: "q"}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if _, _, err := s.handleWebSearch(context.Background(), nil, SearchInput{}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestNew_RequiresTool(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, ErrMissingTool) {
		t.Errorf("err = %v", err)
	}
}
