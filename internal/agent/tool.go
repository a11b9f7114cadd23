package agent

import (
	"context"
	"errors"
	"strings"
)

const (
	ToolName        = "web_search"
	ToolDescription = "Performs web search based on your query (think a Google search) then returns the final answer that is processed by an llm."
)

// ToolOutput is what one tool invocation produces.
type ToolOutput struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
}

// Tool exposes the agent as a single-input web search tool for other agents.
type Tool struct {
	agent *Agent
	opts  Options
}

// NewTool wraps a. A zero opts.MaxSources takes the agent default.
func NewTool(a *Agent, opts Options) *Tool {
	return &Tool{agent: a, opts: a.normalize(opts)}
}

// Options returns the per-call options the tool uses.
func (t *Tool) Options() Options { return t.opts }

// Forward answers query, returning the answer together with its context.
func (t *Tool) Forward(ctx context.Context, query string) (ToolOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return ToolOutput{}, errors.New("query must not be empty")
	}
	run, err := t.agent.Execute(ctx, query, t.opts)
	if err != nil {
		return ToolOutput{Context: run.Context}, err
	}
	return ToolOutput{Answer: run.Answer, Context: run.Context}, nil
}
