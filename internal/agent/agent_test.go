package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/deepsearch/internal/llm"
	"github.com/FranksOps/deepsearch/internal/prompt"
	"github.com/FranksOps/deepsearch/internal/serp"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeProvider struct {
	mu    sync.Mutex
	set   serp.SourceSet
	err   error
	limit int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, _ string, limit int) (serp.SourceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.set, f.err
}

type fakeProcessor struct {
	mu    sync.Mutex
	calls int
	pro   bool
	n     int
}

func (f *fakeProcessor) Process(_ context.Context, src serp.Sources, n int, _ string, pro bool) serp.SourceSet {
	f.mu.Lock()
	f.calls++
	f.pro, f.n = pro, n
	f.mu.Unlock()
	set, err := src.Resolve()
	if err != nil {
		return serp.SourceSet{Organic: []serp.Record{}}
	}
	out := set.Clone()
	for i := range out.Organic {
		out.Organic[i].Content = "Paris is the capital of France."
	}
	return out
}

type fakeCompleter struct {
	mu   sync.Mutex
	reqs []llm.Request
	err  error
	wait time.Duration
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return "The capital of France is Paris.", nil
}

func franceSet() serp.SourceSet {
	return serp.SourceSet{Organic: []serp.Record{
		{Title: "France - Wikipedia", Link: "https://en.wikipedia.org/wiki/France"},
	}}
}

func newTestAgent(t *testing.T, p serp.Provider, proc Processor, c llm.Completer, mut func(*Config)) *Agent {
	t.Helper()
	cfg := Config{Search: p, Processor: proc, Completer: c, Model: "m", Logger: quietLogger()}
	if mut != nil {
		mut(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAsk_CapitalOfFrance(t *testing.T) {
	prov := &fakeProvider{set: franceSet()}
	proc := &fakeProcessor{}
	comp := &fakeCompleter{}
	a := newTestAgent(t, prov, proc, comp, nil)

	answer, err := a.Ask(context.Background(), "What is the capital of France?", Options{ProMode: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(answer, "Paris") {
		t.Errorf("answer = %q", answer)
	}
	if prov.limit != DefaultMaxSources || proc.n != DefaultMaxSources || !proc.pro {
		t.Errorf("limit=%d n=%d pro=%v", prov.limit, proc.n, proc.pro)
	}

	req := comp.reqs[0]
	if req.Temperature != DefaultTemperature || req.TopP != DefaultTopP || req.Model != "m" {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem || req.Messages[0].Content != prompt.DefaultSystemPrompt {
		t.Fatalf("messages = %+v", req.Messages)
	}
	user := req.Messages[1].Content
	if !strings.HasPrefix(user, "Context:\n[1] France - Wikipedia") || !strings.HasSuffix(user, "\n\nQuestion: What is the capital of France?") {
		t.Errorf("user message = %q", user)
	}
}

func TestSearchAndBuildContext_SearchFailure(t *testing.T) {
	proc := &fakeProcessor{}
	a := newTestAgent(t, &fakeProvider{err: errors.New("quota")}, proc, &fakeCompleter{}, nil)

	got := a.SearchAndBuildContext(context.Background(), "q", Options{})
	if got != prompt.NoResults {
		t.Errorf("context = %q", got)
	}
	if proc.calls != 0 {
		t.Errorf("processor called on failed search")
	}
}

func TestPrepare_RecordsRun(t *testing.T) {
	a := newTestAgent(t, &fakeProvider{err: errors.New("quota")}, &fakeProcessor{}, &fakeCompleter{}, nil)
	run := a.Prepare(context.Background(), "q", Options{MaxSources: 4})
	if run.ID == "" || run.Provider != "fake" || run.Options.MaxSources != 4 {
		t.Errorf("run = %+v", run)
	}
	if !errors.Is(run.SearchErr, serp.ErrSearchUnavailable) {
		t.Errorf("SearchErr = %v", run.SearchErr)
	}
}

func TestAsk_CompletionErrorPropagates(t *testing.T) {
	a := newTestAgent(t, &fakeProvider{set: franceSet()}, &fakeProcessor{}, &fakeCompleter{err: errors.New("500")}, nil)
	_, err := a.Ask(context.Background(), "q", Options{})
	if !errors.Is(err, llm.ErrCompletion) {
		t.Fatalf("err = %v", err)
	}
}

func TestAskSync_ReturnsAnswerAndContext(t *testing.T) {
	a := newTestAgent(t, &fakeProvider{set: franceSet()}, &fakeProcessor{}, &fakeCompleter{}, func(c *Config) {
		c.SystemPrompt = "custom"
	})
	answer, ctxText, err := a.AskSync("capital of France", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if answer == "" || !strings.Contains(ctxText, "Paris is the capital of France.") {
		t.Errorf("answer=%q context=%q", answer, ctxText)
	}
}

func TestAskSync_Timeout(t *testing.T) {
	a := newTestAgent(t, &fakeProvider{set: franceSet()}, &fakeProcessor{}, &fakeCompleter{wait: time.Second}, func(c *Config) {
		c.Timeout = 20 * time.Millisecond
	})
	_, ctxText, err := a.AskSync("q", Options{})
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, llm.ErrCompletion) {
		t.Fatalf("err = %v", err)
	}
	if ctxText == "" {
		t.Error("context should survive a completion timeout")
	}
}

func TestAskAsync_Concurrent(t *testing.T) {
	comp := &fakeCompleter{}
	a := newTestAgent(t, &fakeProvider{set: franceSet()}, &fakeProcessor{}, comp, nil)

	chans := make([]<-chan Result, 5)
	for i := range chans {
		chans[i] = a.AskAsync(context.Background(), "q", Options{})
	}
	for i, ch := range chans {
		res, ok := <-ch
		if !ok || res.Err != nil || res.Answer == "" {
			t.Errorf("result %d = %+v ok=%v", i, res, ok)
		}
		if _, open := <-ch; open {
			t.Errorf("channel %d not closed", i)
		}
	}
	if len(comp.reqs) != 5 {
		t.Errorf("completions = %d", len(comp.reqs))
	}
}

func TestTool_Forward(t *testing.T) {
	proc := &fakeProcessor{}
	a := newTestAgent(t, &fakeProvider{set: franceSet()}, proc, &fakeCompleter{}, nil)
	tool := NewTool(a, Options{ProMode: true})

	if tool.Options().MaxSources != DefaultMaxSources {
		t.Errorf("options = %+v", tool.Options())
	}
	out, err := tool.Forward(context.Background(), "capital of France")
	if err != nil {
		t.Fatal(err)
	}
	if out.Answer == "" || out.Context == "" || !proc.pro {
		t.Errorf("out = %+v pro=%v", out, proc.pro)
	}
	if _, err := tool.Forward(context.Background(), "  "); err == nil {
		t.Error("expected error for blank query")
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error")
	}
}
