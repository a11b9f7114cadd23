// Package report renders the outcome of one question for humans and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/deepsearch/internal/agent"
)

// Source describes one search hit and whether it was enriched.
type Source struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Date     string `json:"date,omitempty"`
	Enriched bool   `json:"enriched"`
	Chars    int    `json:"content_chars"`
}

// Summary contains everything worth reporting about one run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Query       string        `json:"query"`
	Provider    string        `json:"provider"`
	ProMode     bool          `json:"pro_mode"`
	MaxSources  int           `json:"max_sources"`
	SearchError string        `json:"search_error,omitempty"`
	Error       string        `json:"error,omitempty"`
	Answer      string        `json:"answer,omitempty"`
	Context     string        `json:"context,omitempty"`
	Sources     []Source      `json:"sources"`
	Enriched    int           `json:"enriched"`
	StartTime   time.Time     `json:"start_time"`
	Search      time.Duration `json:"search_ns"`
	Process     time.Duration `json:"process_ns"`
	Completion  time.Duration `json:"completion_ns"`
	Duration    time.Duration `json:"duration_ns"`
}

// GenerateSummary condenses a run. err is the error Execute returned, if any.
// The context is included only when withContext is set.
func GenerateSummary(run *agent.Run, err error, withContext bool) Summary {
	s := Summary{Sources: []Source{}}
	if run == nil {
		if err != nil {
			s.Error = err.Error()
		}
		return s
	}

	s.RunID = run.ID
	s.Query = run.Query
	s.Provider = run.Provider
	s.ProMode = run.Options.ProMode
	s.MaxSources = run.Options.MaxSources
	s.Answer = run.Answer
	s.StartTime = run.StartedAt
	s.Search = run.SearchTime
	s.Process = run.ProcessTime
	s.Completion = run.CompletionTime
	s.Duration = run.SearchTime + run.ProcessTime + run.CompletionTime
	if withContext {
		s.Context = run.Context
	}
	if run.SearchErr != nil {
		s.SearchError = run.SearchErr.Error()
	}
	if err != nil {
		s.Error = err.Error()
	}

	for _, r := range run.Sources.Organic {
		src := Source{Title: r.Title, Link: r.Link, Date: r.Date, Enriched: r.Content != "", Chars: len([]rune(r.Content))}
		if src.Enriched {
			s.Enriched++
		}
		s.Sources = append(s.Sources, src)
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

const textTmpl = `{{if .Answer}}{{.Answer}}
{{else if .Error}}Error: {{.Error}}
{{end}}
{{- if .Context}}
Context
-------
{{.Context}}
{{end}}
Sources ({{.Enriched}}/{{len .Sources}} enriched, {{.Provider}}{{if .ProMode}}, pro{{end}})
{{- range $i, $s := .Sources}}
  [{{inc $i}}] {{$s.Title}}{{if $s.Enriched}} *{{end}}
      {{$s.Link}}
{{- else}}
  None{{if .SearchError}} ({{.SearchError}}){{end}}
{{- end}}

Time: {{.Duration}} (search {{.Search}}, process {{.Process}}, completion {{.Completion}})
`

var funcs = template.FuncMap{"inc": func(i int) int { return i + 1 }}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Funcs(funcs).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}
