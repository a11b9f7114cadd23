// Package prompt turns enriched search results into the text handed to the
// language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/FranksOps/deepsearch/internal/serp"
)

// DefaultSystemPrompt asks for a detailed answer grounded in the context.
const DefaultSystemPrompt = "You are a helpful AI assistant tasked with providing detailed, in-depth summaries " +
	"based on the provided context. Use the search results to give a comprehensive answer, including specific " +
	"examples, explanations, and details from the sources. Aim for a thorough response that fully addresses the " +
	"query, summarizing key points and elaborating where relevant."

// NoResults is the context produced for an empty result set.
const NoResults = "No search results were found for this query."

const truncatedMarker = "[%d more source(s) omitted]"

// BuildContext renders set as numbered source entries. When maxChars > 0
// whole trailing entries are dropped until the output fits and a marker
// records how many were cut; a lone oversized entry is clipped instead.
func BuildContext(set serp.SourceSet, maxChars int) string {
	if len(set.Organic) == 0 {
		return NoResults
	}

	entries := make([]string, len(set.Organic))
	for i, r := range set.Organic {
		entries[i] = entry(i+1, r)
	}

	out := strings.Join(entries, "\n\n")
	if maxChars <= 0 || len([]rune(out)) <= maxChars {
		return out
	}

	for keep := len(entries) - 1; keep >= 1; keep-- {
		marker := fmt.Sprintf(truncatedMarker, len(entries)-keep)
		candidate := strings.Join(entries[:keep], "\n\n") + "\n\n" + marker
		if len([]rune(candidate)) <= maxChars {
			return candidate
		}
	}

	marker := fmt.Sprintf(truncatedMarker, len(entries)-1)
	if len(entries) == 1 {
		marker = "[truncated]"
	}
	budget := maxChars - len([]rune(marker)) - 1
	first := []rune(entries[0])
	if budget <= 0 {
		return string([]rune(marker)[:min(len([]rune(marker)), maxChars)])
	}
	return string(first[:min(budget, len(first))]) + "\n" + marker
}

func entry(n int, r serp.Record) string {
	var b strings.Builder
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&b, "[%d] %s\n", n, title)
	if r.Link != "" {
		fmt.Fprintf(&b, "URL: %s\n", r.Link)
	}
	if r.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", r.Date)
	}
	if s := strings.TrimSpace(r.Snippet); s != "" {
		fmt.Fprintf(&b, "Snippet: %s\n", s)
	}
	if c := strings.TrimSpace(r.Content); c != "" {
		fmt.Fprintf(&b, "Content:\n%s\n", c)
	}
	return strings.TrimRight(b.String(), "\n")
}

// UserMessage pairs the context with the question.
func UserMessage(context, query string) string {
	return "Context:\n" + context + "\n\nQuestion: " + query
}
