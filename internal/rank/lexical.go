package rank

import (
	"context"
	"strings"
	"unicode"
)

// Lexical scores fragments by query-term overlap. It needs no model server,
// which makes it a useful offline fallback.
type Lexical struct{}

// NewLexical creates a Lexical reranker.
func NewLexical() *Lexical { return &Lexical{} }

func (Lexical) Rerank(_ context.Context, query string, fragments []string, k int) ([]string, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	terms := queryTerms(query)
	scores := make([]float64, len(fragments))
	for i, f := range fragments {
		scores[i] = termScore(strings.ToLower(f), terms)
	}
	return topK(fragments, scores, k), nil
}

// termScore rewards each distinct term present, then repeated occurrences.
func termScore(lowerFragment string, terms []string) float64 {
	var score float64
	for _, t := range terms {
		n := strings.Count(lowerFragment, t)
		if n == 0 {
			continue
		}
		score += 1 + 0.1*float64(n-1)
	}
	return score
}

// queryTerms lowercases query and returns its distinct words of two or more
// runes.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
