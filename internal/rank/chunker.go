// Package rank splits page text into fragments and orders them by relevance
// to a query.
package rank

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 150
	DefaultChunkOverlap = 50
)

// DefaultSeparators split on paragraphs, then lines, sentences, words and
// finally individual runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text into fragments of at most chunkSize runes, preferring
// the coarsest separator that fits and carrying up to overlap runes of
// context between neighbouring fragments.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the maximum fragment length in runes.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets how many runes neighbouring fragments may share.
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy. The empty string, if
// present, means "split between runes".
func WithSeparators(seps ...string) ChunkerOption {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = append([]string(nil), seps...)
		}
	}
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Split returns fragments in read order. Blank input yields nil.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, seps []string) []string {
	sep, rest := "", []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var out, fitting []string
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) <= c.chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		out = append(out, c.merge(fitting)...)
		fitting = nil
		if len(rest) == 0 {
			out = append(out, hardSplit(piece, c.chunkSize)...)
		} else {
			out = append(out, c.split(piece, rest)...)
		}
	}
	return append(out, c.merge(fitting)...)
}

// merge packs consecutive pieces into fragments, seeding each new fragment
// with trailing pieces of the previous one up to the overlap budget.
func (c *Chunker) merge(pieces []string) []string {
	var out, window []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.chunkSize && len(window) > 0 {
			out = appendFragment(out, window)
			for len(window) > 0 && (total > c.overlap || total+n > c.chunkSize) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, p)
		total += n
	}
	if len(window) > 0 {
		out = appendFragment(out, window)
	}
	return out
}

func appendFragment(out, window []string) []string {
	if f := strings.TrimSpace(strings.Join(window, "")); f != "" {
		return append(out, f)
	}
	return out
}

func hardSplit(s string, size int) []string {
	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := min(size, len(runes))
		if f := strings.TrimSpace(string(runes[:n])); f != "" {
			out = append(out, f)
		}
		runes = runes[n:]
	}
	return out
}
