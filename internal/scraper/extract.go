package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// Strategy names a way of turning a fetched page into text.
type Strategy string

const (
	// NoExtraction converts the whole page to markdown.
	NoExtraction Strategy = "no_extraction"
	// PlainText keeps only the visible text of the main content region.
	PlainText Strategy = "plain_text"
	// RawHTML keeps the (optionally filtered) markup.
	RawHTML Strategy = "raw_html"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case NoExtraction, PlainText, RawHTML:
		return st, nil
	default:
		return "", fmt.Errorf("unknown extraction strategy %q", s)
	}
}

// noiseSelectors are stripped when content filtering is enabled.
var noiseSelectors = strings.Join([]string{
	"script", "style", "noscript", "iframe", "svg", "form",
	"header", "footer", "nav", "aside",
	".advertisement", ".ad", ".sidebar", ".comments", ".cookie-banner",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	"[aria-hidden=true]",
}, ", ")

var (
	spaceRun = regexp.MustCompile(`[ \t\f\r]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// Extractor turns page bodies into text for each configured strategy.
type Extractor struct {
	Strategies    []Strategy
	FilterContent bool
}

// Extract runs every strategy over body. Non-HTML bodies are passed through
// unchanged for all strategies.
func (e Extractor) Extract(body []byte, contentType string) (map[Strategy]string, error) {
	strategies := e.Strategies
	if len(strategies) == 0 {
		strategies = []Strategy{NoExtraction}
	}

	out := make(map[Strategy]string, len(strategies))
	if !isHTML(contentType, body) {
		text := strings.TrimSpace(string(body))
		for _, s := range strategies {
			out[s] = text
		}
		return out, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if e.FilterContent {
		doc.Find(noiseSelectors).Remove()
	}

	for _, s := range strategies {
		text, err := extractOne(doc, s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		out[s] = text
	}
	return out, nil
}

func extractOne(doc *goquery.Document, s Strategy) (string, error) {
	switch s {
	case RawHTML:
		return doc.Html()
	case PlainText:
		return plainText(doc), nil
	case NoExtraction:
		html, err := doc.Html()
		if err != nil {
			return "", err
		}
		md, err := htmltomarkdown.ConvertString(html)
		if err != nil {
			return "", fmt.Errorf("convert to markdown: %w", err)
		}
		return tidy(md), nil
	default:
		return "", fmt.Errorf("unknown extraction strategy %q", s)
	}
}

func plainText(doc *goquery.Document) string {
	sel := doc.Find("article, main, [role=main], #content, .content").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}

	// Break after block elements so paragraphs survive into the text.
	sel.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, br, section, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return tidy(sel.Text())
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(blankRun.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") || strings.Contains(ct, "xml") {
		return true
	}
	if ct != "" {
		return false
	}
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) || bytes.Contains(head, []byte("<body"))
}
