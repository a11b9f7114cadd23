// Package bypass recognises bot-protection interstitials so they are treated
// as failed fetches rather than page content.
package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Response is the part of an HTTP exchange detectors inspect.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Signature describes how one vendor's challenge page looks.
type Signature struct {
	Vendor   string
	Statuses []int
	// Server matches case-insensitively as a substring of the Server header.
	Server string
	// Headers matches when any listed header is present.
	Headers []string
	// Body matches when any marker appears in the body. When AllBody is set,
	// every marker must appear.
	Body    []string
	AllBody bool
}

func (s Signature) match(r Response) bool {
	if !slices.Contains(s.Statuses, r.StatusCode) {
		return false
	}
	if s.Server != "" && strings.Contains(strings.ToLower(r.Header.Get("Server")), s.Server) {
		return true
	}
	for _, h := range s.Headers {
		if r.Header.Get(h) != "" {
			return true
		}
	}
	if len(s.Body) == 0 {
		return false
	}
	for _, marker := range s.Body {
		hit := bytes.Contains(r.Body, []byte(marker))
		if hit && !s.AllBody {
			return true
		}
		if !hit && s.AllBody {
			return false
		}
	}
	return s.AllBody
}

// DefaultSignatures covers the major commercial bot managers.
func DefaultSignatures() []Signature {
	forbidden := []int{http.StatusForbidden}
	return []Signature{
		{
			Vendor:   "Cloudflare",
			Statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
			Server:   "cloudflare",
			Body:     []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"},
		},
		{
			Vendor:   "Akamai",
			Statuses: forbidden,
			Server:   "akamai",
			Body:     []string{"Reference #", "Access Denied"},
			AllBody:  true,
		},
		{
			Vendor:   "DataDome",
			Statuses: forbidden,
			Server:   "datadome",
			Headers:  []string{"X-DataDome", "X-DataDome-Response"},
			Body:     []string{"geo.captcha-delivery.com", "datadome"},
		},
		{
			Vendor:   "PerimeterX",
			Statuses: forbidden,
			Headers:  []string{"X-Px-Captcha"},
			Body:     []string{"client.perimeterx.net", "px-captcha", "_pxBlock"},
		},
	}
}

// Detect returns the vendor of the first matching signature, or "".
func Detect(r Response, sigs []Signature) string {
	for _, s := range sigs {
		if s.match(r) {
			return s.Vendor
		}
	}
	return ""
}
