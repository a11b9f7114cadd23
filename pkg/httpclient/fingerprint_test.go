package httpclient

import (
	"net/http"
	"net/url"
	"testing"
)

func TestTransport_Profiles(t *testing.T) {
	for _, p := range []Profile{ProfileChrome, ProfileFirefox, ProfileSafari, ProfileRandom} {
		t.Run(string(p), func(t *testing.T) {
			rt, err := Transport(p, nil)
			if err != nil {
				t.Fatalf("unexpected error for %s: %v", p, err)
			}
			tr, ok := rt.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport, got %T", rt)
			}
			if tr.DialTLSContext == nil {
				t.Errorf("expected uTLS dialer for profile %s", p)
			}
		})
	}
}

func TestTransport_GoProfileKeepsProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://127.0.0.1:3128")
	rt, err := Transport(ProfileGo, http.ProxyURL(proxyURL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr := rt.(*http.Transport)
	if tr.DialTLSContext != nil {
		t.Error("go profile should use the standard TLS stack")
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.org", nil)
	got, err := tr.Proxy(req)
	if err != nil || got.String() != proxyURL.String() {
		t.Errorf("expected proxy %s, got %v (err %v)", proxyURL, got, err)
	}
}

func TestParseProfile(t *testing.T) {
	if p, err := ParseProfile(""); err != nil || p != ProfileChrome {
		t.Errorf("empty profile: got %q, %v", p, err)
	}
	if p, err := ParseProfile("firefox"); err != nil || p != ProfileFirefox {
		t.Errorf("firefox: got %q, %v", p, err)
	}
	if _, err := ParseProfile("netscape"); err == nil {
		t.Error("expected error for unknown profile")
	}
	if _, err := Transport(Profile("netscape"), nil); err == nil {
		t.Error("expected Transport to reject unknown profile")
	}
}
