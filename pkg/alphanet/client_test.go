package alphanet

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(WithUserAgent("connectr/test"))

	if c.BaseURL() != "" {
		t.Errorf("expected empty base url, got %q", c.BaseURL())
	}
	if c.Header(headerUserAgent) != "connectr/test" {
		t.Errorf("expected user agent header, got %q", c.Header(headerUserAgent))
	}
	if c.httpClient.Jar == nil {
		t.Error("expected cookie jar to be set")
	}
}

func TestWithHTTPClient_Copies(t *testing.T) {
	shared := &http.Client{}
	c := NewClient(WithHTTPClient(shared))

	if c.httpClient == shared {
		t.Error("expected the http client to be copied")
	}
	if shared.Jar != nil {
		t.Error("expected shared client jar to be untouched")
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://p.example.com/", "proxy/login", "https://p.example.com/proxy/login"},
		{"https://p.example.com/", "/proxy/login", "https://p.example.com/proxy/login"},
		{"https://p.example.com/", "https://cdn.example.com/settings.json", "https://cdn.example.com/settings.json"},
		{"", "http://cdn.example.com/v.txt", "http://cdn.example.com/v.txt"},
	}

	for _, tt := range tests {
		if got := ResolveURL(tt.base, tt.path); got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestSetBaseURL_AddsSlash(t *testing.T) {
	c := NewClient()
	c.SetBaseURL("https://p.example.com/api")
	if c.BaseURL() != "https://p.example.com/api/" {
		t.Errorf("unexpected base url %q", c.BaseURL())
	}
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/proxy/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get(headerContentType); got != formContentType {
			t.Errorf("unexpected content type %q", got)
		}
		if got := r.Header.Get(HeaderIdentityKey); got != "hss" {
			t.Errorf("expected default identity header, got %q", got)
		}
		if got := r.Header.Get(HeaderCustomerAuthToken); got != "cust" {
			t.Errorf("expected per-call customer header, got %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if r.PostForm.Get("email") != "u@example.com" || r.PostForm.Get("password") != "p" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{"error":null,"result":{"newAuthToken":"T1","deviceAuthToken":"D1"}}`)
	}))
	defer server.Close()

	c := NewClient()
	c.SetBaseURL(server.URL + "/api/")
	c.SetHeader(HeaderIdentityKey, "hss")

	resp, err := c.Post(context.Background(), PathLogin,
		WithForm(url.Values{"email": {"u@example.com"}, "password": {"p"}}),
		WithHeader(HeaderCustomerAuthToken, "cust"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, err := DecodeEnvelope[AuthResult](resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Failed() {
		t.Fatal("expected success envelope")
	}
	if env.Result.NewAuthToken != "T1" || env.Result.DeviceAuthToken != "D1" {
		t.Errorf("unexpected result %+v", env.Result)
	}
}

func TestClient_GetParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("languageId") != "eng" || q.Get("filter") != `{"a":1}` {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = io.WriteString(w, "  9.9.1\n")
	}))
	defer server.Close()

	c := NewClient()
	c.SetBaseURL(server.URL)

	resp, err := c.Get(context.Background(), PathEPGFiltered,
		WithParams(url.Values{"languageId": {"eng"}, "filter": {`{"a":1}`}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "9.9.1" {
		t.Errorf("expected trimmed text, got %q", resp.Text())
	}
	if !resp.OK() {
		t.Error("expected OK response")
	}
}

func TestClient_AfterResponseHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
	}))
	defer server.Close()

	errBlocked := errors.New("blocked")
	var seen int
	c := NewClient(WithAfterResponse(func(resp *Response) error {
		seen = resp.StatusCode
		if !resp.OK() {
			return errBlocked
		}
		return nil
	}))

	_, err := c.Get(context.Background(), server.URL)
	if !errors.Is(err, errBlocked) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if seen != http.StatusUnavailableForLegalReasons {
		t.Errorf("expected hook to see 451, got %d", seen)
	}
}

func TestClient_ResetKeepsHookAndDropsState(t *testing.T) {
	var cookieSeen bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "s", Value: "1", Path: "/"})
			return
		}
		_, err := r.Cookie("s")
		cookieSeen = err == nil
	}))
	defer server.Close()

	var calls int
	c := NewClient(
		WithUserAgent("ua"),
		WithAfterResponse(func(*Response) error { calls++; return nil }),
	)
	c.SetBaseURL(server.URL)
	c.SetHeader(HeaderIdentityKey, "hss")

	if _, err := c.Get(context.Background(), "set"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Reset()

	if c.BaseURL() != "" {
		t.Error("expected base url to be cleared")
	}
	if c.Header(HeaderIdentityKey) != "" {
		t.Error("expected identity header to be cleared")
	}
	if c.Header(headerUserAgent) != "ua" {
		t.Error("expected user agent to survive reset")
	}

	if _, err := c.Get(context.Background(), server.URL+"/check"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cookieSeen {
		t.Error("expected cookies to be dropped by reset")
	}
	if calls != 2 {
		t.Errorf("expected hook on both calls, got %d", calls)
	}
}

func TestResponse_JSONError(t *testing.T) {
	resp := &Response{Body: []byte("<html>"), URL: "https://x/y"}
	var v map[string]any
	if err := resp.JSON(&v); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// One token, refilled once an hour: the second call must wait.
	c := NewClient(WithRateLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))

	if _, err := c.Get(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Get(ctx, server.URL); err == nil {
		t.Fatal("expected rate limiter error")
	}
}
