package connect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/connectr/internal/cache"
	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

const (
	testSecret  = "test-secret"
	testHSSKey  = "hss-key"
	testVersion = "9.9"
)

// seenRequest is what the fake platform recorded for one call.
type seenRequest struct {
	Header http.Header
	Form   url.Values
	Query  url.Values
}

// fakePlatform serves the settings, version and web-service endpoints.
type fakePlatform struct {
	t        *testing.T
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	seen     map[string][]seenRequest
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	p := &fakePlatform{
		t:        t,
		handlers: make(map[string]http.HandlerFunc),
		seen:     make(map[string][]seenRequest),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.server.Close)

	p.handle("/settings.json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"settings": map[string]any{
				"alpha_networks_dash": map[string]any{
					"mena": map[string]string{
						"platform_url": p.server.URL + "/api/",
						"hss_key":      testHSSKey,
					},
				},
			},
		})
	})
	p.handle("/version.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testVersion + "\n"))
	})
	return p
}

func (p *fakePlatform) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	p.mu.Lock()
	p.seen[r.URL.Path] = append(p.seen[r.URL.Path], seenRequest{
		Header: r.Header.Clone(),
		Form:   r.PostForm,
		Query:  r.URL.Query(),
	})
	h := p.handlers[r.URL.Path]
	p.mu.Unlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// handle registers h for path. Web-service paths are given without the
// /api/ prefix.
func (p *fakePlatform) handle(path string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[p.path(path)] = h
}

func (p *fakePlatform) path(path string) string {
	if path[0] == '/' {
		return path
	}
	return "/api/" + path
}

func (p *fakePlatform) calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen[p.path(path)])
}

func (p *fakePlatform) requests(path string) []seenRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]seenRequest(nil), p.seen[p.path(path)]...)
}

func (p *fakePlatform) last(path string) seenRequest {
	reqs := p.requests(path)
	require.NotEmpty(p.t, reqs, "no request to %s", path)
	return reqs[len(reqs)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func okEnvelope(result any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"error": nil, "result": result})
	}
}

func errEnvelope(code int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"error":  map[string]any{"code": code, "message": message},
			"result": nil,
		})
	}
}

func makeToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"sub": "customer",
	}).SignedString([]byte("platform-key"))
	require.NoError(t, err)
	return tok
}

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory Store. Keys in failDeletes refuse deletion.
type memStore struct {
	data        map[string]string
	failDeletes map[string]bool
}

func newMemStore(kv ...string) *memStore {
	s := &memStore{data: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		s.data[kv[i]] = kv[i+1]
	}
	return s
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	return s.data[key], nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	if s.failDeletes[key] {
		return errStoreDown
	}
	delete(s.data, key)
	return nil
}

// scriptedPrompter answers prompts from queues. An exhausted Select queue
// cancels.
type scriptedPrompter struct {
	selects []int
	inputs  []string
	answers []bool

	selectTitles  []string
	selectOptions [][]string
	inputTitles   []string
	errors        []string
	refreshes     int
}

func (p *scriptedPrompter) Select(title string, options []string) (int, error) {
	p.selectTitles = append(p.selectTitles, title)
	p.selectOptions = append(p.selectOptions, options)
	if len(p.selects) == 0 {
		return -1, nil
	}
	idx := p.selects[0]
	p.selects = p.selects[1:]
	return idx, nil
}

func (p *scriptedPrompter) Input(title string) (string, error) {
	p.inputTitles = append(p.inputTitles, title)
	if len(p.inputs) == 0 {
		return "", nil
	}
	v := p.inputs[0]
	p.inputs = p.inputs[1:]
	return v, nil
}

func (p *scriptedPrompter) YesNo(string) (bool, error) {
	if len(p.answers) == 0 {
		return false, nil
	}
	v := p.answers[0]
	p.answers = p.answers[1:]
	return v, nil
}

func (p *scriptedPrompter) Error(message string) {
	p.errors = append(p.errors, message)
}

func (p *scriptedPrompter) Refresh() {
	p.refreshes++
}

type harness struct {
	client   *Client
	platform *fakePlatform
	store    *memStore
	prompt   *scriptedPrompter
	cache    *cache.Memory
	printer  i18n.Printer
	now      time.Time
}

func newHarness(t *testing.T, loginType string, store *memStore) *harness {
	t.Helper()
	if store == nil {
		store = newMemStore()
	}

	h := &harness{
		platform: newFakePlatform(t),
		store:    store,
		prompt:   &scriptedPrompter{},
		printer:  i18n.NewInLocation("en", time.UTC),
		now:      time.Unix(1_700_000_000, 0),
	}
	clock := func() time.Time { return h.now }
	h.cache = cache.NewMemory(cache.WithClock(clock))

	cfg := config.ServiceConfig{
		Region:         "mena",
		LoginType:      loginType,
		SettingsURL:    h.platform.server.URL + "/settings.json",
		VersionURL:     h.platform.server.URL + "/version.txt",
		ChecksumSecret: testSecret,
		PlayerName:     "bein_android",
		DeviceType:     "Android",
		Language:       "eng",
		Locale:         "en",
	}

	c, err := New(context.Background(), cfg, alphanet.NewClient(), store,
		WithCache(h.cache),
		WithPrompter(h.prompt),
		WithPrinter(h.printer),
		WithClock(clock),
	)
	require.NoError(t, err)
	h.client = c
	return h
}

// loggedInStore returns a store holding a device token and an auth token
// that expires at exp.
func loggedInStore(t *testing.T, exp time.Time) *memStore {
	t.Helper()
	token := makeToken(t, exp)
	return newMemStore(
		KeyDeviceToken, "device-token",
		KeyAuthToken, token,
		KeyTokenExpires, formatUnix(exp.Add(-tokenExpiryMargin)),
	)
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
