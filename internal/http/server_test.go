package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/http/handlers"
	"github.com/jmylchreest/connectr/internal/http/middleware"
)

func testConfig() ServerConfig {
	return ServerConfigFrom(config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            0,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,
	})
}

func TestServer_RoutesThroughMiddleware(t *testing.T) {
	s := NewServer(testConfig(), nil, "1.2.3")
	handlers.NewHealthHandler("1.2.3").Register(s.API())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connectr API")
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := NewServer(testConfig(), nil, "")
	handlers.NewHealthHandler("dev").Register(s.API())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/livez")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	require.NoError(t, s.Shutdown(context.Background()))
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}

type licenseSession struct {
	handlers.Session
}

func (licenseSession) LicenseRequest(context.Context, int64) (string, http.Header, error) {
	h := http.Header{}
	h.Set("X-AN-WebService-CustomerAuthToken", "customer-token")
	h.Set("X-AN-WebService-DeviceAuthToken", "device-token")
	return "https://license.example.com/wv", h, nil
}

func TestServer_CORSKeepsSessionPathsPrivate(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigins = []string{"https://viewer.example.com"}
	s := NewServer(cfg, nil, "")
	handlers.NewAPIHandler(licenseSession{}).Register(s.API())
	handlers.NewHealthHandler("dev").Register(s.API())

	for _, origin := range []string{"https://evil.example", "https://viewer.example.com"} {
		req := httptest.NewRequest(http.MethodGet, "/api/license/1", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://viewer.example.com")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, "https://viewer.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_DefaultSharesNothingCrossOrigin(t *testing.T) {
	s := NewServer(testConfig(), nil, "")
	handlers.NewAPIHandler(licenseSession{}).Register(s.API())

	req := httptest.NewRequest(http.MethodGet, "/api/license/1", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Address(t *testing.T) {
	s := NewServer(ServerConfig{Host: "::1", Port: 8089}, nil, "")
	assert.Equal(t, "[::1]:8089", s.Address())
}
