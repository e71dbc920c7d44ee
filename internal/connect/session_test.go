package connect

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/connectr/internal/config"
	"github.com/jmylchreest/connectr/internal/i18n"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

func TestNew_RejectsUnknownLoginType(t *testing.T) {
	_, err := New(context.Background(), config.ServiceConfig{LoginType: "sometimes"}, alphanet.NewClient(), newMemStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sometimes")
}

func TestNew_DerivesLoginState(t *testing.T) {
	tests := []struct {
		name  string
		store *memStore
		want  bool
	}{
		{"empty", newMemStore(), false},
		{"auth only", newMemStore(KeyAuthToken, "a"), false},
		{"device only", newMemStore(KeyDeviceToken, "d"), false},
		{"both", newMemStore(KeyAuthToken, "a", KeyDeviceToken, "d"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.LoginMultiIP, tt.store)
			assert.Equal(t, tt.want, h.client.LoggedIn())
		})
	}
}

func TestEnsureSession_ConfiguresTransportAndCaches(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	ctx := context.Background()

	require.NoError(t, h.client.EnsureSession(ctx, false))
	require.NoError(t, h.client.EnsureSession(ctx, false))

	assert.Equal(t, 1, h.platform.calls("/settings.json"))
	assert.Equal(t, h.platform.server.URL+"/api/", h.client.transport.BaseURL())
	assert.Equal(t, testHSSKey, h.client.transport.Header(alphanet.HeaderIdentityKey))

	h.now = h.now.Add(time.Hour)
	require.NoError(t, h.client.EnsureSession(ctx, false))
	assert.Equal(t, 2, h.platform.calls("/settings.json"), "settings are refetched after the cache window")
}

func TestEnsureSession_SettingsFailure(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	h.platform.handle("/settings.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := h.client.EnsureSession(context.Background(), false)

	var fetchErr *ConfigFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, h.printer.Sprintf(i18n.ConfigFetchError), fetchErr.Error())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)

	// Failures are not cached.
	require.Error(t, h.client.EnsureSession(context.Background(), false))
	assert.Equal(t, 2, h.platform.calls("/settings.json"))
}

func TestEnsureSession_MalformedSettings(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	h.platform.handle("/settings.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	var fetchErr *ConfigFetchError
	require.ErrorAs(t, h.client.EnsureSession(context.Background(), false), &fetchErr)
}

func TestEnsureSession_MissingRegion(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	h.client.cfg.Region = "apac"

	err := h.client.EnsureSession(context.Background(), false)
	var fetchErr *ConfigFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "apac")
}

func TestEnsureSession_RefreshesOnlyWhenNeeded(t *testing.T) {
	tests := []struct {
		name        string
		expiresIn   time.Duration
		force       bool
		loggedIn    bool
		wantRefresh bool
	}{
		{"valid token", time.Hour, false, true, false},
		{"expired token", 10 * time.Second, false, true, true},
		{"forced", time.Hour, true, true, true},
		{"logged out and forced", time.Hour, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(1_700_000_000, 0)
			store := loggedInStore(t, now.Add(tt.expiresIn))
			if !tt.loggedIn {
				delete(store.data, KeyDeviceToken)
			}
			h := newHarness(t, config.LoginMultiIP, store)
			fresh := makeToken(t, now.Add(2*time.Hour))
			h.platform.handle("proxy/loginDevice", okEnvelope(map[string]any{"newAuthToken": fresh}))

			require.NoError(t, h.client.EnsureSession(context.Background(), tt.force))

			if tt.wantRefresh {
				assert.Equal(t, 1, h.platform.calls("proxy/loginDevice"))
				assert.Equal(t, fresh, store.data[KeyAuthToken])
			} else {
				assert.Zero(t, h.platform.calls("proxy/loginDevice"))
			}
		})
	}
}

func TestCheckResponse_GeoBlockedAndHTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnavailableForLegalReasons, "This service is not available in your region"},
		{http.StatusForbidden, "Unexpected HTTP response (403)"},
		{http.StatusServiceUnavailable, "Unexpected HTTP response (503)"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			h := newHarness(t, config.LoginMultiIP, nil)
			h.platform.handle("/version.txt", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := h.client.AppVersion(context.Background())
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestAppVersion_TrimmedAndCached(t *testing.T) {
	h := newHarness(t, config.LoginMultiIP, nil)
	ctx := context.Background()

	v, err := h.client.AppVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, testVersion, v)

	_, err = h.client.AppVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.platform.calls("/version.txt"))
}
