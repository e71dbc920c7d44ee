// Package handlers provides the HTTP handlers served by connectr.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/connectr/internal/connect"
	"github.com/jmylchreest/connectr/pkg/alphanet"
)

// Session is the subset of the platform client the handlers need. It must
// be safe for concurrent use; see connect.Shared.
type Session interface {
	Channels(ctx context.Context) ([]alphanet.Channel, error)
	EPG(ctx context.Context, ids []int64, start, end time.Time) ([]alphanet.EPGRow, error)
	Play(ctx context.Context, channelID int64) (string, error)
	LicenseRequest(ctx context.Context, channelID int64) (string, http.Header, error)
	Status(ctx context.Context) (*connect.Status, error)
}

var _ Session = (*connect.Shared)(nil)

// apiError maps client errors onto HTTP responses. Geo-blocking keeps its
// 451, settings failures are 503 and other platform failures are 502.
func apiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return huma.Error504GatewayTimeout("platform request did not complete", err)
	}

	var apiErr *connect.APIError
	hasAPIErr := errors.As(err, &apiErr)
	if hasAPIErr && apiErr.Status == http.StatusUnavailableForLegalReasons {
		return huma.NewError(http.StatusUnavailableForLegalReasons, apiErr.Message)
	}

	var cfgErr *connect.ConfigFetchError
	if errors.As(err, &cfgErr) {
		return huma.Error503ServiceUnavailable(cfgErr.Message)
	}
	if hasAPIErr {
		return huma.Error502BadGateway(apiErr.Message)
	}
	return huma.Error500InternalServerError("internal error")
}

// RequestBase captures the scheme and host a request arrived on, honouring
// X-Forwarded-Proto from a reverse proxy. Embed it in an input struct.
type RequestBase struct {
	base string
}

// Resolve implements huma.Resolver.
func (b *RequestBase) Resolve(ctx huma.Context) []error {
	scheme := "http"
	if ctx.TLS() != nil {
		scheme = "https"
	}
	if proto := ctx.Header("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	b.base = scheme + "://" + ctx.Host()
	return nil
}
