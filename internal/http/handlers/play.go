package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultResolveTimeout bounds a shared stream resolution.
const DefaultResolveTimeout = time.Minute

// PlayHandler redirects players to freshly resolved stream URLs.
type PlayHandler struct {
	session Session
	group   singleflight.Group
	timeout time.Duration
	logger  *slog.Logger
}

// NewPlayHandler creates a new play handler.
func NewPlayHandler(session Session) *PlayHandler {
	return &PlayHandler{
		session: session,
		timeout: DefaultResolveTimeout,
		logger:  slog.Default(),
	}
}

// WithTimeout bounds each shared resolution. Non-positive values are
// ignored.
func (h *PlayHandler) WithTimeout(d time.Duration) *PlayHandler {
	if d > 0 {
		h.timeout = d
	}
	return h
}

// WithLogger sets the logger for the handler.
func (h *PlayHandler) WithLogger(logger *slog.Logger) *PlayHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Register registers the play endpoint with the API.
func (h *PlayHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "playChannel",
		Method:        "GET",
		Path:          "/play/{id}",
		Summary:       "Play channel",
		Description:   "Resolves the stream URL for a channel on a refreshed session and redirects to it",
		Tags:          []string{"Output"},
		DefaultStatus: http.StatusFound,
	}, h.Play)
}

// PlayInput is the input for the play endpoint.
type PlayInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Channel ID"`
}

// PlayOutput is a redirect to the stream.
type PlayOutput struct {
	Location     string `header:"Location"`
	CacheControl string `header:"Cache-Control"`
}

// Play resolves the stream for a channel. Concurrent requests for the same
// channel share one resolution. The shared call is detached from any single
// request, so a player that disconnects does not fail the others; each
// caller still stops waiting when its own context ends.
func (h *PlayHandler) Play(ctx context.Context, input *PlayInput) (*PlayOutput, error) {
	key := strconv.FormatInt(input.ID, 10)
	ch := h.group.DoChan(key, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()
		return h.session.Play(flightCtx, input.ID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, apiError(ctx.Err())
	}
	if res.Err != nil {
		h.logger.WarnContext(ctx, "resolving stream failed",
			slog.Int64("channel_id", input.ID),
			slog.Any("error", res.Err))
		return nil, apiError(res.Err)
	}

	h.logger.DebugContext(ctx, "stream resolved",
		slog.Int64("channel_id", input.ID),
		slog.Bool("shared", res.Shared))
	return &PlayOutput{
		Location:     res.Val.(string),
		CacheControl: "no-store",
	}, nil
}
