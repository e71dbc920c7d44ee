package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/connectr/internal/connect"
	"github.com/jmylchreest/connectr/internal/scheduler"
)

// APIHandler serves the JSON view of the session.
type APIHandler struct {
	session   Session
	keepalive func() scheduler.Stats
	upstream  func() string
	logger    *slog.Logger
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(session Session) *APIHandler {
	return &APIHandler{
		session: session,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *APIHandler) WithLogger(logger *slog.Logger) *APIHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithKeepalive includes keepalive counters in the status response.
func (h *APIHandler) WithKeepalive(stats func() scheduler.Stats) *APIHandler {
	h.keepalive = stats
	return h
}

// WithUpstream includes the platform circuit breaker state in the status
// response.
func (h *APIHandler) WithUpstream(state func() string) *APIHandler {
	h.upstream = state
	return h
}

// Register registers the API routes.
func (h *APIHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listChannels",
		Method:      "GET",
		Path:        "/api/channels",
		Summary:     "List channels",
		Description: "Returns live channels in display order",
		Tags:        []string{"Channels"},
	}, h.ListChannels)

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/status",
		Summary:     "Get session status",
		Description: "Returns login state and token expiry without contacting the platform",
		Tags:        []string{"Session"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getLicense",
		Method:      "GET",
		Path:        "/api/license/{id}",
		Summary:     "Get license request",
		Description: "Returns the Widevine license URL and authorization headers for a channel",
		Tags:        []string{"Channels"},
	}, h.GetLicense)
}

// ChannelResponse is a channel in API responses.
type ChannelResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number int64  `json:"number"`
	Logo   string `json:"logo,omitempty"`
}

// ListChannelsInput is the input for listing channels.
type ListChannelsInput struct{}

// ListChannelsOutput is the output for listing channels.
type ListChannelsOutput struct {
	Body struct {
		Channels []ChannelResponse `json:"channels"`
		Count    int               `json:"count"`
	}
}

// ListChannels returns the channel list.
func (h *APIHandler) ListChannels(ctx context.Context, input *ListChannelsInput) (*ListChannelsOutput, error) {
	channels, err := h.session.Channels(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "listing channels failed", slog.Any("error", err))
		return nil, apiError(err)
	}

	out := &ListChannelsOutput{}
	out.Body.Channels = make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		out.Body.Channels = append(out.Body.Channels, ChannelResponse{
			ID:     ch.ID.Int(),
			Name:   ch.Name,
			Number: ch.LocalizeNumber.Int(),
			Logo:   ch.Logo,
		})
	}
	out.Body.Count = len(out.Body.Channels)
	return out, nil
}

// GetStatusInput is the input for the status endpoint.
type GetStatusInput struct{}

// GetStatusOutput is the output for the status endpoint.
type GetStatusOutput struct {
	Body struct {
		Session   *connect.Status  `json:"session"`
		Keepalive *scheduler.Stats `json:"keepalive,omitempty"`
		Upstream  string           `json:"upstream,omitempty" doc:"Circuit breaker state for platform calls"`
	}
}

// GetStatus returns the session status.
func (h *APIHandler) GetStatus(ctx context.Context, input *GetStatusInput) (*GetStatusOutput, error) {
	st, err := h.session.Status(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "reading status failed", slog.Any("error", err))
		return nil, huma.Error500InternalServerError("reading session status")
	}

	out := &GetStatusOutput{}
	out.Body.Session = st
	if h.keepalive != nil {
		stats := h.keepalive()
		out.Body.Keepalive = &stats
	}
	if h.upstream != nil {
		out.Body.Upstream = h.upstream()
	}
	return out, nil
}

// GetLicenseInput is the input for the license endpoint.
type GetLicenseInput struct {
	ID int64 `path:"id" minimum:"1" doc:"Channel ID"`
}

// GetLicenseOutput is the output for the license endpoint.
type GetLicenseOutput struct {
	Body struct {
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	}
}

// GetLicense returns the license request for a channel.
func (h *APIHandler) GetLicense(ctx context.Context, input *GetLicenseInput) (*GetLicenseOutput, error) {
	licenseURL, headers, err := h.session.LicenseRequest(ctx, input.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "building license request failed",
			slog.Int64("channel_id", input.ID),
			slog.Any("error", err))
		return nil, apiError(err)
	}

	out := &GetLicenseOutput{}
	out.Body.URL = licenseURL
	out.Body.Headers = make(map[string]string, len(headers))
	for k := range headers {
		out.Body.Headers[k] = headers.Get(k)
	}
	return out, nil
}
