package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/connectr/internal/export"
)

// OutputConfig controls playlist and guide rendering.
type OutputConfig struct {
	// PublicURL is the externally reachable base of this server. When
	// empty it is derived from each request.
	PublicURL string
	// EPGHours is the default guide window.
	EPGHours int
	// Language is the xml:lang written on guide text.
	Language string
}

// OutputHandler serves the M3U playlist and XMLTV guide.
type OutputHandler struct {
	session Session
	config  OutputConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewOutputHandler creates a new output handler.
func NewOutputHandler(session Session, config OutputConfig) *OutputHandler {
	if config.EPGHours <= 0 {
		config.EPGHours = 24
	}
	return &OutputHandler{
		session: session,
		config:  config,
		now:     time.Now,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *OutputHandler) WithLogger(logger *slog.Logger) *OutputHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock replaces the time source used for guide windows.
func (h *OutputHandler) WithClock(now func() time.Time) *OutputHandler {
	h.now = now
	return h
}

// Register registers the output endpoints with the API.
func (h *OutputHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getPlaylist",
		Method:      "GET",
		Path:        "/playlist.m3u",
		Summary:     "Get M3U playlist",
		Description: "Returns the channel list as an M3U playlist whose entries resolve through /play/{id}",
		Tags:        []string{"Output"},
	}, h.GetPlaylist)

	huma.Register(api, huma.Operation{
		OperationID: "getGuide",
		Method:      "GET",
		Path:        "/epg.xml",
		Summary:     "Get XMLTV guide",
		Description: "Returns programmes for every channel starting within the requested window",
		Tags:        []string{"Output"},
	}, h.GetGuide)
}

// GetPlaylistInput is the input for the playlist endpoint.
type GetPlaylistInput struct {
	RequestBase
	Group string `query:"group" doc:"group-title written on every entry"`
}

// GetPlaylistOutput is the output for the playlist endpoint.
type GetPlaylistOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetPlaylist renders the channel list.
func (h *OutputHandler) GetPlaylist(ctx context.Context, input *GetPlaylistInput) (*GetPlaylistOutput, error) {
	channels, err := h.session.Channels(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "loading channels for playlist failed", slog.Any("error", err))
		return nil, apiError(err)
	}

	base := h.baseURL(input.base)
	var buf bytes.Buffer
	if err := export.WritePlaylist(&buf, channels, export.PlaylistOptions{
		BaseURL:  base,
		GuideURL: base + "/epg.xml",
		Group:    input.Group,
	}); err != nil {
		return nil, huma.Error500InternalServerError("rendering playlist", err)
	}

	return &GetPlaylistOutput{
		ContentType: "audio/x-mpegurl",
		Body:        buf.Bytes(),
	}, nil
}

// GetGuideInput is the input for the guide endpoint.
type GetGuideInput struct {
	Hours int `query:"hours" minimum:"1" maximum:"168" doc:"Window length in hours, defaults to the configured epg_hours"`
}

// GetGuideOutput is the output for the guide endpoint.
type GetGuideOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetGuide renders programmes starting between the top of the current hour
// and the end of the window.
func (h *OutputHandler) GetGuide(ctx context.Context, input *GetGuideInput) (*GetGuideOutput, error) {
	hours := input.Hours
	if hours <= 0 {
		hours = h.config.EPGHours
	}

	channels, err := h.session.Channels(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "loading channels for guide failed", slog.Any("error", err))
		return nil, apiError(err)
	}

	start := h.now().UTC().Truncate(time.Hour)
	end := start.Add(time.Duration(hours) * time.Hour)
	rows, err := h.session.EPG(ctx, export.ChannelIDs(channels), start, end)
	if err != nil {
		h.logger.WarnContext(ctx, "loading guide failed", slog.Any("error", err))
		return nil, apiError(err)
	}

	var buf bytes.Buffer
	if err := export.WriteGuide(&buf, channels, rows, h.config.Language); err != nil {
		return nil, huma.Error500InternalServerError("rendering guide", err)
	}

	return &GetGuideOutput{
		ContentType: "application/xml; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}

func (h *OutputHandler) baseURL(fromRequest string) string {
	if h.config.PublicURL != "" {
		return strings.TrimSuffix(h.config.PublicURL, "/")
	}
	return fromRequest
}
