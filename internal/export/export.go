// Package export renders channel lists and guide data as M3U playlists and
// XMLTV guides.
package export

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/jmylchreest/connectr/internal/version"
	"github.com/jmylchreest/connectr/pkg/alphanet"
	"github.com/jmylchreest/connectr/pkg/m3u"
	"github.com/jmylchreest/connectr/pkg/xmltv"
)

// PlaylistOptions controls playlist rendering.
type PlaylistOptions struct {
	// BaseURL is where /play/{id} is served. Empty writes bare channel ids
	// as URLs, which suits a host that resolves them itself.
	BaseURL string
	// GuideURL is advertised as url-tvg when set.
	GuideURL string
	// Group is written as group-title when set.
	Group string
}

// StreamURL returns the playback URL for channelID under base.
func StreamURL(base string, channelID int64) string {
	id := strconv.FormatInt(channelID, 10)
	if base == "" {
		return id
	}
	return strings.TrimSuffix(base, "/") + "/play/" + id
}

// WritePlaylist writes channels as an M3U playlist, in the given order.
func WritePlaylist(w io.Writer, channels []alphanet.Channel, opts PlaylistOptions) error {
	pw := m3u.NewWriter(w)
	pw.SetGuideURL(opts.GuideURL)

	if err := pw.WriteHeader(); err != nil {
		return err
	}
	for _, ch := range channels {
		id := ch.ID.Int()
		entry := &m3u.Entry{
			TvgID:         ch.ID.String(),
			TvgName:       ch.Name,
			TvgLogo:       ch.Logo,
			GroupTitle:    opts.Group,
			ChannelNumber: int(ch.LocalizeNumber.Int()),
			Title:         ch.Name,
			URL:           StreamURL(opts.BaseURL, id),
		}
		if err := pw.WriteEntry(entry); err != nil {
			return fmt.Errorf("writing channel %d: %w", id, err)
		}
	}
	return nil
}

// WriteGuide writes channels and their programmes as XMLTV. Rows for
// channels not in the list are skipped; programmes are ordered by channel
// list position, then start time.
func WriteGuide(w io.Writer, channels []alphanet.Channel, rows []alphanet.EPGRow, lang string) error {
	gw := xmltv.NewWriter(w, version.ApplicationName+"/"+version.Version)

	position := make(map[int64]int, len(channels))
	for i, ch := range channels {
		position[ch.ID.Int()] = i
		if err := gw.WriteChannel(&xmltv.Channel{
			ID:          ch.ID.String(),
			DisplayName: ch.Name,
			Icon:        ch.Logo,
		}); err != nil {
			return err
		}
	}

	kept := make([]alphanet.EPGRow, 0, len(rows))
	for _, r := range rows {
		if _, ok := position[r.ChannelID()]; ok && !r.Start().IsZero() {
			kept = append(kept, r)
		}
	}
	slices.SortStableFunc(kept, func(a, b alphanet.EPGRow) int {
		if c := cmp.Compare(position[a.ChannelID()], position[b.ChannelID()]); c != 0 {
			return c
		}
		return a.Start().Compare(b.Start())
	})

	for _, r := range kept {
		if err := gw.WriteProgramme(&xmltv.Programme{
			Start:       r.Start(),
			Stop:        r.End(),
			Channel:     strconv.FormatInt(r.ChannelID(), 10),
			Title:       r.Title(),
			Description: r.Description(),
			Language:    lang,
		}); err != nil {
			return err
		}
	}
	return gw.Close()
}

// ChannelIDs returns the ids of channels in order.
func ChannelIDs(channels []alphanet.Channel) []int64 {
	ids := make([]int64, len(channels))
	for i, ch := range channels {
		ids[i] = ch.ID.Int()
	}
	return ids
}
