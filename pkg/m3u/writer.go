// Package m3u writes extended M3U playlists.
package m3u

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Entry is one channel in a playlist.
type Entry struct {
	// Duration is the track duration in seconds; 0 writes -1 for live streams.
	Duration int

	// TvgID links the entry to a guide channel.
	TvgID string

	TvgName    string
	TvgLogo    string
	GroupTitle string

	// ChannelNumber is written as tvg-chno when positive.
	ChannelNumber int

	Title string
	URL   string

	// Extra holds additional attributes, written in key order.
	Extra map[string]string
}

// Writer provides streaming M3U playlist writing.
type Writer struct {
	w             io.Writer
	guideURL      string
	headerWritten bool
}

// NewWriter creates a new M3U writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetGuideURL adds a url-tvg attribute pointing players at an XMLTV guide.
// It must be called before the header is written.
func (w *Writer) SetGuideURL(u string) {
	w.guideURL = u
}

// WriteHeader writes the M3U header.
// This is automatically called by WriteEntry if not already written.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}

	header := "#EXTM3U"
	if w.guideURL != "" {
		header += fmt.Sprintf(` url-tvg="%s"`, escapeQuotes(w.guideURL))
	}
	if _, err := fmt.Fprintln(w.w, header); err != nil {
		return fmt.Errorf("writing M3U header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteEntry writes a single channel entry to the M3U playlist.
func (w *Writer) WriteEntry(entry *Entry) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}

	var attrs []string
	add := func(key, value string) {
		if value != "" {
			attrs = append(attrs, fmt.Sprintf(`%s="%s"`, key, escapeQuotes(value)))
		}
	}

	add("tvg-id", entry.TvgID)
	add("tvg-name", entry.TvgName)
	add("tvg-logo", entry.TvgLogo)
	add("group-title", entry.GroupTitle)
	if entry.ChannelNumber > 0 {
		add("tvg-chno", fmt.Sprint(entry.ChannelNumber))
	}

	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, entry.Extra[k])
	}

	duration := entry.Duration
	if duration == 0 {
		duration = -1
	}

	extinf := fmt.Sprintf("#EXTINF:%d", duration)
	if len(attrs) > 0 {
		extinf += " " + strings.Join(attrs, " ")
	}
	extinf += "," + entry.Title

	if _, err := fmt.Fprintln(w.w, extinf); err != nil {
		return fmt.Errorf("writing EXTINF: %w", err)
	}
	if _, err := fmt.Fprintln(w.w, entry.URL); err != nil {
		return fmt.Errorf("writing URL: %w", err)
	}
	return nil
}

// escapeQuotes escapes double quotes in attribute values.
func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
