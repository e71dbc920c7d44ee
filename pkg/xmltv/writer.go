// Package xmltv writes XMLTV programme guides.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// TimeLayout is the XMLTV date format.
const TimeLayout = "20060102150405 -0700"

// Channel is a guide channel definition.
type Channel struct {
	ID          string
	DisplayName string
	Icon        string
	URL         string
}

// Programme is a single guide entry.
type Programme struct {
	Start       time.Time
	Stop        time.Time
	Channel     string
	Title       string
	SubTitle    string
	Description string
	Category    string
	Icon        string
	Language    string
}

// Writer streams an XMLTV document. Channels must be written before
// programmes, and Close must be called to finish the document.
type Writer struct {
	enc           *xml.Encoder
	generator     string
	headerWritten bool
	channelsDone  bool
	closed        bool
}

// NewWriter creates a new XMLTV writer. generator names the producing
// program in the tv element.
func NewWriter(w io.Writer, generator string) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{enc: enc, generator: generator}
}

var tvStart = xml.StartElement{Name: xml.Name{Local: "tv"}}

// WriteHeader writes the XML declaration and opens the tv element.
func (w *Writer) WriteHeader() error {
	if w.headerWritten {
		return nil
	}
	if err := w.enc.EncodeToken(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}); err != nil {
		return fmt.Errorf("writing XML declaration: %w", err)
	}

	start := tvStart
	if w.generator != "" {
		start.Attr = []xml.Attr{{Name: xml.Name{Local: "generator-info-name"}, Value: w.generator}}
	}
	if err := w.enc.EncodeToken(start); err != nil {
		return fmt.Errorf("writing tv element: %w", err)
	}
	w.headerWritten = true
	return nil
}

type xmlText struct {
	Lang  string `xml:"lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlChannel struct {
	XMLName     xml.Name `xml:"channel"`
	ID          string   `xml:"id,attr"`
	DisplayName string   `xml:"display-name"`
	Icon        *xmlIcon `xml:"icon,omitempty"`
	URL         string   `xml:"url,omitempty"`
}

type xmlProgramme struct {
	XMLName  xml.Name `xml:"programme"`
	Start    string   `xml:"start,attr"`
	Stop     string   `xml:"stop,attr,omitempty"`
	Channel  string   `xml:"channel,attr"`
	Title    xmlText  `xml:"title"`
	SubTitle *xmlText `xml:"sub-title,omitempty"`
	Desc     *xmlText `xml:"desc,omitempty"`
	Category *xmlText `xml:"category,omitempty"`
	Icon     *xmlIcon `xml:"icon,omitempty"`
}

// WriteChannel writes a channel definition.
func (w *Writer) WriteChannel(ch *Channel) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if w.channelsDone {
		return fmt.Errorf("channels must be written before programmes")
	}

	out := xmlChannel{ID: ch.ID, DisplayName: ch.DisplayName, URL: ch.URL}
	if ch.Icon != "" {
		out.Icon = &xmlIcon{Src: ch.Icon}
	}
	if err := w.enc.Encode(out); err != nil {
		return fmt.Errorf("writing channel %s: %w", ch.ID, err)
	}
	return nil
}

// WriteProgramme writes a programme entry.
func (w *Writer) WriteProgramme(prog *Programme) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	w.channelsDone = true

	lang := prog.Language
	if lang == "" {
		lang = "en"
	}
	text := func(s string) *xmlText {
		if s == "" {
			return nil
		}
		return &xmlText{Lang: lang, Value: s}
	}

	out := xmlProgramme{
		Start:    FormatTime(prog.Start),
		Channel:  prog.Channel,
		Title:    xmlText{Lang: lang, Value: prog.Title},
		SubTitle: text(prog.SubTitle),
		Desc:     text(prog.Description),
		Category: text(prog.Category),
	}
	if !prog.Stop.IsZero() {
		out.Stop = FormatTime(prog.Stop)
	}
	if prog.Icon != "" {
		out.Icon = &xmlIcon{Src: prog.Icon}
	}

	if err := w.enc.Encode(out); err != nil {
		return fmt.Errorf("writing programme on %s: %w", prog.Channel, err)
	}
	return nil
}

// Close closes the tv element and flushes the document.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.enc.EncodeToken(tvStart.End()); err != nil {
		return fmt.Errorf("closing tv element: %w", err)
	}
	w.closed = true
	return w.enc.Close()
}

// FormatTime formats t in XMLTV format in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
