// Package ttml assembles a timed-text stream into one TTML document,
// grounded on
// original_source/packager/media/formats/ttml/ttml_muxer.cc's
// InitializeStream/AddTextSampleInternal/WriteToFile structure. No XML
// builder is wired anywhere else in the example pack, so the document is
// built with the standard library's encoding/xml (see DESIGN.md).
package ttml

import (
	"encoding/xml"
	"fmt"

	"golang.org/x/text/language"

	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/status"
)

type ttDocument struct {
	XMLName xml.Name `xml:"tt"`
	Xmlns   string   `xml:"xmlns,attr"`
	Lang    string   `xml:"xml:lang,attr"`
	Head    ttHead   `xml:"head"`
	Body    ttBody   `xml:"body"`
}

type ttHead struct {
	Styling ttStyling `xml:"styling"`
	Layout  ttLayout  `xml:"layout"`
}

type ttStyling struct{}
type ttLayout struct{}

type ttBody struct {
	Div ttDiv `xml:"div"`
}

type ttDiv struct {
	Paragraphs []ttParagraph `xml:"p"`
}

type ttParagraph struct {
	Begin   string `xml:"begin,attr"`
	End     string `xml:"end,attr"`
	Text    string `xml:",chardata"`
}

// Muxer buffers a text stream's cues and renders them into one TTML
// document on Flush, matching TtmlMuxer's whole-document WriteToFile step
// (spec.md §4.6).
type Muxer struct {
	opts        Options
	streamIndex int
	info        *media.StreamInfo
	doc         ttDocument
}

// Options extends muxer.Options with TTML-specific knobs.
type Options struct {
	muxer.Options
}

// New returns a Muxer for one TTML text stream.
func New(streamIndex int, opts Options) *Muxer {
	return &Muxer{opts: opts, streamIndex: streamIndex}
}

func (m *Muxer) Initialize() error { return nil }

func (m *Muxer) Process(rec handler.Record) error {
	switch rec.Kind {
	case handler.KindStreamInfo:
		return m.onStreamInfo(rec.StreamInfo)
	case handler.KindTextSample:
		return m.onTextSample(rec.TextSample)
	default:
		return nil
	}
}

func (m *Muxer) onStreamInfo(info *media.StreamInfo) error {
	m.info = info
	lang := info.Language
	if lang == (language.Tag{}) {
		lang = language.Und
	}
	m.doc = ttDocument{
		Xmlns: "http://www.w3.org/ns/ttml",
		Lang:  lang.String(),
	}
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaStart(m.opts.Options, info, info.Timescale, muxer.TTML)
	}
	return nil
}

func (m *Muxer) onTextSample(s *media.TextSample) error {
	m.doc.Body.Div.Paragraphs = append(m.doc.Body.Div.Paragraphs, ttParagraph{
		Begin: formatClockTime(s.EffectiveStartTime(), m.info.Timescale),
		End:   formatClockTime(s.EndTime, m.info.Timescale),
		Text:  string(s.Payload),
	})
	return nil
}

// formatClockTime renders ticks (at timescale) as TTML clock-time
// (HH:MM:SS.mmm), the same shape webvtt's cue timestamps use.
func formatClockTime(ticks int64, timescale uint32) string {
	if timescale == 0 {
		timescale = 1
	}
	totalMS := ticks * 1000 / int64(timescale)
	if totalMS < 0 {
		totalMS = 0
	}
	ms := totalMS % 1000
	totalSec := totalMS / 1000
	sec := totalSec % 60
	totalMin := totalSec / 60
	min := totalMin % 60
	hr := totalMin / 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hr, min, sec, ms)
}

func (m *Muxer) Flush(handler.InputPort) error {
	data, err := xml.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return status.New(status.InternalError, "ttml.Flush", err)
	}
	data = append([]byte(xml.Header), data...)

	name := muxer.FormatName(m.opts.SegmentTemplate, "", 1, 0, 0)
	sink, err := filesink.Open(name, "w")
	if err != nil {
		return status.New(status.FileFailure, "ttml.Flush", err)
	}
	n, err := sink.Write(data)
	if err != nil {
		sink.Close()
		return status.New(status.FileFailure, "ttml.Flush", err)
	}
	if err := sink.Close(); err != nil {
		return status.New(status.FileFailure, "ttml.Flush", err)
	}
	if m.opts.Listener != nil {
		if err := m.opts.Listener.OnNewSegment(name, 0, 0, int64(n), 1); err != nil {
			return err
		}
		if err := m.opts.Listener.OnCompletedSegment(0, int64(n)); err != nil {
			return err
		}
		return m.opts.Listener.OnMediaEnd(nil, 0)
	}
	return nil
}
