// Package webvtt assembles a WebVTT text track into one output file,
// grounded on
// original_source/packager/media/formats/webvtt/{webvtt_muxer,webvtt_file_buffer}.cc.
package webvtt

import (
	"fmt"
	"strings"

	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/status"
)

const tsTimescale = 90000

// Options extends muxer.Options with the knobs specific to WebVTT output.
type Options struct {
	muxer.Options
	// TransportStreamTimestampOffsetMS, when non-zero, emits the
	// X-TIMESTAMP-MAP header HLS requires to align a standalone WebVTT
	// segment with its sibling TS media segments (RFC 8216 §3.5).
	TransportStreamTimestampOffsetMS int32
}

// Muxer buffers an entire text stream's cues in memory and flushes them to
// one file on Flush, matching WebVttMuxer's whole-file WriteToFile step
// (spec.md §4.6, scenario S6).
type Muxer struct {
	opts        Options
	streamIndex int
	info        *media.StreamInfo
	buf         strings.Builder
	sampleCount int
}

// New returns a Muxer for one WebVTT text stream.
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
	m.resetBuffer()
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaStart(m.opts.Options, info, info.Timescale, muxer.WebVTT)
	}
	return nil
}

func (m *Muxer) resetBuffer() {
	m.buf.Reset()
	m.sampleCount = 0
	m.buf.WriteString("WEBVTT\n")
	if m.opts.TransportStreamTimestampOffsetMS > 0 {
		mpegtsTicks := int64(m.opts.TransportStreamTimestampOffsetMS) * tsTimescale / 1000
		fmt.Fprintf(&m.buf, "X-TIMESTAMP-MAP=LOCAL:00:00:00.000,MPEGTS:%d\n", mpegtsTicks)
	}
	m.buf.WriteString("\n")
}

func (m *Muxer) onTextSample(s *media.TextSample) error {
	m.sampleCount++
	m.buf.WriteString(formatTimestamp(s.EffectiveStartTime(), m.info.Timescale))
	m.buf.WriteString(" --> ")
	m.buf.WriteString(formatTimestamp(s.EndTime, m.info.Timescale))
	if s.Settings != "" {
		m.buf.WriteString(" ")
		m.buf.WriteString(s.Settings)
	}
	m.buf.WriteString("\n")
	m.buf.Write(s.Payload)
	m.buf.WriteString("\n\n")
	return nil
}

// formatTimestamp renders ticks (at timescale) as HH:MM:SS.mmm, the WebVTT
// cue-timing format (webvtt_utils.cc's MsToWebVttTimestamp).
func formatTimestamp(ticks int64, timescale uint32) string {
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
	name := muxer.FormatName(m.opts.SegmentTemplate, "", 1, 0, 0)
	sink, err := filesink.Open(name, "w")
	if err != nil {
		return status.New(status.FileFailure, "webvtt.Flush", err)
	}
	body := m.buf.String()
	n, err := sink.Write([]byte(body))
	if err != nil {
		sink.Close()
		return status.New(status.FileFailure, "webvtt.Flush", err)
	}
	if err := sink.Close(); err != nil {
		return status.New(status.FileFailure, "webvtt.Flush", err)
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
