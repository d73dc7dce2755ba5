// Package muxer defines the common surface every container muxer
// implements (spec.md §4.5/§4.6) and the listener protocol that feeds
// segment metadata to DASH/HLS manifest generators (spec.md §4.7).
package muxer

import (
	"strings"

	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
)

// Format selects the container a Muxer assembles.
type Format int

const (
	MP4 Format = iota
	TS
	WebM
	WebVTT
	TTML
)

// Options are the knobs shared across every container, named the way
// shaka-packager's MuxerOptions groups them.
type Options struct {
	Format                    Format
	SegmentTemplate           string // may contain $Number$, $Time$, $RepresentationID$, $Bandwidth$
	InitSegmentTemplate       string
	GenerateSidxInMediaSegments bool
	ChunkedLLDash             bool
	IncludePsshInStream       bool
	PatInternalMS             int
	Listener                  Listener
}

// Muxer is implemented by every container-specific muxer. Every Muxer is
// also a handler.Handler, since it sits at the end of one stream's handler
// chain and consumes records instead of forwarding them.
type Muxer interface {
	handler.Handler
}

// Listener receives notifications from a muxer as segments are produced,
// for a downstream DASH/HLS manifest generator to consume (spec.md §4.7).
// Manifest XML/JSON serialization itself is out of this module's scope;
// only the event surface it is fed is specified here.
type Listener interface {
	OnMediaStart(opts Options, info *media.StreamInfo, timescale uint32, containerType Format) error
	OnSampleDurationReady(duration int64) error
	OnNewSegment(fileName string, startTime int64, duration int64, size int64, segmentNumber uint32) error
	OnCompletedSegment(duration int64, size int64) error
	OnCueEvent(timestamp float64, cueData string) error
	OnKeyFrame(timestamp int64, offsetInSegment int64, size int64) error
	OnEncryptionStart(keyID [16]byte, iv []byte, pssh []media.ProtectionSystemInfo) error
	OnEncryptionUpdate(keyID [16]byte, iv []byte, pssh []media.ProtectionSystemInfo) error
	OnMediaEnd(ranges []ByteRange, duration int64) error
}

// ByteRange is one [start, end) span of a finished file, used by
// OnMediaEnd for single-file (byte-range-addressed) output.
type ByteRange struct {
	Start int64
	End   int64
}

// MultiCodecListener splits a StreamInfo's CodecString on ';' (the
// Dolby-Vision dual-track convention) and fans every event out to one
// child Listener per codec string, each seeing a StreamInfo clone with its
// own narrowed CodecString (spec.md §4.7).
type MultiCodecListener struct {
	children []Listener
	codecs   []string
}

// NewMultiCodecListener builds one child listener per ';'-separated codec
// string in codecString, using newChild to construct each one.
func NewMultiCodecListener(codecString string, newChild func(codec string) Listener) *MultiCodecListener {
	codecs := strings.Split(codecString, ";")
	m := &MultiCodecListener{codecs: codecs}
	for _, c := range codecs {
		m.children = append(m.children, newChild(strings.TrimSpace(c)))
	}
	return m
}

func (m *MultiCodecListener) forEach(fn func(Listener) error) error {
	for _, c := range m.children {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiCodecListener) OnMediaStart(opts Options, info *media.StreamInfo, timescale uint32, containerType Format) error {
	for i, c := range m.children {
		clone := info.Clone()
		clone.CodecString = m.codecs[i]
		if err := c.OnMediaStart(opts, clone, timescale, containerType); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiCodecListener) OnSampleDurationReady(d int64) error {
	return m.forEach(func(l Listener) error { return l.OnSampleDurationReady(d) })
}

func (m *MultiCodecListener) OnNewSegment(name string, start, dur, size int64, num uint32) error {
	return m.forEach(func(l Listener) error { return l.OnNewSegment(name, start, dur, size, num) })
}

func (m *MultiCodecListener) OnCompletedSegment(dur, size int64) error {
	return m.forEach(func(l Listener) error { return l.OnCompletedSegment(dur, size) })
}

func (m *MultiCodecListener) OnCueEvent(ts float64, cueData string) error {
	return m.forEach(func(l Listener) error { return l.OnCueEvent(ts, cueData) })
}

func (m *MultiCodecListener) OnKeyFrame(ts, offset, size int64) error {
	return m.forEach(func(l Listener) error { return l.OnKeyFrame(ts, offset, size) })
}

func (m *MultiCodecListener) OnEncryptionStart(keyID [16]byte, iv []byte, pssh []media.ProtectionSystemInfo) error {
	return m.forEach(func(l Listener) error { return l.OnEncryptionStart(keyID, iv, pssh) })
}

func (m *MultiCodecListener) OnEncryptionUpdate(keyID [16]byte, iv []byte, pssh []media.ProtectionSystemInfo) error {
	return m.forEach(func(l Listener) error { return l.OnEncryptionUpdate(keyID, iv, pssh) })
}

func (m *MultiCodecListener) OnMediaEnd(ranges []ByteRange, duration int64) error {
	return m.forEach(func(l Listener) error { return l.OnMediaEnd(ranges, duration) })
}

// NopListener implements Listener with no-ops, useful as an embeddable
// base for listeners that only care about a subset of events.
type NopListener struct{}

func (NopListener) OnMediaStart(Options, *media.StreamInfo, uint32, Format) error { return nil }
func (NopListener) OnSampleDurationReady(int64) error                            { return nil }
func (NopListener) OnNewSegment(string, int64, int64, int64, uint32) error       { return nil }
func (NopListener) OnCompletedSegment(int64, int64) error                        { return nil }
func (NopListener) OnCueEvent(float64, string) error                            { return nil }
func (NopListener) OnKeyFrame(int64, int64, int64) error                        { return nil }
func (NopListener) OnEncryptionStart([16]byte, []byte, []media.ProtectionSystemInfo) error { return nil }
func (NopListener) OnEncryptionUpdate([16]byte, []byte, []media.ProtectionSystemInfo) error { return nil }
func (NopListener) OnMediaEnd([]ByteRange, int64) error                         { return nil }

// FormatName resolves a segment template's variables for one segment.
// Supported variables: $RepresentationID$, $Number$ (optionally
// zero-padded via $Number%0Nd$), $Time$, $Bandwidth$ (spec.md §6.4).
func FormatName(template, representationID string, number uint32, timestamp int64, bandwidth uint64) string {
	out := template
	out = strings.ReplaceAll(out, "$RepresentationID$", representationID)
	out = strings.ReplaceAll(out, "$Time$", itoa64(timestamp))
	out = strings.ReplaceAll(out, "$Bandwidth$", itoa64(int64(bandwidth)))
	out = expandNumber(out, number)
	return out
}

func itoa64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// expandNumber handles both the bare "$Number$" form and the zero-padded
// "$Number%0Nd$" form.
func expandNumber(template string, number uint32) string {
	const plain = "$Number$"
	if !strings.Contains(template, "$Number") {
		return template
	}
	out := strings.ReplaceAll(template, plain, itoa64(int64(number)))
	for strings.Contains(out, "$Number%0") {
		start := strings.Index(out, "$Number%0")
		rest := out[start+len("$Number%0"):]
		end := strings.Index(rest, "d$")
		if end < 0 {
			break
		}
		width := 0
		for _, c := range rest[:end] {
			if c < '0' || c > '9' {
				break
			}
			width = width*10 + int(c-'0')
		}
		padded := itoa64(int64(number))
		for len(padded) < width {
			padded = "0" + padded
		}
		out = out[:start] + padded + rest[end+2:]
	}
	return out
}
