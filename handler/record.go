// Package handler implements the staged pipeline protocol (spec.md §4.1):
// every stage exposes Initialize/Process/Flush, receives a tagged Record,
// and forwards zero or more records downstream over statically declared
// output ports.
package handler

import "github.com/go-webdl/packager/media"

// Kind is the tag of a Record's sum type.
type Kind int

const (
	KindStreamInfo Kind = iota
	KindMediaSample
	KindTextSample
	KindSegmentInfo
	KindCueEvent
	KindScte35Event
)

// Record is the tagged union every stage's Process method receives.
// StreamIndex is threaded through every record so fan-in stages (the
// replicator's downstream muxers, the cue-sync queue's callers) can tell
// producers apart.
type Record struct {
	Kind        Kind
	StreamIndex int

	StreamInfo  *media.StreamInfo
	MediaSample *media.MediaSample
	TextSample  *media.TextSample
	SegmentInfo *media.SegmentInfo
	CueEvent    *media.CueEvent
	Scte35Event *media.Scte35Event
}

func StreamInfoRecord(streamIndex int, si *media.StreamInfo) Record {
	return Record{Kind: KindStreamInfo, StreamIndex: streamIndex, StreamInfo: si}
}

func MediaSampleRecord(streamIndex int, s *media.MediaSample) Record {
	return Record{Kind: KindMediaSample, StreamIndex: streamIndex, MediaSample: s}
}

func TextSampleRecord(streamIndex int, s *media.TextSample) Record {
	return Record{Kind: KindTextSample, StreamIndex: streamIndex, TextSample: s}
}

func SegmentInfoRecord(streamIndex int, s *media.SegmentInfo) Record {
	return Record{Kind: KindSegmentInfo, StreamIndex: streamIndex, SegmentInfo: s}
}

func CueEventRecord(streamIndex int, c *media.CueEvent) Record {
	return Record{Kind: KindCueEvent, StreamIndex: streamIndex, CueEvent: c}
}

func Scte35EventRecord(streamIndex int, e *media.Scte35Event) Record {
	return Record{Kind: KindScte35Event, StreamIndex: streamIndex, Scte35Event: e}
}

// InputPort identifies one of a multi-input stage's input ports (e.g. the
// replicator's single input, or a future multiplexing stage with several).
type InputPort int

// Handler is implemented by every pipeline stage.
type Handler interface {
	// Initialize is called once, after downstream ports are connected, so
	// the pipeline stays a static DAG (spec.md §4.1).
	Initialize() error
	// Process consumes one record, forwarding zero or more records
	// downstream. A non-OK error short-circuits downstream calls in the
	// same pipeline.
	Process(rec Record) error
	// Flush informs the stage that no more records will arrive on port.
	Flush(port InputPort) error
}
