// Package chunker implements the segment/subsegment/chunk boundary engine
// described in spec.md §4.2: it watches the sample stream go by and, on a
// SAP-aligned (or cue-driven) boundary, emits a SegmentInfo record before
// forwarding the sample that starts the next segment.
package chunker

import (
	"github.com/go-webdl/packager/cuequeue"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/internal/pkglog"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/status"
)

// Options configures one stream's Chunker. Durations are expressed in the
// stream's own timescale ticks, matching the samples it will receive.
type Options struct {
	// SegmentDuration is the target duration of a full segment. Required.
	SegmentDuration int64
	// SubsegmentDuration is the target duration of a subsegment inside a
	// segment (sidx-referenced fragment); 0 disables subsegmenting.
	SubsegmentDuration int64
	// ChunkDuration is the LL-DASH chunk target; 0 disables chunked output.
	// Chunks close on duration alone, without requiring a SAP.
	ChunkDuration int64
	// SegmentSAPAligned requires the first sample of every segment to be a
	// SAP (key frame) for video streams. Always treated as satisfied for
	// audio and text streams, which carry no SAP concept.
	SegmentSAPAligned bool
	// SubsegmentSAPAligned is like SegmentSAPAligned for subsegment
	// boundaries. Rejected at construction time if true while
	// SegmentSAPAligned is false (spec.md §4.2: a subsegment boundary is
	// never stricter than its enclosing segment boundary).
	SubsegmentSAPAligned bool
	// FirstSegmentNumber is the number assigned to the first segment;
	// subsequent segments increment by one. Defaults to 1.
	FirstSegmentNumber uint32
	// CueQueue, if non-nil, makes this chunker participate in cross-stream
	// cue-synchronized splicing (spec.md §4.3). Left nil for pipelines with
	// no ad cues, so Process never has to consult a cue queue at all.
	CueQueue *cuequeue.Queue
}

func (o *Options) validate() error {
	if o.SegmentDuration <= 0 {
		return status.New(status.InvalidArgument, "chunker.Options", nil)
	}
	if o.SubsegmentSAPAligned && !o.SegmentSAPAligned {
		return status.Newf(status.InvalidArgument, nil,
			"chunker: subsegment_sap_aligned requires segment_sap_aligned")
	}
	return nil
}

// Chunker is a handler.Handler that watches one stream's samples and emits
// SegmentInfo boundaries on Out ahead of the sample that starts the next
// segment/subsegment/chunk.
type Chunker struct {
	handler.PassThrough
	opts Options

	streamIndex int
	kind        media.Kind
	timescale   uint32
	started     bool

	segStart   int64 // pts of the first sample of the current segment
	subStart   int64 // pts of the first sample of the current subsegment
	chunkStart int64 // pts of the first sample of the current LL-DASH chunk

	segNum  uint32
	lastPTS int64
	lastDur int64

	lastCueCheckSeconds float64
}

// New returns a Chunker forwarding records to out. opts is validated
// eagerly so a misconfigured pipeline fails at wiring time, not mid-stream.
func New(streamIndex int, opts Options, out handler.Port) (*Chunker, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.FirstSegmentNumber == 0 {
		opts.FirstSegmentNumber = 1
	}
	return &Chunker{
		PassThrough: handler.PassThrough{Out: out},
		opts:        opts,
		streamIndex: streamIndex,
		segNum:      opts.FirstSegmentNumber,
	}, nil
}

// Process implements handler.Handler. It never blocks: cue-boundary
// decisions are made from a non-blocking peek at the shared cue queue, so a
// single stream's chunker can never suspend mid-pipeline (spec.md §5).
func (c *Chunker) Process(rec handler.Record) error {
	switch rec.Kind {
	case handler.KindStreamInfo:
		c.kind = rec.StreamInfo.Kind
		c.timescale = rec.StreamInfo.Timescale
		return c.Forward(rec)
	case handler.KindMediaSample:
		return c.processMediaSample(rec)
	case handler.KindTextSample:
		return c.processTextSample(rec)
	default:
		return c.Forward(rec)
	}
}

func (c *Chunker) ticksToSeconds(ticks int64) float64 {
	if c.timescale == 0 {
		return 0
	}
	return float64(ticks) / float64(c.timescale)
}

func (c *Chunker) begin(pts int64) {
	c.started = true
	c.segStart = pts
	c.subStart = pts
	c.chunkStart = pts
}

func (c *Chunker) processMediaSample(rec handler.Record) error {
	s := rec.MediaSample
	eligible := s.IsKeyFrame || c.kind != media.Video

	if !c.started {
		if c.opts.SegmentSAPAligned && c.kind == media.Video && !s.IsKeyFrame {
			return status.Newf(status.ChunkingError, nil,
				"chunker: stream %d first sample is not a SAP", c.streamIndex)
		}
		c.begin(s.PTS)
		c.lastPTS = s.PTS
		c.lastDur = s.Duration
		return c.Forward(rec)
	}

	if s.PTS < c.segStart {
		return status.Newf(status.ChunkingError, nil,
			"chunker: stream %d sample pts %d precedes segment start %d", c.streamIndex, s.PTS, c.segStart)
	}

	if err := c.maybeCloseOnBoundary(s.PTS, eligible); err != nil {
		return err
	}

	c.lastPTS = s.PTS
	c.lastDur = s.Duration
	return c.Forward(rec)
}

// maybeCloseOnBoundary checks, in priority order, whether a cue-driven,
// segment, subsegment or LL-DASH chunk boundary falls at pts and, if so,
// emits the corresponding SegmentInfo before the caller forwards the
// sample itself. pts is the presentation time of the sample that would
// start the next segment/subsegment/chunk.
func (c *Chunker) maybeCloseOnBoundary(pts int64, eligible bool) error {
	if c.opts.CueQueue != nil && eligible {
		ptsSeconds := c.ticksToSeconds(pts)
		hint := c.opts.CueQueue.GetHint(c.ticksToSeconds(c.segStart))
		if ptsSeconds >= hint {
			c.opts.CueQueue.PromoteAt(ptsSeconds)
		}
		if t, _, ok := c.opts.CueQueue.PeekPromoted(c.lastCueCheckSeconds, ptsSeconds); ok {
			c.lastCueCheckSeconds = t
			return c.closeSegment(pts)
		}
	}

	if pts-c.segStart >= c.opts.SegmentDuration && (eligible || !c.opts.SegmentSAPAligned) {
		return c.closeSegment(pts)
	}
	if c.opts.SubsegmentDuration > 0 && pts-c.subStart >= c.opts.SubsegmentDuration &&
		(eligible || !c.opts.SubsegmentSAPAligned) {
		return c.closeSubsegment(pts)
	}
	if c.opts.ChunkDuration > 0 && pts-c.chunkStart >= c.opts.ChunkDuration {
		return c.closeChunk(pts)
	}
	return nil
}

func (c *Chunker) closeSegment(newStart int64) error {
	si := &media.SegmentInfo{
		StreamIndex:    c.streamIndex,
		StartTimestamp: c.segStart,
		Duration:       newStart - c.segStart,
	}
	if err := c.Forward(handler.SegmentInfoRecord(c.streamIndex, si)); err != nil {
		return err
	}
	pkglog.ForStream(c.streamIndex, 0).Debug("segment closed", "segment_number", c.segNum, "duration", si.Duration)
	c.segNum++
	c.segStart = newStart
	c.subStart = newStart
	c.chunkStart = newStart
	return nil
}

func (c *Chunker) closeSubsegment(newStart int64) error {
	si := &media.SegmentInfo{
		StreamIndex:    c.streamIndex,
		StartTimestamp: c.subStart,
		Duration:       newStart - c.subStart,
		IsSubsegment:   true,
	}
	if err := c.Forward(handler.SegmentInfoRecord(c.streamIndex, si)); err != nil {
		return err
	}
	c.subStart = newStart
	c.chunkStart = newStart
	return nil
}

func (c *Chunker) closeChunk(newStart int64) error {
	si := &media.SegmentInfo{
		StreamIndex:    c.streamIndex,
		StartTimestamp: c.chunkStart,
		Duration:       newStart - c.chunkStart,
		IsChunk:        true,
	}
	if err := c.Forward(handler.SegmentInfoRecord(c.streamIndex, si)); err != nil {
		return err
	}
	c.chunkStart = newStart
	return nil
}

func (c *Chunker) processTextSample(rec handler.Record) error {
	s := rec.TextSample
	t := s.EffectiveStartTime()

	if !c.started {
		c.begin(t)
		c.lastPTS = t
		c.lastDur = s.EndTime - t
		return c.Forward(rec)
	}
	if t < c.segStart {
		return status.Newf(status.ChunkingError, nil,
			"chunker: stream %d text sample time %d precedes segment start %d", c.streamIndex, t, c.segStart)
	}
	if err := c.maybeCloseOnBoundary(t, true); err != nil {
		return err
	}
	c.lastPTS = t
	c.lastDur = s.EndTime - t
	return c.Forward(rec)
}

// Flush closes out any partial final segment before propagating the flush
// downstream (spec.md §4.2 edge case: "stream ends mid-segment").
func (c *Chunker) Flush(port handler.InputPort) error {
	if c.started {
		end := c.lastPTS + c.lastDur
		if end > c.segStart {
			if err := c.closeSegment(end); err != nil {
				return err
			}
		}
	}
	return c.PassThrough.Flush(port)
}
