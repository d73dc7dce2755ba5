package handler

import "github.com/go-webdl/packager/media"

// TextPadder inserts an empty cue into any gap (of any positive width)
// between consecutive text samples, so that text muxers that
// expect contiguous coverage (WebVTT segment files in particular) never
// have to special-case a silent stretch. Grounded on shaka-packager's
// TextPadder, supplemented here because spec.md's data-flow diagram names
// the "text-padder" stage without detailing its behavior.
type TextPadder struct {
	PassThrough
	StreamIndex int
	lastEnd     *int64
}

func NewTextPadder(streamIndex int, out Port) *TextPadder {
	return &TextPadder{PassThrough: PassThrough{Out: out}, StreamIndex: streamIndex}
}

func (p *TextPadder) Process(rec Record) error {
	if rec.Kind != KindTextSample {
		return p.Forward(rec)
	}
	ts := rec.TextSample
	start := ts.EffectiveStartTime()
	if p.lastEnd != nil && start > *p.lastEnd {
		gap := &media.TextSample{
			StreamIndex: p.StreamIndex,
			StartTime:   *p.lastEnd,
			EndTime:     start,
			Payload:     nil,
		}
		if err := p.Forward(TextSampleRecord(p.StreamIndex, gap)); err != nil {
			return err
		}
	}
	end := ts.EndTime
	p.lastEnd = &end
	return p.Forward(rec)
}
