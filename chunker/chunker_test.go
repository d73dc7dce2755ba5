package chunker_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/chunker"
	"github.com/go-webdl/packager/cuequeue"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
)

type sink struct {
	segments []*media.SegmentInfo
	samples  []*media.MediaSample
}

func (s *sink) Initialize() error { return nil }

func (s *sink) Process(rec handler.Record) error {
	switch rec.Kind {
	case handler.KindSegmentInfo:
		s.segments = append(s.segments, rec.SegmentInfo)
	case handler.KindMediaSample:
		s.samples = append(s.samples, rec.MediaSample)
	}
	return nil
}

func (s *sink) Flush(handler.InputPort) error { return nil }

func videoSample(pts int64, duration int64, keyFrame bool) handler.Record {
	return handler.MediaSampleRecord(0, &media.MediaSample{
		PTS: pts, DTS: pts, Duration: duration, IsKeyFrame: keyFrame,
	})
}

func TestChunkerClosesOnSAPAlignedDuration(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	c, err := chunker.New(0, chunker.Options{
		SegmentDuration:   20,
		SegmentSAPAligned: true,
	}, handler.Port{out})
	is.NoErr(err)

	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Video, Timescale: 10})))
	is.NoErr(c.Process(videoSample(0, 10, true)))
	is.NoErr(c.Process(videoSample(10, 10, false)))
	// pts=20 is >= target duration 20 but not a key frame: must not close yet.
	is.NoErr(c.Process(videoSample(20, 10, false)))
	is.Equal(len(out.segments), 0)
	// pts=30, key frame: closes the first segment [0,30).
	is.NoErr(c.Process(videoSample(30, 10, true)))
	is.Equal(len(out.segments), 1)
	is.Equal(out.segments[0].StartTimestamp, int64(0))
	is.Equal(out.segments[0].Duration, int64(30))
}

func TestChunkerRejectsNonSAPFirstSample(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	c, err := chunker.New(0, chunker.Options{
		SegmentDuration:   20,
		SegmentSAPAligned: true,
	}, handler.Port{out})
	is.NoErr(err)
	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Video, Timescale: 10})))
	err = c.Process(videoSample(0, 10, false))
	is.True(err != nil)
}

func TestChunkerRejectsOutOfOrderPTS(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	c, err := chunker.New(0, chunker.Options{SegmentDuration: 20}, handler.Port{out})
	is.NoErr(err)
	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Audio, Timescale: 10})))
	is.NoErr(c.Process(videoSample(10, 10, false)))
	err = c.Process(videoSample(5, 10, false))
	is.True(err != nil)
}

func TestChunkerRejectsSubsegmentWithoutSegmentAlignment(t *testing.T) {
	is := is.New(t)
	_, err := chunker.New(0, chunker.Options{
		SegmentDuration:      20,
		SubsegmentDuration:   5,
		SubsegmentSAPAligned: true,
	}, nil)
	is.True(err != nil)
}

func TestChunkerFlushEmitsFinalPartialSegment(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	c, err := chunker.New(0, chunker.Options{SegmentDuration: 100}, handler.Port{out})
	is.NoErr(err)
	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Audio, Timescale: 10})))
	is.NoErr(c.Process(videoSample(0, 10, false)))
	is.NoErr(c.Process(videoSample(10, 10, false)))
	is.Equal(len(out.segments), 0)
	is.NoErr(c.Flush(0))
	is.Equal(len(out.segments), 1)
	is.Equal(out.segments[0].Duration, int64(20))
}

func TestChunkerSubsegmentsNestWithinSegment(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	c, err := chunker.New(0, chunker.Options{
		SegmentDuration:      40,
		SubsegmentDuration:   20,
		SegmentSAPAligned:    true,
		SubsegmentSAPAligned: true,
	}, handler.Port{out})
	is.NoErr(err)
	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Video, Timescale: 10})))
	is.NoErr(c.Process(videoSample(0, 10, true)))
	is.NoErr(c.Process(videoSample(10, 10, true)))
	is.NoErr(c.Process(videoSample(20, 10, true))) // closes subsegment [0,20)
	is.NoErr(c.Process(videoSample(30, 10, true)))
	is.NoErr(c.Process(videoSample(40, 10, true))) // closes segment [0,40), not a second subsegment boundary
	is.Equal(len(out.segments), 2)
	is.Equal(out.segments[0].IsSubsegment, true)
	is.Equal(out.segments[0].Duration, int64(20))
	is.Equal(out.segments[1].IsSubsegment, false)
	is.Equal(out.segments[1].Duration, int64(40))
}

func TestChunkerEmitsTenChunksPerSegmentForLLDash(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	c, err := chunker.New(0, chunker.Options{
		SegmentDuration:   100,
		SegmentSAPAligned: true,
		ChunkDuration:     10,
	}, handler.Port{out})
	is.NoErr(err)
	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Video, Timescale: 10})))

	// pts=0 starts the segment; pts=10..90 (9 samples, non-key) each close a
	// 10-tick LL-DASH chunk. The pts=100 key frame then closes the segment
	// itself (segment boundary takes priority over the pending chunk
	// boundary at the same tick), leaving 9 chunks plus 1 full segment.
	for pts := int64(0); pts < 100; pts += 10 {
		is.NoErr(c.Process(videoSample(pts, 10, pts == 0)))
	}
	is.NoErr(c.Process(videoSample(100, 10, true)))

	chunks, segments := 0, 0
	for _, s := range out.segments {
		if s.IsChunk {
			chunks++
		} else if !s.IsSubsegment {
			segments++
		}
	}
	is.Equal(chunks, 9)
	is.Equal(segments, 1)
	is.Equal(len(out.segments), 10)
}

func TestChunkerCueDrivenCloseOverridesDuration(t *testing.T) {
	is := is.New(t)
	out := &sink{}
	q := cuequeue.New(1)
	q.AddCue(1.5, "ad-1")
	c, err := chunker.New(0, chunker.Options{
		SegmentDuration: 100, // far longer than the cue-driven close
		CueQueue:        q,
	}, handler.Port{out})
	is.NoErr(err)
	is.NoErr(c.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Audio, Timescale: 10})))
	is.NoErr(c.Process(videoSample(0, 10, false)))
	// pts=20 ticks = 2.0s, past the 1.5s cue: should promote and close here.
	is.NoErr(c.Process(videoSample(20, 10, false)))
	is.Equal(len(out.segments), 1)
	is.Equal(out.segments[0].StartTimestamp, int64(0))
}
