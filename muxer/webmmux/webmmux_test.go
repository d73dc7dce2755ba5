package webmmux_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/muxer/webmmux"
)

type recordingListener struct {
	muxer.NopListener
	newSegments int
	mediaEnded  bool
}

func (l *recordingListener) OnNewSegment(name string, start, dur, size int64, num uint32) error {
	l.newSegments++
	return nil
}

func (l *recordingListener) OnMediaEnd(ranges []muxer.ByteRange, duration int64) error {
	l.mediaEnded = true
	return nil
}

func videoStreamInfo() *media.StreamInfo {
	return &media.StreamInfo{
		Kind:        media.Video,
		TrackID:     1,
		Timescale:   1000,
		CodecString: "vp09.00.10.08",
		Width:       640,
		Height:      360,
	}
}

func TestWebMMuxerWritesClusterPerSegment(t *testing.T) {
	is := is.New(t)
	listener := &recordingListener{}
	m := webmmux.New(0, webmmux.Options{
		Options: muxer.Options{
			InitSegmentTemplate: "memory://webm-out",
			Listener:            listener,
		},
	})

	is.NoErr(m.Initialize())
	is.NoErr(m.Process(handler.StreamInfoRecord(0, videoStreamInfo())))
	is.NoErr(m.Process(handler.MediaSampleRecord(0, &media.MediaSample{
		PTS: 0, DTS: 0, Duration: 40, IsKeyFrame: true, Payload: []byte{1, 2, 3},
	})))
	is.NoErr(m.Process(handler.MediaSampleRecord(0, &media.MediaSample{
		PTS: 40, DTS: 40, Duration: 40, Payload: []byte{4, 5, 6},
	})))
	is.NoErr(m.Process(handler.SegmentInfoRecord(0, &media.SegmentInfo{StartTimestamp: 0, Duration: 80})))
	is.NoErr(m.Flush(handler.InputPort(0)))

	is.Equal(listener.newSegments, 1)
	is.True(listener.mediaEnded)

	out, ok := filesink.MemoryContents("webm-out")
	is.True(ok)
	is.True(len(out) > 0)
	// EBML header starts with the EBML element ID.
	is.Equal(out[0], byte(0x1A))
}

func TestWebMMuxerRejectsUnsupportedStreamKind(t *testing.T) {
	is := is.New(t)
	m := webmmux.New(0, webmmux.Options{
		Options: muxer.Options{InitSegmentTemplate: "memory://webm-bad"},
	})
	is.NoErr(m.Initialize())
	err := m.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Text, Timescale: 1000}))
	is.True(err != nil)
}
