package mp4mux_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/matryer/is"
	"golang.org/x/text/language"

	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/mp4"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/muxer/mp4mux"
)

type recordingListener struct {
	muxer.NopListener
	newSegments []string
	completed   []struct{ duration, size int64 }
	keyFrames   int
}

func (l *recordingListener) OnNewSegment(name string, start, dur, size int64, num uint32) error {
	l.newSegments = append(l.newSegments, name)
	return nil
}

func (l *recordingListener) OnCompletedSegment(dur, size int64) error {
	l.completed = append(l.completed, struct{ duration, size int64 }{dur, size})
	return nil
}

func (l *recordingListener) OnKeyFrame(ts, offset, size int64) error {
	l.keyFrames++
	return nil
}

func videoStreamInfo() *media.StreamInfo {
	return &media.StreamInfo{
		Kind:        media.Video,
		TrackID:     1,
		Timescale:   90000,
		Codec:       mp4.Avc1FourCC,
		CodecString: "avc1.640028",
		CodecConfig: []byte{0x01, 0x64, 0x00, 0x28},
		Language:    language.Und,
		Width:       1920,
		Height:      1080,
	}
}

func sampleKey() [16]byte {
	var k [16]byte
	for i := range k {
		k[i] = byte(i + 1)
	}
	return k
}

func uniqueName(t *testing.T, tag string) (init, seg string) {
	return fmt.Sprintf("memory://%s-%s-init", t.Name(), tag), fmt.Sprintf("memory://%s-%s-seg-$Number$", t.Name(), tag)
}

func TestMp4muxProducesInitAndSegmentForPlainVideo(t *testing.T) {
	is := is.New(t)
	initName, segName := uniqueName(t, "plain")
	listener := &recordingListener{}
	mux := mp4mux.New(0, mp4mux.Options{
		Options: muxer.Options{
			Format:              muxer.MP4,
			InitSegmentTemplate: initName,
			SegmentTemplate:     segName,
			Listener:            listener,
		},
		RepresentationID: "v0",
	})

	is.NoErr(mux.Initialize())
	is.NoErr(mux.Process(handler.StreamInfoRecord(0, videoStreamInfo())))

	for i := 0; i < 3; i++ {
		s := &media.MediaSample{
			DTS:        int64(i) * 3000,
			PTS:        int64(i) * 3000,
			Duration:   3000,
			IsKeyFrame: i == 0,
			Payload:    bytes.Repeat([]byte{byte(i)}, 200),
		}
		is.NoErr(mux.Process(handler.MediaSampleRecord(0, s)))
	}
	is.NoErr(mux.Process(handler.SegmentInfoRecord(0, &media.SegmentInfo{StartTimestamp: 0, Duration: 9000})))

	is.Equal(len(listener.newSegments), 1)
	is.Equal(len(listener.completed), 1)
	is.True(listener.completed[0].size > 0)
	is.Equal(listener.keyFrames, 1) // only the first sample was a key frame

	initBytes, ok := filesink.MemoryContents(strings.TrimPrefix(initName, "memory://"))
	is.True(ok)
	is.True(bytes.Contains(initBytes, []byte("ftyp")))
	is.True(bytes.Contains(initBytes, []byte("moov")))
	is.True(bytes.Contains(initBytes, []byte("avc1")))
	is.True(bytes.Contains(initBytes, []byte("mvex")))

	segBytes, ok := filesink.MemoryContents(fmt.Sprintf("%s-plain-seg-1", t.Name()))
	is.True(ok)
	is.True(bytes.Contains(segBytes, []byte("styp")))
	is.True(bytes.Contains(segBytes, []byte("moof")))
	is.True(bytes.Contains(segBytes, []byte("mdat")))
	is.Equal(int64(len(segBytes)), listener.completed[0].size)
}

func TestMp4muxEncryptedTrackWrapsSampleEntryAndWritesSenc(t *testing.T) {
	is := is.New(t)
	initName, segName := uniqueName(t, "enc")
	listener := &recordingListener{}
	info := videoStreamInfo()
	info.IsEncrypted = true
	info.Encryption = &media.EncryptionConfig{
		Scheme:     mp4.CbcsFourCC,
		Pattern:    media.DefaultPattern1_9,
		ConstantIV: bytes.Repeat([]byte{0x09}, 16),
		KeyID:      sampleKey(),
	}

	mux := mp4mux.New(0, mp4mux.Options{
		Options: muxer.Options{
			Format:              muxer.MP4,
			InitSegmentTemplate: initName,
			SegmentTemplate:     segName,
			Listener:            listener,
		},
		RepresentationID: "v0-enc",
	})

	is.NoErr(mux.Initialize())
	is.NoErr(mux.Process(handler.StreamInfoRecord(0, info)))

	s := &media.MediaSample{
		DTS:        0,
		PTS:        0,
		Duration:   3000,
		IsKeyFrame: true,
		Payload:    bytes.Repeat([]byte{0xAB}, 170),
		DecryptConfig: &media.DecryptConfig{
			KeyID: sampleKey(),
			IV:    bytes.Repeat([]byte{0x09}, 16),
			Subsamples: []media.Subsample{
				{ClearBytes: 144, CipherBytes: 16},
				{ClearBytes: 10, CipherBytes: 0},
			},
			Scheme: "cbcs",
		},
	}
	is.NoErr(mux.Process(handler.MediaSampleRecord(0, s)))
	is.NoErr(mux.Process(handler.SegmentInfoRecord(0, &media.SegmentInfo{StartTimestamp: 0, Duration: 3000})))

	initBytes, ok := filesink.MemoryContents(strings.TrimPrefix(initName, "memory://"))
	is.True(ok)
	is.True(bytes.Contains(initBytes, []byte("encv")))
	is.True(bytes.Contains(initBytes, []byte("sinf")))
	is.True(bytes.Contains(initBytes, []byte("schm")))
	is.True(bytes.Contains(initBytes, []byte("tenc")))

	segBytes, ok := filesink.MemoryContents(fmt.Sprintf("%s-enc-seg-1", t.Name()))
	is.True(ok)
	is.True(bytes.Contains(segBytes, []byte("saiz")))
	is.True(bytes.Contains(segBytes, []byte("saio")))
	is.True(bytes.Contains(segBytes, []byte("senc")))
}

func TestMp4muxSidxBuffersSubsegmentsUntilSegmentClose(t *testing.T) {
	is := is.New(t)
	initName, segName := uniqueName(t, "sidx")
	listener := &recordingListener{}
	mux := mp4mux.New(0, mp4mux.Options{
		Options: muxer.Options{
			Format:                      muxer.MP4,
			InitSegmentTemplate:         initName,
			SegmentTemplate:             segName,
			GenerateSidxInMediaSegments: true,
			Listener:                    listener,
		},
		RepresentationID: "v0-sidx",
	})

	is.NoErr(mux.Initialize())
	is.NoErr(mux.Process(handler.StreamInfoRecord(0, videoStreamInfo())))

	for sub := 0; sub < 2; sub++ {
		s := &media.MediaSample{
			DTS:        int64(sub) * 3000,
			PTS:        int64(sub) * 3000,
			Duration:   3000,
			IsKeyFrame: sub == 0,
			Payload:    bytes.Repeat([]byte{byte(sub)}, 100),
		}
		is.NoErr(mux.Process(handler.MediaSampleRecord(0, s)))
		is.NoErr(mux.Process(handler.SegmentInfoRecord(0, &media.SegmentInfo{
			StartTimestamp: int64(sub) * 3000, Duration: 3000, IsSubsegment: sub == 0,
		})))
	}

	// Only the second SegmentInfo (IsSubsegment=false) should have closed
	// the file and notified the listener, even though two fragments exist.
	is.Equal(len(listener.newSegments), 1)
	segBytes, ok := filesink.MemoryContents(fmt.Sprintf("%s-sidx-seg-1", t.Name()))
	is.True(ok)
	is.True(bytes.Contains(segBytes, []byte("sidx")))
	// sidx must appear before either moof in the byte stream.
	sidxPos := bytes.Index(segBytes, []byte("sidx"))
	moofPos := bytes.Index(segBytes, []byte("moof"))
	is.True(sidxPos >= 0 && moofPos >= 0 && sidxPos < moofPos)
}

func TestMp4muxFlushEmitsTrailingPartialSegment(t *testing.T) {
	is := is.New(t)
	initName, segName := uniqueName(t, "flush")
	listener := &recordingListener{}
	mux := mp4mux.New(0, mp4mux.Options{
		Options: muxer.Options{
			Format:              muxer.MP4,
			InitSegmentTemplate: initName,
			SegmentTemplate:     segName,
			Listener:            listener,
		},
		RepresentationID: "v0-flush",
	})

	is.NoErr(mux.Initialize())
	is.NoErr(mux.Process(handler.StreamInfoRecord(0, videoStreamInfo())))
	is.NoErr(mux.Process(handler.MediaSampleRecord(0, &media.MediaSample{
		Duration: 3000, IsKeyFrame: true, Payload: []byte{1, 2, 3, 4},
	})))

	is.NoErr(mux.Flush(0))
	is.Equal(len(listener.newSegments), 1)
}
