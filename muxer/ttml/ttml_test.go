package ttml_test

import (
	"strings"
	"testing"

	"github.com/matryer/is"
	"golang.org/x/text/language"

	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/muxer/ttml"
)

func TestTTMLMuxerWritesParagraphPerCue(t *testing.T) {
	is := is.New(t)
	m := ttml.New(0, ttml.Options{
		Options: muxer.Options{SegmentTemplate: "memory://ttml-out"},
	})
	is.NoErr(m.Initialize())
	is.NoErr(m.Process(handler.StreamInfoRecord(0, &media.StreamInfo{
		Kind: media.Text, Timescale: 1000, Language: language.English,
	})))
	is.NoErr(m.Process(handler.TextSampleRecord(0, &media.TextSample{
		StartTime: 1000, EndTime: 2500, Payload: []byte("Hello"),
	})))
	is.NoErr(m.Flush(handler.InputPort(0)))

	out, ok := filesink.MemoryContents("ttml-out")
	is.True(ok)
	text := string(out)
	is.True(strings.Contains(text, "<tt"))
	is.True(strings.Contains(text, `begin="00:00:01.000"`))
	is.True(strings.Contains(text, `end="00:00:02.500"`))
	is.True(strings.Contains(text, "Hello"))
}
