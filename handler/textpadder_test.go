package handler_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
)

type captureHandler struct {
	records []handler.Record
}

func (h *captureHandler) Initialize() error { return nil }
func (h *captureHandler) Process(rec handler.Record) error {
	h.records = append(h.records, rec)
	return nil
}
func (h *captureHandler) Flush(handler.InputPort) error { return nil }

func TestTextPadderInsertsGapCueBetweenNonContiguousSamples(t *testing.T) {
	is := is.New(t)
	out := &captureHandler{}
	p := handler.NewTextPadder(0, handler.Port{out})

	is.NoErr(p.Process(handler.TextSampleRecord(0, &media.TextSample{StartTime: 0, EndTime: 1000, Payload: []byte("a")})))
	is.NoErr(p.Process(handler.TextSampleRecord(0, &media.TextSample{StartTime: 1500, EndTime: 2000, Payload: []byte("b")})))

	is.Equal(len(out.records), 3)
	gap := out.records[1].TextSample
	is.Equal(gap.StartTime, int64(1000))
	is.Equal(gap.EndTime, int64(1500))
	is.True(gap.Payload == nil)
}

func TestTextPadderSkipsGapForContiguousSamples(t *testing.T) {
	is := is.New(t)
	out := &captureHandler{}
	p := handler.NewTextPadder(0, handler.Port{out})

	is.NoErr(p.Process(handler.TextSampleRecord(0, &media.TextSample{StartTime: 0, EndTime: 1000, Payload: []byte("a")})))
	is.NoErr(p.Process(handler.TextSampleRecord(0, &media.TextSample{StartTime: 1000, EndTime: 2000, Payload: []byte("b")})))

	is.Equal(len(out.records), 2)
}

func TestTextPadderForwardsNonTextRecordsUnchanged(t *testing.T) {
	is := is.New(t)
	out := &captureHandler{}
	p := handler.NewTextPadder(0, handler.Port{out})

	is.NoErr(p.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Timescale: 1000})))
	is.Equal(len(out.records), 1)
	is.Equal(out.records[0].Kind, handler.KindStreamInfo)
}

func TestTextPadderUsesDecodeTimeOverrideForGapDetection(t *testing.T) {
	is := is.New(t)
	out := &captureHandler{}
	p := handler.NewTextPadder(0, handler.Port{out})

	override := int64(500)
	is.NoErr(p.Process(handler.TextSampleRecord(0, &media.TextSample{StartTime: 0, EndTime: 1000, Payload: []byte("a")})))
	is.NoErr(p.Process(handler.TextSampleRecord(0, &media.TextSample{
		StartTime: 2000, EndTime: 3000, DecodeTimeOverride: &override, Payload: []byte("b"),
	})))

	// override (500) is not > lastEnd (1000), so no gap cue is inserted.
	is.Equal(len(out.records), 2)
}
