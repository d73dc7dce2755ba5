package replicator_test

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/replicator"
)

type recordingHandler struct {
	initCalls  int
	processed  []handler.Record
	flushCalls []handler.InputPort
	failOn     error
}

func (h *recordingHandler) Initialize() error {
	h.initCalls++
	return nil
}

func (h *recordingHandler) Process(rec handler.Record) error {
	if h.failOn != nil {
		return h.failOn
	}
	h.processed = append(h.processed, rec)
	return nil
}

func (h *recordingHandler) Flush(port handler.InputPort) error {
	h.flushCalls = append(h.flushCalls, port)
	return nil
}

func TestReplicatorForwardsToAllOutputs(t *testing.T) {
	is := is.New(t)
	a, b := &recordingHandler{}, &recordingHandler{}
	r := replicator.New(a, b)

	is.NoErr(r.Initialize())
	is.Equal(a.initCalls, 1)
	is.Equal(b.initCalls, 1)

	rec := handler.StreamInfoRecord(0, &media.StreamInfo{Timescale: 1000})
	is.NoErr(r.Process(rec))
	is.Equal(len(a.processed), 1)
	is.Equal(len(b.processed), 1)

	is.NoErr(r.Flush(handler.InputPort(0)))
	is.Equal(len(a.flushCalls), 1)
	is.Equal(len(b.flushCalls), 1)
}

func TestReplicatorStopsAtFirstError(t *testing.T) {
	is := is.New(t)
	failing := errors.New("boom")
	a := &recordingHandler{failOn: failing}
	b := &recordingHandler{}
	r := replicator.New(a, b)

	err := r.Process(handler.StreamInfoRecord(0, &media.StreamInfo{}))
	is.Equal(err, failing)
	is.Equal(len(b.processed), 0)
}
