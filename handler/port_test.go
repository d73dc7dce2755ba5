package handler_test

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
)

type stubHandler struct {
	initErr    error
	processErr error
	flushErr   error
	processed  int
	flushed    int
	initCalled bool
}

func (h *stubHandler) Initialize() error {
	h.initCalled = true
	return h.initErr
}
func (h *stubHandler) Process(handler.Record) error {
	h.processed++
	return h.processErr
}
func (h *stubHandler) Flush(handler.InputPort) error {
	h.flushed++
	return h.flushErr
}

func TestPortSendStopsAtFirstError(t *testing.T) {
	is := is.New(t)
	failing := errors.New("fail")
	a := &stubHandler{}
	b := &stubHandler{processErr: failing}
	c := &stubHandler{}
	port := handler.Port{a, b, c}

	err := port.Send(handler.StreamInfoRecord(0, &media.StreamInfo{}))
	is.Equal(err, failing)
	is.Equal(a.processed, 1)
	is.Equal(b.processed, 1)
	is.Equal(c.processed, 0)
}

func TestPortFlushAllAndInitializeAllVisitEveryHandler(t *testing.T) {
	is := is.New(t)
	a, b := &stubHandler{}, &stubHandler{}
	port := handler.Port{a, b}

	is.NoErr(port.InitializeAll())
	is.True(a.initCalled)
	is.True(b.initCalled)

	is.NoErr(port.FlushAll(handler.InputPort(0)))
	is.Equal(a.flushed, 1)
	is.Equal(b.flushed, 1)
}

func TestPassThroughForwardsToOutPort(t *testing.T) {
	is := is.New(t)
	out := &stubHandler{}
	p := &handler.PassThrough{Out: handler.Port{out}}

	is.NoErr(p.Initialize())
	is.True(out.initCalled)

	is.NoErr(p.Forward(handler.StreamInfoRecord(0, &media.StreamInfo{})))
	is.Equal(out.processed, 1)

	is.NoErr(p.Flush(handler.InputPort(0)))
	is.Equal(out.flushed, 1)
}
