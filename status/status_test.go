package status_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/status"
)

func TestStatusErrorFormatsCodeOpAndCause(t *testing.T) {
	is := is.New(t)
	s := status.New(status.FileFailure, "os.Open", errors.New("no such file"))
	is.Equal(s.Error(), "FILE_FAILURE: os.Open: no such file")
}

func TestStatusErrorWithoutCauseOmitsColonValue(t *testing.T) {
	is := is.New(t)
	s := status.New(status.EndOfStream, "reader.Next", nil)
	is.Equal(s.Error(), "END_OF_STREAM: reader.Next")
}

func TestStatusUnwrapExposesCause(t *testing.T) {
	is := is.New(t)
	cause := errors.New("boom")
	s := status.New(status.ParserFailure, "parse", cause)
	is.Equal(errors.Unwrap(s), cause)
}

func TestErrorsIsMatchesOnCodeAlone(t *testing.T) {
	is := is.New(t)
	s := status.New(status.ChunkingError, "chunker.Push", errors.New("misaligned"))
	is.True(errors.Is(s, status.New(status.ChunkingError, "", nil)))
	is.True(!errors.Is(s, status.New(status.MuxerFailure, "", nil)))
}

func TestCodeOfExtractsCodeFromWrappedStatus(t *testing.T) {
	is := is.New(t)
	s := status.New(status.NotFound, "lookup", nil)
	wrapped := fmt.Errorf("context: %w", s)
	is.Equal(status.CodeOf(wrapped), status.NotFound)
}

func TestCodeOfReturnsOKForNilAndUnknownForPlainError(t *testing.T) {
	is := is.New(t)
	is.Equal(status.CodeOf(nil), status.OK)
	is.Equal(status.CodeOf(errors.New("plain")), status.Unknown)
}

func TestSentinelErrorsMatchViaErrorsIs(t *testing.T) {
	is := is.New(t)
	wrapped := status.Newf(status.Cancelled, nil, "job %d cancelled", 3)
	is.True(errors.Is(wrapped, status.ErrCancelled))
}

func TestNewfFormatsOp(t *testing.T) {
	is := is.New(t)
	s := status.Newf(status.InvalidArgument, nil, "bad value %d", 42)
	is.Equal(s.Op, "bad value 42")
}
