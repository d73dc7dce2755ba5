// Package status defines the closed set of error kinds that every stage of
// the packaging pipeline returns instead of relying on panics for control
// flow.
package status

import (
	"errors"
	"fmt"
)

// Code is a closed enumeration of error kinds returned by handler stages,
// muxers, file sinks and the job manager.
type Code int

const (
	OK Code = iota
	Unknown
	Cancelled
	InvalidArgument
	Unimplemented
	FileFailure
	EndOfStream
	HTTPFailure
	ParserFailure
	EncryptionFailure
	ChunkingError
	MuxerFailure
	FragmentFinalized
	ServerError
	InternalError
	Stopped
	TimeOut
	NotFound
	AlreadyExists
	TrickPlayError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Unknown:
		return "UNKNOWN"
	case Cancelled:
		return "CANCELLED"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case Unimplemented:
		return "UNIMPLEMENTED"
	case FileFailure:
		return "FILE_FAILURE"
	case EndOfStream:
		return "END_OF_STREAM"
	case HTTPFailure:
		return "HTTP_FAILURE"
	case ParserFailure:
		return "PARSER_FAILURE"
	case EncryptionFailure:
		return "ENCRYPTION_FAILURE"
	case ChunkingError:
		return "CHUNKING_ERROR"
	case MuxerFailure:
		return "MUXER_FAILURE"
	case FragmentFinalized:
		return "FRAGMENT_FINALIZED"
	case ServerError:
		return "SERVER_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case Stopped:
		return "STOPPED"
	case TimeOut:
		return "TIME_OUT"
	case NotFound:
		return "NOT_FOUND"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case TrickPlayError:
		return "TRICK_PLAY_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Status is the error type every process/flush call in the pipeline
// returns. It carries the failing operation and an optional wrapped cause so
// callers can use errors.Is/errors.As up the chain without losing the
// originating Code.
type Status struct {
	Code Code
	Op   string
	Err  error
}

func (s *Status) Error() string {
	if s.Err == nil {
		return fmt.Sprintf("%s: %s", s.Code, s.Op)
	}
	return fmt.Sprintf("%s: %s: %v", s.Code, s.Op, s.Err)
}

func (s *Status) Unwrap() error { return s.Err }

// Is reports whether target is a *Status with the same Code, so that
// errors.Is(err, status.New(status.ChunkingError, "", nil)) works without
// comparing Op or Err.
func (s *Status) Is(target error) bool {
	t, ok := target.(*Status)
	if !ok {
		return false
	}
	return t.Code == s.Code
}

// New builds a Status for the given code/op, wrapping err if non-nil.
func New(code Code, op string, err error) *Status {
	return &Status{Code: code, Op: op, Err: err}
}

// Newf is New with a formatted Op.
func Newf(code Code, err error, format string, args ...any) *Status {
	return &Status{Code: code, Op: fmt.Sprintf(format, args...), Err: err}
}

// There is no OK Status value: stages return a nil error on success (a nil
// error means OK), matching Go's idiomatic error handling instead of the
// sentinel-zero-value Status the original C++ source uses.

// Sentinel codes usable with errors.Is for boundary conditions that do not
// need an Op/Err payload of their own.
var (
	ErrCancelled         = &Status{Code: Cancelled}
	ErrEndOfStream       = &Status{Code: EndOfStream}
	ErrNotFound          = &Status{Code: NotFound}
	ErrAlreadyExists     = &Status{Code: AlreadyExists}
	ErrFragmentFinalized = &Status{Code: FragmentFinalized}
)

// CodeOf extracts the Code of err if it is (or wraps) a *Status, otherwise
// Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var s *Status
	if errors.As(err, &s) {
		return s.Code
	}
	return Unknown
}
