// Package filesink implements the polymorphic seekable-or-stream output
// abstraction (spec.md §6.1): open/write/seek/tell/size/flush/close (a Sink
// has no read operation), with variants selected by URI scheme, matching shaka-packager's File
// abstraction (original_source/packager/media/file/file.h) in spirit.
// HTTP PUT concurrency is bounded per destination host the way
// snapetech-plexTuner's internal/httpclient/hostsem.go bounds outbound
// connections per host.
package filesink

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/go-webdl/packager/status"
)

// Sink is the abstraction every muxer writes segment/init-segment bytes
// through. Seek returns false on stream-only sinks (HTTP PUT, UDP,
// callback) that cannot support random access; the HTTP PUT sink still
// reports its buffered length from Tell and Size with ok=true.
type Sink interface {
	Write(p []byte) (n int, err error)
	Seek(pos int64) (ok bool)
	Tell() (pos int64, ok bool)
	Size() (size int64, ok bool)
	Flush() error
	Close() error
}

// Opener opens a Sink for name in the given mode ("w" truncate-create,
// "a" append to an existing stream).
type Opener interface {
	Open(name string, mode string) (Sink, error)
}

// Open dispatches name to the variant selected by its URI scheme prefix:
// http(s)://, udp://, memory://, callback://<id>, file:// or a bare path
// (treated as local).
func Open(name string, mode string) (Sink, error) {
	switch {
	case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
		return newHTTPSink(name)
	case strings.HasPrefix(name, "memory://"):
		return newMemorySink(strings.TrimPrefix(name, "memory://")), nil
	case strings.HasPrefix(name, "callback://"):
		return newCallbackSink(strings.TrimPrefix(name, "callback://"))
	case strings.HasPrefix(name, "udp://"):
		return newUDPSink(name)
	case strings.HasPrefix(name, "file://"):
		return newLocalSink(strings.TrimPrefix(name, "file://"), mode)
	default:
		return newLocalSink(name, mode)
	}
}

// localSink wraps an *os.File.
type localSink struct {
	f *os.File
}

func newLocalSink(path string, mode string) (Sink, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if mode == "a" {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, status.New(status.FileFailure, "os.OpenFile", err)
	}
	return &localSink{f: f}, nil
}

func (s *localSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *localSink) Seek(pos int64) bool {
	_, err := s.f.Seek(pos, io.SeekStart)
	return err == nil
}

func (s *localSink) Tell() (int64, bool) {
	pos, err := s.f.Seek(0, io.SeekCurrent)
	return pos, err == nil
}

func (s *localSink) Size() (int64, bool) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, false
	}
	return fi.Size(), true
}

func (s *localSink) Flush() error { return s.f.Sync() }
func (s *localSink) Close() error { return s.f.Close() }

// memorySink is an in-memory stand-in, used by tests and callback-free
// in-process pipelines.
type memorySink struct {
	mu  sync.Mutex
	buf bytes.Buffer
	key string
}

var memoryStore sync.Map // string -> *memorySink, so readers can find a named buffer later.

func newMemorySink(key string) *memorySink {
	s := &memorySink{key: key}
	memoryStore.Store(key, s)
	return s
}

// MemoryContents returns the bytes written to memory://key, if any.
func MemoryContents(key string) ([]byte, bool) {
	v, ok := memoryStore.Load(key)
	if !ok {
		return nil, false
	}
	s := v.(*memorySink)
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf.Bytes()...), true
}

func (s *memorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}
func (s *memorySink) Seek(int64) bool       { return false }
func (s *memorySink) Tell() (int64, bool)   { s.mu.Lock(); defer s.mu.Unlock(); return int64(s.buf.Len()), true }
func (s *memorySink) Size() (int64, bool)   { return s.Tell() }
func (s *memorySink) Flush() error          { return nil }
func (s *memorySink) Close() error          { return nil }

// CallbackFunc receives bytes written to a callback:// sink.
type CallbackFunc func(id string, p []byte) error

var callbackRegistry sync.Map // string id -> CallbackFunc

// RegisterCallback registers fn to receive writes for callback://id sinks.
func RegisterCallback(id string, fn CallbackFunc) { callbackRegistry.Store(id, fn) }

type callbackSink struct {
	id string
	fn CallbackFunc
}

func newCallbackSink(id string) (Sink, error) {
	v, ok := callbackRegistry.Load(id)
	if !ok {
		return nil, status.Newf(status.NotFound, nil, "filesink: no callback registered for id %q", id)
	}
	return &callbackSink{id: id, fn: v.(CallbackFunc)}, nil
}

func (s *callbackSink) Write(p []byte) (int, error) {
	if err := s.fn(s.id, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
func (s *callbackSink) Seek(int64) bool     { return false }
func (s *callbackSink) Tell() (int64, bool) { return 0, false }
func (s *callbackSink) Size() (int64, bool) { return 0, false }
func (s *callbackSink) Flush() error        { return nil }
func (s *callbackSink) Close() error        { return nil }

// httpSink buffers the whole stream and issues one PUT on Close, guarded
// by a per-host semaphore so a job packaging many representations never
// opens unbounded concurrent connections to one origin.
type httpSink struct {
	url string
	buf bytes.Buffer
}

var hostSemaphores sync.Map // host -> chan struct{}

const maxConcurrentPerHost = 4

func acquireHost(host string) func() {
	v, _ := hostSemaphores.LoadOrStore(host, make(chan struct{}, maxConcurrentPerHost))
	sem := v.(chan struct{})
	sem <- struct{}{}
	return func() { <-sem }
}

func newHTTPSink(rawURL string) (Sink, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, status.New(status.InvalidArgument, "url.Parse", err)
	}
	return &httpSink{url: rawURL}, nil
}

func (s *httpSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *httpSink) Seek(int64) bool              { return false }
func (s *httpSink) Tell() (int64, bool)          { return int64(s.buf.Len()), true }
func (s *httpSink) Size() (int64, bool)          { return int64(s.buf.Len()), true }
func (s *httpSink) Flush() error                 { return nil }

func (s *httpSink) Close() error {
	u, err := url.Parse(s.url)
	if err != nil {
		return status.New(status.InvalidArgument, "url.Parse", err)
	}
	release := acquireHost(u.Host)
	defer release()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPut, s.url, bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		return status.New(status.HTTPFailure, "http.NewRequest", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status.New(status.HTTPFailure, "http.Do", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return status.Newf(status.HTTPFailure, nil, "filesink: PUT %s returned %s", s.url, resp.Status)
	}
	return nil
}

// udpSink is a best-effort, non-seekable UDP datagram writer; one Write
// call is one datagram, matching the live low-latency egress path.
type udpSink struct {
	conn io.WriteCloser
}

func newUDPSink(rawURL string) (Sink, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, status.New(status.InvalidArgument, "url.Parse", err)
	}
	conn, err := dialUDP(u.Host)
	if err != nil {
		return nil, status.New(status.FileFailure, "dialUDP", err)
	}
	return &udpSink{conn: conn}, nil
}

func (s *udpSink) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *udpSink) Seek(int64) bool              { return false }
func (s *udpSink) Tell() (int64, bool)          { return 0, false }
func (s *udpSink) Size() (int64, bool)          { return 0, false }
func (s *udpSink) Flush() error                 { return nil }
func (s *udpSink) Close() error                 { return s.conn.Close() }

func dialUDP(hostport string) (io.WriteCloser, error) {
	return net.Dial("udp", hostport)
}
