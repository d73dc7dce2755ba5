package filesink_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/filesink"
)

func TestMemorySinkRoundTripsViaOpen(t *testing.T) {
	is := is.New(t)
	sink, err := filesink.Open("memory://test-key-1", "w")
	is.NoErr(err)
	n, err := sink.Write([]byte("hello"))
	is.NoErr(err)
	is.Equal(n, 5)
	is.NoErr(sink.Close())

	got, ok := filesink.MemoryContents("test-key-1")
	is.True(ok)
	is.Equal(string(got), "hello")
}

func TestMemorySinkTellTracksWrittenBytes(t *testing.T) {
	is := is.New(t)
	sink, err := filesink.Open("memory://test-key-2", "w")
	is.NoErr(err)
	_, err = sink.Write([]byte("abc"))
	is.NoErr(err)
	pos, ok := sink.Tell()
	is.True(ok)
	is.Equal(pos, int64(3))
	is.True(!sink.Seek(0))
}

func TestMemoryContentsUnknownKeyNotOK(t *testing.T) {
	is := is.New(t)
	_, ok := filesink.MemoryContents("never-written")
	is.True(!ok)
}

func TestCallbackSinkDispatchesRegisteredFunc(t *testing.T) {
	is := is.New(t)
	var got []byte
	filesink.RegisterCallback("cb-1", func(id string, p []byte) error {
		got = append(got, p...)
		return nil
	})
	sink, err := filesink.Open("callback://cb-1", "w")
	is.NoErr(err)
	n, err := sink.Write([]byte("xyz"))
	is.NoErr(err)
	is.Equal(n, 3)
	is.Equal(string(got), "xyz")
}

func TestCallbackSinkUnregisteredIDErrors(t *testing.T) {
	is := is.New(t)
	_, err := filesink.Open("callback://nonexistent", "w")
	is.True(err != nil)
}

func TestLocalSinkWritesAndReportsSize(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	sink, err := filesink.Open(path, "w")
	is.NoErr(err)
	_, err = sink.Write([]byte("0123456789"))
	is.NoErr(err)
	size, ok := sink.Size()
	is.True(ok)
	is.Equal(size, int64(10))
	is.NoErr(sink.Close())

	contents, err := os.ReadFile(path)
	is.NoErr(err)
	is.Equal(string(contents), "0123456789")
}

func TestLocalSinkSeekAndTell(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "seek.bin")

	sink, err := filesink.Open(path, "w")
	is.NoErr(err)
	_, err = sink.Write([]byte("0123456789"))
	is.NoErr(err)
	is.True(sink.Seek(4))
	pos, ok := sink.Tell()
	is.True(ok)
	is.Equal(pos, int64(4))
	is.NoErr(sink.Close())
}

func TestLocalSinkFileSchemeStripsPrefix(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "scheme.bin")

	sink, err := filesink.Open("file://"+path, "w")
	is.NoErr(err)
	_, err = sink.Write([]byte("z"))
	is.NoErr(err)
	is.NoErr(sink.Close())

	_, err = os.Stat(path)
	is.NoErr(err)
}
