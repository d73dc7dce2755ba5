// Package pkglog provides the structured logger shared across the
// packaging pipeline. It mirrors the slog-based, runtime-adjustable-level
// logger used throughout the rtmp ingest server this module's ambient
// stack is patterned on.
package pkglog

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const envLogLevel = "PACKAGER_LOG_LEVEL"

var (
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}
	global      *slog.Logger
	initOnce    sync.Once
)

type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Init initializes the global logger. Safe to call multiple times; the
// first call wins. Use SetLevel to adjust verbosity afterwards.
func Init() {
	initOnce.Do(func() {
		atomicLevel.set(detectLevel())
		global = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: atomicLevel}))
	})
}

func detectLevel() slog.Level {
	switch strings.ToLower(os.Getenv(envLogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the active log level at runtime.
func SetLevel(l slog.Level) { atomicLevel.set(l) }

// Logger returns the global logger, initializing it on first use.
func Logger() *slog.Logger {
	Init()
	return global
}

// ForStream returns a logger tagged with the stream's index and track id,
// so every log line emitted while processing one stream's handler chain can
// be attributed without threading a context value through every call.
func ForStream(streamIndex int, trackID uint32) *slog.Logger {
	return Logger().With(slog.Int("stream_index", streamIndex), slog.Uint64("track_id", uint64(trackID)))
}
