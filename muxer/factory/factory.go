// Package factory dispatches on muxer.Options.Format to construct the
// concrete container muxer a pipeline's tail handler needs, so callers
// assembling a pipeline from configuration don't need a per-format
// switch of their own (spec.md §4.6).
package factory

import (
	"fmt"

	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/muxer/mp4mux"
	"github.com/go-webdl/packager/muxer/tsmux"
	"github.com/go-webdl/packager/muxer/ttml"
	"github.com/go-webdl/packager/muxer/webmmux"
	"github.com/go-webdl/packager/muxer/webvtt"
	"github.com/go-webdl/packager/status"
)

// Config carries muxer.Options plus every format-specific knob; New reads
// only the fields relevant to opts.Format and ignores the rest, so one
// Config can be built from a single parsed configuration regardless of
// which container it ends up selecting.
type Config struct {
	muxer.Options

	RepresentationID   string
	Bandwidth          uint64
	FirstSegmentNumber uint32
	InitSegmentOnly    bool // MP4 only (spec.md §4.5)

	PATIntervalMS int    // TS only
	VideoPID      uint16 // TS only
	AudioPID      uint16 // TS only
	PMTPID        uint16 // TS only

	TransportStreamTimestampOffsetMS int32 // WebVTT only
}

// New constructs the concrete muxer.Muxer selected by cfg.Format.
func New(streamIndex int, cfg Config) (muxer.Muxer, error) {
	switch cfg.Format {
	case muxer.MP4:
		return mp4mux.New(streamIndex, mp4mux.Options{
			Options:            cfg.Options,
			RepresentationID:   cfg.RepresentationID,
			Bandwidth:          cfg.Bandwidth,
			FirstSegmentNumber: cfg.FirstSegmentNumber,
			InitSegmentOnly:    cfg.InitSegmentOnly,
		}), nil
	case muxer.TS:
		return tsmux.New(streamIndex, tsmux.Options{
			Options:          cfg.Options,
			RepresentationID: cfg.RepresentationID,
			Bandwidth:        cfg.Bandwidth,
			PATIntervalMS:    cfg.PATIntervalMS,
			VideoPID:         cfg.VideoPID,
			AudioPID:         cfg.AudioPID,
			PMTPID:           cfg.PMTPID,
		}), nil
	case muxer.WebM:
		return webmmux.New(streamIndex, webmmux.Options{
			Options:          cfg.Options,
			RepresentationID: cfg.RepresentationID,
			Bandwidth:        cfg.Bandwidth,
		}), nil
	case muxer.WebVTT:
		return webvtt.New(streamIndex, webvtt.Options{
			Options:                          cfg.Options,
			TransportStreamTimestampOffsetMS: cfg.TransportStreamTimestampOffsetMS,
		}), nil
	case muxer.TTML:
		return ttml.New(streamIndex, ttml.Options{Options: cfg.Options}), nil
	default:
		return nil, status.New(status.InvalidArgument, "factory.New", fmt.Errorf("unknown muxer format %d", cfg.Format))
	}
}
