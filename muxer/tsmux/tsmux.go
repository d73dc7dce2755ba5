package tsmux

import (
	"github.com/go-webdl/packager/bitio"
	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/internal/bufpool"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/status"
)

// Options extends muxer.Options with the knobs specific to the TS
// container variant (spec.md §4.6).
type Options struct {
	muxer.Options
	RepresentationID string
	Bandwidth        uint64
	// PATIntervalMS is how often PAT/PMT are re-emitted mid-segment, in
	// addition to always at the head of each segment. Zero disables the
	// mid-segment re-emission (spec.md's PatInternalMS, 0 meaning
	// segment-head-only).
	PATIntervalMS int
	VideoPID      uint16
	AudioPID      uint16
	PMTPID        uint16
}

// Muxer assembles one elementary stream into an MPEG-2 transport stream,
// one 188-byte packet at a time, writing PAT/PMT at each segment head and
// every PATIntervalMS of presentation time thereafter.
type Muxer struct {
	opts        Options
	streamIndex int
	info        *media.StreamInfo
	sink        filesink.Sink

	pid       uint16
	pmtPID    uint16
	streamID  uint8
	cc        *continuityCounter
	pmtCC     *continuityCounter
	patCC     *continuityCounter

	segmentNum      uint32
	segStartTime    int64
	segBytesWritten int64
	lastPatPTS      int64
	firstInSegment  bool
	keyFrames       []media.KeyFrameInfo
}

// New returns a Muxer for one stream, numbered streamIndex within its
// pipeline (matching handler.Record.StreamIndex).
func New(streamIndex int, opts Options) *Muxer {
	if opts.PMTPID == 0 {
		opts.PMTPID = defaultPMTPID
	}
	return &Muxer{
		opts:        opts,
		streamIndex: streamIndex,
		pmtPID:      opts.PMTPID,
		cc:          newContinuityCounter(0),
		pmtCC:       newContinuityCounter(0),
		patCC:       newContinuityCounter(0),
	}
}

func (m *Muxer) Initialize() error { return nil }

func (m *Muxer) Process(rec handler.Record) error {
	switch rec.Kind {
	case handler.KindStreamInfo:
		return m.onStreamInfo(rec.StreamInfo)
	case handler.KindMediaSample:
		return m.onMediaSample(rec.MediaSample)
	case handler.KindSegmentInfo:
		return m.onSegmentInfo(rec.SegmentInfo)
	default:
		return nil
	}
}

func (m *Muxer) Flush(handler.InputPort) error {
	if m.sink == nil {
		return nil
	}
	if err := m.closeSegment(); err != nil {
		return err
	}
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaEnd(nil, 0)
	}
	return nil
}

func (m *Muxer) onStreamInfo(info *media.StreamInfo) error {
	m.info = info
	switch info.Kind {
	case media.Video:
		m.pid = pidOrDefault(m.opts.VideoPID, 0x100)
		m.streamID = streamIDVideo
	case media.Audio:
		m.pid = pidOrDefault(m.opts.AudioPID, 0x101)
		m.streamID = streamIDAudio
	default:
		return status.Newf(status.InvalidArgument, nil, "tsmux: unsupported stream kind %v", info.Kind)
	}
	if m.opts.Listener != nil {
		if err := m.opts.Listener.OnMediaStart(m.opts.Options, info, info.Timescale, muxer.TS); err != nil {
			return err
		}
	}
	return nil
}

func pidOrDefault(configured, def uint16) uint16 {
	if configured != 0 {
		return configured
	}
	return def
}

// rescale converts a stream-timescale tick count to the 90kHz MPEG-TS
// clock used by PCR/PTS/DTS.
func (m *Muxer) rescale(ticks int64) int64 {
	if m.info.Timescale == 0 || m.info.Timescale == 90000 {
		return ticks
	}
	return ticks * 90000 / int64(m.info.Timescale)
}

func (m *Muxer) onMediaSample(s *media.MediaSample) error {
	if err := m.ensureSegmentSink(); err != nil {
		return err
	}

	pts90 := m.rescale(s.PTS)
	dts90 := m.rescale(s.DTS)

	if m.firstInSegment {
		m.segStartTime = s.DTS
		m.lastPatPTS = pts90
	}

	payload := s.Payload
	if m.info.IsEncrypted && m.info.Kind == media.Audio {
		payload = append(buildAudioSetupHeader(audioSetupFourCC(m.info.CodecString), s.SideData), payload...)
	}

	if m.opts.PATIntervalMS > 0 && !m.firstInSegment {
		elapsedMS := (pts90 - m.lastPatPTS) * 1000 / 90000
		if elapsedMS >= int64(m.opts.PATIntervalMS) {
			if err := m.writePATPMT(); err != nil {
				return err
			}
			m.lastPatPTS = pts90
		}
	}

	if s.IsKeyFrame {
		m.keyFrames = append(m.keyFrames, media.KeyFrameInfo{
			Timestamp:       s.PTS,
			OffsetInSegment: m.segBytesWritten,
			Size:            int64(len(payload)),
		})
		if m.opts.Listener != nil {
			if err := m.opts.Listener.OnKeyFrame(s.PTS, m.segBytesWritten, int64(len(payload))); err != nil {
				return err
			}
		}
	}

	pes := buildPESPacket(m.streamID, pts90, dts90, dts90 != pts90, payload)

	scratch := bufpool.Get(len(pes) * 2)
	defer bufpool.Put(scratch)
	out := bitio.NewWriterFromBuf(scratch)
	hasPCR := m.firstInSegment && m.info.Kind == media.Video
	writePayload(out, pes, true, m.pid, hasPCR, uint64(pts90)*300, m.cc)
	m.firstInSegment = false

	n, err := m.sink.Write(out.Bytes())
	m.segBytesWritten += int64(n)
	return err
}

func (m *Muxer) onSegmentInfo(si *media.SegmentInfo) error {
	if si.IsSubsegment || si.IsChunk {
		return nil
	}
	return m.closeSegment()
}

// ensureSegmentSink opens the next segment's sink, named from the
// previous segment's start time when the template uses $Time$ (PAT/PMT
// must precede the first sample, so the new segment's own start time is
// not yet known when the name is resolved).
func (m *Muxer) ensureSegmentSink() error {
	if m.sink != nil {
		return nil
	}
	name := muxer.FormatName(m.opts.SegmentTemplate, m.opts.RepresentationID, m.segmentNum+1, m.segStartTime, m.opts.Bandwidth)
	sink, err := filesink.Open(name, "w")
	if err != nil {
		return err
	}
	m.sink = sink
	m.firstInSegment = true
	m.lastPatPTS = 0
	m.keyFrames = nil
	return m.writePATPMT()
}

func (m *Muxer) writePATPMT() error {
	pat := buildPAT(m.pmtPID)
	streamType := streamTypeFor(m.info.CodecString, m.info.IsEncrypted)
	pmt := buildPMT(m.pmtPID, m.pid, []pmtStream{{StreamType: streamType, PID: m.pid}})

	patScratch := bufpool.Get(188)
	defer bufpool.Put(patScratch)
	patOut := bitio.NewWriterFromBuf(patScratch)
	writePayload(patOut, pat, true, patPID, false, 0, m.patCC)

	pmtScratch := bufpool.Get(188)
	defer bufpool.Put(pmtScratch)
	pmtOut := bitio.NewWriterFromBuf(pmtScratch)
	writePayload(pmtOut, pmt, true, m.pmtPID, false, 0, m.pmtCC)

	if _, err := m.sink.Write(patOut.Bytes()); err != nil {
		return err
	}
	n, err := m.sink.Write(pmtOut.Bytes())
	m.segBytesWritten += int64(len(patOut.Bytes()) + n)
	return err
}

func (m *Muxer) closeSegment() error {
	if m.sink == nil {
		return nil
	}
	if err := m.sink.Flush(); err != nil {
		return err
	}
	size := m.segBytesWritten
	if err := m.sink.Close(); err != nil {
		return err
	}
	name := muxer.FormatName(m.opts.SegmentTemplate, m.opts.RepresentationID, m.segmentNum+1, m.segStartTime, m.opts.Bandwidth)
	if m.opts.Listener != nil {
		if err := m.opts.Listener.OnNewSegment(name, m.segStartTime, 0, size, m.segmentNum+1); err != nil {
			return err
		}
		if err := m.opts.Listener.OnCompletedSegment(0, size); err != nil {
			return err
		}
	}
	m.segmentNum++
	m.sink = nil
	m.segBytesWritten = 0
	return nil
}
