package webmmux

import (
	"github.com/go-webdl/packager/bitio"
	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/internal/bufpool"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/status"
)

// Options extends muxer.Options with the knobs specific to the WebM
// container variant.
type Options struct {
	muxer.Options
	RepresentationID string
	Bandwidth        uint64
}

// Muxer assembles one elementary stream's samples into WebM Clusters,
// writing Cues at Flush when the sink supports seeking (spec.md §4.6). It
// writes no SeekHead element.
type Muxer struct {
	opts        Options
	streamIndex int
	info        *media.StreamInfo
	sink        filesink.Sink

	trackNumber uint64
	timescale   uint32

	segmentNum      uint32
	segStartTime    int64
	segBytesWritten int64

	clusterTimecode int64
	clusterBlocks   []byte
	clusterOpen     bool

	seekable   bool
	segmentPos int64 // file offset of the Segment element's payload start
	cuePoints  []cuePoint
}

type cuePoint struct {
	timecode    int64
	clusterPos  int64
}

// New returns a Muxer for one stream, numbered streamIndex within its
// pipeline.
func New(streamIndex int, opts Options) *Muxer {
	return &Muxer{opts: opts, streamIndex: streamIndex, trackNumber: 1}
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

func (m *Muxer) onStreamInfo(info *media.StreamInfo) error {
	m.info = info
	m.timescale = info.Timescale

	name := muxer.FormatName(m.opts.InitSegmentTemplate, m.opts.RepresentationID, 0, 0, m.opts.Bandwidth)
	sink, err := filesink.Open(name, "w")
	if err != nil {
		return status.New(status.FileFailure, "webmmux.onStreamInfo", err)
	}
	m.sink = sink
	_, m.seekable = sink.Tell()

	if err := m.writeHeaderAndSegment(); err != nil {
		return err
	}
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaStart(m.opts.Options, info, info.Timescale, muxer.WebM)
	}
	return nil
}

func (m *Muxer) writeHeaderAndSegment() error {
	header := element(idEBML, concat(
		uintElement(idEBMLVersion, 1),
		uintElement(idEBMLReadVersion, 1),
		uintElement(idEBMLMaxIDLength, 4),
		uintElement(idEBMLMaxSizeLength, 8),
		stringElement(idDocType, "webm"),
		uintElement(idDocTypeVersion, 4),
		uintElement(idDocTypeReadVersion, 2),
	))
	if _, err := m.sink.Write(header); err != nil {
		return status.New(status.FileFailure, "webmmux.writeHeaderAndSegment", err)
	}

	w := bitio.NewWriter(16)
	writeElementID(w, idSegment)
	w.Raw(unknownSizeMarker)
	if _, err := m.sink.Write(w.Bytes()); err != nil {
		return status.New(status.FileFailure, "webmmux.writeHeaderAndSegment", err)
	}
	if pos, ok := m.sink.Tell(); ok {
		m.segmentPos = pos
	}

	if m.seekable {
		// Reserve space for a SeekHead as a Void placeholder. Nothing
		// fills it later, so it stays a Void in the output.
		voidPayload := make([]byte, 64)
		if _, err := m.sink.Write(element(idVoid, voidPayload)); err != nil {
			return status.New(status.FileFailure, "webmmux.writeHeaderAndSegment", err)
		}
	}

	if err := m.writeInfo(); err != nil {
		return err
	}
	return m.writeTracks()
}

func (m *Muxer) writeInfo() error {
	scale := uint64(1_000_000_000 / uint64(max32(m.timescale, 1)))
	info := element(idInfo, concat(
		uintElement(idTimecodeScale, scale),
		stringElement(idMuxingApp, "go-webdl/packager"),
		stringElement(idWritingApp, "go-webdl/packager"),
	))
	_, err := m.sink.Write(info)
	if err != nil {
		return status.New(status.FileFailure, "webmmux.writeInfo", err)
	}
	return nil
}

func max32(v, floor uint32) uint32 {
	if v < floor {
		return floor
	}
	return v
}

func (m *Muxer) writeTracks() error {
	var trackType byte
	var payload []byte
	switch m.info.Kind {
	case media.Video:
		trackType = trackTypeVideo
		payload = concat(
			uintElement(idTrackNumber, m.trackNumber),
			uintElement(idTrackUID, m.trackNumber),
			uintElement(idTrackType, uint64(trackType)),
			stringElement(idCodecID, webmCodecID(m.info.CodecString)),
			element(idVideo, concat(
				uintElement(idPixelWidth, uint64(m.info.Width)),
				uintElement(idPixelHeight, uint64(m.info.Height)),
			)),
		)
	case media.Audio:
		trackType = trackTypeAudio
		payload = concat(
			uintElement(idTrackNumber, m.trackNumber),
			uintElement(idTrackUID, m.trackNumber),
			uintElement(idTrackType, uint64(trackType)),
			stringElement(idCodecID, webmCodecID(m.info.CodecString)),
			element(idAudio, concat(
				floatElement(idSamplingFrequency, float64(m.info.SampleRate)),
				uintElement(idChannels, uint64(m.info.ChannelCount)),
			)),
		)
	default:
		return status.Newf(status.InvalidArgument, nil, "webmmux: unsupported stream kind %v", m.info.Kind)
	}

	tracks := element(idTracks, element(idTrackEntry, payload))
	if _, err := m.sink.Write(tracks); err != nil {
		return status.New(status.FileFailure, "webmmux.writeTracks", err)
	}
	return nil
}

// webmCodecID maps an RFC 6381 codec string to a Matroska CodecID.
func webmCodecID(codecString string) string {
	switch {
	case hasPrefix(codecString, "vp08"), hasPrefix(codecString, "vp8"):
		return "V_VP8"
	case hasPrefix(codecString, "vp09"), hasPrefix(codecString, "vp9"):
		return "V_VP9"
	case hasPrefix(codecString, "av01"):
		return "V_AV1"
	case hasPrefix(codecString, "opus"):
		return "A_OPUS"
	case hasPrefix(codecString, "vorbis"):
		return "A_VORBIS"
	default:
		return "V_VP9"
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (m *Muxer) onMediaSample(s *media.MediaSample) error {
	if !m.clusterOpen {
		m.clusterTimecode = s.PTS
		m.clusterBlocks = m.clusterBlocks[:0]
		m.clusterOpen = true
	}

	rel := s.PTS - m.clusterTimecode
	flags := byte(0)
	if s.IsKeyFrame {
		flags = 0x80
	}

	scratch := bufpool.Get(len(s.Payload) + 16)
	defer bufpool.Put(scratch)
	bw := bitio.NewWriterFromBuf(scratch)
	writeTrackVint(bw, m.trackNumber)
	bw.U16(uint16(int16(rel)))
	bw.U8(flags)
	bw.Raw(s.Payload)

	m.clusterBlocks = append(m.clusterBlocks, element(idSimpleBlock, bw.Bytes())...)
	return nil
}

// writeTrackVint writes the SimpleBlock's leading track-number VINT.
func writeTrackVint(w *bitio.Writer, trackNumber uint64) {
	writeSize(w, trackNumber)
}

func (m *Muxer) onSegmentInfo(si *media.SegmentInfo) error {
	if si.IsSubsegment || si.IsChunk {
		return nil
	}
	return m.flushCluster(si)
}

func (m *Muxer) flushCluster(si *media.SegmentInfo) error {
	if !m.clusterOpen {
		return nil
	}
	clusterPos, _ := m.sink.Tell()
	payload := concat(uintElement(idTimecode, uint64(m.clusterTimecode)), m.clusterBlocks)
	cluster := element(idCluster, payload)
	n, err := m.sink.Write(cluster)
	if err != nil {
		return status.New(status.FileFailure, "webmmux.flushCluster", err)
	}
	m.segBytesWritten += int64(n)
	m.cuePoints = append(m.cuePoints, cuePoint{timecode: m.clusterTimecode, clusterPos: clusterPos})
	m.clusterOpen = false
	m.clusterBlocks = nil

	if m.opts.Listener != nil {
		if err := m.opts.Listener.OnNewSegment("", si.StartTimestamp, si.Duration, m.segBytesWritten, m.segmentNum+1); err != nil {
			return err
		}
		if err := m.opts.Listener.OnCompletedSegment(si.Duration, m.segBytesWritten); err != nil {
			return err
		}
	}
	m.segmentNum++
	return nil
}

func (m *Muxer) Flush(handler.InputPort) error {
	if m.sink == nil {
		return nil
	}
	if m.clusterOpen {
		if err := m.flushCluster(&media.SegmentInfo{}); err != nil {
			return err
		}
	}

	if m.seekable {
		if err := m.writeCuesAndSeekHead(); err != nil {
			return err
		}
	}

	if err := m.sink.Flush(); err != nil {
		return status.New(status.FileFailure, "webmmux.Flush", err)
	}
	if err := m.sink.Close(); err != nil {
		return status.New(status.FileFailure, "webmmux.Flush", err)
	}
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaEnd(nil, 0)
	}
	return nil
}

// writeCuesAndSeekHead appends a Cues element listing every cluster's
// position for seekable output; non-seekable sinks skip this entirely
// (mkv_writer.h's Seekable() contract). Despite its name it writes no
// SeekHead: the Void placeholder after the Segment header stays a Void.
func (m *Muxer) writeCuesAndSeekHead() error {
	if len(m.cuePoints) == 0 {
		return nil
	}
	var cuesPayload []byte
	for _, cp := range m.cuePoints {
		relPos := cp.clusterPos - m.segmentPos
		point := concat(
			uintElement(idCueTime, uint64(cp.timecode)),
			element(idCueTrackPositions, concat(
				uintElement(idCueTrack, m.trackNumber),
				uintElement(idCueClusterPosition, uint64(relPos)),
			)),
		)
		cuesPayload = append(cuesPayload, element(idCuePoint, point)...)
	}
	cues := element(idCues, cuesPayload)
	if _, err := m.sink.Write(cues); err != nil {
		return status.New(status.FileFailure, "webmmux.writeCuesAndSeekHead", err)
	}
	return nil
}

func concat(parts ...[]byte) []byte {
	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
