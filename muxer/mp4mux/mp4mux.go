// Package mp4mux implements the fragmented-MP4 muxer state machine
// (spec.md §4.5): Idle → InitWritten → FragmentOpen → FragmentClosed →
// SegmentClosed → (Idle | Finalized). It builds the init segment
// (ftyp/moov/mvex[+pssh]) once per stream, then assembles one moof/mdat
// pair per chunker fragment, applying the trun.data_offset / saio.offset
// byte-offset fix-up pass once each fragment's size is known — following
// the box-tree-as-owned-value-with-a-patch-pass design the teacher's
// processors use for their own box assembly (moov_processor.go).
package mp4mux

import (
	"github.com/go-webdl/packager/bitio"
	"github.com/go-webdl/packager/filesink"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/internal/bufpool"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/mp4"
	"github.com/go-webdl/packager/muxer"
	"github.com/go-webdl/packager/status"
)

// State is the muxer's lifecycle stage, named per spec.md §4.5.
type State int

const (
	Idle State = iota
	InitWritten
	FragmentOpen
	FragmentClosed
	SegmentClosed
	Finalized
)

// Options configures one track's MP4 muxer in addition to the shared
// muxer.Options.
type Options struct {
	muxer.Options
	RepresentationID  string
	Bandwidth         uint64
	FirstSegmentNumber uint32
	// InitSegmentOnly emits ftyp+moov(+pssh) and stops: no fragments are
	// ever produced and Process returns immediately for every
	// KindMediaSample/KindSegmentInfo record after the init segment is
	// written (spec.md §4.5, testable property 10).
	InitSegmentOnly bool
}

// Muxer is a handler.Handler sitting at the tail of one stream's pipeline.
type Muxer struct {
	opts        Options
	streamIndex int
	info        *media.StreamInfo
	state       State

	sink       filesink.Sink
	segmentNum uint32
	seqNum     uint32

	decodeTime uint64 // running base_media_decode_time across the whole track

	curSamples  []mp4.TrunSample
	curPayload  []byte
	curSenc     []mp4.SencSample
	curStart    int64 // pts of the fragment's first sample
	curFirstDTS int64

	segBytesWritten int64 // bytes already flushed/buffered for the current segment
	segStartTime    int64
	sidxRefs        []mp4.SidxReference
	sidxBuffer      []byte // fragment bytes pending a prepended sidx
	stypWritten     bool

	keyFrames []media.KeyFrameInfo

	pssh []media.ProtectionSystemInfo
}

// New returns a Muxer for one output track.
func New(streamIndex int, opts Options) *Muxer {
	if opts.FirstSegmentNumber == 0 {
		opts.FirstSegmentNumber = 1
	}
	return &Muxer{opts: opts, streamIndex: streamIndex, segmentNum: opts.FirstSegmentNumber}
}

func (m *Muxer) Initialize() error { return nil }

func (m *Muxer) Process(rec handler.Record) error {
	switch rec.Kind {
	case handler.KindStreamInfo:
		return m.onStreamInfo(rec.StreamInfo)
	case handler.KindMediaSample:
		if m.opts.InitSegmentOnly {
			return nil
		}
		return m.onMediaSample(rec.MediaSample)
	case handler.KindSegmentInfo:
		if m.opts.InitSegmentOnly {
			return nil
		}
		return m.onSegmentInfo(rec.SegmentInfo)
	default:
		return nil
	}
}

func (m *Muxer) Flush(handler.InputPort) error {
	if m.opts.InitSegmentOnly {
		m.state = Finalized
		if m.opts.Listener != nil {
			return m.opts.Listener.OnMediaEnd(nil, 0)
		}
		return nil
	}
	if m.state == FragmentOpen && len(m.curSamples) > 0 {
		if err := m.onSegmentInfo(&media.SegmentInfo{StreamIndex: m.streamIndex, StartTimestamp: m.curStart}); err != nil {
			return err
		}
	}
	if m.sink != nil {
		if err := m.sink.Close(); err != nil {
			return status.New(status.FileFailure, "mp4mux.Flush", err)
		}
		m.sink = nil
	}
	m.state = Finalized
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaEnd(nil, int64(m.decodeTime))
	}
	return nil
}

// onStreamInfo builds and writes the ftyp+moov(+pssh) init segment.
func (m *Muxer) onStreamInfo(info *media.StreamInfo) error {
	m.info = info
	if info.Encryption != nil {
		m.pssh = info.Encryption.ProtectionSystems
	}

	ftyp := &mp4.FileTypeBox{MajorBrand: mp4.IsomFourCC, CompatibleBrands: []mp4.FourCC{mp4.IsomFourCC, mp4.Iso6FourCC, mp4.Dash}}
	ftyp.Mp4BoxSetType(mp4.FtypBoxType)

	moov, err := buildMoov(info)
	if err != nil {
		return status.New(status.MuxerFailure, "mp4mux.buildMoov", err)
	}

	scratch := bufpool.Get(4096)
	defer bufpool.Put(scratch)
	w := bitio.NewWriterFromBuf(scratch)
	if err := ftyp.Mp4BoxUpdate(); err != nil {
		return status.New(status.MuxerFailure, "ftyp.Mp4BoxUpdate", err)
	}
	if err := ftyp.Marshal(w); err != nil {
		return status.New(status.MuxerFailure, "ftyp.Marshal", err)
	}
	if err := moov.Mp4BoxUpdate(); err != nil {
		return status.New(status.MuxerFailure, "moov.Mp4BoxUpdate", err)
	}
	if err := moov.Marshal(w); err != nil {
		return status.New(status.MuxerFailure, "moov.Marshal", err)
	}
	if m.opts.IncludePsshInStream {
		for _, ps := range m.pssh {
			pssh := mp4.NewPssh()
			pssh.SystemID = ps.SystemID
			pssh.Data = ps.PsshData
			if len(ps.KeyIDs) > 0 {
				pssh.Version = 1
				pssh.KeyIDs = ps.KeyIDs
			}
			if err := pssh.Mp4BoxUpdate(); err != nil {
				return status.New(status.MuxerFailure, "pssh.Mp4BoxUpdate", err)
			}
			if err := pssh.Marshal(w); err != nil {
				return status.New(status.MuxerFailure, "pssh.Marshal", err)
			}
		}
	}

	name := muxer.FormatName(m.opts.InitSegmentTemplate, m.opts.RepresentationID, 0, 0, m.opts.Bandwidth)
	sink, err := filesink.Open(name, "w")
	if err != nil {
		return err
	}
	if _, err := sink.Write(w.Bytes()); err != nil {
		return status.New(status.FileFailure, "mp4mux init write", err)
	}
	if err := sink.Close(); err != nil {
		return status.New(status.FileFailure, "mp4mux init close", err)
	}

	m.state = InitWritten
	if m.opts.Listener != nil {
		return m.opts.Listener.OnMediaStart(m.opts.Options, info, info.Timescale, muxer.MP4)
	}
	return nil
}

func (m *Muxer) onMediaSample(s *media.MediaSample) error {
	if len(m.curSamples) == 0 {
		m.curStart = s.PTS
		m.curFirstDTS = s.DTS
	}
	flags := uint32(0)
	if !s.IsKeyFrame {
		flags = mp4.SampleFlagNonSync
	}
	m.curSamples = append(m.curSamples, mp4.TrunSample{
		Duration:              uint32(s.Duration),
		Size:                  uint32(len(s.Payload)),
		Flags:                 flags,
		CompositionTimeOffset: int32(s.PTS - s.DTS),
	})
	m.curPayload = append(m.curPayload, s.Payload...)

	if s.DecryptConfig != nil {
		senc := mp4.SencSample{IV: s.DecryptConfig.IV}
		for _, ss := range s.DecryptConfig.Subsamples {
			senc.Subsamples = append(senc.Subsamples, mp4.SencSubsample{
				ClearBytes:  uint16(ss.ClearBytes),
				CipherBytes: ss.CipherBytes,
			})
		}
		m.curSenc = append(m.curSenc, senc)
	}

	if s.IsKeyFrame && m.info != nil && m.info.Kind == media.Video {
		m.keyFrames = append(m.keyFrames, media.KeyFrameInfo{
			Timestamp: s.PTS,
			Size:      int64(len(s.Payload)),
		})
	}
	m.state = FragmentOpen
	return nil
}

// onSegmentInfo closes out the current fragment (sub)segment boundary.
func (m *Muxer) onSegmentInfo(si *media.SegmentInfo) error {
	if len(m.curSamples) == 0 {
		// Nothing accumulated (e.g. a stray boundary with no samples yet);
		// still honor a true segment close so the sink gets finalized.
		if !si.IsSubsegment && !si.IsChunk {
			return m.finalizeSegment(si)
		}
		return nil
	}

	blob, refSize, startsWithSAP, sapType, err := m.buildFragmentBlob()
	if err != nil {
		return err
	}
	defer bufpool.Put(blob)

	fragDuration := si.Duration

	switch {
	case si.IsChunk:
		if err := m.ensureSegmentSink(si); err != nil {
			return err
		}
		if err := m.writeDirect(blob); err != nil {
			return err
		}
		if err := m.sink.Flush(); err != nil {
			return status.New(status.FileFailure, "mp4mux chunk flush", err)
		}
	case m.useSidx():
		m.sidxBuffer = append(m.sidxBuffer, blob...)
		m.sidxRefs = append(m.sidxRefs, mp4.SidxReference{
			ReferencedSize:     refSize,
			SubsegmentDuration: uint32(fragDuration),
			StartsWithSAP:      startsWithSAP,
			SAPType:            sapType,
		})
	default:
		if err := m.ensureSegmentSink(si); err != nil {
			return err
		}
		if err := m.writeDirect(blob); err != nil {
			return err
		}
	}

	m.state = FragmentClosed
	m.resetFragment()

	if !si.IsSubsegment && !si.IsChunk {
		return m.finalizeSegment(si)
	}
	return nil
}

func (m *Muxer) useSidx() bool {
	return m.opts.GenerateSidxInMediaSegments && !m.opts.ChunkedLLDash
}

// ensureSegmentSink opens the output sink (and writes styp) the first time
// a fragment is written for this segment.
func (m *Muxer) ensureSegmentSink(si *media.SegmentInfo) error {
	if m.sink != nil {
		return nil
	}
	m.segStartTime = si.StartTimestamp
	name := muxer.FormatName(m.opts.SegmentTemplate, m.opts.RepresentationID, m.segmentNum, si.StartTimestamp, m.opts.Bandwidth)
	sink, err := filesink.Open(name, "w")
	if err != nil {
		return err
	}
	m.sink = sink
	m.segBytesWritten = 0
	return m.writeStyp()
}

func (m *Muxer) writeStyp() error {
	styp := &mp4.FileTypeBox{MajorBrand: mp4.MsdhFourCC, CompatibleBrands: []mp4.FourCC{mp4.MsdhFourCC, mp4.MsixFourCC}}
	styp.Mp4BoxSetType(mp4.StypBoxType)
	if err := styp.Mp4BoxUpdate(); err != nil {
		return status.New(status.MuxerFailure, "styp.Mp4BoxUpdate", err)
	}
	w := bitio.NewWriter(32)
	if err := styp.Marshal(w); err != nil {
		return status.New(status.MuxerFailure, "styp.Marshal", err)
	}
	return m.writeDirect(w.Bytes())
}

func (m *Muxer) writeDirect(p []byte) error {
	n, err := m.sink.Write(p)
	if err != nil {
		return status.New(status.FileFailure, "mp4mux write", err)
	}
	m.segBytesWritten += int64(n)
	return nil
}

// buildFragmentBlob assembles styp-less moof+mdat for the accumulated
// samples, patches trun.data_offset and saio.offset, and reports key-frame
// byte offsets relative to the whole blob's start.
func (m *Muxer) buildFragmentBlob() (blob []byte, size uint32, startsWithSAP bool, sapType uint8, err error) {
	m.seqNum++

	moof := mp4.NewMoof()
	mfhd := mp4.NewMfhd()
	mfhd.SequenceNumber = m.seqNum
	if err := moof.Mp4BoxAppend(mfhd); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "moof.append(mfhd)", err)
	}

	traf := mp4.NewTraf()

	tfhd := mp4.NewTfhd()
	tfhd.TrackID = m.info.TrackID
	tfhd.Flags = mp4.FlagTfhdDefaultBaseIsMoof
	if err := traf.Mp4BoxAppend(tfhd); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "traf.append(tfhd)", err)
	}

	tfdt := mp4.NewTfdt()
	tfdt.BaseMediaDecodeTime = uint64(m.curFirstDTS)
	if err := traf.Mp4BoxAppend(tfdt); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "traf.append(tfdt)", err)
	}

	trun := mp4.NewTrun()
	trun.Flags |= mp4.FlagTrunSampleCTSPresent
	trun.Samples = m.curSamples
	if err := traf.Mp4BoxAppend(trun); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "traf.append(trun)", err)
	}

	var saio *mp4.SampleAuxiliaryInfoOffsetsBox
	var senc *mp4.SampleEncryptionBox
	if len(m.curSenc) > 0 {
		saiz := mp4.NewSaiz()
		senc = mp4.NewSenc()
		senc.Samples = m.curSenc
		for _, s := range m.curSenc {
			infoSize := uint8(len(s.IV))
			if len(s.Subsamples) > 0 {
				infoSize += 2 + uint8(len(s.Subsamples))*6
			}
			saiz.SampleInfoSizes = append(saiz.SampleInfoSizes, infoSize)
		}
		saio = mp4.NewSaio()
		saio.Offsets = []uint64{0} // patched below, relative to moof start
		if err := traf.Mp4BoxAppend(saiz); err != nil {
			return nil, 0, false, 0, status.New(status.MuxerFailure, "traf.append(saiz)", err)
		}
		if err := traf.Mp4BoxAppend(saio); err != nil {
			return nil, 0, false, 0, status.New(status.MuxerFailure, "traf.append(saio)", err)
		}
		if err := traf.Mp4BoxAppend(senc); err != nil {
			return nil, 0, false, 0, status.New(status.MuxerFailure, "traf.append(senc)", err)
		}
	}

	if err := moof.Mp4BoxAppend(traf); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "moof.append(traf)", err)
	}

	mdat := mp4.NewMdat(m.curPayload)
	if err := mdat.Mp4BoxUpdate(); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "mdat.Mp4BoxUpdate", err)
	}

	scratch := bufpool.Get(int(moof.Mp4BoxSize()) + int(mdat.Mp4BoxSize()))
	w := bitio.NewWriterFromBuf(scratch)
	if err := moof.Marshal(w); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "moof.Marshal", err)
	}
	moofSize := w.Len()
	if err := mdat.Marshal(w); err != nil {
		return nil, 0, false, 0, status.New(status.MuxerFailure, "mdat.Marshal", err)
	}

	// data_offset is relative to the start of moof (default-base-is-moof);
	// the sample data begins right after moof's mdat header.
	mdatHeaderWidth := mp4headerWidth(mdat)
	dataOffset := int32(moofSize + mdatHeaderWidth)
	if pos := trun.DataOffsetBytePos(); pos >= 0 {
		if err := w.PatchU32(pos, uint32(dataOffset)); err != nil {
			return nil, 0, false, 0, status.New(status.MuxerFailure, "patch trun.data_offset", err)
		}
	}
	if saio != nil {
		// saio.offset is relative to the start of moof too, pointing past
		// senc's box header/fullheader/sample_count (8+4+4=16 bytes) at its
		// first IV byte; senc is traf's last child, so its box starts
		// moofSize-senc.Mp4BoxSize() bytes into this blob.
		if pos := saio.OffsetBytePos(); pos >= 0 {
			sencStart := uint32(moofSize) - uint32(senc.Mp4BoxSize())
			if err := w.PatchU32(pos, sencStart+16); err != nil {
				return nil, 0, false, 0, status.New(status.MuxerFailure, "patch saio.offset", err)
			}
		}
	}

	blob = w.Bytes()

	// Key-frame byte offsets are relative to the start of this blob; the
	// caller adds the segment's running byte count to make them
	// segment-relative before reporting to the listener.
	if m.info != nil && m.info.Kind == media.Video {
		offset := int64(moofSize) + int64(mdatHeaderWidth)
		for i, s := range m.curSamples {
			if s.Flags&mp4.SampleFlagNonSync == 0 {
				if m.opts.Listener != nil {
					if err := m.opts.Listener.OnKeyFrame(m.curStart, m.segBytesWritten+offset, int64(s.Size)); err != nil {
						return nil, 0, false, 0, err
					}
				}
				if i == 0 {
					startsWithSAP = true
					sapType = 1
				}
			}
			offset += int64(s.Size)
		}
	}

	return blob, uint32(len(blob)), startsWithSAP, sapType, nil
}

// mp4headerWidth returns 8 or 16 depending on whether mdat needed the
// 64-bit largesize extension.
func mp4headerWidth(mdat *mp4.MediaDataBox) int {
	if mdat.Mp4BoxSize()-uint64(len(mdat.Payload)) > 8 {
		return 16
	}
	return 8
}

func (m *Muxer) resetFragment() {
	m.curSamples = nil
	m.curPayload = nil
	m.curSenc = nil
}

func (m *Muxer) finalizeSegment(si *media.SegmentInfo) error {
	if m.useSidx() && len(m.sidxRefs) > 0 {
		if err := m.ensureSegmentSink(si); err != nil {
			return err
		}
		sidx := mp4.NewSidx()
		sidx.ReferenceID = m.info.TrackID
		sidx.Timescale = m.info.Timescale
		sidx.EarliestPresentationTime = uint64(m.segStartTime)
		sidx.References = m.sidxRefs
		if err := sidx.Mp4BoxUpdate(); err != nil {
			return status.New(status.MuxerFailure, "sidx.Mp4BoxUpdate", err)
		}
		w := bitio.NewWriter(int(sidx.Mp4BoxSize()))
		if err := sidx.Marshal(w); err != nil {
			return status.New(status.MuxerFailure, "sidx.Marshal", err)
		}
		if err := m.writeDirect(w.Bytes()); err != nil {
			return err
		}
		if err := m.writeDirect(m.sidxBuffer); err != nil {
			return err
		}
	}

	if m.sink == nil {
		// An empty segment boundary with nothing ever written; nothing to
		// finalize.
		m.advanceSegment()
		return nil
	}

	if err := m.sink.Close(); err != nil {
		return status.New(status.FileFailure, "mp4mux finalizeSegment", err)
	}

	if m.opts.Listener != nil {
		name := muxer.FormatName(m.opts.SegmentTemplate, m.opts.RepresentationID, m.segmentNum, m.segStartTime, m.opts.Bandwidth)
		if err := m.opts.Listener.OnNewSegment(name, m.segStartTime, si.Duration, m.segBytesWritten, m.segmentNum); err != nil {
			return err
		}
		if err := m.opts.Listener.OnCompletedSegment(si.Duration, m.segBytesWritten); err != nil {
			return err
		}
	}

	m.decodeTime += uint64(si.Duration)
	m.advanceSegment()
	m.state = SegmentClosed
	return nil
}

func (m *Muxer) advanceSegment() {
	m.segmentNum++
	m.sink = nil
	m.sidxRefs = nil
	m.sidxBuffer = nil
	m.stypWritten = false
	m.segBytesWritten = 0
}
