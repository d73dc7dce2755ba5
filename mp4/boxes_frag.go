package mp4

import "github.com/go-webdl/packager/bitio"

// MovieFragmentBox is moof.
type MovieFragmentBox struct{ ContainerBox }

func NewMoof() *MovieFragmentBox {
	b := &MovieFragmentBox{}
	b.Type = MoofBoxType
	return b
}

// MovieFragmentHeaderBox is mfhd.
type MovieFragmentHeaderBox struct {
	FullHeader
	SequenceNumber uint32
}

func NewMfhd() *MovieFragmentHeaderBox {
	b := &MovieFragmentHeaderBox{}
	b.Type = MfhdBoxType
	return b
}
func (b *MovieFragmentHeaderBox) Mp4BoxUpdate() error { b.size = 16; return nil }
func (b *MovieFragmentHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(b.SequenceNumber)
	return nil
}

// TrackFragmentBox is traf.
type TrackFragmentBox struct{ ContainerBox }

func NewTraf() *TrackFragmentBox {
	b := &TrackFragmentBox{}
	b.Type = TrafBoxType
	return b
}

const (
	FlagTfhdBaseDataOffsetPresent         uint32 = 0x000001
	FlagTfhdSampleDescriptionIndexPresent uint32 = 0x000002
	FlagTfhdDefaultSampleDurationPresent  uint32 = 0x000008
	FlagTfhdDefaultSampleSizePresent      uint32 = 0x000010
	FlagTfhdDefaultSampleFlagsPresent     uint32 = 0x000020
	FlagTfhdDurationIsEmpty               uint32 = 0x010000
	FlagTfhdDefaultBaseIsMoof              uint32 = 0x020000
)

// TrackFragmentHeaderBox is tfhd. Fields are only written when the
// corresponding flag bit is set, mirroring the box-size-minimizing
// elision shaka-packager performs when a fragment matches the track's
// trex defaults (see SPEC_FULL.md "Supplemented features").
type TrackFragmentHeaderBox struct {
	FullHeader
	TrackID                uint32
	BaseDataOffset         uint64
	SampleDescriptionIndex uint32
	DefaultSampleDuration  uint32
	DefaultSampleSize      uint32
	DefaultSampleFlags     uint32
}

func NewTfhd() *TrackFragmentHeaderBox {
	b := &TrackFragmentHeaderBox{}
	b.Type = TfhdBoxType
	return b
}

func (b *TrackFragmentHeaderBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 4
	if b.Flags&FlagTfhdBaseDataOffsetPresent != 0 {
		payload += 8
	}
	if b.Flags&FlagTfhdSampleDescriptionIndexPresent != 0 {
		payload += 4
	}
	if b.Flags&FlagTfhdDefaultSampleDurationPresent != 0 {
		payload += 4
	}
	if b.Flags&FlagTfhdDefaultSampleSizePresent != 0 {
		payload += 4
	}
	if b.Flags&FlagTfhdDefaultSampleFlagsPresent != 0 {
		payload += 4
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *TrackFragmentHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(b.TrackID)
	if b.Flags&FlagTfhdBaseDataOffsetPresent != 0 {
		w.U64(b.BaseDataOffset)
	}
	if b.Flags&FlagTfhdSampleDescriptionIndexPresent != 0 {
		w.U32(b.SampleDescriptionIndex)
	}
	if b.Flags&FlagTfhdDefaultSampleDurationPresent != 0 {
		w.U32(b.DefaultSampleDuration)
	}
	if b.Flags&FlagTfhdDefaultSampleSizePresent != 0 {
		w.U32(b.DefaultSampleSize)
	}
	if b.Flags&FlagTfhdDefaultSampleFlagsPresent != 0 {
		w.U32(b.DefaultSampleFlags)
	}
	return nil
}

// TrackFragmentDecodeTimeBox is tfdt.
type TrackFragmentDecodeTimeBox struct {
	FullHeader
	BaseMediaDecodeTime uint64
}

func NewTfdt() *TrackFragmentDecodeTimeBox {
	b := &TrackFragmentDecodeTimeBox{}
	b.Type = TfdtBoxType
	return b
}

func (b *TrackFragmentDecodeTimeBox) Mp4BoxUpdate() error {
	if b.BaseMediaDecodeTime > maxUint32 {
		b.Version = 1
	}
	payload := uint64(4)
	if b.Version == 1 {
		payload += 8
	} else {
		payload += 4
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *TrackFragmentDecodeTimeBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Version == 1 {
		w.U64(b.BaseMediaDecodeTime)
	} else {
		w.U32(uint32(b.BaseMediaDecodeTime))
	}
	return nil
}

// TrunSample is one sample's per-sample trun fields.
type TrunSample struct {
	Duration              uint32
	Size                  uint32
	Flags                 uint32
	CompositionTimeOffset int32
}

const (
	FlagTrunDataOffsetPresent       uint32 = 0x000001
	FlagTrunFirstSampleFlagsPresent uint32 = 0x000004
	FlagTrunSampleDurationPresent   uint32 = 0x000100
	FlagTrunSampleSizePresent       uint32 = 0x000200
	FlagTrunSampleFlagsPresent      uint32 = 0x000400
	FlagTrunSampleCTSPresent        uint32 = 0x000800
)

// SampleFlagNonSync is the sample_is_non_sync bit of the trun/tfhd
// sample-flags bitfield, whose layout (ISO/IEC 14496-12 §8.8.3.1) is
// reserved(4) is_leading(2) sample_depends_on(2)
// sample_is_depended_on(2) sample_has_redundancy(2) padding(3)
// sample_is_non_sync(1) degradation_priority(16).
const SampleFlagNonSync uint32 = 0x00010000

// TrackRunBox is trun. DataOffset is a placeholder until the byte-offset
// fix-up pass (mp4mux) patches it once the enclosing moof's size is known;
// DataOffsetBytePos records where in the marshaled buffer that patch lands.
type TrackRunBox struct {
	FullHeader
	Samples           []TrunSample
	DataOffset        int32
	FirstSampleFlags  uint32
	dataOffsetBytePos int
}

func NewTrun() *TrackRunBox {
	b := &TrackRunBox{}
	b.Type = TrunBoxType
	b.Flags = FlagTrunDataOffsetPresent | FlagTrunSampleDurationPresent |
		FlagTrunSampleSizePresent | FlagTrunSampleFlagsPresent
	b.dataOffsetBytePos = -1
	return b
}

// DataOffsetBytePos returns the absolute byte offset (within the buffer
// this box was last Marshal'd into) of the data_offset field, or -1 if it
// has not been marshaled yet or the flag is unset.
func (b *TrackRunBox) DataOffsetBytePos() int { return b.dataOffsetBytePos }

func (b *TrackRunBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 4
	if b.Flags&FlagTrunDataOffsetPresent != 0 {
		payload += 4
	}
	if b.Flags&FlagTrunFirstSampleFlagsPresent != 0 {
		payload += 4
	}
	perSample := uint64(0)
	if b.Flags&FlagTrunSampleDurationPresent != 0 {
		perSample += 4
	}
	if b.Flags&FlagTrunSampleSizePresent != 0 {
		perSample += 4
	}
	if b.Flags&FlagTrunSampleFlagsPresent != 0 {
		perSample += 4
	}
	if b.Flags&FlagTrunSampleCTSPresent != 0 {
		perSample += 4
	}
	payload += perSample * uint64(len(b.Samples))
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *TrackRunBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(uint32(len(b.Samples)))
	if b.Flags&FlagTrunDataOffsetPresent != 0 {
		b.dataOffsetBytePos = w.Len()
		w.I32(b.DataOffset)
	} else {
		b.dataOffsetBytePos = -1
	}
	if b.Flags&FlagTrunFirstSampleFlagsPresent != 0 {
		w.U32(b.FirstSampleFlags)
	}
	for _, s := range b.Samples {
		if b.Flags&FlagTrunSampleDurationPresent != 0 {
			w.U32(s.Duration)
		}
		if b.Flags&FlagTrunSampleSizePresent != 0 {
			w.U32(s.Size)
		}
		if b.Flags&FlagTrunSampleFlagsPresent != 0 {
			w.U32(s.Flags)
		}
		if b.Flags&FlagTrunSampleCTSPresent != 0 {
			if b.Version == 1 {
				w.I32(s.CompositionTimeOffset)
			} else {
				w.U32(uint32(s.CompositionTimeOffset))
			}
		}
	}
	return nil
}

// SampleAuxiliaryInfoSizesBox is saiz.
type SampleAuxiliaryInfoSizesBox struct {
	FullHeader
	AuxInfoType         FourCC
	AuxInfoTypeParameter uint32
	DefaultSampleInfoSize uint8
	SampleInfoSizes      []uint8 // only when DefaultSampleInfoSize == 0
}

func NewSaiz() *SampleAuxiliaryInfoSizesBox {
	b := &SampleAuxiliaryInfoSizesBox{}
	b.Type = SaizBoxType
	return b
}

func (b *SampleAuxiliaryInfoSizesBox) Mp4BoxUpdate() error {
	payload := uint64(4)
	if b.Flags&0x1 != 0 {
		payload += 8
	}
	payload += 1 + 4
	if b.DefaultSampleInfoSize == 0 {
		payload += uint64(len(b.SampleInfoSizes))
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *SampleAuxiliaryInfoSizesBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Flags&0x1 != 0 {
		w.Raw(b.AuxInfoType[:])
		w.U32(b.AuxInfoTypeParameter)
	}
	w.U8(b.DefaultSampleInfoSize)
	w.U32(uint32(len(b.SampleInfoSizes)))
	if b.DefaultSampleInfoSize == 0 {
		for _, s := range b.SampleInfoSizes {
			w.U8(s)
		}
	}
	return nil
}

// SampleAuxiliaryInfoOffsetsBox is saio. Like trun's data_offset, Offsets
// is a placeholder patched once the enclosing moof's senc position is
// known.
type SampleAuxiliaryInfoOffsetsBox struct {
	FullHeader
	AuxInfoType          FourCC
	AuxInfoTypeParameter uint32
	Offsets              []uint64
	offsetBytePos        int
}

func NewSaio() *SampleAuxiliaryInfoOffsetsBox {
	b := &SampleAuxiliaryInfoOffsetsBox{}
	b.Type = SaioBoxType
	return b
}

// OffsetBytePos returns the byte position of the (single) offset entry
// this muxer always writes, for the post-serialization patch pass.
func (b *SampleAuxiliaryInfoOffsetsBox) OffsetBytePos() int { return b.offsetBytePos }

func (b *SampleAuxiliaryInfoOffsetsBox) Mp4BoxUpdate() error {
	if len(b.Offsets) > 0 && b.Offsets[0] > maxUint32 {
		b.Version = 1
	}
	payload := uint64(4)
	if b.Flags&0x1 != 0 {
		payload += 8
	}
	payload += 4
	entrySize := uint64(4)
	if b.Version == 1 {
		entrySize = 8
	}
	payload += entrySize * uint64(len(b.Offsets))
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *SampleAuxiliaryInfoOffsetsBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Flags&0x1 != 0 {
		w.Raw(b.AuxInfoType[:])
		w.U32(b.AuxInfoTypeParameter)
	}
	w.U32(uint32(len(b.Offsets)))
	for i, o := range b.Offsets {
		if i == 0 {
			b.offsetBytePos = w.Len()
		}
		if b.Version == 1 {
			w.U64(o)
		} else {
			w.U32(uint32(o))
		}
	}
	return nil
}

// SencSample is one sample's per-sample-IV + subsample partition, as
// handed off by the encryptor via DecryptConfig.
type SencSample struct {
	IV         []byte // 8 or 16 bytes
	Subsamples []SencSubsample
}

type SencSubsample struct {
	ClearBytes  uint16
	CipherBytes uint32
}

// SampleEncryptionBox is senc. Flags bit 0x2 (use-subsample-encryption) is
// set automatically by Mp4BoxUpdate when any sample carries subsamples.
type SampleEncryptionBox struct {
	FullHeader
	Samples []SencSample
}

func NewSenc() *SampleEncryptionBox {
	b := &SampleEncryptionBox{}
	b.Type = SencBoxType
	return b
}

const FlagSencUseSubsampleEncryption uint32 = 0x000002

func (b *SampleEncryptionBox) Mp4BoxUpdate() error {
	useSubsamples := false
	for _, s := range b.Samples {
		if len(s.Subsamples) > 0 {
			useSubsamples = true
			break
		}
	}
	if useSubsamples {
		b.Flags |= FlagSencUseSubsampleEncryption
	} else {
		b.Flags &^= FlagSencUseSubsampleEncryption
	}
	payload := uint64(4) + 4
	for _, s := range b.Samples {
		payload += uint64(len(s.IV))
		if useSubsamples {
			payload += 2 + uint64(len(s.Subsamples))*6
		}
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *SampleEncryptionBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(uint32(len(b.Samples)))
	useSubsamples := b.Flags&FlagSencUseSubsampleEncryption != 0
	for _, s := range b.Samples {
		w.Raw(s.IV)
		if useSubsamples {
			w.U16(uint16(len(s.Subsamples)))
			for _, ss := range s.Subsamples {
				w.U16(ss.ClearBytes)
				w.U32(ss.CipherBytes)
			}
		}
	}
	return nil
}

// MediaDataBox is mdat.
type MediaDataBox struct {
	Header
	Payload []byte
}

func NewMdat(payload []byte) *MediaDataBox {
	b := &MediaDataBox{Payload: payload}
	b.Type = MdatBoxType
	return b
}

func (b *MediaDataBox) Mp4BoxUpdate() error {
	payload := uint64(len(b.Payload))
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *MediaDataBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	w.Raw(b.Payload)
	return nil
}

// SidxReference is one (offset, duration, SAP-type) reference; ReferenceType
// 0 means it points at media (a moof+mdat), 1 means it points at a nested
// sidx.
type SidxReference struct {
	ReferenceType      uint8
	ReferencedSize     uint32
	SubsegmentDuration uint32
	StartsWithSAP      bool
	SAPType            uint8
	SAPDeltaTime        uint32
}

// SegmentIndexBox is sidx.
type SegmentIndexBox struct {
	FullHeader
	ReferenceID           uint32
	Timescale             uint32
	EarliestPresentationTime uint64
	FirstOffset           uint64
	References            []SidxReference
}

func NewSidx() *SegmentIndexBox {
	b := &SegmentIndexBox{}
	b.Type = SidxBoxType
	return b
}

func (b *SegmentIndexBox) Mp4BoxUpdate() error {
	if b.EarliestPresentationTime > maxUint32 || b.FirstOffset > maxUint32 {
		b.Version = 1
	}
	payload := uint64(4) + 4 + 4
	if b.Version == 1 {
		payload += 8 + 8
	} else {
		payload += 4 + 4
	}
	payload += 2 + 2 // reserved, reference_count
	payload += uint64(len(b.References)) * 12
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *SegmentIndexBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(b.ReferenceID)
	w.U32(b.Timescale)
	if b.Version == 1 {
		w.U64(b.EarliestPresentationTime)
		w.U64(b.FirstOffset)
	} else {
		w.U32(uint32(b.EarliestPresentationTime))
		w.U32(uint32(b.FirstOffset))
	}
	w.U16(0) // reserved
	w.U16(uint16(len(b.References)))
	for _, ref := range b.References {
		refTypeAndSize := uint32(ref.ReferenceType&0x1)<<31 | ref.ReferencedSize&0x7FFFFFFF
		w.U32(refTypeAndSize)
		w.U32(ref.SubsegmentDuration)
		sap := uint32(0)
		if ref.StartsWithSAP {
			sap |= 1 << 31
		}
		sap |= uint32(ref.SAPType&0xF) << 28
		sap |= ref.SAPDeltaTime & 0x0FFFFFFF
		w.U32(sap)
	}
	return nil
}

// EventMessageBox is emsg (DASH event message), written in the version 0
// or version 1 layout according to Version (ISO/IEC 23009-1 Annex I).
type EventMessageBox struct {
	FullHeader
	SchemeIDURI          string
	Value                string
	Timescale            uint32
	PresentationTimeDelta uint32
	PresentationTime     uint64
	EventDuration        uint32
	ID                   uint32
	MessageData          []byte
}

func NewEmsg() *EventMessageBox {
	b := &EventMessageBox{}
	b.Type = EmsgBoxType
	return b
}

func (b *EventMessageBox) Mp4BoxUpdate() error {
	uriLen := uint64(len(b.SchemeIDURI)) + 1 + uint64(len(b.Value)) + 1
	payload := uint64(4)
	if b.Version == 1 {
		payload += 4 + 8 + 4 + 4 + uriLen
	} else {
		payload += uriLen + 4 + 4 + 4 + 4
	}
	payload += uint64(len(b.MessageData))
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *EventMessageBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Version == 1 {
		w.U32(b.Timescale)
		w.U64(b.PresentationTime)
		w.U32(b.EventDuration)
		w.U32(b.ID)
		w.Raw([]byte(b.SchemeIDURI))
		w.U8(0)
		w.Raw([]byte(b.Value))
		w.U8(0)
	} else {
		w.Raw([]byte(b.SchemeIDURI))
		w.U8(0)
		w.Raw([]byte(b.Value))
		w.U8(0)
		w.U32(b.Timescale)
		w.U32(b.PresentationTimeDelta)
		w.U32(b.EventDuration)
		w.U32(b.ID)
	}
	w.Raw(b.MessageData)
	return nil
}
