package mp4

import (
	"github.com/go-webdl/packager/bitio"
)

// FileTypeBox is ftyp (and, with the same layout, styp).
type FileTypeBox struct {
	Header
	MajorBrand       FourCC
	MinorVersion     uint32
	CompatibleBrands []FourCC
}

func NewStypBox() *FileTypeBox {
	b := &FileTypeBox{}
	b.Type = StypBoxType
	return b
}

func (b *FileTypeBox) Mp4BoxUpdate() error {
	b.size = headerWidth(0) + 8 + uint64(len(b.CompatibleBrands))*4
	return nil
}

func (b *FileTypeBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	w.Raw(b.MajorBrand[:])
	w.U32(b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		w.Raw(brand[:])
	}
	return nil
}

// MovieBox is moov.
type MovieBox struct{ ContainerBox }

func NewMovieBox() *MovieBox {
	b := &MovieBox{}
	b.Type = MoovBoxType
	return b
}

// MovieHeaderBox is mvhd.
type MovieHeaderBox struct {
	FullHeader
	Timescale   uint32
	Duration    uint64
	Rate        int32
	Volume      int16
	Matrix      [9]int32
	NextTrackID uint32
}

func NewMvhd() *MovieHeaderBox {
	b := &MovieHeaderBox{}
	b.Type = MvhdBoxType
	return b
}

func (b *MovieHeaderBox) Mp4BoxUpdate() error {
	width := uint64(4) // timescale
	if b.Version == 1 {
		width += 8 + 8 // creation+mod (8+8) handled below too; recompute precisely
	}
	_ = width
	payload := uint64(4) // fullheader
	if b.Version == 1 {
		payload += 8 + 8 + 4 + 8 // creation_time, mod_time, timescale, duration (64-bit)
	} else {
		payload += 4 + 4 + 4 + 4
	}
	payload += 4 + 2 + 2 + 4*2 + 9*4 + 6*4 + 4 // rate,volume,reserved,matrix,predefined,next_track_id
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *MovieHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Version == 1 {
		w.U64(0) // creation_time
		w.U64(0) // modification_time
		w.U32(b.Timescale)
		w.U64(b.Duration)
	} else {
		w.U32(0)
		w.U32(0)
		w.U32(b.Timescale)
		w.U32(uint32(b.Duration))
	}
	w.I32(b.Rate)
	w.Raw([]byte{byte(b.Volume >> 8), byte(b.Volume)})
	w.U16(0) // reserved
	w.U32(0)
	w.U32(0) // reserved[2]
	for _, m := range b.Matrix {
		w.I32(m)
	}
	for i := 0; i < 6; i++ {
		w.U32(0) // pre_defined
	}
	w.U32(b.NextTrackID)
	return nil
}

// TrackBox is trak.
type TrackBox struct{ ContainerBox }

func NewTrak() *TrackBox {
	b := &TrackBox{}
	b.Type = TrakBoxType
	return b
}

const (
	FlagTkhdTrackEnabled   uint32 = 0x000001
	FlagTkhdTrackInMovie   uint32 = 0x000002
	FlagTkhdTrackInPreview uint32 = 0x000004
)

// TrackHeaderBox is tkhd.
type TrackHeaderBox struct {
	FullHeader
	TrackID  uint32
	Duration uint64
	Width    uint32 // 16.16 fixed point
	Height   uint32
	Volume   int16
	Matrix   [9]int32
}

func NewTkhd() *TrackHeaderBox {
	b := &TrackHeaderBox{}
	b.Type = TkhdBoxType
	return b
}

func (b *TrackHeaderBox) Mp4BoxUpdate() error {
	payload := uint64(8)
	if b.Version == 1 {
		payload += 8 + 8 + 4 + 4 + 8 // creation,mod,track_id,reserved,duration
	} else {
		payload += 4 + 4 + 4 + 4 + 4
	}
	payload += 8 + 2 + 2 + 9*4 + 4 + 4 // reserved2,layer,alt_group,volume,reserved,matrix,width,height
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *TrackHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Version == 1 {
		w.U64(0)
		w.U64(0)
		w.U32(b.TrackID)
		w.U32(0)
		w.U64(b.Duration)
	} else {
		w.U32(0)
		w.U32(0)
		w.U32(b.TrackID)
		w.U32(0)
		w.U32(uint32(b.Duration))
	}
	w.U64(0) // reserved[2]
	w.U16(0) // layer
	w.U16(0) // alternate_group
	w.Raw([]byte{byte(b.Volume >> 8), byte(b.Volume)})
	w.U16(0) // reserved
	for _, m := range b.Matrix {
		w.I32(m)
	}
	w.U32(b.Width << 16)
	w.U32(b.Height << 16)
	return nil
}

// MediaBox is mdia.
type MediaBox struct{ ContainerBox }

func NewMdia() *MediaBox {
	b := &MediaBox{}
	b.Type = MdiaBoxType
	return b
}

// MediaHeaderBox is mdhd.
type MediaHeaderBox struct {
	FullHeader
	Timescale uint32
	Duration  uint64
	// Language is the packed-5-bit ISO-639-2/T code; use PackLanguage.
	Language uint16
}

func NewMdhd() *MediaHeaderBox {
	b := &MediaHeaderBox{}
	b.Type = MdhdBoxType
	return b
}

// PackLanguage packs a 3-letter ISO-639-2/T code into mdhd's 15-bit field
// per ISO/IEC 14496-12 §8.4.2.3 (each letter is code-0x60, 5 bits).
func PackLanguage(code3 string) uint16 {
	if len(code3) != 3 {
		return 0x55C4 // "und"
	}
	var v uint16
	for i := 0; i < 3; i++ {
		v = (v << 5) | uint16(code3[i]-0x60)
	}
	return v
}

func (b *MediaHeaderBox) Mp4BoxUpdate() error {
	payload := uint64(4)
	if b.Version == 1 {
		payload += 8 + 8 + 4 + 8
	} else {
		payload += 4 + 4 + 4 + 4
	}
	payload += 2 + 2 // language, pre_defined
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *MediaHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Version == 1 {
		w.U64(0)
		w.U64(0)
		w.U32(b.Timescale)
		w.U64(b.Duration)
	} else {
		w.U32(0)
		w.U32(0)
		w.U32(b.Timescale)
		w.U32(uint32(b.Duration))
	}
	w.U16(b.Language)
	w.U16(0)
	return nil
}

// HandlerBox is hdlr.
type HandlerBox struct {
	FullHeader
	HandlerType FourCC
	Name        string
}

func NewHdlr() *HandlerBox {
	b := &HandlerBox{}
	b.Type = HdlrBoxType
	return b
}

func (b *HandlerBox) Mp4BoxUpdate() error {
	payload := uint64(8) + 4 + 12 + uint64(len(b.Name)) + 1
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *HandlerBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(0) // pre_defined
	w.Raw(b.HandlerType[:])
	w.U32(0)
	w.U32(0)
	w.U32(0) // reserved[3]
	w.Raw([]byte(b.Name))
	w.U8(0)
	return nil
}

// MediaInformationBox is minf.
type MediaInformationBox struct{ ContainerBox }

func NewMinf() *MediaInformationBox {
	b := &MediaInformationBox{}
	b.Type = MinfBoxType
	return b
}

// VideoMediaHeaderBox is vmhd.
type VideoMediaHeaderBox struct{ FullHeader }

func NewVmhd() *VideoMediaHeaderBox {
	b := &VideoMediaHeaderBox{}
	b.Type = VmhdBoxType
	b.Flags = 1
	return b
}

func (b *VideoMediaHeaderBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 2 + 2*3
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *VideoMediaHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U16(0) // graphicsmode
	w.U16(0)
	w.U16(0)
	w.U16(0) // opcolor
	return nil
}

// SoundMediaHeaderBox is smhd.
type SoundMediaHeaderBox struct{ FullHeader }

func NewSmhd() *SoundMediaHeaderBox {
	b := &SoundMediaHeaderBox{}
	b.Type = SmhdBoxType
	return b
}

func (b *SoundMediaHeaderBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 2 + 2
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *SoundMediaHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U16(0) // balance
	w.U16(0) // reserved
	return nil
}

// NullMediaHeaderBox is nmhd, used for text/subtitle tracks.
type NullMediaHeaderBox struct{ FullHeader }

func NewNmhd() *NullMediaHeaderBox {
	b := &NullMediaHeaderBox{}
	b.Type = NmhdBoxType
	return b
}

func (b *NullMediaHeaderBox) Mp4BoxUpdate() error {
	b.size = 12
	return nil
}

func (b *NullMediaHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	return nil
}

// DataInformationBox is dinf.
type DataInformationBox struct{ ContainerBox }

func NewDinf() *DataInformationBox {
	b := &DataInformationBox{}
	b.Type = DinfBoxType
	return b
}

const FlagDrefSameFile uint32 = 0x000001

// DataEntryBox is a 'url ' entry inside dref.
type DataEntryBox struct {
	FullHeader
	Location string
}

func NewUrlBox() *DataEntryBox {
	b := &DataEntryBox{}
	b.Type = UrlBoxType
	b.Flags = FlagDrefSameFile
	return b
}

func (b *DataEntryBox) Mp4BoxUpdate() error {
	payload := uint64(4)
	if b.Flags&FlagDrefSameFile == 0 {
		payload += uint64(len(b.Location)) + 1
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *DataEntryBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	if b.Flags&FlagDrefSameFile == 0 {
		w.Raw([]byte(b.Location))
		w.U8(0)
	}
	return nil
}

// DataReferenceBox is dref.
type DataReferenceBox struct {
	Header
	Entries []Box
}

func NewDref() *DataReferenceBox {
	b := &DataReferenceBox{}
	b.Type = DrefBoxType
	return b
}

func (b *DataReferenceBox) Mp4BoxAppend(child Box) error {
	b.Entries = append(b.Entries, child)
	return b.Mp4BoxUpdate()
}

func (b *DataReferenceBox) Mp4BoxChildren() []Box { return b.Entries }

func (b *DataReferenceBox) Mp4BoxReplaceChildren(children []Box) error {
	b.Entries = children
	return b.Mp4BoxUpdate()
}

func (b *DataReferenceBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 4
	for _, e := range b.Entries {
		if err := e.Mp4BoxUpdate(); err != nil {
			return err
		}
		payload += e.Mp4BoxSize()
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *DataReferenceBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	w.U8(0)
	w.U24(0) // full-header version/flags, always 0 here
	w.U32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		if err := e.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// SampleTableBox is stbl.
type SampleTableBox struct{ ContainerBox }

func NewStbl() *SampleTableBox {
	b := &SampleTableBox{}
	b.Type = StblBoxType
	return b
}

// SampleDescriptionBox is stsd; its one entry is the codec sample entry
// (avc1/hvc1/mp4a/encv/enca/...).
type SampleDescriptionBox struct {
	FullHeader
	Entries []Box
}

func NewStsd() *SampleDescriptionBox {
	b := &SampleDescriptionBox{}
	b.Type = StsdBoxType
	return b
}

func (b *SampleDescriptionBox) Mp4BoxAppend(child Box) error {
	b.Entries = append(b.Entries, child)
	return b.Mp4BoxUpdate()
}
func (b *SampleDescriptionBox) Mp4BoxChildren() []Box { return b.Entries }
func (b *SampleDescriptionBox) Mp4BoxReplaceChildren(children []Box) error {
	b.Entries = children
	return b.Mp4BoxUpdate()
}

func (b *SampleDescriptionBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 4
	for _, e := range b.Entries {
		if err := e.Mp4BoxUpdate(); err != nil {
			return err
		}
		payload += e.Mp4BoxSize()
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *SampleDescriptionBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(uint32(len(b.Entries)))
	for _, e := range b.Entries {
		if err := e.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// The four empty sample tables a fragmented track carries in its init
// segment: stts/stsc/stco/stsz carry zero entries because all timing and
// offset information lives in the fragments' tfhd/tfdt/trun instead.

type TimeToSampleBox struct{ FullHeader }

func NewStts() *TimeToSampleBox {
	b := &TimeToSampleBox{}
	b.Type = SttsBoxType
	return b
}
func (b *TimeToSampleBox) Mp4BoxUpdate() error { b.size = 16; return nil }
func (b *TimeToSampleBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(0)
	return nil
}

type SampleToChunkBox struct{ FullHeader }

func NewStsc() *SampleToChunkBox {
	b := &SampleToChunkBox{}
	b.Type = StscBoxType
	return b
}
func (b *SampleToChunkBox) Mp4BoxUpdate() error { b.size = 16; return nil }
func (b *SampleToChunkBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(0)
	return nil
}

type ChunkOffsetBox struct{ FullHeader }

func NewStco() *ChunkOffsetBox {
	b := &ChunkOffsetBox{}
	b.Type = StcoBoxType
	return b
}
func (b *ChunkOffsetBox) Mp4BoxUpdate() error { b.size = 16; return nil }
func (b *ChunkOffsetBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(0)
	return nil
}

type SampleSizeBox struct{ FullHeader }

func NewStsz() *SampleSizeBox {
	b := &SampleSizeBox{}
	b.Type = StszBoxType
	return b
}
func (b *SampleSizeBox) Mp4BoxUpdate() error { b.size = 20; return nil }
func (b *SampleSizeBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(0) // sample_size
	w.U32(0) // sample_count
	return nil
}

// MovieExtendsBox is mvex.
type MovieExtendsBox struct{ ContainerBox }

func NewMvex() *MovieExtendsBox {
	b := &MovieExtendsBox{}
	b.Type = MvexBoxType
	return b
}

// TrackExtendsBox is trex, the per-track fragment defaults that tfhd/trun
// elide when a fragment matches them exactly.
type TrackExtendsBox struct {
	FullHeader
	TrackID                      uint32
	DefaultSampleDescrptionIndex uint32
	DefaultSampleDuration        uint32
	DefaultSampleSize            uint32
	DefaultSampleFlags           uint32
}

func NewTrex() *TrackExtendsBox {
	b := &TrackExtendsBox{}
	b.Type = TrexBoxType
	b.DefaultSampleDescrptionIndex = 1
	return b
}

func (b *TrackExtendsBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 4*5
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *TrackExtendsBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U32(b.TrackID)
	w.U32(b.DefaultSampleDescrptionIndex)
	w.U32(b.DefaultSampleDuration)
	w.U32(b.DefaultSampleSize)
	w.U32(b.DefaultSampleFlags)
	return nil
}

// ProtectionSystemSpecificHeaderBox is pssh.
type ProtectionSystemSpecificHeaderBox struct {
	FullHeader
	SystemID [16]byte
	KeyIDs   [][16]byte // only written when Version == 1
	Data     []byte
}

func NewPssh() *ProtectionSystemSpecificHeaderBox {
	b := &ProtectionSystemSpecificHeaderBox{}
	b.Type = PsshBoxType
	return b
}

func (b *ProtectionSystemSpecificHeaderBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 16
	if b.Version > 0 {
		payload += 4 + uint64(len(b.KeyIDs))*16
	}
	payload += 4 + uint64(len(b.Data))
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *ProtectionSystemSpecificHeaderBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.Raw(b.SystemID[:])
	if b.Version > 0 {
		w.U32(uint32(len(b.KeyIDs)))
		for _, kid := range b.KeyIDs {
			w.Raw(kid[:])
		}
	}
	w.U32(uint32(len(b.Data)))
	w.Raw(b.Data)
	return nil
}

// OriginalFormatBox is frma.
type OriginalFormatBox struct {
	Header
	DataFormat FourCC
}

func NewFrma() *OriginalFormatBox {
	b := &OriginalFormatBox{}
	b.Type = FrmaBoxType
	return b
}
func (b *OriginalFormatBox) Mp4BoxUpdate() error { b.size = 12; return nil }
func (b *OriginalFormatBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	w.Raw(b.DataFormat[:])
	return nil
}

// SchemeTypeBox is schm.
type SchemeTypeBox struct {
	FullHeader
	SchemeType    FourCC
	SchemeVersion uint32
}

func NewSchm() *SchemeTypeBox {
	b := &SchemeTypeBox{}
	b.Type = SchmBoxType
	return b
}
func (b *SchemeTypeBox) Mp4BoxUpdate() error { b.size = 20; return nil }
func (b *SchemeTypeBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.Raw(b.SchemeType[:])
	w.U32(b.SchemeVersion)
	return nil
}

// SchemeInformationBox is schi.
type SchemeInformationBox struct{ ContainerBox }

func NewSchi() *SchemeInformationBox {
	b := &SchemeInformationBox{}
	b.Type = SchiBoxType
	return b
}

// ProtectionSchemeInfoBox is sinf.
type ProtectionSchemeInfoBox struct{ ContainerBox }

func NewSinf() *ProtectionSchemeInfoBox {
	b := &ProtectionSchemeInfoBox{}
	b.Type = SinfBoxType
	return b
}

// TrackEncryptionBox is tenc. Pattern and constant-IV fields are only
// meaningful (and only written) for scheme FourCCs that use them; the
// encryptor and mp4mux packages are responsible for choosing values
// consistent with the active EncryptionConfig.
type TrackEncryptionBox struct {
	FullHeader
	DefaultCryptByteBlock  uint8 // high nibble of the reserved byte, cbcs/cens
	DefaultSkipByteBlock   uint8 // low nibble
	DefaultIsProtected     uint8
	DefaultPerSampleIVSize uint8
	DefaultKID             [16]byte
	DefaultConstantIV      []byte // 8 or 16 bytes when per-sample IV size is 0
}

func NewTenc() *TrackEncryptionBox {
	b := &TrackEncryptionBox{}
	b.Type = TencBoxType
	return b
}

func (b *TrackEncryptionBox) Mp4BoxUpdate() error {
	payload := uint64(4) + 1 + 1 + 1 + 1 + 16
	if b.DefaultPerSampleIVSize == 0 && len(b.DefaultConstantIV) > 0 {
		payload += 1 + uint64(len(b.DefaultConstantIV))
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *TrackEncryptionBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeFullHeader(w)
	w.U8(0) // reserved
	if b.Version == 0 {
		w.U8(0) // reserved
	} else {
		w.U8(b.DefaultCryptByteBlock<<4 | b.DefaultSkipByteBlock)
	}
	w.U8(b.DefaultIsProtected)
	w.U8(b.DefaultPerSampleIVSize)
	w.Raw(b.DefaultKID[:])
	if b.DefaultPerSampleIVSize == 0 && len(b.DefaultConstantIV) > 0 {
		w.U8(uint8(len(b.DefaultConstantIV)))
		w.Raw(b.DefaultConstantIV)
	}
	return nil
}
