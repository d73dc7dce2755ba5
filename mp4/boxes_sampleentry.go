package mp4

import "github.com/go-webdl/packager/bitio"

// RawBox wraps an opaque, already-encoded box payload (avcC, hvcC, esds,
// dOps, ...) verbatim. The core does not parse codec bitstreams (spec.md
// §1 scope); StreamInfo's codec-configuration bytes are expected to
// already be a fully-formed box payload handed down by the demuxer/codec
// parser, so the muxer only needs to wrap them under the right box type.
type RawBox struct {
	Header
	Payload []byte
}

func NewRawBox(t FourCC, payload []byte) *RawBox {
	b := &RawBox{Payload: payload}
	b.Type = t
	return b
}

func (b *RawBox) Mp4BoxUpdate() error {
	payload := uint64(len(b.Payload))
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *RawBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	w.Raw(b.Payload)
	return nil
}

// SampleEntry is the common prefix of every stsd entry.
type SampleEntry struct {
	Header
	DataReferenceIndex uint16
}

func (s *SampleEntry) Mp4BoxSetType(t FourCC) { s.Type = t }

func (s *SampleEntry) writeCommon(w *bitio.Writer) {
	w.Raw(make([]byte, 6)) // reserved
	w.U16(s.DataReferenceIndex)
}

// VisualSampleEntryBox is avc1/hvc1/hev1/encv.
type VisualSampleEntryBox struct {
	SampleEntry
	Width, Height             uint16
	HorizResolution, VertResolution uint32
	FrameCount                uint16
	CompressorName             string
	Depth                      uint16
	Children                   []Box
}

func (b *VisualSampleEntryBox) Mp4BoxSetType(t FourCC) { b.Type = t }
func (b *VisualSampleEntryBox) Mp4BoxChildren() []Box  { return b.Children }
func (b *VisualSampleEntryBox) Mp4BoxReplaceChildren(children []Box) error {
	b.Children = children
	return b.Mp4BoxUpdate()
}
func (b *VisualSampleEntryBox) Mp4BoxAppend(child Box) error {
	b.Children = append(b.Children, child)
	return b.Mp4BoxUpdate()
}

func (b *VisualSampleEntryBox) Mp4BoxUpdate() error {
	payload := uint64(6+2) + 16 + 2 + 2 + 4*3 + 2 + 32 + 2 + 2
	for _, ch := range b.Children {
		if err := ch.Mp4BoxUpdate(); err != nil {
			return err
		}
		payload += ch.Mp4BoxSize()
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *VisualSampleEntryBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeCommon(w)
	w.U16(0)           // pre_defined
	w.U16(0)           // reserved
	w.U32(0)
	w.U32(0)
	w.U32(0) // pre_defined[3]
	w.U16(b.Width)
	w.U16(b.Height)
	w.U32(b.HorizResolution)
	w.U32(b.VertResolution)
	w.U32(0) // reserved
	w.U16(b.FrameCount)
	name := make([]byte, 32)
	name[0] = byte(len(b.CompressorName))
	copy(name[1:], b.CompressorName)
	w.Raw(name)
	w.U16(b.Depth)
	w.U16(0xFFFF) // pre_defined = -1
	for _, ch := range b.Children {
		if err := ch.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// AudioSampleEntryBox is mp4a/ac-3/ec-3/Opus/enca.
type AudioSampleEntryBox struct {
	SampleEntry
	ChannelCount uint16
	SampleSize   uint16
	SampleRate   uint32 // 16.16 fixed point
	Children     []Box
}

func (b *AudioSampleEntryBox) Mp4BoxSetType(t FourCC) { b.Type = t }
func (b *AudioSampleEntryBox) Mp4BoxChildren() []Box  { return b.Children }
func (b *AudioSampleEntryBox) Mp4BoxReplaceChildren(children []Box) error {
	b.Children = children
	return b.Mp4BoxUpdate()
}
func (b *AudioSampleEntryBox) Mp4BoxAppend(child Box) error {
	b.Children = append(b.Children, child)
	return b.Mp4BoxUpdate()
}

func (b *AudioSampleEntryBox) Mp4BoxUpdate() error {
	payload := uint64(6+2) + 8 + 2 + 2 + 2 + 2 + 4
	for _, ch := range b.Children {
		if err := ch.Mp4BoxUpdate(); err != nil {
			return err
		}
		payload += ch.Mp4BoxSize()
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *AudioSampleEntryBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeCommon(w)
	w.U32(0)
	w.U32(0) // reserved[2]
	w.U16(b.ChannelCount)
	w.U16(b.SampleSize)
	w.U16(0) // pre_defined
	w.U16(0) // reserved
	w.U32(b.SampleRate)
	for _, ch := range b.Children {
		if err := ch.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// XMLSubtitleSampleEntryBox is stpp (TTML-over-MP4 / IMSC1).
type XMLSubtitleSampleEntryBox struct {
	SampleEntry
	Namespace      string
	SchemaLocation string
	AuxMimeTypes   string
}

func (b *XMLSubtitleSampleEntryBox) Mp4BoxUpdate() error {
	payload := uint64(6+2) + uint64(len(b.Namespace)) + 1 + uint64(len(b.SchemaLocation)) + 1
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *XMLSubtitleSampleEntryBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeCommon(w)
	w.Raw([]byte(b.Namespace))
	w.U8(0)
	w.Raw([]byte(b.SchemaLocation))
	w.U8(0)
	return nil
}

// WVTTSampleEntryBox is wvtt (WebVTT-in-MP4).
type WVTTSampleEntryBox struct {
	SampleEntry
	Children []Box
}

func (b *WVTTSampleEntryBox) Mp4BoxChildren() []Box { return b.Children }
func (b *WVTTSampleEntryBox) Mp4BoxReplaceChildren(children []Box) error {
	b.Children = children
	return b.Mp4BoxUpdate()
}
func (b *WVTTSampleEntryBox) Mp4BoxAppend(child Box) error {
	b.Children = append(b.Children, child)
	return b.Mp4BoxUpdate()
}

func (b *WVTTSampleEntryBox) Mp4BoxUpdate() error {
	payload := uint64(6 + 2)
	for _, ch := range b.Children {
		if err := ch.Mp4BoxUpdate(); err != nil {
			return err
		}
		payload += ch.Mp4BoxSize()
	}
	b.size = headerWidth(payload) + payload
	return nil
}

func (b *WVTTSampleEntryBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, b.size, b.Type)
	b.writeCommon(w)
	for _, ch := range b.Children {
		if err := ch.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}
