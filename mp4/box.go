package mp4

import "github.com/go-webdl/packager/bitio"

// Box is any node in the ISO-BMFF tree: a leaf (mvhd, tkhd, ...) or a
// container (moov, trak, ...). Mp4BoxUpdate recomputes this node's
// serialized size bottom-up and must be called (directly, or transitively
// via Mp4BoxReplaceChildren/Mp4BoxAppend on an ancestor) before Marshal.
type Box interface {
	Mp4BoxType() FourCC
	Mp4BoxSize() uint64
	Mp4BoxUpdate() error
	Marshal(w *bitio.Writer) error
}

// Container is a Box that owns a list of child boxes.
type Container interface {
	Box
	Mp4BoxChildren() []Box
	Mp4BoxReplaceChildren(children []Box) error
	Mp4BoxAppend(child Box) error
}

// maxUint32 is the largest size a box can declare in its 32-bit size field
// before the 64-bit largesize extension is required.
const maxUint32 = 1<<32 - 1

// Header is the common 8 (or 16, extended) byte box header: size + type.
type Header struct {
	Type FourCC
	size uint64
}

func (h *Header) Mp4BoxType() FourCC    { return h.Type }
func (h *Header) Mp4BoxSize() uint64    { return h.size }
func (h *Header) Mp4BoxSetType(t FourCC) { h.Type = t }

// headerWidth returns 8 normally, 16 when the total box size needs the
// 64-bit largesize extension.
func headerWidth(payloadSize uint64) uint64 {
	if payloadSize+8 > maxUint32 {
		return 16
	}
	return 8
}

func writeBoxHeader(w *bitio.Writer, size uint64, t FourCC) {
	if headerWidth(size-8) == 16 {
		w.U32(1)
		w.Raw(t[:])
		w.U64(size)
		return
	}
	w.U32(uint32(size))
	w.Raw(t[:])
}

// FullHeader adds the version/flags pair every "full box" (anything with
// an 8-bit version and 24-bit flags) carries.
type FullHeader struct {
	Header
	Version uint8
	Flags   uint32 // low 24 bits significant
}

func (h *FullHeader) Mp4BoxSetFlags(flags uint32) { h.Flags = flags }

func (h *FullHeader) writeFullHeader(w *bitio.Writer) {
	w.U8(h.Version)
	w.U24(h.Flags)
}

// ContainerBox is embedded by every box that only holds children (moov,
// trak, mdia, minf, stbl, dinf, mvex, sinf, schi, moof, traf).
type ContainerBox struct {
	Header
	Children []Box
}

func (c *ContainerBox) Mp4BoxChildren() []Box { return c.Children }

func (c *ContainerBox) Mp4BoxReplaceChildren(children []Box) error {
	c.Children = children
	return c.Mp4BoxUpdate()
}

func (c *ContainerBox) Mp4BoxAppend(child Box) error {
	c.Children = append(c.Children, child)
	return c.Mp4BoxUpdate()
}

func (c *ContainerBox) Mp4BoxUpdate() error {
	var payload uint64
	for _, ch := range c.Children {
		if err := ch.Mp4BoxUpdate(); err != nil {
			return err
		}
		payload += ch.Mp4BoxSize()
	}
	c.size = headerWidth(payload) + payload
	return nil
}

func (c *ContainerBox) Marshal(w *bitio.Writer) error {
	writeBoxHeader(w, c.size, c.Type)
	for _, ch := range c.Children {
		if err := ch.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// findChild returns the first child box of the given type, or nil.
func findChild(c Container, t FourCC) Box {
	for _, ch := range c.Mp4BoxChildren() {
		if ch.Mp4BoxType() == t {
			return ch
		}
	}
	return nil
}
