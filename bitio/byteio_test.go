package bitio_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/bitio"
)

func TestWriterRoundTripsFixedWidthFields(t *testing.T) {
	is := is.New(t)
	w := bitio.NewWriter(16)
	w.U8(0x01).U16(0x0203).U24(0x040506).U32(0x0708090a).U64(0x0b0c0d0e0f101112)

	r := bitio.NewReader(w.Bytes())
	u8, err := r.U8()
	is.NoErr(err)
	is.Equal(u8, uint8(0x01))

	u16, err := r.U16()
	is.NoErr(err)
	is.Equal(u16, uint16(0x0203))

	u24, err := r.U24()
	is.NoErr(err)
	is.Equal(u24, uint32(0x040506))

	u32, err := r.U32()
	is.NoErr(err)
	is.Equal(u32, uint32(0x0708090a))

	u64, err := r.U64()
	is.NoErr(err)
	is.Equal(u64, uint64(0x0b0c0d0e0f101112))

	is.Equal(r.Remaining(), 0)
}

func TestWriterLittleEndianFields(t *testing.T) {
	is := is.New(t)
	w := bitio.NewWriter(4)
	w.U16LE(0x0203).U32LE(0x04050607)
	is.Equal(w.Bytes(), []byte{0x03, 0x02, 0x07, 0x06, 0x05, 0x04})
}

func TestWriterFromBufReusesCapacity(t *testing.T) {
	is := is.New(t)
	backing := make([]byte, 0, 8)
	w := bitio.NewWriterFromBuf(backing)
	w.U32(0xdeadbeef)
	is.Equal(w.Len(), 4)
	w.Reset()
	is.Equal(w.Len(), 0)
}

func TestPatchU32OverwritesInPlace(t *testing.T) {
	is := is.New(t)
	w := bitio.NewWriter(8)
	w.U32(0).U32(0x11223344)
	is.NoErr(w.PatchU32(0, 0xaabbccdd))
	is.Equal(w.Bytes()[:4], []byte{0xaa, 0xbb, 0xcc, 0xdd})
}

func TestPatchU32RejectsOutOfRangeOffset(t *testing.T) {
	is := is.New(t)
	w := bitio.NewWriter(4)
	w.U32(0)
	is.True(w.PatchU32(1, 0) != nil)
	is.True(w.PatchU32(-1, 0) != nil)
}

func TestPatchU64RejectsOutOfRangeOffset(t *testing.T) {
	is := is.New(t)
	w := bitio.NewWriter(8)
	w.U32(0)
	is.True(w.PatchU64(0, 0) != nil)
}

func TestReaderRawAdvancesPosition(t *testing.T) {
	is := is.New(t)
	r := bitio.NewReader([]byte{1, 2, 3, 4})
	b, err := r.Raw(2)
	is.NoErr(err)
	is.Equal(b, []byte{1, 2})
	is.Equal(r.Pos(), 2)
	is.Equal(r.Remaining(), 2)
}

func TestReaderReturnsErrShortReadPastEnd(t *testing.T) {
	is := is.New(t)
	r := bitio.NewReader([]byte{1, 2})
	_, err := r.U32()
	is.Equal(err, bitio.ErrShortRead)
}

func TestReaderSkip(t *testing.T) {
	is := is.New(t)
	r := bitio.NewReader([]byte{1, 2, 3, 4})
	is.NoErr(r.Skip(3))
	u8, err := r.U8()
	is.NoErr(err)
	is.Equal(u8, uint8(4))
	is.True(r.Skip(1) != nil)
}

func TestI32RoundTripsNegativeValues(t *testing.T) {
	is := is.New(t)
	w := bitio.NewWriter(4)
	w.I32(-5000)
	r := bitio.NewReader(w.Bytes())
	u32, err := r.U32()
	is.NoErr(err)
	is.Equal(int32(u32), int32(-5000))
}
