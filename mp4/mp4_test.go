package mp4_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/bitio"
	"github.com/go-webdl/packager/mp4"
)

func TestFileTypeBoxMarshalsHeaderAndBrands(t *testing.T) {
	is := is.New(t)
	b := mp4.NewStypBox()
	b.MajorBrand = mp4.MsdhFourCC
	b.MinorVersion = 0
	b.CompatibleBrands = []mp4.FourCC{mp4.MsdhFourCC, mp4.MsixFourCC}
	is.NoErr(b.Mp4BoxUpdate())
	is.Equal(b.Mp4BoxSize(), uint64(8+8+2*4))

	w := bitio.NewWriter(32)
	is.NoErr(b.Marshal(w))
	is.Equal(len(w.Bytes()), int(b.Mp4BoxSize()))
	is.Equal(string(w.Bytes()[4:8]), "styp")
}

func TestContainerBoxSizeIsSumOfChildrenPlusHeader(t *testing.T) {
	is := is.New(t)
	moov := mp4.NewMovieBox()
	styp := mp4.NewStypBox()
	styp.MajorBrand = mp4.IsomFourCC
	is.NoErr(moov.Mp4BoxAppend(styp))

	is.Equal(moov.Mp4BoxSize(), uint64(8)+styp.Mp4BoxSize())

	w := bitio.NewWriter(64)
	is.NoErr(moov.Marshal(w))
	is.Equal(len(w.Bytes()), int(moov.Mp4BoxSize()))
	is.Equal(string(w.Bytes()[4:8]), "moov")
}

func TestParseSchemeRejectsUnknownScheme(t *testing.T) {
	is := is.New(t)
	_, err := mp4.ParseScheme("unknown")
	is.True(err != nil)

	cenc, err := mp4.ParseScheme("cenc")
	is.NoErr(err)
	is.Equal(cenc, mp4.CencFourCC)
}

func TestChunkInfoIteratorWalksCompressedTable(t *testing.T) {
	is := is.New(t)
	it := mp4.NewChunkInfoIterator([]mp4.ChunkInfoEntry{
		{FirstChunk: 1, SamplesPerChunk: 2},
		{FirstChunk: 3, SamplesPerChunk: 3},
	})
	is.True(it.IsValid())
	is.Equal(it.CurrentChunk(), uint32(1))
	is.Equal(it.SamplesPerChunk(), uint32(2))

	is.True(it.AdvanceSample()) // sample 2 of chunk 1
	is.Equal(it.CurrentChunk(), uint32(1))
	is.True(it.AdvanceSample()) // rolls into chunk 2 (still 2 samples/chunk)
	is.Equal(it.CurrentChunk(), uint32(2))
	is.True(it.AdvanceSample())
	is.True(it.AdvanceSample()) // rolls into chunk 3 (3 samples/chunk now)
	is.Equal(it.CurrentChunk(), uint32(3))
	is.Equal(it.SamplesPerChunk(), uint32(3))
}

func TestChunkInfoIteratorCountBetween(t *testing.T) {
	is := is.New(t)
	it := mp4.NewChunkInfoIterator([]mp4.ChunkInfoEntry{
		{FirstChunk: 1, SamplesPerChunk: 2},
		{FirstChunk: 3, SamplesPerChunk: 5},
	})
	// Chunks 1-2 have 2 samples each, chunk 3 has 5.
	is.Equal(it.CountBetween(1, 3), uint32(2+2+5))
}

func TestDecodingTimeIteratorAccumulatesCumulativeTime(t *testing.T) {
	is := is.New(t)
	it := mp4.NewDecodingTimeIterator([]mp4.RunLengthEntry{
		{SampleCount: 2, Delta: 10},
		{SampleCount: 1, Delta: 20},
	})
	is.Equal(it.DecodingTime(), int64(0))
	is.True(it.AdvanceSample())
	is.Equal(it.DecodingTime(), int64(10))
	is.True(it.AdvanceSample())
	is.Equal(it.DecodingTime(), int64(20))
	is.True(!it.AdvanceSample())
	is.Equal(it.DecodingTime(), int64(40))
	is.True(!it.AdvanceSample())
	is.True(!it.IsValid())
}

func TestCompositionOffsetIteratorHandlesNegativeOffsets(t *testing.T) {
	is := is.New(t)
	it := mp4.NewCompositionOffsetIterator([]mp4.RunLengthEntry{
		{SampleCount: 1, Delta: -5000},
		{SampleCount: 1, Delta: 3000},
	})
	is.Equal(it.Offset(), int64(-5000))
	is.True(it.AdvanceSample())
	is.Equal(it.Offset(), int64(3000))
}
