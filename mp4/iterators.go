package mp4

// This file implements the lazy, finite, non-restartable cursors spec.md
// §9 calls for over the compressed run-length tables used by stsc/stts/
// ctts (and, in this module, their in-memory equivalents built while
// accumulating a segment before the tables are ever boxed). Each supports
// AdvanceSample; ChunkInfoIterator also has AdvanceChunk and a
// random-access CountBetween, matching the original shaka-packager
// ChunkInfoIterator's contract
// (_examples/original_source/media/formats/mp4/chunk_info_iterator.h).

// ChunkInfoEntry is one compressed stsc run: starting at FirstChunk
// (1-based), every chunk has SamplesPerChunk samples until the next entry.
type ChunkInfoEntry struct {
	FirstChunk              uint32
	SamplesPerChunk         uint32
	SampleDescriptionIndex  uint32
}

// ChunkInfoIterator walks a compressed sample-to-chunk table one chunk (or
// one sample) at a time.
type ChunkInfoIterator struct {
	table            []ChunkInfoEntry
	entryIndex       int
	currentChunk     uint32
	chunkSampleIndex uint32
}

func NewChunkInfoIterator(table []ChunkInfoEntry) *ChunkInfoIterator {
	it := &ChunkInfoIterator{table: table}
	if len(table) > 0 {
		it.currentChunk = table[0].FirstChunk
	}
	return it
}

func (it *ChunkInfoIterator) IsValid() bool { return it.entryIndex < len(it.table) }

func (it *ChunkInfoIterator) CurrentChunk() uint32 { return it.currentChunk }

func (it *ChunkInfoIterator) SamplesPerChunk() uint32 {
	if !it.IsValid() {
		return 0
	}
	return it.table[it.entryIndex].SamplesPerChunk
}

func (it *ChunkInfoIterator) SampleDescriptionIndex() uint32 {
	if !it.IsValid() {
		return 0
	}
	return it.table[it.entryIndex].SampleDescriptionIndex
}

// AdvanceChunk moves to the next chunk, returning false once past the
// last chunk described by the table.
func (it *ChunkInfoIterator) AdvanceChunk() bool {
	if !it.IsValid() {
		return false
	}
	it.currentChunk++
	it.chunkSampleIndex = 0
	if it.entryIndex+1 < len(it.table) && it.currentChunk >= it.table[it.entryIndex+1].FirstChunk {
		it.entryIndex++
	}
	return it.IsValid()
}

// AdvanceSample moves to the next sample within the current chunk, rolling
// over to the next chunk when the current one is exhausted.
func (it *ChunkInfoIterator) AdvanceSample() bool {
	if !it.IsValid() {
		return false
	}
	it.chunkSampleIndex++
	if it.chunkSampleIndex >= it.SamplesPerChunk() {
		return it.AdvanceChunk()
	}
	return true
}

// LastFirstChunk returns the FirstChunk of the final table entry, or 0.
func (it *ChunkInfoIterator) LastFirstChunk() uint32 {
	if len(it.table) == 0 {
		return 0
	}
	return it.table[len(it.table)-1].FirstChunk
}

// CountBetween returns the number of samples spanning chunks
// [startChunk, endChunk], both 1-based and inclusive.
func (it *ChunkInfoIterator) CountBetween(startChunk, endChunk uint32) uint32 {
	var total uint32
	for i, entry := range it.table {
		rangeStart := entry.FirstChunk
		var rangeEnd uint32 = ^uint32(0)
		if i+1 < len(it.table) {
			rangeEnd = it.table[i+1].FirstChunk - 1
		}
		lo, hi := rangeStart, rangeEnd
		if lo < startChunk {
			lo = startChunk
		}
		if hi > endChunk {
			hi = endChunk
		}
		if lo > hi {
			continue
		}
		total += (hi - lo + 1) * entry.SamplesPerChunk
	}
	return total
}

// RunLengthEntry is one compressed stts/ctts run: SampleCount consecutive
// samples share Delta (stts, non-negative) or Offset (ctts, possibly
// negative in version 1).
type RunLengthEntry struct {
	SampleCount uint32
	Delta       int64
}

// DecodingTimeIterator walks a compressed stts table.
type DecodingTimeIterator struct {
	table          []RunLengthEntry
	entryIndex     int
	sampleInEntry  uint32
	cumulativeTime int64
}

func NewDecodingTimeIterator(table []RunLengthEntry) *DecodingTimeIterator {
	return &DecodingTimeIterator{table: table}
}

func (it *DecodingTimeIterator) IsValid() bool { return it.entryIndex < len(it.table) }

func (it *DecodingTimeIterator) Duration() int64 {
	if !it.IsValid() {
		return 0
	}
	return it.table[it.entryIndex].Delta
}

func (it *DecodingTimeIterator) DecodingTime() int64 { return it.cumulativeTime }

func (it *DecodingTimeIterator) AdvanceSample() bool {
	if !it.IsValid() {
		return false
	}
	it.cumulativeTime += it.table[it.entryIndex].Delta
	it.sampleInEntry++
	if it.sampleInEntry >= it.table[it.entryIndex].SampleCount {
		it.sampleInEntry = 0
		it.entryIndex++
	}
	return it.IsValid()
}

// CompositionOffsetIterator walks a compressed ctts table; offsets may be
// negative (version 1 only — enforced by the caller, not this cursor).
type CompositionOffsetIterator struct {
	table         []RunLengthEntry
	entryIndex    int
	sampleInEntry uint32
}

func NewCompositionOffsetIterator(table []RunLengthEntry) *CompositionOffsetIterator {
	return &CompositionOffsetIterator{table: table}
}

func (it *CompositionOffsetIterator) IsValid() bool { return it.entryIndex < len(it.table) }

func (it *CompositionOffsetIterator) Offset() int64 {
	if !it.IsValid() {
		return 0
	}
	return it.table[it.entryIndex].Delta
}

func (it *CompositionOffsetIterator) AdvanceSample() bool {
	if !it.IsValid() {
		return false
	}
	it.sampleInEntry++
	if it.sampleInEntry >= it.table[it.entryIndex].SampleCount {
		it.sampleInEntry = 0
		it.entryIndex++
	}
	return it.IsValid()
}
