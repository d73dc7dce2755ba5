// Package webmmux assembles encoded video/audio samples into a WebM
// (EBML/Matroska-subset) stream: Cluster/SimpleBlock assembly during
// processing, Cues written at finalize time when the output sink is
// seekable (no SeekHead element is written), grounded on
// original_source/packager/media/formats/webm/{mkv_writer,cluster_builder,seek_head}.h.
// No EBML/Matroska muxing library appears anywhere in the example pack, so
// the box/element writer here is original, built directly on bitio the way
// mp4mux's box tree is (see DESIGN.md).
package webmmux

import (
	"math"

	"github.com/go-webdl/packager/bitio"
)

// EBML/Matroska element IDs used by this muxer (Matroska spec, RFC 8794).
const (
	idVoid = 0xEC

	idEBML               = 0x1A45DFA3
	idEBMLVersion         = 0x4286
	idEBMLReadVersion     = 0x42F7
	idEBMLMaxIDLength     = 0x42F2
	idEBMLMaxSizeLength   = 0x42F3
	idDocType             = 0x4282
	idDocTypeVersion      = 0x4287
	idDocTypeReadVersion  = 0x4285

	idSegment = 0x18538067

	idSeekHead = 0x114D9B74
	idSeek     = 0x4DBB
	idSeekID   = 0x53AB
	idSeekPosition = 0x53AC

	idInfo          = 0x1549A966
	idTimecodeScale = 0x2AD7B1
	idDuration      = 0x4489
	idMuxingApp     = 0x4D80
	idWritingApp    = 0x5741

	idTracks     = 0x1654AE6B
	idTrackEntry = 0xAE
	idTrackNumber = 0xD7
	idTrackUID    = 0x73C5
	idTrackType   = 0x83
	idCodecID     = 0x86
	idVideo       = 0xE0
	idPixelWidth  = 0xB0
	idPixelHeight = 0xBA
	idAudio             = 0xE1
	idSamplingFrequency = 0xB5
	idChannels          = 0x9F

	idCluster      = 0x1F43B675
	idTimecode     = 0xE7
	idSimpleBlock  = 0xA3

	idCues             = 0x1C53BB6B
	idCuePoint         = 0xBB
	idCueTime          = 0xB3
	idCueTrackPositions = 0xB7
	idCueTrack         = 0xF7
	idCueClusterPosition = 0xF1
)

const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

// writeElementID writes id's significant bytes, inferred from the
// position of its length-marker bit, matching EBML's self-describing ID
// width (RFC 8794 §5).
func writeElementID(w *bitio.Writer, id uint32) {
	switch {
	case id <= 0xFF:
		w.U8(uint8(id))
	case id <= 0xFFFF:
		w.U16(uint16(id))
	case id <= 0xFFFFFF:
		w.U24(id)
	default:
		w.U32(id)
	}
}

// writeSize encodes size as an EBML variable-length integer using the
// smallest width that fits, following the VINT length-descriptor
// convention (leading zero bits count extra length bytes).
func writeSize(w *bitio.Writer, size uint64) {
	switch {
	case size < 1<<7-1:
		w.U8(uint8(size) | 0x80)
	case size < 1<<14-1:
		w.U16(uint16(size) | 0x4000)
	case size < 1<<21-1:
		v := uint32(size) | 0x200000
		w.Raw([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
	case size < 1<<28-1:
		w.U32(uint32(size) | 0x10000000)
	default:
		// 8-byte width covers every size this muxer ever produces.
		w.Raw([]byte{0x01,
			byte(size >> 48), byte(size >> 40), byte(size >> 32), byte(size >> 24),
			byte(size >> 16), byte(size >> 8), byte(size)})
	}
}

// unknownSizeMarker is the 8-byte all-ones VINT used for a Segment whose
// size is not known up front (streaming output).
var unknownSizeMarker = []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// element builds one complete EBML element (id + size + payload).
func element(id uint32, payload []byte) []byte {
	w := bitio.NewWriter(len(payload) + 12)
	writeElementID(w, id)
	writeSize(w, uint64(len(payload)))
	w.Raw(payload)
	return w.Bytes()
}

// uintElement builds an element whose payload is the minimal big-endian
// encoding of v (Matroska "uinteger" element type).
func uintElement(id uint32, v uint64) []byte {
	n := 1
	for shift := v >> 8; shift > 0; shift >>= 8 {
		n++
	}
	payload := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		payload[i] = byte(v)
		v >>= 8
	}
	return element(id, payload)
}

// stringElement builds a UTF-8/ASCII string element.
func stringElement(id uint32, s string) []byte {
	return element(id, []byte(s))
}

// floatElement builds an 8-byte IEEE-754 double element (Matroska "float"
// element type, used for Duration/SamplingFrequency).
func floatElement(id uint32, v float64) []byte {
	w := bitio.NewWriter(8)
	w.U64(math.Float64bits(v))
	return element(id, w.Bytes())
}
