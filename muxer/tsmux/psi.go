package tsmux

import (
	"github.com/go-webdl/packager/bitio"
)

// crc32MPEG is the CRC-32/MPEG-2 variant (poly 0x04C11DB7, no reflect, init
// 0xFFFFFFFF, no xorout) every PSI section trailer uses.
func crc32MPEG(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// streamType values per ISO/IEC 13818-1 table 2-34, the subset this
// muxer's supported codecs need.
const (
	streamTypeAVC       = 0x1B
	streamTypeHEVC      = 0x24
	streamTypeADTSAAC   = 0x0F
	streamTypeAC3       = 0x81
	streamTypeEAC3      = 0x87
	streamTypePrivateCA = 0xC2 // used for encrypted streams carried as PES private data
)

func streamTypeFor(codecString string, encrypted bool) uint8 {
	switch {
	case hasPrefix(codecString, "avc1"), hasPrefix(codecString, "avc3"):
		return streamTypeAVC
	case hasPrefix(codecString, "hvc1"), hasPrefix(codecString, "hev1"):
		return streamTypeHEVC
	case hasPrefix(codecString, "mp4a"):
		return streamTypeADTSAAC
	case hasPrefix(codecString, "ac-3"):
		return streamTypeAC3
	case hasPrefix(codecString, "ec-3"):
		return streamTypeEAC3
	default:
		if encrypted {
			return streamTypePrivateCA
		}
		return streamTypeADTSAAC
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// buildPAT returns the PAT section payload (pointer field included) for a
// single program mapping program_number 1 to pmtPID.
func buildPAT(pmtPID uint16) []byte {
	section := bitio.NewWriter(16)
	section.U8(0x00) // table_id: program_association_section
	lengthPos := section.Len()
	section.U16(0) // section_length placeholder, patched below
	section.U16(1) // transport_stream_id
	section.U8(0xC1) // reserved(11) version(00000) current_next(1)
	section.U8(0)           // section_number
	section.U8(0)           // last_section_number
	section.U16(1)          // program_number
	section.U16(0xE000 | pmtPID)
	crc := crc32MPEG(section.Bytes()[lengthPos+2:])
	sectionLength := len(section.Bytes()) - (lengthPos + 2) + 4 // +4 for CRC32
	section.U32(crc)

	out := section.Bytes()
	patchU16(out, lengthPos, uint16(0xB000|sectionLength))
	return prependPointerField(out)
}

// pmtStream describes one elementary stream's row in the PMT.
type pmtStream struct {
	StreamType uint8
	PID        uint16
}

// buildPMT returns the PMT section payload for pcrPID and the given
// elementary streams.
func buildPMT(pmtPID, pcrPID uint16, streams []pmtStream) []byte {
	section := bitio.NewWriter(32)
	section.U8(0x02) // table_id: TS_program_map_section
	lengthPos := section.Len()
	section.U16(0)
	section.U16(1)           // program_number
	section.U8(0xC1)         // reserved version current_next
	section.U8(0)            // section_number
	section.U8(0)            // last_section_number
	section.U16(0xE000 | pcrPID)
	section.U16(0xF000) // reserved(4) program_info_length(12)=0
	for _, s := range streams {
		section.U8(s.StreamType)
		section.U16(0xE000 | s.PID)
		section.U16(0xF000) // ES_info_length = 0
	}
	crc := crc32MPEG(section.Bytes()[lengthPos+2:])
	sectionLength := len(section.Bytes()) - (lengthPos + 2) + 4
	section.U32(crc)

	out := section.Bytes()
	patchU16(out, lengthPos, uint16(0xB000|sectionLength))
	return prependPointerField(out)
}

func patchU16(buf []byte, offset int, v uint16) {
	buf[offset] = byte(v >> 8)
	buf[offset+1] = byte(v)
}

// prependPointerField adds the single pointer_field byte (always 0, no
// stuffing before the section start) every PSI payload begins with when
// payload_unit_start_indicator is set.
func prependPointerField(section []byte) []byte {
	return append([]byte{0x00}, section...)
}
