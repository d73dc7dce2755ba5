package tsmux

import "github.com/go-webdl/packager/bitio"

// audio-setup FourCCs for encrypted AAC/AC-3/EAC-3, per spec.md §4.6.
var (
	audioSetupAAC      = [4]byte{'z', 'a', 'a', 'c'}
	audioSetupAACHE    = [4]byte{'z', 'a', 'c', 'h'}
	audioSetupAACHEv2  = [4]byte{'z', 'a', 'c', 'p'}
	audioSetupAC3      = [4]byte{'z', 'a', 'c', '3'}
	audioSetupEAC3     = [4]byte{'z', 'e', 'c', '3'}
)

// audioSetupFourCC picks the encrypted audio-setup FourCC for codecString;
// it never returns the HE-AAC variants, since the codec string alone
// (mp4a.40.2) does not distinguish SBR/PS signaling.
func audioSetupFourCC(codecString string) [4]byte {
	switch {
	case hasPrefix(codecString, "ec-3"):
		return audioSetupEAC3
	case hasPrefix(codecString, "ac-3"):
		return audioSetupAC3
	default:
		return audioSetupAAC
	}
}

// buildAudioSetupHeader prepends the 13-byte audio-setup header required
// ahead of encrypted AAC/AC-3/EAC-3 PES payloads (spec.md §4.6):
// {4-byte FourCC, 16-bit priming (always 0), 8-bit version (1), 8-bit ASC
// length, ASC bytes}.
func buildAudioSetupHeader(fourCC [4]byte, asc []byte) []byte {
	w := bitio.NewWriter(13 + len(asc))
	w.Raw(fourCC[:])
	w.U16(0x0000)
	w.U8(0x01)
	w.U8(uint8(len(asc)))
	w.Raw(asc)
	return w.Bytes()
}

const (
	streamIDVideo = 0xE0
	streamIDAudio = 0xC0
)

// buildPESPacket wraps one access unit's payload in a PES packet. dts/pts
// are 90kHz-clock ticks; dtsPresent distinguishes the 2-flag (PTS only)
// from 3-flag (PTS+DTS) timestamp encoding. PES_packet_length is left 0
// (unbounded) whenever the payload plus header would overflow 16 bits,
// which is always legal for video per the spec and is how shaka-packager's
// TS muxer emits long video PES packets.
func buildPESPacket(streamID uint8, pts int64, dts int64, dtsPresent bool, payload []byte) []byte {
	w := bitio.NewWriter(19 + len(payload))
	w.U8(0x00)
	w.U8(0x00)
	w.U8(0x01)
	w.U8(streamID)

	ptsDtsFlags := uint8(0x2)
	tsFieldLen := 5
	if dtsPresent {
		ptsDtsFlags = 0x3
		tsFieldLen = 10
	}
	headerDataLength := tsFieldLen
	packetLength := 3 + headerDataLength + len(payload)
	if packetLength > 0xFFFF {
		w.U16(0)
	} else {
		w.U16(uint16(packetLength))
	}

	w.U8(0x80) // '10' marker, scrambling=0, priority=0, alignment=0, copyright=0, original=0
	w.U8(ptsDtsFlags<<6 | 0x00)
	w.U8(uint8(headerDataLength))

	w.Raw(encodeTimestamp(ptsDtsFlags, pts))
	if dtsPresent {
		w.Raw(encodeTimestamp(0x1, dts))
	}
	w.Raw(payload)
	return w.Bytes()
}

// encodeTimestamp encodes a 33-bit PTS/DTS value with the given 4-bit
// prefix marker ('0010' for PTS-only, '0011' for PTS-with-DTS, '0001' for
// the trailing DTS field), per ISO/IEC 13818-1 §2.4.3.6.
func encodeTimestamp(prefix uint8, ts int64) []byte {
	v := uint64(ts) & 0x1FFFFFFFF // 33 bits
	w := bitio.NewWriter(5)
	b0 := prefix<<4 | uint8((v>>30)&0x7)<<1 | 0x1
	w.U8(b0)
	w.U16(uint16((v>>15)&0x7FFF)<<1 | 0x1)
	w.U16(uint16(v&0x7FFF)<<1 | 0x1)
	return w.Bytes()
}
