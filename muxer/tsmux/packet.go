// Package tsmux implements the MPEG-2 transport-stream container variant
// (spec.md §4.6/§6.2): PES packetization, 188-byte TS packets with a 4-bit
// continuity counter per PID, and PAT/PMT emission every pat_interval_ms
// and at the head of every segment. Grounded on
// original_source/packager/media/formats/mp2t/{ts_packet_writer_util.h,
// continuity_counter.cc,ts_audio_type.h}.
package tsmux

import (
	"github.com/go-webdl/packager/bitio"
)

const (
	packetSize = 188
	syncByte   = 0x47

	// PAT always lives on PID 0; the PMT PID is assigned by the muxer
	// (defaultPMTPID unless the caller overrides it).
	patPID        = 0x0000
	defaultPMTPID = 0x1001
)

// continuityCounter is a 4-bit wraparound counter, one per PID, matching
// continuity_counter.cc's GetNext/GetCurrent split.
type continuityCounter struct {
	counter uint8
}

func newContinuityCounter(initial uint8) *continuityCounter {
	return &continuityCounter{counter: initial & 0xF}
}

func (c *continuityCounter) Next() uint8 {
	ret := c.counter
	c.counter = (c.counter + 1) % 16
	return ret
}

func (c *continuityCounter) Current() uint8 { return c.counter }

// writePayload splits payload across one or more 188-byte TS packets,
// setting the payload_unit_start_indicator only on the first packet, an
// adaptation field carrying PCR on the first packet when hasPCR is set,
// and stuffing the final packet's adaptation field so every packet is
// exactly 188 bytes (mirrors WritePayloadToBufferWriter).
func writePayload(out *bitio.Writer, payload []byte, pusi bool, pid uint16, hasPCR bool, pcrBase uint64, cc *continuityCounter) {
	first := true
	for len(payload) > 0 || first {
		remaining := packetSize - 4 // header
		var adaptation []byte
		if first && hasPCR {
			adaptation = encodePCRAdaptationField(pcrBase)
		}

		bodyCap := remaining - len(adaptation)
		if len(adaptation) > 0 {
			bodyCap-- // adaptation_field_length byte
		}
		n := len(payload)
		if n > bodyCap {
			n = bodyCap
		}
		stuff := bodyCap - n
		hasAdaptation := len(adaptation) > 0 || stuff > 0
		if stuff > 0 {
			adaptation = padAdaptationField(adaptation, stuff)
		}

		adaptationFieldControl := uint8(0x1) // payload only
		switch {
		case hasAdaptation && n > 0:
			adaptationFieldControl = 0x3
		case hasAdaptation && n == 0:
			adaptationFieldControl = 0x2
		}

		out.U8(syncByte)
		transportErrorIndicator := uint16(0)
		pusiBit := uint16(0)
		if first && pusi {
			pusiBit = 1
		}
		transportPriority := uint16(0)
		out.U16(transportErrorIndicator<<15 | pusiBit<<14 | transportPriority<<13 | pid)
		out.U8(byte(adaptationFieldControl<<4) | cc.Next())

		if hasAdaptation {
			out.U8(uint8(len(adaptation)))
			out.Raw(adaptation)
		}
		out.Raw(payload[:n])
		payload = payload[n:]
		first = false

		if n == 0 && !hasAdaptation {
			// Nothing left to write and no padding required; avoid an
			// infinite loop on a zero-length payload.
			break
		}
	}
}

// encodePCRAdaptationField builds the minimal adaptation field carrying
// only a PCR, without the stuffing-length byte (the caller pads it).
func encodePCRAdaptationField(pcrBase uint64) []byte {
	w := bitio.NewWriter(8)
	// adaptation_field flags: discontinuity=0, random_access=0,
	// es_priority=0, PCR_flag=1, OPCR=0, splicing=0, transport_private=0,
	// extension=0.
	w.U8(0x10)
	pcrExt := uint16(0)
	hi := uint32(pcrBase >> 1)
	lowBit := uint8(pcrBase & 1)
	w.U32(hi)
	w.U16(uint16(lowBit)<<15 | 0x7E<<9 | pcrExt)
	return w.Bytes()
}

// padAdaptationField grows the adaptation field by stuffingBytes so that the
// adaptation_field_length byte (written by writePayload), the field and the
// remaining payload exactly fill one TS packet. An empty adaptation field
// becomes a flags byte plus 0xFF filler.
func padAdaptationField(adaptation []byte, stuffingBytes int) []byte {
	if len(adaptation) == 0 {
		// The length byte consumes 1 of the requested stuffing bytes; the
		// flags byte (0x00: no discontinuity/PCR/OPCR/splice/private/ext)
		// and 0xFF filler make up the rest.
		body := make([]byte, stuffingBytes-1)
		for i := 1; i < len(body); i++ {
			body[i] = 0xFF
		}
		return body
	}
	filler := make([]byte, stuffingBytes)
	for i := range filler {
		filler[i] = 0xFF
	}
	return append(adaptation, filler...)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
