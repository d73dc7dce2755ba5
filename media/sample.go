package media

import "fmt"

// Subsample is a (clear, cipher) byte-count pair partitioning a sample's
// payload for partial encryption.
type Subsample struct {
	ClearBytes  uint32
	CipherBytes uint32
}

// DecryptConfig accompanies an already-encrypted sample (either produced
// by the Encryptor, or carried through from a re-mux of pre-encrypted
// input).
type DecryptConfig struct {
	KeyID      [16]byte
	IV         []byte
	Subsamples []Subsample
	Scheme     string // cenc|cbc1|cens|cbcs
	Pattern    Pattern
}

// ValidateAgainst checks invariant 1 of spec.md §8: the subsample byte
// counts must sum exactly to the payload size.
func (d *DecryptConfig) ValidateAgainst(payloadLen int) error {
	var sum int
	for _, ss := range d.Subsamples {
		sum += int(ss.ClearBytes) + int(ss.CipherBytes)
	}
	if len(d.Subsamples) > 0 && sum != payloadLen {
		return fmt.Errorf("media: subsample byte sum %d != payload size %d", sum, payloadLen)
	}
	return nil
}

// MediaSample is one encoded access unit flowing through the pipeline.
type MediaSample struct {
	StreamIndex   int
	DTS           int64
	PTS           int64
	Duration      int64
	IsKeyFrame    bool
	SideData      []byte // e.g. ADTS header fragments
	Payload       []byte
	DecryptConfig *DecryptConfig
}

// TextSample is a timed-text cue.
type TextSample struct {
	StreamIndex int
	StartTime   int64
	EndTime     int64
	// DecodeTimeOverride, when non-nil, is an absolute decode time used
	// for boundary accounting instead of StartTime (spec.md §4.2 edge
	// cases: "timed text with decode-time override").
	DecodeTimeOverride *int64
	Payload            []byte // fragment-tree/plain text, muxer-specific encoding
	Settings           string // cue settings line, e.g. WebVTT "line:10"
}

// EffectiveStartTime returns DecodeTimeOverride if set, else StartTime.
func (t *TextSample) EffectiveStartTime() int64 {
	if t.DecodeTimeOverride != nil {
		return *t.DecodeTimeOverride
	}
	return t.StartTime
}

// KeyFrameInfo records one key-frame's location inside a finished segment
// file, for HLS EXT-X-I-FRAMES / DASH trick-play.
type KeyFrameInfo struct {
	Timestamp      int64
	OffsetInSegment int64
	Size           int64
}

// SegmentInfo is the chunker's segment/subsegment/chunk boundary marker.
type SegmentInfo struct {
	StreamIndex     int
	StartTimestamp  int64
	Duration        int64
	IsSubsegment    bool
	IsChunk         bool // LL-DASH chunk
	KeyFrames       []KeyFrameInfo
}

// CueEvent is a splice point (ad marker) that must land at the same
// presentation time across every participating stream.
type CueEvent struct {
	TimeSeconds float64
	CueID       string
	SpliceInfo  []byte // opaque SCTE-35 splice_info_section, if any
}

// Scte35Event carries an out-of-band SCTE-35 splice command that the
// chunker forwards without interpreting (codec/signal parsing is out of
// this module's scope).
type Scte35Event struct {
	StreamIndex int
	PTS         int64
	SpliceData  []byte
}
