// Package media defines the sample model every handler stage exchanges:
// StreamInfo, MediaSample, TextSample, EncryptionConfig, DecryptConfig,
// SegmentInfo, KeyFrameInfo, CueEvent and Scte35Event (spec.md §3).
package media

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/go-webdl/packager/mp4"
)

// Kind classifies a stream.
type Kind int

const (
	Unknown Kind = iota
	Video
	Audio
	Text
)

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case Audio:
		return "audio"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// InfiniteDuration is the sentinel StreamInfo.Duration uses for live
// presentations with no known end.
const InfiniteDuration uint64 = ^uint64(0)

// DRM system IDs. Per spec.md's Open Questions, only the current FairPlay
// system ID is emitted unless a config explicitly opts into the legacy one
// — that decision is made by the caller supplying ProtectionSystems, not by
// this package.
var (
	SystemIDWidevine  = uuid.MustParse("edef8ba9-79d6-4ace-a3c8-27dcd51d21ed")
	SystemIDPlayReady = uuid.MustParse("9a04f079-9840-4286-ab92-e65be0885f95")
	SystemIDFairPlay  = uuid.MustParse("94ce86fb-07ff-4f43-adb8-93d2fa968ca2")
	SystemIDCommon    = uuid.MustParse("1077efec-c0b2-4d02-ace3-3c1e52e2fb4b")
)

// ProtectionSystemInfo is one DRM system's opaque pssh payload.
type ProtectionSystemInfo struct {
	SystemID uuid.UUID
	KeyIDs   [][16]byte // pssh version 1 only
	PsshData []byte
}

// Pattern is the crypt:skip block pattern used by cbcs/cens; (0,0) means
// no pattern (cenc/cbc1 encrypt every block).
type Pattern struct {
	CryptByteBlock uint8
	SkipByteBlock  uint8
}

// DefaultPattern1_9 is the default pattern for cbcs/cens video per
// spec.md §3.
var DefaultPattern1_9 = Pattern{CryptByteBlock: 1, SkipByteBlock: 9}

// EncryptionConfig describes how an output stream's samples are (or must
// be) encrypted.
type EncryptionConfig struct {
	Scheme mp4.FourCC // cenc | cbc1 | cens | cbcs
	Pattern
	PerSampleIVSize    uint8 // 0, 8, or 16; 0 implies ConstantIV is used
	ConstantIV         []byte
	KeyID              [16]byte
	ProtectionSystems  []ProtectionSystemInfo
	CryptoPeriodDuration float64 // seconds; 0 disables key rotation
}

// Validate enforces the invariants in spec.md §3: per-sample IV XOR
// constant IV, and a valid per-sample IV width.
func (c *EncryptionConfig) Validate() error {
	if c.PerSampleIVSize != 0 && len(c.ConstantIV) != 0 {
		return fmt.Errorf("media: per-sample IV and constant IV are mutually exclusive")
	}
	if c.PerSampleIVSize != 0 && c.PerSampleIVSize != 8 && c.PerSampleIVSize != 16 {
		return fmt.Errorf("media: invalid per-sample IV size %d", c.PerSampleIVSize)
	}
	if c.PerSampleIVSize == 0 && len(c.ConstantIV) == 0 {
		return fmt.Errorf("media: one of per-sample IV size or constant IV must be set")
	}
	return nil
}

// StreamInfo is immutable after Initialize except for the rare mid-stream
// reconfiguration spec.md §3 calls out; callers that need to mutate a field
// should Clone first.
type StreamInfo struct {
	Kind             Kind
	TrackID          uint32
	Timescale        uint32
	Duration         uint64 // ticks; InfiniteDuration for live
	Codec            mp4.FourCC
	CodecString      string // RFC 6381
	CodecConfig      []byte // opaque, already-encoded box payload (avcC/hvcC/esds/...)
	Language         language.Tag
	Width, Height    uint32
	SampleRate       uint32
	ChannelCount     uint16
	IsEncrypted      bool
	Encryption       *EncryptionConfig
	StreamName       string // used for sparse/CC-channel naming
}

// Clone returns a deep-enough copy for per-output-variant overrides (e.g.
// a narrowed CodecString per CC channel, or a per-language clone).
func (s *StreamInfo) Clone() *StreamInfo {
	c := *s
	if s.Encryption != nil {
		enc := *s.Encryption
		enc.ConstantIV = append([]byte(nil), s.Encryption.ConstantIV...)
		enc.ProtectionSystems = append([]ProtectionSystemInfo(nil), s.Encryption.ProtectionSystems...)
		c.Encryption = &enc
	}
	c.CodecConfig = append([]byte(nil), s.CodecConfig...)
	return &c
}
