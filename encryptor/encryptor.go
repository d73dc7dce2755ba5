// Package encryptor implements common encryption (ISO/IEC 23001-7) over the
// sample stream: cenc, cbc1, cens and cbcs, with subsample clear/cipher
// partitioning and crypt:skip block-pattern encryption for the two
// pattern-based schemes. Grounded on
// original_source/packager/media/base/aes_decryptor.h (decryption is
// symmetric to encryption for CTR/CBC) and encryption_modes.h for the
// AES-CTR vs AES-CBC split; AES itself is done with the standard library's
// crypto/aes and crypto/cipher, which is how every Go codebase in this
// pack that touches cryptography does it — there is no third-party AES
// implementation in the ecosystem that is preferable to the standard one.
package encryptor

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/mp4"
	"github.com/go-webdl/packager/status"
)

const blockSize = 16

// KeySource supplies the 16-byte content key for a key ID. Key rotation
// under CryptoPeriodDuration goes through RotatingKeySource.KeyForPeriod
// instead.
type KeySource interface {
	// Key returns the 16-byte content key for keyID.
	Key(keyID [16]byte) ([]byte, error)
}

// StaticKeySource is a KeySource backed by a fixed map, used for raw-key
// (non-DRM-integrated) encryption configs.
type StaticKeySource map[[16]byte][]byte

func (s StaticKeySource) Key(keyID [16]byte) ([]byte, error) {
	k, ok := s[keyID]
	if !ok {
		return nil, status.Newf(status.EncryptionFailure, nil, "encryptor: no key for key id %x", keyID)
	}
	if len(k) != blockSize {
		return nil, status.Newf(status.EncryptionFailure, nil, "encryptor: key for %x is %d bytes, want 16", keyID, len(k))
	}
	return k, nil
}

// RotatingKeySource is implemented by KeySource backends that can mint a
// fresh key ID/key for each crypto period index (spec.md's periodic key
// rotation: period index = floor(pts / crypto_period_duration)). New
// requires one of these when EncryptionConfig.CryptoPeriodDuration > 0.
type RotatingKeySource interface {
	KeySource
	// KeyForPeriod returns the key ID and 16-byte key for periodIndex.
	KeyForPeriod(periodIndex uint64) (keyID [16]byte, key []byte, err error)
}

// PeriodicKeySource is a RotatingKeySource backed by a fixed period-index ->
// (keyID, key) table, used by tests and by callers that pre-derive an
// entire key schedule up front rather than fetching keys lazily from a DRM
// key server.
type PeriodicKeySource map[uint64]struct {
	KeyID [16]byte
	Key   []byte
}

func (s PeriodicKeySource) Key(keyID [16]byte) ([]byte, error) {
	for _, entry := range s {
		if entry.KeyID == keyID {
			return entry.Key, nil
		}
	}
	return nil, status.Newf(status.EncryptionFailure, nil, "encryptor: no key for key id %x", keyID)
}

func (s PeriodicKeySource) KeyForPeriod(periodIndex uint64) ([16]byte, []byte, error) {
	entry, ok := s[periodIndex]
	if !ok {
		return [16]byte{}, nil, status.Newf(status.EncryptionFailure, nil, "encryptor: no key for crypto period %d", periodIndex)
	}
	return entry.KeyID, entry.Key, nil
}

// Encryptor is a handler.Handler that encrypts MediaSample payloads in
// place according to one stream's EncryptionConfig, attaching a
// DecryptConfig describing the IV and subsample layout it used.
type Encryptor struct {
	handler.PassThrough
	streamIndex int
	cfg         *media.EncryptionConfig
	keys        KeySource
	kind        media.Kind
	timescale   uint32

	block       cipher.Block
	ivCounter   uint64 // per-sample IV, incremented per sample when PerSampleIVSize > 0
	periodIndex uint64 // active crypto period, once CryptoPeriodDuration > 0
}

// New returns an Encryptor for streamIndex using cfg and keys. cfg is
// validated via EncryptionConfig.Validate. If cfg.CryptoPeriodDuration > 0,
// keys must implement RotatingKeySource.
func New(streamIndex int, cfg *media.EncryptionConfig, keys KeySource, out handler.Port) (*Encryptor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, status.New(status.InvalidArgument, "encryptor.New", err)
	}
	if cfg.CryptoPeriodDuration > 0 {
		if _, ok := keys.(RotatingKeySource); !ok {
			return nil, status.New(status.InvalidArgument, "encryptor.New",
				fmt.Errorf("crypto_period_duration set but key source does not support rotation"))
		}
	}
	key, err := keys.Key(cfg.KeyID)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, status.New(status.EncryptionFailure, "aes.NewCipher", err)
	}
	return &Encryptor{
		PassThrough: handler.PassThrough{Out: out},
		streamIndex: streamIndex,
		cfg:         cfg,
		keys:        keys,
		block:       block,
	}, nil
}

func isCTRScheme(scheme mp4.FourCC) bool {
	return scheme == mp4.CencFourCC || scheme == mp4.CensFourCC
}

func isPatternScheme(scheme mp4.FourCC) bool {
	return scheme == mp4.CensFourCC || scheme == mp4.CbcsFourCC
}

// Process implements handler.Handler: it encrypts MediaSample payloads and
// forwards every other record kind unchanged.
func (e *Encryptor) Process(rec handler.Record) error {
	if rec.Kind == handler.KindStreamInfo {
		e.kind = rec.StreamInfo.Kind
		e.timescale = rec.StreamInfo.Timescale
		return e.Forward(rec)
	}
	if rec.Kind != handler.KindMediaSample {
		return e.Forward(rec)
	}
	s := rec.MediaSample
	if e.cfg.CryptoPeriodDuration > 0 {
		if err := e.maybeRotateKey(s); err != nil {
			return err
		}
	}
	iv, err := e.nextIV()
	if err != nil {
		return err
	}

	subsamples, err := e.partition(s.Payload)
	if err != nil {
		return status.New(status.EncryptionFailure, "encryptor.partition", err)
	}

	if err := e.encryptPayload(s.Payload, iv, subsamples); err != nil {
		return status.New(status.EncryptionFailure, "encryptor.encryptPayload", err)
	}

	s.DecryptConfig = &media.DecryptConfig{
		KeyID:      e.cfg.KeyID,
		IV:         iv,
		Subsamples: subsamples,
		Scheme:     e.cfg.Scheme.String(),
		Pattern:    e.cfg.Pattern,
	}
	if err := s.DecryptConfig.ValidateAgainst(len(s.Payload)); err != nil {
		return status.New(status.EncryptionFailure, "encryptor.ValidateAgainst", err)
	}
	return e.Forward(rec)
}

// currentPeriodIndex returns floor(pts / crypto_period_duration) in the
// stream's own timescale.
func (e *Encryptor) currentPeriodIndex(pts int64) uint64 {
	if e.cfg.CryptoPeriodDuration <= 0 || e.timescale == 0 || pts <= 0 {
		return 0
	}
	periodTicks := e.cfg.CryptoPeriodDuration * float64(e.timescale)
	if periodTicks <= 0 {
		return 0
	}
	return uint64(float64(pts) / periodTicks)
}

// maybeRotateKey switches to the key for a later crypto period once pts
// crosses a period boundary, but only at a SAP: a boundary that falls
// between SAPs is held pending until the next eligible sample (spec.md: "A
// key change boundary must coincide with a SAP; if not, the encryptor
// delays the switch to the next SAP").
func (e *Encryptor) maybeRotateKey(s *media.MediaSample) error {
	want := e.currentPeriodIndex(s.PTS)
	if want == e.periodIndex {
		return nil
	}
	eligible := s.IsKeyFrame || e.kind != media.Video
	if !eligible {
		return nil
	}
	rotating := e.keys.(RotatingKeySource)
	keyID, key, err := rotating.KeyForPeriod(want)
	if err != nil {
		return status.New(status.EncryptionFailure, "encryptor.KeyForPeriod", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return status.New(status.EncryptionFailure, "aes.NewCipher", err)
	}
	e.cfg.KeyID = keyID
	e.block = block
	e.ivCounter = 0
	e.periodIndex = want
	return nil
}

// nextIV returns the IV for the next sample: the constant IV verbatim, or
// an incrementing per-sample IV of the configured width.
func (e *Encryptor) nextIV() ([]byte, error) {
	if e.cfg.PerSampleIVSize == 0 {
		return append([]byte(nil), e.cfg.ConstantIV...), nil
	}
	iv := make([]byte, e.cfg.PerSampleIVSize)
	// Per-sample IVs are a monotonically increasing counter in the
	// low-order bytes, matching common-encryption's usual generator.
	ctr := e.ivCounter
	e.ivCounter++
	for i := len(iv) - 1; i >= 0 && ctr != 0; i-- {
		iv[i] = byte(ctr)
		ctr >>= 8
	}
	return iv, nil
}

// partition splits payload into clear/cipher subsample byte ranges
// following the pattern scheme's crypt:skip block pattern. Non-pattern
// schemes (cenc, cbc1) get a single subsample covering the whole payload
// (no leading clear bytes, since NAL-structure-aware clear-byte selection
// is out of scope for this module — that is the caller's job if it wants
// partial-sample clear headers).
func (e *Encryptor) partition(payload []byte) ([]media.Subsample, error) {
	if !isPatternScheme(e.cfg.Scheme) || e.cfg.CryptByteBlock == 0 {
		return []media.Subsample{{ClearBytes: 0, CipherBytes: uint32(len(payload))}}, nil
	}
	cryptBlocks := int(e.cfg.CryptByteBlock)
	skipBlocks := int(e.cfg.SkipByteBlock)
	patternBytes := (cryptBlocks + skipBlocks) * blockSize
	if patternBytes == 0 {
		return []media.Subsample{{ClearBytes: 0, CipherBytes: uint32(len(payload))}}, nil
	}

	var subsamples []media.Subsample
	remaining := len(payload)
	for remaining > 0 {
		if remaining < patternBytes {
			// Trailing partial pattern: encrypt whole crypt blocks only,
			// leave any final partial block (less than 16 bytes) clear.
			cryptable := (remaining / blockSize) * blockSize
			if cryptable > cryptBlocks*blockSize {
				cryptable = cryptBlocks * blockSize
			}
			clear := remaining - cryptable
			if cryptable > 0 {
				subsamples = append(subsamples, media.Subsample{ClearBytes: 0, CipherBytes: uint32(cryptable)})
			}
			if clear > 0 {
				subsamples = append(subsamples, media.Subsample{ClearBytes: uint32(clear), CipherBytes: 0})
			}
			remaining = 0
			continue
		}
		subsamples = append(subsamples, media.Subsample{
			ClearBytes:  uint32(skipBlocks * blockSize),
			CipherBytes: uint32(cryptBlocks * blockSize),
		})
		remaining -= patternBytes
	}
	return subsamples, nil
}

// encryptPayload encrypts the cipher ranges of payload in place, using
// AES-CTR for cenc/cens and AES-CBC (per-subsample, re-keyed IV) for
// cbc1/cbcs.
func (e *Encryptor) encryptPayload(payload []byte, iv []byte, subsamples []media.Subsample) error {
	fullIV := make([]byte, blockSize)
	copy(fullIV, iv)

	if isCTRScheme(e.cfg.Scheme) {
		stream := cipher.NewCTR(e.block, fullIV)
		offset := 0
		for _, ss := range subsamples {
			offset += int(ss.ClearBytes)
			if ss.CipherBytes > 0 {
				stream.XORKeyStream(payload[offset:offset+int(ss.CipherBytes)], payload[offset:offset+int(ss.CipherBytes)])
				offset += int(ss.CipherBytes)
			}
		}
		return nil
	}

	// cbc1/cbcs: each subsample's cipher range is encrypted independently
	// with CBC using the same IV (cbcs uses a constant IV across the whole
	// sample by design; cbc1 chains only within, never across, samples).
	offset := 0
	for _, ss := range subsamples {
		offset += int(ss.ClearBytes)
		if ss.CipherBytes == 0 {
			continue
		}
		if ss.CipherBytes%blockSize != 0 {
			return status.Newf(status.EncryptionFailure, nil,
				"encryptor: cipher range %d is not block-aligned", ss.CipherBytes)
		}
		mode := cipher.NewCBCEncrypter(e.block, fullIV)
		mode.CryptBlocks(payload[offset:offset+int(ss.CipherBytes)], payload[offset:offset+int(ss.CipherBytes)])
		offset += int(ss.CipherBytes)
	}
	return nil
}

// NewRandomKey returns a fresh random 16-byte content key, used by callers
// that generate keys locally rather than fetching them from a DRM key
// server.
func NewRandomKey() ([]byte, error) {
	k := make([]byte, blockSize)
	if _, err := rand.Read(k); err != nil {
		return nil, status.New(status.EncryptionFailure, "rand.Read", err)
	}
	return k, nil
}
