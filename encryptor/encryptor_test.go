package encryptor_test

import (
	"bytes"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/encryptor"
	"github.com/go-webdl/packager/handler"
	"github.com/go-webdl/packager/internal/testvectors"
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/mp4"
)

type sink struct {
	samples []*media.MediaSample
}

func (s *sink) Initialize() error { return nil }
func (s *sink) Process(rec handler.Record) error {
	if rec.Kind == handler.KindMediaSample {
		s.samples = append(s.samples, rec.MediaSample)
	}
	return nil
}
func (s *sink) Flush(handler.InputPort) error { return nil }

func testKey() [16]byte {
	var k [16]byte
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestEncryptorCencRoundTrips(t *testing.T) {
	is := is.New(t)
	keyID := testKey()
	keys := encryptor.StaticKeySource{keyID: bytes.Repeat([]byte{0x42}, 16)}
	cfg := &media.EncryptionConfig{
		Scheme:          mp4.CencFourCC,
		PerSampleIVSize: 8,
		KeyID:           keyID,
	}
	out := &sink{}
	enc, err := encryptor.New(0, cfg, keys, handler.Port{out})
	is.NoErr(err)

	plain := bytes.Repeat([]byte{0xAB}, 64)
	sample := &media.MediaSample{Payload: append([]byte(nil), plain...)}
	is.NoErr(enc.Process(handler.MediaSampleRecord(0, sample)))

	is.Equal(len(out.samples), 1)
	encrypted := out.samples[0]
	is.True(!bytes.Equal(encrypted.Payload, plain))
	is.True(encrypted.DecryptConfig != nil)
	is.Equal(encrypted.DecryptConfig.KeyID, keyID)
	is.Equal(len(encrypted.DecryptConfig.IV), 8)
	is.Equal(encrypted.DecryptConfig.Scheme, "cenc")

	var sum int
	for _, ss := range encrypted.DecryptConfig.Subsamples {
		sum += int(ss.ClearBytes) + int(ss.CipherBytes)
	}
	is.Equal(sum, len(plain))
}

func TestEncryptorCbcsPatternLeavesTrailingPartialBlockClear(t *testing.T) {
	is := is.New(t)
	keyID := testKey()
	keys := encryptor.StaticKeySource{keyID: bytes.Repeat([]byte{0x11}, 16)}
	cfg := &media.EncryptionConfig{
		Scheme:     mp4.CbcsFourCC,
		Pattern:    media.DefaultPattern1_9,
		ConstantIV: bytes.Repeat([]byte{0x01}, 16),
		KeyID:      keyID,
	}
	out := &sink{}
	enc, err := encryptor.New(0, cfg, keys, handler.Port{out})
	is.NoErr(err)

	// 1 crypt block (16 bytes) + 9 skip blocks (144 bytes) = 160-byte
	// pattern, plus 10 trailing bytes that must stay clear (< 1 block).
	payload := make([]byte, 170)
	for i := range payload {
		payload[i] = byte(i)
	}
	sample := &media.MediaSample{Payload: append([]byte(nil), payload...)}
	is.NoErr(enc.Process(handler.MediaSampleRecord(0, sample)))

	encrypted := out.samples[0].DecryptConfig
	is.Equal(len(encrypted.Subsamples), 2)
	is.Equal(encrypted.Subsamples[0].CipherBytes, uint32(16))
	is.Equal(encrypted.Subsamples[0].ClearBytes, uint32(144))
	is.Equal(encrypted.Subsamples[1].ClearBytes, uint32(10))
	is.Equal(encrypted.Subsamples[1].CipherBytes, uint32(0))

	var sum int
	for _, ss := range encrypted.Subsamples {
		sum += int(ss.ClearBytes) + int(ss.CipherBytes)
	}
	is.Equal(sum, len(payload))

	// The trailing 10 clear bytes must be untouched plaintext.
	is.True(bytes.Equal(out.samples[0].Payload[160:], payload[160:]))
}

func TestEncryptorCencMatchesGoldenAESCTRVector(t *testing.T) {
	is := is.New(t)
	key, iv, plaintext, wantCiphertext := testvectors.GenAESCTR(0x7A, 0x00, 48)
	var keyID [16]byte
	keyID[0] = 0x99
	keys := encryptor.StaticKeySource{keyID: key}
	cfg := &media.EncryptionConfig{
		Scheme:     mp4.CencFourCC,
		ConstantIV: iv,
		KeyID:      keyID,
	}
	out := &sink{}
	enc, err := encryptor.New(0, cfg, keys, handler.Port{out})
	is.NoErr(err)

	sample := &media.MediaSample{Payload: append([]byte(nil), plaintext...)}
	is.NoErr(enc.Process(handler.MediaSampleRecord(0, sample)))
	is.True(bytes.Equal(out.samples[0].Payload, wantCiphertext))
}

func TestEncryptorRotatesKeyOnlyAtSAPAfterPeriodBoundary(t *testing.T) {
	is := is.New(t)
	period0, period1 := testKey(), [16]byte{}
	for i := range period1 {
		period1[i] = byte(0x80 + i)
	}
	keys := encryptor.PeriodicKeySource{
		0: {KeyID: period0, Key: bytes.Repeat([]byte{0x01}, 16)},
		1: {KeyID: period1, Key: bytes.Repeat([]byte{0x02}, 16)},
	}
	cfg := &media.EncryptionConfig{
		Scheme:               mp4.CencFourCC,
		PerSampleIVSize:      8,
		KeyID:                period0,
		CryptoPeriodDuration: 10, // seconds
	}
	out := &sink{}
	enc, err := encryptor.New(0, cfg, keys, handler.Port{out})
	is.NoErr(err)

	is.NoErr(enc.Process(handler.StreamInfoRecord(0, &media.StreamInfo{Kind: media.Video, Timescale: 1})))

	// SAP at t=9s: period index 0 (floor(9/10)), no rotation yet.
	is.NoErr(enc.Process(handler.MediaSampleRecord(0, &media.MediaSample{
		PTS: 9, IsKeyFrame: true, Payload: bytes.Repeat([]byte{0xAB}, 16),
	})))
	is.Equal(out.samples[0].DecryptConfig.KeyID, period0)

	// Non-SAP sample at the period-1 boundary (t=10s): the switch is
	// held pending, so it still uses period 0's key.
	is.NoErr(enc.Process(handler.MediaSampleRecord(0, &media.MediaSample{
		PTS: 10, IsKeyFrame: false, Payload: bytes.Repeat([]byte{0xAB}, 16),
	})))
	is.Equal(out.samples[1].DecryptConfig.KeyID, period0)

	// SAP at t=10s: now it must switch to period 1's key.
	is.NoErr(enc.Process(handler.MediaSampleRecord(0, &media.MediaSample{
		PTS: 10, IsKeyFrame: true, Payload: bytes.Repeat([]byte{0xAB}, 16),
	})))
	is.Equal(out.samples[2].DecryptConfig.KeyID, period1)
}

func TestEncryptorNewRejectsCryptoPeriodWithoutRotatingKeySource(t *testing.T) {
	is := is.New(t)
	keyID := testKey()
	keys := encryptor.StaticKeySource{keyID: bytes.Repeat([]byte{0x42}, 16)}
	cfg := &media.EncryptionConfig{
		Scheme:               mp4.CencFourCC,
		PerSampleIVSize:      8,
		KeyID:                keyID,
		CryptoPeriodDuration: 10,
	}
	_, err := encryptor.New(0, cfg, keys, nil)
	is.True(err != nil)
}

func TestEncryptorRejectsUnknownKey(t *testing.T) {
	is := is.New(t)
	keys := encryptor.StaticKeySource{}
	cfg := &media.EncryptionConfig{
		Scheme:          mp4.CencFourCC,
		PerSampleIVSize: 8,
		KeyID:           testKey(),
	}
	_, err := encryptor.New(0, cfg, keys, nil)
	is.True(err != nil)
}
