package media_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/media"
)

func TestEncryptionConfigValidateRejectsBothIVKinds(t *testing.T) {
	is := is.New(t)
	c := &media.EncryptionConfig{PerSampleIVSize: 8, ConstantIV: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	is.True(c.Validate() != nil)
}

func TestEncryptionConfigValidateRejectsInvalidPerSampleIVSize(t *testing.T) {
	is := is.New(t)
	c := &media.EncryptionConfig{PerSampleIVSize: 12}
	is.True(c.Validate() != nil)
}

func TestEncryptionConfigValidateRejectsNeitherIVKind(t *testing.T) {
	is := is.New(t)
	c := &media.EncryptionConfig{}
	is.True(c.Validate() != nil)
}

func TestEncryptionConfigValidateAcceptsConstantIV(t *testing.T) {
	is := is.New(t)
	c := &media.EncryptionConfig{ConstantIV: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	is.NoErr(c.Validate())
}

func TestEncryptionConfigValidateAcceptsPerSampleIV(t *testing.T) {
	is := is.New(t)
	c := &media.EncryptionConfig{PerSampleIVSize: 16}
	is.NoErr(c.Validate())
}

func TestStreamInfoCloneDeepCopiesEncryptionAndCodecConfig(t *testing.T) {
	is := is.New(t)
	orig := &media.StreamInfo{
		Kind:        media.Video,
		CodecConfig: []byte{1, 2, 3},
		Encryption: &media.EncryptionConfig{
			ConstantIV:        []byte{9, 9, 9, 9, 9, 9, 9, 9},
			ProtectionSystems: []media.ProtectionSystemInfo{{SystemID: media.SystemIDWidevine}},
		},
	}

	clone := orig.Clone()
	clone.CodecConfig[0] = 0xFF
	clone.Encryption.ConstantIV[0] = 0xFF
	clone.Encryption.ProtectionSystems[0].SystemID = media.SystemIDPlayReady

	is.Equal(orig.CodecConfig[0], byte(1))
	is.Equal(orig.Encryption.ConstantIV[0], byte(9))
	is.Equal(orig.Encryption.ProtectionSystems[0].SystemID, media.SystemIDWidevine)
}

func TestStreamInfoCloneHandlesNoEncryption(t *testing.T) {
	is := is.New(t)
	orig := &media.StreamInfo{Kind: media.Audio}
	clone := orig.Clone()
	is.True(clone.Encryption == nil)
}

func TestKindString(t *testing.T) {
	is := is.New(t)
	is.Equal(media.Video.String(), "video")
	is.Equal(media.Audio.String(), "audio")
	is.Equal(media.Text.String(), "text")
	is.Equal(media.Unknown.String(), "unknown")
}
