package media_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/media"
)

func TestDecryptConfigValidateAgainstAcceptsMatchingSum(t *testing.T) {
	is := is.New(t)
	d := &media.DecryptConfig{Subsamples: []media.Subsample{
		{ClearBytes: 10, CipherBytes: 90},
		{ClearBytes: 5, CipherBytes: 95},
	}}
	is.NoErr(d.ValidateAgainst(200))
}

func TestDecryptConfigValidateAgainstRejectsMismatchedSum(t *testing.T) {
	is := is.New(t)
	d := &media.DecryptConfig{Subsamples: []media.Subsample{{ClearBytes: 10, CipherBytes: 90}}}
	is.True(d.ValidateAgainst(50) != nil)
}

func TestDecryptConfigValidateAgainstSkipsCheckWithNoSubsamples(t *testing.T) {
	is := is.New(t)
	d := &media.DecryptConfig{}
	is.NoErr(d.ValidateAgainst(1234))
}

func TestTextSampleEffectiveStartTimePrefersOverride(t *testing.T) {
	is := is.New(t)
	override := int64(42)
	ts := &media.TextSample{StartTime: 10, DecodeTimeOverride: &override}
	is.Equal(ts.EffectiveStartTime(), int64(42))
}

func TestTextSampleEffectiveStartTimeFallsBackToStartTime(t *testing.T) {
	is := is.New(t)
	ts := &media.TextSample{StartTime: 10}
	is.Equal(ts.EffectiveStartTime(), int64(10))
}
