package testvectors_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/matryer/is"

	"github.com/go-webdl/packager/internal/testvectors"
)

func TestGenAESCTRIsDeterministic(t *testing.T) {
	is := is.New(t)
	_, _, _, ct1 := testvectors.GenAESCTR(0x01, 0x02, 32)
	_, _, _, ct2 := testvectors.GenAESCTR(0x01, 0x02, 32)
	is.True(bytes.Equal(ct1, ct2))
}

func TestGenAESCTRDecryptsBackToPlaintext(t *testing.T) {
	is := is.New(t)
	key, iv, plaintext, ciphertext := testvectors.GenAESCTR(0x42, 0x00, 48)

	block, err := aes.NewCipher(key)
	is.NoErr(err)
	decrypted := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(decrypted, ciphertext)
	is.True(bytes.Equal(decrypted, plaintext))
}

func TestGenAESCBCRoundTrips(t *testing.T) {
	is := is.New(t)
	key, iv, plaintext, ciphertext := testvectors.GenAESCBC(0x10, 0x20, 0x30)
	is.True(len(ciphertext) == 16)

	block, err := aes.NewCipher(key)
	is.NoErr(err)
	decrypted := make([]byte, 16)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, ciphertext)
	is.True(bytes.Equal(decrypted, plaintext))
}
