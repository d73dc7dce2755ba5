// Package testvectors generates deterministic golden byte fixtures for the
// encryption tests in this module, following
// alxayo-rtmp-go/tests/golden's gen_* idiom: each fixture is produced by a
// small generator here instead of checked in as an opaque binary blob, so a
// test can regenerate the expected output after a deliberate wire-format
// change rather than hand-editing hex dumps.
package testvectors

import (
	"crypto/aes"
	"crypto/cipher"
)

// GenAESCTR returns the AES-CTR ciphertext for a key/IV/plaintext triple
// built from repeating byte fills, so callers get a reproducible fixture
// without checking in raw bytes.
func GenAESCTR(keyFill, ivFill byte, plaintextLen int) (key, iv, plaintext, ciphertext []byte) {
	key = fill(16, keyFill)
	iv = fill(16, ivFill)
	plaintext = make([]byte, plaintextLen)
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	ciphertext = make([]byte, plaintextLen)
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, plaintext)
	return key, iv, plaintext, ciphertext
}

// GenAESCBC returns the AES-CBC ciphertext for a single 16-byte block built
// from repeating byte fills.
func GenAESCBC(keyFill, ivFill, plainFill byte) (key, iv, plaintext, ciphertext []byte) {
	key = fill(16, keyFill)
	iv = fill(16, ivFill)
	plaintext = fill(16, plainFill)

	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	ciphertext = make([]byte, 16)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
	return key, iv, plaintext, ciphertext
}

func fill(n int, b byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}
