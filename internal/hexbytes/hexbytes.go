// Package hexbytes provides the hex/base64 opaque-byte encodings that the
// teacher library imported from github.com/go-webdl/encodetype. That module
// is not independently fetchable outside its retrieval pack, so the two
// encodings it contributed (hex-coded attribute bytes, base64-coded
// element bytes) are reimplemented here on the standard library's
// encoding/hex and encoding/base64, keeping the same XML (un)marshalling
// contract so callers migrating from the teacher's usage see no API churn.
package hexbytes

import (
	"encoding/base64"
	"encoding/hex"
)

// Hex is a byte slice that (un)marshals as a hexadecimal-coded XML
// attribute, mirroring encodetype.HexBytes.
type Hex []byte

func (h Hex) MarshalText() ([]byte, error) {
	dst := make([]byte, hex.EncodedLen(len(h)))
	hex.Encode(dst, h)
	return dst, nil
}

func (h *Hex) UnmarshalText(text []byte) error {
	dst := make([]byte, hex.DecodedLen(len(text)))
	n, err := hex.Decode(dst, text)
	if err != nil {
		return err
	}
	*h = dst[:n]
	return nil
}

// Base64 is a byte slice that (un)marshals as base64-coded XML character
// data, mirroring encodetype.Base64Bytes.
type Base64 []byte

func (b Base64) MarshalText() ([]byte, error) {
	dst := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(dst, b)
	return dst, nil
}

func (b *Base64) UnmarshalText(text []byte) error {
	dst := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(dst, text)
	if err != nil {
		return err
	}
	*b = dst[:n]
	return nil
}
