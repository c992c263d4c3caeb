// Package pkcs7 implements PKCS#7 block padding.
package pkcs7

import (
	"bytes"
	"errors"
)

var ErrInvalidPadding = errors.New("pkcs7: invalid padding")

// Pad returns a copy of b padded to a multiple of blockSize. A block aligned
// input gets a whole block of padding.
func Pad(b []byte, blockSize int) []byte {
	padding := blockSize - len(b)%blockSize
	out := make([]byte, len(b), len(b)+padding)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// Unpad strips the padding from b. The result aliases b.
func Unpad(b []byte, blockSize int) ([]byte, error) {
	l := len(b)
	if l == 0 || l%blockSize != 0 {
		return nil, ErrInvalidPadding
	}

	n := int(b[l-1])
	if n == 0 || n > blockSize {
		return nil, ErrInvalidPadding
	}
	for _, p := range b[l-n:] {
		if int(p) != n {
			return nil, ErrInvalidPadding
		}
	}

	return b[:l-n], nil
}

func Valid(b []byte, blockSize int) bool {
	_, err := Unpad(b, blockSize)
	return err == nil
}
