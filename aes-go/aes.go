// Package aesgo is the reference CBC cipher behind the local padding oracle and
// the vulnerable token service. Ciphertexts are always IV || blocks.
package aesgo

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/mario-areias/padding-oracle/key"
	"github.com/mario-areias/padding-oracle/pkcs7"
)

const BlockSize = aes.BlockSize

type Mode int

const (
	CBC Mode = iota
)

var (
	ErrUnsupportedMode = errors.New("aesgo: unsupported mode")
	ErrInvalidLength   = errors.New("aesgo: invalid ciphertext length")
	// ErrInvalidPadding is the only error a well formed ciphertext can produce
	// on decryption. It is what a padding oracle leaks.
	ErrInvalidPadding = pkcs7.ErrInvalidPadding
)

type AES struct {
	block cipher.Block
}

func New(k key.Key) AES {
	block, err := aes.NewCipher(k.GetBytes())
	if err != nil {
		panic(fmt.Sprintf("Unsupported key size: %s", err))
	}
	return AES{block: block}
}

// Encrypt pads plaintext and encrypts it under a random IV.
func (a AES) Encrypt(mode Mode, plaintext []byte) ([]byte, error) {
	iv := make([]byte, BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("aesgo: generating iv: %w", err)
	}
	return a.EncryptWithIV(mode, plaintext, iv)
}

func (a AES) EncryptWithIV(mode Mode, plaintext, iv []byte) ([]byte, error) {
	if mode != CBC {
		return nil, ErrUnsupportedMode
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("aesgo: iv must be %d bytes, got %d", BlockSize, len(iv))
	}

	padded := pkcs7.Pad(plaintext, BlockSize)

	encrypted := make([]byte, BlockSize+len(padded))
	copy(encrypted, iv)
	cipher.NewCBCEncrypter(a.block, iv).CryptBlocks(encrypted[BlockSize:], padded)

	return encrypted, nil
}

// Decrypt expects the IV as the first block of encrypted.
func (a AES) Decrypt(mode Mode, encrypted []byte) ([]byte, error) {
	if mode != CBC {
		return nil, ErrUnsupportedMode
	}
	if len(encrypted) < 2*BlockSize || len(encrypted)%BlockSize != 0 {
		return nil, ErrInvalidLength
	}

	iv := encrypted[:BlockSize]
	decrypted := make([]byte, len(encrypted)-BlockSize)
	cipher.NewCBCDecrypter(a.block, iv).CryptBlocks(decrypted, encrypted[BlockSize:])

	return RemovePadding(decrypted)
}

func RemovePadding(b []byte) ([]byte, error) {
	return pkcs7.Unpad(b, BlockSize)
}
