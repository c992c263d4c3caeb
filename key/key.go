package key

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Iterations used when deriving a key from a passphrase.
const Iterations = 4096

type Key interface {
	GetBytes() []byte
	Len() int
}

type key struct {
	material []byte
}

func (k *key) GetBytes() []byte {
	return k.material
}

func (k *key) Len() int {
	return len(k.material)
}

func Bit128() Key {
	return &key{material: generateRandomBytes(16)}
}

func Bit256() Key {
	return &key{material: generateRandomBytes(32)}
}

// NewKey wraps fixed key material. Only AES key sizes are accepted.
func NewKey(material []byte) (Key, error) {
	switch len(material) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("key: unsupported key size %d", len(material))
	}
	m := make([]byte, len(material))
	copy(m, material)
	return &key{material: m}, nil
}

// FromPassphrase derives a key of size bytes with PBKDF2-SHA256, so demo runs
// can be reproduced without handling raw key material.
func FromPassphrase(passphrase, salt string, size int) (Key, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("key: empty passphrase")
	}
	return NewKey(pbkdf2.Key([]byte(passphrase), []byte(salt), Iterations, size, sha256.New))
}

func generateRandomBytes(n int) []byte {
	randBytes := make([]byte, n)

	i, err := rand.Read(randBytes)
	if i != n || err != nil {
		panic("Could not generate random bytes")
	}

	return randBytes
}
