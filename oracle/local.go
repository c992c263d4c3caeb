package oracle

import (
	"context"
	"errors"
	"time"

	aesgo "github.com/mario-areias/padding-oracle/aes-go"
	"github.com/mario-areias/padding-oracle/key"
)

// A Local oracle can be thought as a server that decrypts its input but doesn't
// return the plain text to its caller. For example, a web server that decrypts
// a cookie to check for user permissions.
type Local struct {
	aes aesgo.AES

	// Delay simulates the round trip of a remote oracle.
	Delay time.Duration
}

func NewLocal(k key.Key) *Local {
	return &Local{aes: aesgo.New(k)}
}

// Encrypt produces a token the oracle will accept, split into IV and ciphertext.
func (l *Local) Encrypt(plaintext []byte) (iv, ciphertext []byte, err error) {
	encrypted, err := l.aes.Encrypt(aesgo.CBC, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return encrypted[:aesgo.BlockSize], encrypted[aesgo.BlockSize:], nil
}

func (l *Local) EncryptWithIV(plaintext, iv []byte) ([]byte, error) {
	encrypted, err := l.aes.EncryptWithIV(aesgo.CBC, plaintext, iv)
	if err != nil {
		return nil, err
	}
	return encrypted[aesgo.BlockSize:], nil
}

func (l *Local) Check(ctx context.Context, preceding, target []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if l.Delay > 0 {
		t := time.NewTimer(l.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	encrypted := make([]byte, 0, len(preceding)+len(target))
	encrypted = append(encrypted, preceding...)
	encrypted = append(encrypted, target...)

	// ignoring decrypted output because the caller shouldn't have access to it
	_, err := l.aes.Decrypt(aesgo.CBC, encrypted)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, aesgo.ErrInvalidPadding):
		return false, nil
	default:
		return false, err
	}
}
