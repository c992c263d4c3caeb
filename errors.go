package paddingoracle

import (
	"errors"
	"fmt"

	"github.com/mario-areias/padding-oracle/pkcs7"
)

var (
	ErrInvalidBlockLength = errors.New("paddingoracle: block length must be between 1 and 255")
	ErrInvalidIV          = errors.New("paddingoracle: iv must be exactly one block")
	ErrInvalidCiphertext  = errors.New("paddingoracle: ciphertext must be a positive multiple of the block length")
	ErrBlockComplete      = errors.New("paddingoracle: block is already cracked")

	// ErrNoCandidate means no byte value produced valid padding, so the oracle
	// is not behaving like a padding oracle.
	ErrNoCandidate = errors.New("no candidate byte was accepted by the oracle")

	// ErrAmbiguousCandidate is only reported with WithExhaustiveProbes.
	ErrAmbiguousCandidate = errors.New("more than one candidate byte was accepted by the oracle")

	// ErrInvalidPadding is returned when the recovered plaintext doesn't end in
	// valid padding, which an honest oracle cannot cause.
	ErrInvalidPadding = pkcs7.ErrInvalidPadding
)

// ByteError reports the block and byte position that could not be recovered.
type ByteError struct {
	Block    int
	Position int
	Err      error
}

func (e *ByteError) Error() string {
	return fmt.Sprintf("paddingoracle: block %d byte %d: %v", e.Block, e.Position, e.Err)
}

func (e *ByteError) Unwrap() error {
	return e.Err
}
