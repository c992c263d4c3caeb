package paddingoracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mario-areias/padding-oracle/key"
	"github.com/mario-areias/padding-oracle/oracle"
	"github.com/mario-areias/padding-oracle/race"
)

func TestPaddingOracle(t *testing.T) {
	o := oracle.NewLocal(key.Bit128())

	tests := []struct {
		name  string
		input string
	}{
		{name: "Simple decryption test", input: "Let's test if this is working!"},
		{name: "Single byte", input: "x"},
		{name: "Block aligned", input: "YELLOW SUBMARINE"},
		{name: "Several blocks", input: "Now that the party is jumping, with the bass kicked in and the Vega's are pumpin'"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			iv, ciphertext, err := o.Encrypt([]byte(test.input))
			if err != nil {
				t.Fatalf("Error encrypting: %s", err)
			}

			c, err := New(iv, ciphertext, o)
			if err != nil {
				t.Fatalf("Error creating cracker: %s", err)
			}
			decrypted, err := c.CrackPlaintext(context.Background())
			if err != nil {
				t.Fatalf("Error cracking: %s", err)
			}
			if string(decrypted) != test.input {
				t.Errorf("Got: %q, Expected: %q", decrypted, test.input)
			}
		})
	}
}

func TestHelloWorldZeroIV(t *testing.T) {
	o := oracle.NewLocal(key.Bit128())
	iv := make([]byte, 16)

	ciphertext, err := o.EncryptWithIV([]byte("hello, world!!"), iv)
	if err != nil {
		t.Fatalf("Error encrypting: %s", err)
	}

	c, err := New(iv, ciphertext, o)
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	got, err := c.CrackPlaintext(context.Background())
	if err != nil {
		t.Fatalf("Error cracking: %s", err)
	}
	if !bytes.Equal(got, []byte("hello, world!!")) {
		t.Errorf("Got: %q, Expected: %q", got, "hello, world!!")
	}
}

func TestRoundTripLengths(t *testing.T) {
	for l := 1; l <= 40; l++ {
		o := oracle.NewLocal(key.Bit256())
		plaintext := key.Bit256().GetBytes()
		plaintext = append(plaintext, key.Bit256().GetBytes()...)[:l]

		iv, ciphertext, err := o.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("len=%d: Error encrypting: %s", l, err)
		}

		c, err := New(iv, ciphertext, o)
		if err != nil {
			t.Fatalf("len=%d: Error creating cracker: %s", l, err)
		}
		got, err := c.CrackPlaintext(context.Background())
		if err != nil {
			t.Fatalf("len=%d: Error cracking: %s", l, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("len=%d: Got: %x, Expected: %x", l, got, plaintext)
		}
	}
}

func TestSequentialMatchesConcurrent(t *testing.T) {
	o := oracle.NewLocal(key.Bit128())
	iv, ciphertext, err := o.Encrypt([]byte("blocks are an embarrassingly parallel decomposition"))
	if err != nil {
		t.Fatalf("Error encrypting: %s", err)
	}

	results := make([][]byte, 0, 2)
	for _, opts := range [][]Option{nil, {WithSequentialBlocks()}} {
		c, err := New(iv, ciphertext, o, opts...)
		if err != nil {
			t.Fatalf("Error creating cracker: %s", err)
		}
		got, err := c.CrackPlaintext(context.Background())
		if err != nil {
			t.Fatalf("Error cracking: %s", err)
		}
		results = append(results, got)
	}

	if !bytes.Equal(results[0], results[1]) {
		t.Errorf("concurrent %q != sequential %q", results[0], results[1])
	}
}

func TestExhaustiveProbes(t *testing.T) {
	o := oracle.NewLocal(key.Bit128())
	plaintext := []byte("every candidate, every byte")
	iv, ciphertext, err := o.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Error encrypting: %s", err)
	}

	c, err := New(iv, ciphertext, o, WithExhaustiveProbes(32))
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	got, err := c.CrackPlaintext(context.Background())
	if err != nil {
		t.Fatalf("Error cracking: %s", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Got: %q, Expected: %q", got, plaintext)
	}
}

func TestExhaustiveProbesAmbiguous(t *testing.T) {
	always := oracle.Sync(func(preceding, target []byte) bool { return true })

	c, err := New(make([]byte, 16), make([]byte, 16), always, WithExhaustiveProbes(0))
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	_, err = c.CrackPlaintext(context.Background())
	if !errors.Is(err, ErrAmbiguousCandidate) {
		t.Errorf("Got: %v, Expected: %v", err, ErrAmbiguousCandidate)
	}
}

func TestOracleAlwaysRejects(t *testing.T) {
	never := oracle.Sync(func(preceding, target []byte) bool { return false })

	c, err := New(make([]byte, 16), make([]byte, 32), never)
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	_, err = c.CrackPlaintext(context.Background())

	var byteErr *ByteError
	if !errors.As(err, &byteErr) {
		t.Fatalf("expected ByteError, got %v", err)
	}
	if byteErr.Position != 15 {
		t.Errorf("Position. Got: %d, Expected: 15", byteErr.Position)
	}
	if !errors.Is(err, ErrNoCandidate) {
		t.Errorf("expected ErrNoCandidate in %v", err)
	}
	var exhausted *race.ExhaustedError
	if !errors.As(err, &exhausted) || len(exhausted.Errs) != 256 {
		t.Errorf("expected the 256 race causes in %v", err)
	}
}

func TestOracleFailureAbortsSiblings(t *testing.T) {
	k := key.Bit128()
	local := oracle.NewLocal(k)
	iv, ciphertext, err := local.Encrypt(bytes.Repeat([]byte("a"), 60))
	if err != nil {
		t.Fatalf("Error encrypting: %s", err)
	}

	// the oracle refuses everything aimed at the third block
	poisoned := ciphertext[32:48]
	o := oracle.Func(func(ctx context.Context, preceding, target []byte) (bool, error) {
		if bytes.Equal(target, poisoned) {
			return false, nil
		}
		return local.Check(ctx, preceding, target)
	})

	c, err := New(iv, ciphertext, o)
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	got, err := c.CrackPlaintext(context.Background())
	if got != nil {
		t.Errorf("partial plaintext returned: %q", got)
	}

	var byteErr *ByteError
	if !errors.As(err, &byteErr) {
		t.Fatalf("expected ByteError, got %v", err)
	}
	if byteErr.Block != 2 {
		t.Errorf("Block. Got: %d, Expected: 2", byteErr.Block)
	}
}

func TestCancelledContext(t *testing.T) {
	o := oracle.NewLocal(key.Bit128())
	iv, ciphertext, err := o.Encrypt([]byte("never decrypted"))
	if err != nil {
		t.Fatalf("Error encrypting: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := New(iv, ciphertext, o, WithSequentialBlocks())
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	if _, err := c.CrackPlaintext(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Got: %v, Expected: %v", err, context.Canceled)
	}
}

func TestNewValidatesLengths(t *testing.T) {
	queried := false
	o := oracle.Sync(func(preceding, target []byte) bool {
		queried = true
		return true
	})

	tests := []struct {
		name       string
		iv         []byte
		ciphertext []byte
		opts       []Option
		err        error
	}{
		{name: "short iv", iv: make([]byte, 15), ciphertext: make([]byte, 16), err: ErrInvalidIV},
		{name: "long iv", iv: make([]byte, 17), ciphertext: make([]byte, 16), err: ErrInvalidIV},
		{name: "empty ciphertext", iv: make([]byte, 16), ciphertext: nil, err: ErrInvalidCiphertext},
		{name: "ragged ciphertext", iv: make([]byte, 16), ciphertext: make([]byte, 20), err: ErrInvalidCiphertext},
		{name: "zero block length", iv: nil, ciphertext: nil, opts: []Option{WithBlockLength(0)}, err: ErrInvalidBlockLength},
		{name: "custom block length", iv: make([]byte, 8), ciphertext: make([]byte, 24), opts: []Option{WithBlockLength(8)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.iv, test.ciphertext, o, test.opts...)
			if !errors.Is(err, test.err) {
				t.Errorf("Got: %v, Expected: %v", err, test.err)
			}
		})
	}

	if queried {
		t.Errorf("oracle queried during construction")
	}
}

func TestNewCopiesInputs(t *testing.T) {
	iv := make([]byte, 16)
	ciphertext := make([]byte, 32)
	c, err := New(iv, ciphertext, oracle.Sync(func(_, _ []byte) bool { return false }))
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}

	iv[0], ciphertext[0] = 1, 1
	if c.precedingBlock(0)[0] != 0 || c.ciphertextBlock(0)[0] != 0 {
		t.Errorf("cracker aliases its inputs")
	}
	if c.Blocks() != 2 {
		t.Errorf("Blocks. Got: %d, Expected: 2", c.Blocks())
	}
	if !bytes.Equal(c.precedingBlock(1), c.ciphertextBlock(0)) {
		t.Errorf("block 1 is not preceded by ciphertext block 0")
	}
}

func TestCrackBlockOutOfRange(t *testing.T) {
	c, err := New(make([]byte, 16), make([]byte, 16), oracle.Sync(func(_, _ []byte) bool { return false }))
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	for _, i := range []int{-1, 1} {
		if _, err := c.CrackBlock(context.Background(), i); err == nil {
			t.Errorf("expected error for block %d", i)
		}
	}
}

func TestUnpadRechecksPadding(t *testing.T) {
	c := &Cracker{blockLength: 4}

	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr bool
	}{
		{name: "valid", input: []byte{'a', 'b', 2, 2}, want: []byte("ab")},
		{name: "full block", input: []byte{'a', 'b', 'c', 'd', 4, 4, 4, 4}, want: []byte("abcd")},
		{name: "inconsistent", input: []byte{'a', 'b', 3, 2, 2, 2, 2, 3}, wantErr: true},
		{name: "zero", input: []byte{'a', 'b', 'c', 0}, wantErr: true},
		{name: "too long", input: []byte{'a', 5, 5, 5}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := c.unpad(test.input)
			if test.wantErr {
				if !errors.Is(err, ErrInvalidPadding) {
					t.Errorf("Got: %v, Expected: %v", err, ErrInvalidPadding)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if !bytes.Equal(got, test.want) {
				t.Errorf("Got: %q, Expected: %q", got, test.want)
			}
		})
	}
}

type recordingProgress struct {
	mu    sync.Mutex
	views map[int][]string
}

func (r *recordingProgress) Update(block int, view string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[block] = append(r.views[block], view)
}

func TestProgress(t *testing.T) {
	o := oracle.NewLocal(key.Bit128())
	iv, ciphertext, err := o.Encrypt([]byte(fmt.Sprintf("%020d", 7)))
	if err != nil {
		t.Fatalf("Error encrypting: %s", err)
	}

	p := &recordingProgress{views: map[int][]string{}}
	c, err := New(iv, ciphertext, o, WithProgress(p))
	if err != nil {
		t.Fatalf("Error creating cracker: %s", err)
	}
	if _, err := c.CrackPlaintext(context.Background()); err != nil {
		t.Fatalf("Error cracking: %s", err)
	}

	for i := range c.Blocks() {
		views := p.views[i]
		// the blank rendering plus one per recovered byte
		if len(views) != 17 {
			t.Errorf("block %d: Got %d updates, Expected 17", i, len(views))
		}
	}
}
