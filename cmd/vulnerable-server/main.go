// Command vulnerable-server serves an encrypted secret through a token service
// that leaks padding validity, for padding-oracle -mode http to attack.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mario-areias/padding-oracle/key"
	"github.com/mario-areias/padding-oracle/oracle"
)

func main() {
	ip := flag.String("ip", "127.0.0.1", "IP address to bind to")
	port := flag.String("port", "3000", "Port to listen on")
	secret := flag.String("flag", "", "secret to hand out encrypted (random if empty)")
	passphrase := flag.String("passphrase", "", "derive the key from a passphrase (random key if empty)")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	k := key.Bit128()
	if *passphrase != "" {
		var err error
		if k, err = key.FromPassphrase(*passphrase, "vulnerable-server", 16); err != nil {
			logger.Fatalf("deriving key: %v", err)
		}
	}

	if *secret == "" {
		*secret = generateRandomFlag(logger)
		fmt.Printf("Generated flag: %s\n", *secret)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(*ip, *port),
		Handler:           oracle.NewServer(k, []byte(*secret), logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("Server starting on %s", srv.Addr)
	logger.Fatal(srv.ListenAndServe())
}

func generateRandomFlag(logger *log.Logger) string {
	flag := make([]byte, 30)
	if _, err := rand.Read(flag); err != nil {
		logger.Fatal("Failed to generate flag:", err)
	}
	return fmt.Sprintf("flag{%s}", base64.URLEncoding.EncodeToString(flag))
}
