package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
)

// keygen prints a random session signing secret for the session.secret
// config field. Configure the same secret on every instance so sessions
// survive restarts and work across replicas.
func main() {
	size := flag.Int("bytes", 32, "secret length in bytes")
	flag.Parse()

	if *size < 32 {
		fmt.Fprintln(os.Stderr, "error: secrets shorter than 32 bytes are too weak for HMAC-SHA256")
		os.Exit(1)
	}

	b := make([]byte, *size)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("failed to read random bytes: %v", err)
	}
	fmt.Println(hex.EncodeToString(b))
}
