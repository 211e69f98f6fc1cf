package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

// Prints lines ready to be appended to .env
func main() {
	for _, name := range []string{"JWT_SECRET", "CSRF_SECRET"} {
		secret, err := generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", name, secret)
	}
}

func generate() (string, error) {
	b := make([]byte, SecretKeyBytesLen)

	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
