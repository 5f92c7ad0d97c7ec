package authn

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// secretBytes is the entropy of a generated pre-shared key.
const secretBytes = 32

// GenerateSecret produces a new random pre-shared key, base58-encoded so it
// survives copy-paste into environment configuration without escaping.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base58.Encode(buf), nil
}
