package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// RandomCommonName generates the random token used as a client certificate
// common name: 16 random bytes, hex encoded to 32 characters. Uniqueness
// relies on the randomness of the token, not on any locking.
func RandomCommonName() (string, error) {
	return RandomToken(16)
}

// RandomToken returns length random bytes as a lowercase hex string.
func RandomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
