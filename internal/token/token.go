// Package token generates opaque invitation tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New generates a cryptographically unpredictable token of 2*n hex characters.
func New(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid token length: %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
