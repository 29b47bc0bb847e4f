package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// TokenPrefix marks tokens issued by this service.
const TokenPrefix = "tk_"

// tokenEntropyBytes is 128 bits, enough that collisions are negligible
// over the lifetime of the store.
const tokenEntropyBytes = 16

// GenerateToken returns a new opaque bearer token drawn from a
// cryptographically secure source.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(buf), nil
}

// Fingerprint returns a short, loggable form of a token. Full tokens
// never go to logs or audit events.
func Fingerprint(token string) string {
	trimmed := strings.TrimPrefix(token, TokenPrefix)
	if len(trimmed) > 8 {
		trimmed = trimmed[:8]
	}
	return TokenPrefix + trimmed + "..."
}
