package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// GenerateOneTimeString mints the CSRF nonce bound to a wallet's pending
// OAuth attempt. Regenerated on every authorize attempt, pass or fail.
func GenerateOneTimeString() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate one-time string: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// OneTimeStringMatches compares the callback state parameter against the
// stored nonce in constant time.
func OneTimeStringMatches(stored, received string) bool {
	if stored == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}
