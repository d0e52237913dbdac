package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// TokenBytes is the entropy of tokens returned by NewToken.
const TokenBytes = 32

// NewToken returns an unpredictable URL-safe token. Unlike an ID, a token
// must never fall back to a guessable source, so a crypto/rand failure is
// returned to the caller.
func NewToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
