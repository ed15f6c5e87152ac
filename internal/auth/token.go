package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes is the entropy of a session token (256 bits)
const tokenBytes = 32

// generateSecureToken returns length random bytes from crypto/rand, URL-safe encoded
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
