package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	stateBytes     = 16
	SecretKeyBytes = 32
)

// RandomToken returns size random bytes encoded as unpadded base64url.
func RandomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateState returns an OAuth state value for the authorize redirect.
func GenerateState() (string, error) {
	return RandomToken(stateBytes)
}

func GenerateSecretKey() (string, error) {
	return RandomToken(SecretKeyBytes)
}
