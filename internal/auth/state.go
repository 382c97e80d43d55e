package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/brizzai/passport/internal/auth/constants"
)

// GenerateState returns a random URL-safe anti-forgery token.
func GenerateState() (string, error) {
	b := make([]byte, constants.StateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
