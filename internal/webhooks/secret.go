package webhooks

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewSecret generates a subscription signing secret: 32 random bytes, hex
// encoded. Generated once at creation and never exposed on reads.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
