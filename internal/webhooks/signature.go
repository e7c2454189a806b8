package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Subscribers verify payloads by recomputing HMAC-SHA256 over the raw request
// body with their subscription secret and comparing against the
// X-Sigscore-Signature header ("sha256=<hex>") in constant time.

// SignPayload returns the signature header value for body.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a provided signature header value against body.
func VerifySignature(secret string, body []byte, provided string) bool {
	provided = strings.TrimPrefix(provided, "sha256=")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)
	b, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, b)
}
