// Package webhookauth verifies HMAC signatures on incoming webhook requests.
package webhookauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrMissingSignature is returned when the signature header is absent or empty
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when the signature does not match the payload
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Verifier checks webhook payloads against a shared HMAC-SHA256 secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify checks the signature of a raw webhook payload. Providers differ in
// how they encode the digest, so hex and base64 are both accepted, with or
// without a "sha256=" prefix. Comparison is constant-time.
func (v *Verifier) Verify(payload []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	if signature == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if provided, err := hex.DecodeString(signature); err == nil {
		if hmac.Equal(provided, expected) {
			return nil
		}
		return ErrInvalidSignature
	}

	if provided, err := base64.StdEncoding.DecodeString(signature); err == nil {
		if hmac.Equal(provided, expected) {
			return nil
		}
	}

	return ErrInvalidSignature
}

// Sign computes the hex-encoded HMAC-SHA256 digest of a payload. Used by
// tests and by operators to produce signatures for manual replays.
func (v *Verifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
