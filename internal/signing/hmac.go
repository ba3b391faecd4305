// Package signing verifies inbound webhook signatures.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign computes the hex-encoded HMAC-SHA256 of body using secret as a UTF-8
// text key (never hex-decoded).
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the HMAC-SHA256 of body under
// secret. The comparison is constant-time; unequal-length inputs are
// rejected without an early exit that would leak length via timing.
func Verify(secret string, body []byte, signature string) bool {
	expected := []byte(Sign(secret, body))
	// Compare against a copy padded or cut to the expected length, so a
	// length mismatch takes the same path as a content mismatch.
	supplied := make([]byte, len(expected))
	copy(supplied, signature)
	sameLen := subtle.ConstantTimeEq(int32(len(signature)), int32(len(expected)))
	return subtle.ConstantTimeCompare(supplied, expected)&sameLen == 1
}
