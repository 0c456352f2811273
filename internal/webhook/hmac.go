package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifySignature reports whether signatureHex is the hex-encoded
// HMAC-SHA256 of body under secret.
//
// The comparison uses crypto/subtle so its runtime does not depend on
// where the signatures first differ. It operates on the raw request
// body, before any JSON decoding. A missing or malformed signature is
// simply a mismatch; the function never errors.
func VerifySignature(secret string, body []byte, signatureHex string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(expected, provided) == 1
}

// computeSignature returns the hex-encoded HMAC-SHA256 of body under
// secret. Used for testing and validation.
func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
