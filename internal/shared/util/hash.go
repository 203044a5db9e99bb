package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns a stable digest of a verification token, safe to log and
// index without exposing the credential.
func HashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
