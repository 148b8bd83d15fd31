package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashCredential returns a SHA-256 hash of the raw credential string, hex-encoded.
// Sessions store these digests instead of raw access/refresh credential material;
// the digest cannot be reversed to recover the credential.
func HashCredential(credential string) string {
	h := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(h[:])
}

// CredentialHashEqual performs constant-time comparison of the provided
// credential's hash with the stored hash. Returns true only if they match.
func CredentialHashEqual(providedCredential, storedHash string) bool {
	providedHash := HashCredential(providedCredential)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
