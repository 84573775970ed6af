package iam

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token identifier with SHA-256 so the database never
// stores a usable credential. Lookups compare hashes only.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
