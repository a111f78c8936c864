package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns a stable hex digest of the given bytes. Validation
// runs are keyed by the hash of their serialized bundle.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
