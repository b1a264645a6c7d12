// Package checksum fingerprints flow documents for change detection and
// optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Match reports whether an If-Match style precondition holds for data. An
// empty expectation always matches.
func Match(expected string, data []byte) bool {
	return expected == "" || expected == Sum(data)
}
