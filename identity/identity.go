// Package identity computes the deterministic content identities shared by
// entities and relations.
package identity

import (
	"crypto/md5" //nolint:gosec // identity digest, not a security boundary.
	"encoding/hex"
)

// Length is the number of hex characters in an identity.
const Length = md5.Size * 2

// separator is written between consecutive components so that ("a", "bc")
// and ("ab", "c") never produce the same digest.
var separator = []byte{0x00}

// Hash returns the identity for the ordered components. Empty components
// keep their position.
func Hash(parts ...string) string {
	h := md5.New() //nolint:gosec // see import.
	for i, p := range parts {
		if i > 0 {
			h.Write(separator)
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Valid reports whether id has the shape of a Hash result.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
