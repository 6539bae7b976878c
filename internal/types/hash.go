// Package types holds the fixed-width identifiers shared across the ledger:
// the 32-byte content hash and the 20-byte address derived from it.
package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a Hash.
const HashSize = 32

// Hash is an opaque 32-byte content identifier, typically a SHA-256 digest.
type Hash [HashSize]byte

// ZeroHash is the all-zero hash used as the genesis block's prev_block_hash.
var ZeroHash = Hash{}

// HashFromBytes builds a Hash from a byte slice, rejecting any length other
// than HashSize.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("types: hash must be %d bytes, got %d", HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// RandomHash returns a cryptographically random hash. Used for the genesis
// block's data_hash seed.
func RandomHash() Hash {
	var h Hash
	if _, err := rand.Read(h[:]); err != nil {
		panic("types: failed to read random bytes: " + err.Error())
	}
	return h
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Bytes returns a copy of the hash's underlying bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// Compare returns -1, 0 or 1 depending on the byte-wise ordering of h and o.
// Used to break first_seen ties deterministically in the mempool.
func (h Hash) Compare(o Hash) int {
	for i := range h {
		if h[i] != o[i] {
			if h[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the hash as lowercase hex, per spec.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
