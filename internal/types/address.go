package types

import (
	"encoding/hex"
	"fmt"
)

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

// Address is a 20-byte value derived from a public key: SHA-256 of the
// key's canonical string form, keeping the last AddressSize bytes.
type Address [AddressSize]byte

// AddressFromBytes builds an Address from a byte slice, rejecting any
// length other than AddressSize.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("types: address must be %d bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String renders the address as lowercase hex.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}
