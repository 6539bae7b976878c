// Package core holds the fixed-shape records at the heart of the chain's
// data integrity: the block Header, the signed Transaction, and the Block
// that ties them together under a data-hash invariant.
package core

import (
	"crypto/sha256"

	"github.com/empower1/ledgerchain/internal/codec"
	"github.com/empower1/ledgerchain/internal/types"
)

// Header is the fixed-shape record identifying a block's position in the
// chain and the content it commits to. Its serialization is deterministic
// little-endian with no padding, so its hash is stable across nodes.
type Header struct {
	Version       uint32
	DataHash      types.Hash
	PrevBlockHash types.Hash
	// TimestampNsLo and TimestampNsHi hold a nanosecond timestamp as a
	// 128-bit value (low, high 64-bit limbs) to match the wire format; the
	// high limb is always zero for timestamps representable by time.Time.
	TimestampNsLo uint64
	TimestampNsHi uint64
	Height        uint32
}

// Encode writes the header's canonical serialization, the exact bytes the
// header hash and a block signature are taken over.
func (h Header) Encode(w *codec.Writer) {
	w.PutUint32(h.Version)
	w.PutFixed(h.DataHash.Bytes())
	w.PutFixed(h.PrevBlockHash.Bytes())
	w.PutUint128(h.TimestampNsLo, h.TimestampNsHi)
	w.PutUint32(h.Height)
}

// DecodeHeader reads a Header written by Encode.
func DecodeHeader(r *codec.Reader) (Header, error) {
	var h Header
	var err error
	if h.Version, err = r.Uint32(); err != nil {
		return Header{}, err
	}
	dataHashBytes, err := r.Fixed(types.HashSize)
	if err != nil {
		return Header{}, err
	}
	if h.DataHash, err = types.HashFromBytes(dataHashBytes); err != nil {
		return Header{}, err
	}
	prevHashBytes, err := r.Fixed(types.HashSize)
	if err != nil {
		return Header{}, err
	}
	if h.PrevBlockHash, err = types.HashFromBytes(prevHashBytes); err != nil {
		return Header{}, err
	}
	if h.TimestampNsLo, h.TimestampNsHi, err = r.Uint128(); err != nil {
		return Header{}, err
	}
	if h.Height, err = r.Uint32(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Bytes returns the header's canonical encoding.
func (h Header) Bytes() []byte {
	w := codec.NewWriter()
	h.Encode(w)
	return w.Bytes()
}

// Hash returns SHA-256 over the header's canonical encoding.
func (h Header) Hash() types.Hash {
	sum := sha256.Sum256(h.Bytes())
	hash, _ := types.HashFromBytes(sum[:])
	return hash
}
