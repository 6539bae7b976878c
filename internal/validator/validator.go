// Package validator implements block acceptance rules: a stateless check
// against the candidate block itself plus a chain-context check against
// the current tip.
package validator

import (
	"github.com/empower1/ledgerchain/internal/core"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
	"github.com/empower1/ledgerchain/internal/types"
)

// Chain is the minimal view of chain state the validator needs: the
// current height, the ability to fetch a header at a past height, and the
// hash a block at a given height must chain from.
type Chain interface {
	Height() int64
	GetHeader(height uint32) (core.Header, error)
	GetPrevBlockHash(height uint32) (types.Hash, error)
	HasBlock(height uint32) bool
}

// Validator checks a candidate block against chain state before it is
// appended.
type Validator struct{}

// New returns the default Validator.
func New() *Validator {
	return &Validator{}
}

// Validate runs the four-step acceptance check described by the spec:
// already-known height, expected next height, matching prev hash, and the
// block's own signature/data-hash invariants.
func (v *Validator) Validate(bc Chain, b *core.Block) error {
	if bc.HasBlock(b.Header.Height) {
		return internalerrors.ErrBlockAlreadyKnown
	}
	if int64(b.Header.Height) != bc.Height()+1 {
		return internalerrors.ErrBlockTooHigh
	}
	prevHash, err := bc.GetPrevBlockHash(b.Header.Height)
	if err != nil {
		return err
	}
	if prevHash != b.Header.PrevBlockHash {
		return internalerrors.ErrBadPrevHash
	}
	return b.Verify()
}
