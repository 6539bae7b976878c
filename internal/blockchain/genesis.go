package blockchain

import "github.com/empower1/ledgerchain/internal/core"

// NewGenesisBlock returns the chain's height-0 block, timestamped at nowNs.
// Its data_hash is a random seed (the reference node's rule for the
// otherwise-ambiguous genesis commitment) and it carries no
// validator/signature — it is installed without running Verify.
func NewGenesisBlock(nowNs uint64) *core.Block {
	return core.Genesis(nowNs)
}
