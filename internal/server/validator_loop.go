package server

import (
	"context"
	"time"

	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/rpc"
)

// runValidatorLoop ticks every blockTime, proposes a block from the
// mempool's pending transactions atop the current chain tip, signs it with
// this node's private key, and appends it to the chain. A failure at any
// step is logged and the tick is skipped; the loop itself never returns an
// error so a single bad tick cannot bring the node down.
func (s *Server) runValidatorLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case <-ticker.C:
			s.produceBlock(ctx)
		}
	}
}

func (s *Server) produceBlock(ctx context.Context) {
	prevHeight := uint32(s.chain.Height())
	prev, err := s.chain.GetHeader(prevHeight)
	if err != nil {
		s.log.Warnw("validator: failed to read chain tip", "error", err)
		return
	}

	txs := s.mempool.PendingCloned()
	block := core.FromPrevHeader(prev, txs, uint64(time.Now().UnixNano()))

	if err := block.Sign(*s.privateKey); err != nil {
		s.log.Warnw("validator: failed to sign block", "error", err)
		return
	}

	if err := s.chain.AddBlock(block); err != nil {
		s.log.Warnw("validator: failed to add produced block", "error", err)
		return
	}
	s.mempool.ClearPending()
	s.updateHeightMetric()
	s.updateMempoolMetric()
	if s.metrics != nil {
		s.metrics.BlocksProduced.Inc()
	}

	msg := rpc.EncodeBlock(block)
	if err := s.self.Broadcast(ctx, msg.Encode()); err != nil {
		s.log.Warnw("validator: block broadcast had per-peer failures", "error", err)
	}
}
