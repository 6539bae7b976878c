// Package server implements the message-driven dispatch loop that
// multiplexes RPCs across a node's transports, and the validator
// (producer) loop that proposes new blocks when this node is the leader.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/empower1/ledgerchain/internal/blockchain"
	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
	"github.com/empower1/ledgerchain/internal/mempool"
	"github.com/empower1/ledgerchain/internal/metrics"
	"github.com/empower1/ledgerchain/internal/rpc"
	"github.com/empower1/ledgerchain/internal/transport"
)

// Version is the protocol version advertised in Status replies.
const Version uint32 = 0

// Config parameterizes a Server.
type Config struct {
	ID         string
	Self       transport.Transport
	Transports []transport.Transport
	PrivateKey *cryptoutil.PrivateKey
	BlockTime  time.Duration
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Metrics
}

// Server drains a unified receive channel fed by every configured
// transport, decodes each RPC, and routes it to a per-message-type
// handler. When configured with a private key it additionally runs the
// validator loop.
type Server struct {
	id         string
	self       transport.Transport
	transports []transport.Transport
	privateKey *cryptoutil.PrivateKey
	blockTime  time.Duration
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics

	chain   *blockchain.Blockchain
	mempool *mempool.Mempool

	recvCh chan transport.RPC
	quit   chan struct{}
}

// New returns a Server wired to chain and mempool, ready for Start.
func New(cfg Config, chain *blockchain.Blockchain, mp *mempool.Mempool) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		id:         cfg.ID,
		self:       cfg.Self,
		transports: cfg.Transports,
		privateKey: cfg.PrivateKey,
		blockTime:  cfg.BlockTime,
		log:        log,
		metrics:    cfg.Metrics,
		chain:      chain,
		mempool:    mp,
		recvCh:     make(chan transport.RPC, transport.InboxCapacity),
		quit:       make(chan struct{}),
	}
}

// Start runs the server's startup sequence and blocks in the dispatch loop
// until ctx is canceled or a transport's receive channel closes.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, tr := range s.transports {
		tr := tr
		g.Go(func() error { return s.runReceiver(ctx, tr) })
	}

	g.Go(func() error {
		s.broadcastGetStatus(ctx)
		return nil
	})

	if s.privateKey != nil {
		g.Go(func() error { return s.runValidatorLoop(ctx) })
	}

	g.Go(func() error { return s.dispatchLoop(ctx) })

	return g.Wait()
}

// Stop signals the dispatch loop to exit on its next iteration.
func (s *Server) Stop() {
	close(s.quit)
}

// runReceiver forwards every inbound RPC from tr onto the unified receive
// channel until tr closes or ctx is canceled.
func (s *Server) runReceiver(ctx context.Context, tr transport.Transport) error {
	for {
		rpcMsg, err := tr.Recv(ctx)
		if err != nil {
			if errors.Is(err, internalerrors.ErrChannelClosed) {
				// Terminal: returning the error cancels the errgroup context
				// and shuts the rest of the server down.
				s.log.Errorw("transport receive channel closed", "addr", tr.Addr())
				return err
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case s.recvCh <- rpcMsg:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) broadcastGetStatus(ctx context.Context) {
	msg := rpc.EncodeGetStatus()
	for _, addr := range s.self.Peers() {
		if err := s.self.SendMessage(ctx, addr, msg.Encode()); err != nil {
			s.log.Warnw("failed to send initial GetStatus", "peer", addr, "error", err)
		}
	}
}

// dispatchLoop drains the unified receive channel, decodes each RPC, and
// routes it to a handler. Handler errors are logged and never terminate
// the loop; BlockAlreadyKnown is swallowed and logged at debug level only.
func (s *Server) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.quit:
			return nil
		case inbound := <-s.recvCh:
			s.handle(ctx, inbound)
		}
	}
}

func (s *Server) handle(ctx context.Context, inbound transport.RPC) {
	decoded, err := rpc.Decode(inbound.From, inbound.Payload)
	if err != nil {
		s.log.Warnw("failed to decode inbound RPC", "from", inbound.From, "error", err)
		return
	}

	var handleErr error
	switch {
	case decoded.Body.Tx != nil:
		s.recordMessageType("tx")
		handleErr = s.handleTx(ctx, decoded.Body.Tx)
	case decoded.Body.Block != nil:
		s.recordMessageType("block")
		handleErr = s.handleBlock(ctx, decoded.Body.Block)
	case decoded.Body.GetStatus:
		s.recordMessageType("get_status")
		handleErr = s.handleGetStatus(ctx, decoded.From)
	case decoded.Body.Status != nil:
		s.recordMessageType("status")
		handleErr = s.handleStatus(ctx, decoded.From, *decoded.Body.Status)
	case decoded.Body.GetBlocks != nil:
		s.recordMessageType("get_blocks")
		handleErr = s.handleGetBlocks(ctx, decoded.From, *decoded.Body.GetBlocks)
	}

	if handleErr == nil {
		return
	}
	if errors.Is(handleErr, internalerrors.ErrBlockAlreadyKnown) {
		s.log.Debugw("block already known", "from", inbound.From)
		return
	}
	s.log.Warnw("handler error", "from", inbound.From, "error", handleErr)
}

func (s *Server) recordMessageType(t string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RPCMessagesProcessed.WithLabelValues(t).Inc()
}

func (s *Server) handleTx(ctx context.Context, tx *core.Transaction) error {
	hash := tx.Hash()
	if s.mempool.Has(hash) {
		return nil
	}
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("tx %s: %w", hash, err)
	}
	tx.SetFirstSeen(uint64(time.Now().UnixNano()))
	s.mempool.Add(tx)
	s.updateMempoolMetric()

	go func() {
		msg := rpc.EncodeTx(tx)
		if err := s.self.Broadcast(ctx, msg.Encode()); err != nil {
			s.log.Warnw("tx broadcast had per-peer failures", "error", err)
		}
	}()
	return nil
}

func (s *Server) handleBlock(ctx context.Context, b *core.Block) error {
	for _, tx := range b.Transactions {
		tx.ComputeHash()
	}
	if err := s.chain.AddBlock(b); err != nil {
		return err
	}
	s.updateHeightMetric()

	go func() {
		msg := rpc.EncodeBlock(b)
		if err := s.self.Broadcast(ctx, msg.Encode()); err != nil {
			s.log.Warnw("block broadcast had per-peer failures", "error", err)
		}
	}()
	return nil
}

func (s *Server) handleGetStatus(ctx context.Context, from string) error {
	status := rpc.EncodeStatus(rpc.StatusMessage{
		ID:            s.id,
		Version:       Version,
		CurrentHeight: uint32(s.chain.Height()),
	})
	return s.self.SendMessage(ctx, from, status.Encode())
}

func (s *Server) handleStatus(ctx context.Context, from string, msg rpc.StatusMessage) error {
	ourHeight := uint32(s.chain.Height())
	if msg.CurrentHeight <= ourHeight {
		return nil
	}
	req := rpc.EncodeGetBlocks(rpc.GetBlocksMessage{From: ourHeight + 1, To: msg.CurrentHeight})
	return s.self.SendMessage(ctx, from, req.Encode())
}

// maxBlocksPerReply bounds a single GetBlocks reply so a malicious or
// mistaken range request cannot force an unbounded response.
const maxBlocksPerReply = 4096

func (s *Server) handleGetBlocks(ctx context.Context, from string, req rpc.GetBlocksMessage) error {
	to := req.To
	if to == 0 {
		to = uint32(s.chain.Height())
	}
	if to < req.From {
		return nil
	}
	if to-req.From+1 > maxBlocksPerReply {
		to = req.From + maxBlocksPerReply - 1
	}
	for h := req.From; h <= to; h++ {
		b, err := s.chain.GetBlock(h)
		if err != nil {
			return err
		}
		msg := rpc.EncodeBlock(b)
		if err := s.self.SendMessage(ctx, from, msg.Encode()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) updateHeightMetric() {
	if s.metrics == nil {
		return
	}
	s.metrics.Height.Set(float64(s.chain.Height()))
}

func (s *Server) updateMempoolMetric() {
	if s.metrics == nil {
		return
	}
	s.metrics.MempoolSize.Set(float64(s.mempool.Len()))
}
