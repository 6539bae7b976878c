package server

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/empower1/ledgerchain/internal/blockchain"
	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	"github.com/empower1/ledgerchain/internal/mempool"
	"github.com/empower1/ledgerchain/internal/transport"
)

// TestLateFollowerSyncsToLeaderHeight exercises the status/sync handshake: a
// leader already at height 5 and a follower joining at height 2 exchange
// GetStatus/Status, the follower requests the blocks it is missing, and
// both chains converge.
func TestLateFollowerSyncsToLeaderHeight(t *testing.T) {
	priv, err := cryptoutil.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	genesis := core.Genesis(1)

	leaderTr := transport.NewLocalTransport("leader")
	leaderChain := blockchain.New("leader", genesis)
	leaderMempool := mempool.New(100)
	leader := New(Config{
		ID:         "leader",
		Self:       leaderTr,
		Transports: []transport.Transport{leaderTr},
		PrivateKey: &priv,
		BlockTime:  time.Hour,
		Logger:     zap.NewNop().Sugar(),
	}, leaderChain, leaderMempool)

	for i := 0; i < 5; i++ {
		leader.produceBlock(context.Background())
	}
	if leaderChain.Height() != 5 {
		t.Fatalf("expected leader height 5, got %d", leaderChain.Height())
	}

	followerTr := transport.NewLocalTransport("follower")
	followerChain := blockchain.New("follower", genesis)
	followerMempool := mempool.New(100)
	follower := New(Config{
		ID:         "follower",
		Self:       followerTr,
		Transports: []transport.Transport{followerTr},
		BlockTime:  time.Hour,
		Logger:     zap.NewNop().Sugar(),
	}, followerChain, followerMempool)

	for i := 0; i < 2; i++ {
		// Replay the leader's first two blocks directly onto the follower so
		// it starts the handshake already at height 2, mirroring a follower
		// that joined partway through the leader's history.
		b, err := leaderChain.GetBlock(uint32(i + 1))
		if err != nil {
			t.Fatalf("GetBlock(%d): %v", i+1, err)
		}
		if err := followerChain.AddBlock(b); err != nil {
			t.Fatalf("follower AddBlock(%d): %v", i+1, err)
		}
	}
	if followerChain.Height() != 2 {
		t.Fatalf("expected follower height 2, got %d", followerChain.Height())
	}

	leaderTr.Connect(followerTr)
	followerTr.Connect(leaderTr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	follower.broadcastGetStatus(ctx)

	inbound, err := leaderTr.Recv(ctx)
	if err != nil {
		t.Fatalf("leader Recv: %v", err)
	}
	leader.handle(ctx, inbound)

	inbound, err = followerTr.Recv(ctx)
	if err != nil {
		t.Fatalf("follower Recv status: %v", err)
	}
	follower.handle(ctx, inbound)

	inbound, err = leaderTr.Recv(ctx)
	if err != nil {
		t.Fatalf("leader Recv get_blocks: %v", err)
	}
	leader.handle(ctx, inbound)

	for h := 3; h <= 5; h++ {
		inbound, err = followerTr.Recv(ctx)
		if err != nil {
			t.Fatalf("follower Recv block %d: %v", h, err)
		}
		follower.handle(ctx, inbound)
	}

	if followerChain.Height() != 5 {
		t.Fatalf("expected follower to reach height 5, got %d", followerChain.Height())
	}
	for h := uint32(1); h <= 5; h++ {
		want, err := leaderChain.GetHeader(h)
		if err != nil {
			t.Fatalf("leader GetHeader(%d): %v", h, err)
		}
		got, err := followerChain.GetHeader(h)
		if err != nil {
			t.Fatalf("follower GetHeader(%d): %v", h, err)
		}
		if want.Hash() != got.Hash() {
			t.Fatalf("header %d mismatch between leader and follower", h)
		}
	}
}
