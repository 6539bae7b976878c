package blockchain

import (
	"errors"
	"testing"

	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
	"github.com/empower1/ledgerchain/internal/types"
)

func newChain(t *testing.T) *Blockchain {
	t.Helper()
	genesis := NewGenesisBlock(1)
	return New("node-1", genesis)
}

func signedBlock(t *testing.T, bc *Blockchain, txs []*core.Transaction, priv cryptoutil.PrivateKey) *core.Block {
	t.Helper()
	prev, err := bc.GetHeader(uint32(bc.Height()))
	if err != nil {
		t.Fatalf("GetHeader: %v", err)
	}
	b := core.FromPrevHeader(prev, txs, 2)
	if err := b.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return b
}

func TestGenesisInstalledAtHeightZero(t *testing.T) {
	bc := newChain(t)
	if bc.Height() != 0 {
		t.Fatalf("expected height 0 after genesis, got %d", bc.Height())
	}
}

// TestChainGrowth is scenario S4: 10 blocks from a leader bring the chain
// to height 10 with 11 total headers, each chained to the last.
func TestChainGrowth(t *testing.T) {
	bc := newChain(t)
	priv, _ := cryptoutil.GeneratePrivateKey()

	for i := 0; i < 10; i++ {
		b := signedBlock(t, bc, nil, priv)
		if err := bc.AddBlock(b); err != nil {
			t.Fatalf("AddBlock #%d: %v", i, err)
		}
	}
	if bc.Height() != 10 {
		t.Fatalf("expected height 10, got %d", bc.Height())
	}
	for h := uint32(1); h <= 10; h++ {
		cur, err := bc.GetHeader(h)
		if err != nil {
			t.Fatalf("GetHeader(%d): %v", h, err)
		}
		prev, err := bc.GetHeader(h - 1)
		if err != nil {
			t.Fatalf("GetHeader(%d): %v", h-1, err)
		}
		if cur.PrevBlockHash != prev.Hash() {
			t.Fatalf("height %d: prev_block_hash does not match hash of header %d", h, h-1)
		}
	}
}

// TestBadPrevHashRejected is scenario S5: a block whose prev_block_hash is
// wrong is rejected and the chain height is unchanged.
func TestBadPrevHashRejected(t *testing.T) {
	bc := newChain(t)
	priv, _ := cryptoutil.GeneratePrivateKey()
	b := signedBlock(t, bc, nil, priv)
	b.Header.PrevBlockHash = types.RandomHash()
	if err := b.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	err := bc.AddBlock(b)
	if !errors.Is(err, internalerrors.ErrBadPrevHash) {
		t.Fatalf("expected ErrBadPrevHash, got %v", err)
	}
	if bc.Height() != 0 {
		t.Fatalf("expected height unchanged at 0, got %d", bc.Height())
	}
}

func TestDuplicateHeightRejectedAsAlreadyKnown(t *testing.T) {
	bc := newChain(t)
	priv, _ := cryptoutil.GeneratePrivateKey()
	b := signedBlock(t, bc, nil, priv)
	if err := bc.AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	dup := signedBlock(t, bc, nil, priv)
	dup.Header.Height = b.Header.Height
	if err := dup.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := bc.AddBlock(dup); !errors.Is(err, internalerrors.ErrBlockAlreadyKnown) {
		t.Fatalf("expected ErrBlockAlreadyKnown, got %v", err)
	}
}

func TestVmFailureRollsBackState(t *testing.T) {
	bc := newChain(t)
	priv, _ := cryptoutil.GeneratePrivateKey()

	// Byte(5) as value, pack(Byte(7)) as key, STORE: writes {07 00 00 00 -> 05}.
	okTx := &core.Transaction{Data: []byte{0x05, 0x0c, 0x07, 0x0c, 0x01, 0x0a, 0x0d, 0x0f}}
	if err := okTx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	badTx := &core.Transaction{Data: []byte{0x0f}} // STORE against an empty stack: underflow
	if err := badTx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	b := signedBlock(t, bc, []*core.Transaction{okTx, badTx}, priv)
	if err := bc.AddBlock(b); err == nil {
		t.Fatal("expected AddBlock to reject a block with a failing transaction")
	}
	if bc.Height() != 0 {
		t.Fatalf("expected height unchanged at 0 after rejected block, got %d", bc.Height())
	}
	if _, ok := bc.state.Get([]byte{0x07, 0x00, 0x00, 0x00}); ok {
		t.Fatal("expected okTx's STORE to be rolled back")
	}
}

func TestGetHeaderOutOfRange(t *testing.T) {
	bc := newChain(t)
	if _, err := bc.GetHeader(5); !errors.Is(err, internalerrors.ErrHeightOutOfRange) {
		t.Fatalf("expected ErrHeightOutOfRange, got %v", err)
	}
}

// TestGetPrevBlockHashMatchesHeaderHash checks that GetPrevBlockHash
// returns SHA256(encode(get_header(h-1))), not the raw header.
func TestGetPrevBlockHashMatchesHeaderHash(t *testing.T) {
	bc := newChain(t)
	priv, _ := cryptoutil.GeneratePrivateKey()
	b := signedBlock(t, bc, nil, priv)
	if err := bc.AddBlock(b); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	genesisHeader, err := bc.GetHeader(0)
	if err != nil {
		t.Fatalf("GetHeader(0): %v", err)
	}
	got, err := bc.GetPrevBlockHash(1)
	if err != nil {
		t.Fatalf("GetPrevBlockHash(1): %v", err)
	}
	if got != genesisHeader.Hash() {
		t.Fatalf("GetPrevBlockHash(1) = %v, want %v", got, genesisHeader.Hash())
	}
}

func TestGetPrevBlockHashOutOfRange(t *testing.T) {
	bc := newChain(t)
	if _, err := bc.GetPrevBlockHash(0); !errors.Is(err, internalerrors.ErrHeightOutOfRange) {
		t.Fatalf("expected ErrHeightOutOfRange, got %v", err)
	}
}
