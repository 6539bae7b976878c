// Package blockchain holds the append-only header list, the shared contract
// state every transaction's VM execution mutates, and the glue that makes
// add_block atomic: validate, execute, append.
package blockchain

import (
	"fmt"
	"sync"

	"github.com/empower1/ledgerchain/internal/contractstate"
	"github.com/empower1/ledgerchain/internal/core"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
	"github.com/empower1/ledgerchain/internal/types"
	"github.com/empower1/ledgerchain/internal/validator"
	"github.com/empower1/ledgerchain/internal/vm"
)

// Storage persists blocks keyed by height. The reference implementation is
// in-memory; durable storage is out of scope for this node.
type Storage interface {
	SaveBlock(b *core.Block) error
	GetBlock(height uint32) (*core.Block, error)
}

// MemStorage is an in-memory Storage.
type MemStorage struct {
	mu     sync.RWMutex
	blocks map[uint32]*core.Block
}

// NewMemStorage returns an empty MemStorage.
func NewMemStorage() *MemStorage {
	return &MemStorage{blocks: make(map[uint32]*core.Block)}
}

// SaveBlock stores b, keyed by its header height.
func (s *MemStorage) SaveBlock(b *core.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[b.Header.Height] = b
	return nil
}

// GetBlock returns the block at height, or ErrHeightOutOfRange if absent.
func (s *MemStorage) GetBlock(height uint32) (*core.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[height]
	if !ok {
		return nil, fmt.Errorf("%w: height %d", internalerrors.ErrHeightOutOfRange, height)
	}
	return b, nil
}

// Blockchain is the per-node chain state: an append-only header list, a
// block validator, and the shared ContractState every accepted block's
// transactions execute against.
type Blockchain struct {
	id string

	mu      sync.RWMutex
	headers []core.Header
	val     *validator.Validator
	state   *contractstate.State
	storage Storage
}

// New initializes a Blockchain for node id and appends genesis without
// running validation, per the spec's genesis carve-out.
func New(id string, genesis *core.Block) *Blockchain {
	bc := &Blockchain{
		id:      id,
		val:     validator.New(),
		state:   contractstate.New(),
		storage: NewMemStorage(),
	}
	bc.headers = append(bc.headers, genesis.Header)
	_ = bc.storage.SaveBlock(genesis)
	return bc
}

// ID returns the node id this chain was constructed with.
func (bc *Blockchain) ID() string {
	return bc.id
}

// Height returns len(headers)-1: the height of the current tip.
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.heightLocked()
}

func (bc *Blockchain) heightLocked() int64 {
	return int64(len(bc.headers)) - 1
}

// HasBlock reports whether a header already exists at height.
func (bc *Blockchain) HasBlock(height uint32) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.hasBlockLocked(height)
}

func (bc *Blockchain) hasBlockLocked(height uint32) bool {
	return uint64(height) < uint64(len(bc.headers))
}

// GetHeader returns the header at height, or ErrHeightOutOfRange.
func (bc *Blockchain) GetHeader(height uint32) (core.Header, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.getHeaderLocked(height)
}

func (bc *Blockchain) getHeaderLocked(height uint32) (core.Header, error) {
	if uint64(height) >= uint64(len(bc.headers)) {
		return core.Header{}, fmt.Errorf("%w: height %d", internalerrors.ErrHeightOutOfRange, height)
	}
	return bc.headers[height], nil
}

// lockedView implements validator.Chain in terms of the unlocked *Locked
// helpers, for use inside AddBlock where bc.mu is already held exclusively.
type lockedView struct {
	bc *Blockchain
}

func (v lockedView) Height() int64 { return v.bc.heightLocked() }

func (v lockedView) GetHeader(h uint32) (core.Header, error) {
	return v.bc.getHeaderLocked(h)
}

func (v lockedView) HasBlock(h uint32) bool {
	return v.bc.hasBlockLocked(h)
}

func (v lockedView) GetPrevBlockHash(h uint32) (types.Hash, error) {
	return v.bc.getPrevBlockHashLocked(h)
}

// GetPrevBlockHash returns SHA256(encode(get_header(h-1))): the hash a
// block at height h must carry as its PrevBlockHash.
func (bc *Blockchain) GetPrevBlockHash(h uint32) (types.Hash, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.getPrevBlockHashLocked(h)
}

func (bc *Blockchain) getPrevBlockHashLocked(h uint32) (types.Hash, error) {
	header, err := bc.getHeaderLocked(h - 1)
	if err != nil {
		return types.Hash{}, err
	}
	return header.Hash(), nil
}

// GetBlock returns the full block at height, for sync replies.
func (bc *Blockchain) GetBlock(height uint32) (*core.Block, error) {
	return bc.storage.GetBlock(height)
}

// AddBlock validates b against chain state, executes every transaction's
// VM program against the shared contract state, and appends b's header.
// Validation and execution happen under bc.mu so the whole operation is
// atomic: two concurrent AddBlock calls can never interleave.
func (bc *Blockchain) AddBlock(b *core.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.val.Validate(lockedView{bc: bc}, b); err != nil {
		return err
	}

	snapshot := bc.state.Snapshot()
	for i, tx := range b.Transactions {
		machine := vm.New(bc.state)
		if err := machine.Run(tx.Data); err != nil {
			bc.state.Restore(snapshot)
			return fmt.Errorf("%w: tx %d: %v", internalerrors.ErrVmReject, i, err)
		}
	}

	bc.headers = append(bc.headers, b.Header)
	_ = bc.storage.SaveBlock(b)
	return nil
}
