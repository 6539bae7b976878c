// Package mempool holds transactions awaiting inclusion in a block: a
// bounded set ordered by first-seen arrival time, with FIFO eviction once
// full.
package mempool

import (
	"sort"
	"sync"

	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/types"
)

// Mempool is a bounded map of pending transactions, keyed by transaction
// hash, preserving first-seen arrival order for pending snapshots.
type Mempool struct {
	mu        sync.RWMutex
	maxLength int
	all       map[types.Hash]*core.Transaction
	pending   map[types.Hash]*core.Transaction
}

// New returns an empty Mempool bounded at maxLength entries.
func New(maxLength int) *Mempool {
	return &Mempool{
		maxLength: maxLength,
		all:       make(map[types.Hash]*core.Transaction),
		pending:   make(map[types.Hash]*core.Transaction),
	}
}

// Add computes tx's hash if not already cached. If the hash is already
// known, Add is a no-op. Otherwise, if the mempool is at capacity, the
// entry with the oldest first_seen is evicted before tx is inserted into
// both the all and pending sets.
func (m *Mempool) Add(tx *core.Transaction) {
	hash := tx.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.all[hash]; exists {
		return
	}
	if len(m.all) >= m.maxLength {
		m.evictOldestLocked()
	}
	m.all[hash] = tx
	m.pending[hash] = tx
}

// evictOldestLocked removes the entry with the oldest first_seen timestamp.
// Callers must hold m.mu.
func (m *Mempool) evictOldestLocked() {
	var oldestHash types.Hash
	var oldestSeen uint64
	first := true
	for h, tx := range m.all {
		seen := tx.FirstSeen()
		if first || seen < oldestSeen || (seen == oldestSeen && h.Compare(oldestHash) < 0) {
			oldestHash = h
			oldestSeen = seen
			first = false
		}
	}
	if first {
		return
	}
	delete(m.all, oldestHash)
	delete(m.pending, oldestHash)
}

// Has reports whether hash is a member of the all set.
func (m *Mempool) Has(hash types.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.all[hash]
	return ok
}

// Len returns the number of entries in the all set.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.all)
}

// PendingCloned returns a snapshot of the pending set, ordered ascending by
// first_seen; ties are broken by hash, ascending.
func (m *Mempool) PendingCloned() []*core.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*core.Transaction, 0, len(m.pending))
	for _, tx := range m.pending {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].FirstSeen(), out[j].FirstSeen()
		if si != sj {
			return si < sj
		}
		return out[i].Hash().Compare(out[j].Hash()) < 0
	})
	return out
}

// ClearPending empties the pending set but leaves the all set intact, so
// previously-seen transactions are not re-admitted.
func (m *Mempool) ClearPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = make(map[types.Hash]*core.Transaction)
}

// Flush empties both the pending and all sets.
func (m *Mempool) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = make(map[types.Hash]*core.Transaction)
	m.pending = make(map[types.Hash]*core.Transaction)
}
