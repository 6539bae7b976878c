package mempool

import (
	"testing"

	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
)

func newSignedTx(t *testing.T, data string, firstSeen uint64) *core.Transaction {
	t.Helper()
	priv, _ := cryptoutil.GeneratePrivateKey()
	tx := &core.Transaction{Data: []byte(data)}
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tx.SetFirstSeen(firstSeen)
	return tx
}

func TestAddAndHas(t *testing.T) {
	m := New(10)
	tx := newSignedTx(t, "a", 1)
	m.Add(tx)
	if !m.Has(tx.Hash()) {
		t.Fatal("expected tx to be present")
	}
	if m.Len() != 1 {
		t.Fatalf("expected length 1, got %d", m.Len())
	}
}

func TestAddIsNoOpForKnownHash(t *testing.T) {
	m := New(10)
	tx := newSignedTx(t, "a", 1)
	m.Add(tx)
	m.Add(tx)
	if m.Len() != 1 {
		t.Fatalf("expected length 1 after duplicate add, got %d", m.Len())
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	m := New(2)
	m.Add(newSignedTx(t, "a", 1))
	m.Add(newSignedTx(t, "b", 2))
	m.Add(newSignedTx(t, "c", 3))
	if m.Len() != 2 {
		t.Fatalf("expected length capped at 2, got %d", m.Len())
	}
}

func TestFIFOEvictionRemovesOldestFirstSeen(t *testing.T) {
	m := New(2)
	first := newSignedTx(t, "a", 1)
	second := newSignedTx(t, "b", 2)
	m.Add(first)
	m.Add(second)
	m.Add(newSignedTx(t, "c", 3))

	if m.Has(first.Hash()) {
		t.Fatal("expected oldest entry to be evicted")
	}
	if !m.Has(second.Hash()) {
		t.Fatal("expected second entry to survive eviction")
	}
}

func TestPendingClonedOrderedByFirstSeen(t *testing.T) {
	m := New(10)
	m.Add(newSignedTx(t, "c", 3))
	m.Add(newSignedTx(t, "a", 1))
	m.Add(newSignedTx(t, "b", 2))

	pending := m.PendingCloned()
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i-1].FirstSeen() > pending[i].FirstSeen() {
			t.Fatal("expected pending snapshot ordered ascending by first_seen")
		}
	}
}

func TestClearPendingKeepsAll(t *testing.T) {
	m := New(10)
	tx := newSignedTx(t, "a", 1)
	m.Add(tx)
	m.ClearPending()
	if len(m.PendingCloned()) != 0 {
		t.Fatal("expected pending to be empty")
	}
	if !m.Has(tx.Hash()) {
		t.Fatal("expected all set to retain the transaction")
	}
}

func TestFlushEmptiesBoth(t *testing.T) {
	m := New(10)
	tx := newSignedTx(t, "a", 1)
	m.Add(tx)
	m.Flush()
	if m.Has(tx.Hash()) || len(m.PendingCloned()) != 0 {
		t.Fatal("expected flush to empty both sets")
	}
}
