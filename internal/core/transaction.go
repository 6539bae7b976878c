package core

import (
	"crypto/sha256"

	"github.com/empower1/ledgerchain/internal/codec"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
	"github.com/empower1/ledgerchain/internal/types"
)

// Transaction is a signed opaque payload executed by the virtual machine
// when its containing block is appended. Hash and FirstSeen are transient:
// they never cross the wire and must be recomputed or reassigned by the
// receiver.
type Transaction struct {
	Data      []byte
	From      *cryptoutil.PublicKey
	Signature *cryptoutil.Signature

	hash         types.Hash
	hashComputed bool
	firstSeenNs  uint64
}

// Sign sets From to the signer's public key and computes a signature over
// Data under the given private key.
func (tx *Transaction) Sign(priv cryptoutil.PrivateKey) error {
	sig, err := priv.Sign(tx.Data)
	if err != nil {
		return err
	}
	pub := priv.PublicKey()
	tx.From = &pub
	tx.Signature = &sig
	return nil
}

// Verify checks that both From and Signature are present and that the
// signature is valid over Data under From.
func (tx *Transaction) Verify() error {
	if tx.Signature == nil {
		return internalerrors.ErrMissingSignature
	}
	if tx.From == nil {
		return internalerrors.ErrMissingSender
	}
	if !tx.Signature.Verify(tx.Data, *tx.From) {
		return internalerrors.ErrBadSignature
	}
	return nil
}

// ComputeHash populates the cached hash from SHA-256(Data). It is
// idempotent: calling it again after the hash is already cached is a no-op,
// since Data must not change once a transaction's hash has been taken.
func (tx *Transaction) ComputeHash() types.Hash {
	if tx.hashComputed {
		return tx.hash
	}
	sum := sha256.Sum256(tx.Data)
	h, _ := types.HashFromBytes(sum[:])
	tx.hash = h
	tx.hashComputed = true
	return tx.hash
}

// Hash returns the cached hash, computing it first if necessary.
func (tx *Transaction) Hash() types.Hash {
	return tx.ComputeHash()
}

// InvalidateHash clears the cached hash. Callers MUST invalidate before
// mutating Data; the spec forbids doing so implicitly.
func (tx *Transaction) InvalidateHash() {
	tx.hashComputed = false
}

// SetFirstSeen records the node-local nanosecond timestamp at which this
// transaction first entered the mempool.
func (tx *Transaction) SetFirstSeen(ns uint64) {
	tx.firstSeenNs = ns
}

// FirstSeen returns the node-local first-seen timestamp.
func (tx *Transaction) FirstSeen() uint64 {
	return tx.firstSeenNs
}

// Encode writes the transaction's wire form: Data, then an optional From,
// then an optional Signature. Hash and FirstSeen never cross the wire.
func (tx *Transaction) Encode(w *codec.Writer) {
	w.PutBytes(tx.Data)
	w.PutOptional(tx.From != nil, func() {
		w.PutBytes(tx.From.Bytes())
	})
	w.PutOptional(tx.Signature != nil, func() {
		w.PutBytes(tx.Signature.Bytes())
	})
}

// Bytes returns the transaction's canonical wire encoding.
func (tx *Transaction) Bytes() []byte {
	w := codec.NewWriter()
	tx.Encode(w)
	return w.Bytes()
}

// DecodeTransaction reads a Transaction written by Encode.
func DecodeTransaction(r *codec.Reader) (*Transaction, error) {
	tx := &Transaction{}
	data, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	tx.Data = data

	if _, err := r.Optional(func() error {
		raw, err := r.Bytes()
		if err != nil {
			return err
		}
		pub, err := cryptoutil.PublicKeyFromBytes(raw)
		if err != nil {
			return err
		}
		tx.From = &pub
		return nil
	}); err != nil {
		return nil, err
	}

	if _, err := r.Optional(func() error {
		raw, err := r.Bytes()
		if err != nil {
			return err
		}
		sig, err := cryptoutil.SignatureFromBytes(raw)
		if err != nil {
			return err
		}
		tx.Signature = &sig
		return nil
	}); err != nil {
		return nil, err
	}

	return tx, nil
}
