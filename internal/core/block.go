package core

import (
	"crypto/sha256"
	"fmt"

	"github.com/empower1/ledgerchain/internal/codec"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
	"github.com/empower1/ledgerchain/internal/types"
)

// HeaderVersion is the only header version this node produces or accepts.
const HeaderVersion uint32 = 1

// Block ties a Header to the transactions it commits to and, once produced
// by the leader, a validator signature over the header bytes.
type Block struct {
	Header       Header
	Transactions []*Transaction
	Validator    *cryptoutil.PublicKey
	Signature    *cryptoutil.Signature

	hash         types.Hash
	hashComputed bool
}

// computeDataHash is SHA-256 over the concatenation of each transaction's
// canonical encoding, in order.
func computeDataHash(txs []*Transaction) types.Hash {
	w := codec.NewWriter()
	for _, tx := range txs {
		w.PutFixed(tx.Bytes())
	}
	sum := sha256.Sum256(w.Bytes())
	h, _ := types.HashFromBytes(sum[:])
	return h
}

// FromPrevHeader constructs a new, unsigned block extending prev: its
// prev_block_hash is SHA256(encode(prev)), its height is prev.Height+1, its
// data_hash commits to txs, and its timestamp is nowNs.
func FromPrevHeader(prev Header, txs []*Transaction, nowNs uint64) *Block {
	return &Block{
		Header: Header{
			Version:       HeaderVersion,
			DataHash:      computeDataHash(txs),
			PrevBlockHash: prev.Hash(),
			TimestampNsLo: nowNs,
			Height:        prev.Height + 1,
		},
		Transactions: txs,
	}
}

// Sign signs the block's canonical header bytes and records the signer as
// the block's validator.
func (b *Block) Sign(priv cryptoutil.PrivateKey) error {
	sig, err := priv.Sign(b.Header.Bytes())
	if err != nil {
		return err
	}
	pub := priv.PublicKey()
	b.Validator = &pub
	b.Signature = &sig
	b.hashComputed = false
	return nil
}

// Verify checks every invariant that makes a block complete: validator and
// signature present, signature valid over the header bytes, every
// transaction verifies, and the recomputed data hash matches the header.
func (b *Block) Verify() error {
	if b.Signature == nil || b.Validator == nil {
		return internalerrors.ErrMissingSignature
	}
	if !b.Signature.Verify(b.Header.Bytes(), *b.Validator) {
		return internalerrors.ErrBadSignature
	}
	for i, tx := range b.Transactions {
		if err := tx.Verify(); err != nil {
			return fmt.Errorf("%w: tx %d: %w", internalerrors.ErrBadTxSignature, i, err)
		}
	}
	if computeDataHash(b.Transactions) != b.Header.DataHash {
		return internalerrors.ErrBadDataHash
	}
	return nil
}

// Hash returns SHA-256 over the canonical header bytes, cached after first
// computation.
func (b *Block) Hash() types.Hash {
	if b.hashComputed {
		return b.hash
	}
	b.hash = b.Header.Hash()
	b.hashComputed = true
	return b.hash
}

// Encode writes the block's wire form: header, transaction count +
// transactions, optional validator, optional signature.
func (b *Block) Encode(w *codec.Writer) {
	b.Header.Encode(w)
	w.PutUint64(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		tx.Encode(w)
	}
	w.PutOptional(b.Validator != nil, func() {
		w.PutBytes(b.Validator.Bytes())
	})
	w.PutOptional(b.Signature != nil, func() {
		w.PutBytes(b.Signature.Bytes())
	})
}

// Bytes returns the block's canonical wire encoding.
func (b *Block) Bytes() []byte {
	w := codec.NewWriter()
	b.Encode(w)
	return w.Bytes()
}

// DecodeBlock reads a Block written by Encode.
func DecodeBlock(r *codec.Reader) (*Block, error) {
	header, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	count, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	txs := make([]*Transaction, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, err := DecodeTransaction(r)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	b := &Block{Header: header, Transactions: txs}

	if _, err := r.Optional(func() error {
		raw, err := r.Bytes()
		if err != nil {
			return err
		}
		pub, err := cryptoutil.PublicKeyFromBytes(raw)
		if err != nil {
			return err
		}
		b.Validator = &pub
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
		b.Signature = &sig
		return nil
	}); err != nil {
		return nil, err
	}

	return b, nil
}

// Genesis builds the height-0 block: prev_block_hash is the zero hash, the
// data_hash is a random seed (the reference node's rule for an otherwise
// ambiguous genesis commitment), and no validator/signature is installed —
// genesis is appended without running Verify.
func Genesis(nowNs uint64) *Block {
	return &Block{
		Header: Header{
			Version:       HeaderVersion,
			DataHash:      types.RandomHash(),
			PrevBlockHash: types.ZeroHash,
			TimestampNsLo: nowNs,
			Height:        0,
		},
		Transactions: nil,
	}
}
