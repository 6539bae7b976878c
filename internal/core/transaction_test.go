package core

import (
	"crypto/sha256"
	"testing"

	"github.com/empower1/ledgerchain/internal/codec"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	internalerrors "github.com/empower1/ledgerchain/internal/errors"
)

func TestTransactionSignAndVerify(t *testing.T) {
	priv, _ := cryptoutil.GeneratePrivateKey()
	tx := &Transaction{Data: []byte("payload")}
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := tx.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestTransactionVerifyFailsWithoutSignature(t *testing.T) {
	tx := &Transaction{Data: []byte("payload")}
	if err := tx.Verify(); err == nil {
		t.Fatal("expected ErrMissingSignature")
	}
}

func TestTransactionVerifyFailsForWrongSigner(t *testing.T) {
	priv, _ := cryptoutil.GeneratePrivateKey()
	other, _ := cryptoutil.GeneratePrivateKey()
	tx := &Transaction{Data: []byte("payload")}
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	otherPub := other.PublicKey()
	tx.From = &otherPub
	if err := tx.Verify(); err != internalerrors.ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestTransactionHashIsSha256OfData(t *testing.T) {
	tx := &Transaction{Data: []byte("hello")}
	h1 := tx.ComputeHash()
	h2 := tx.ComputeHash()
	if h1 != h2 {
		t.Fatal("expected idempotent hash computation")
	}
	if [32]byte(h1) != sha256.Sum256([]byte("hello")) {
		t.Fatal("expected hash to equal SHA-256 of Data")
	}
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	priv, _ := cryptoutil.GeneratePrivateKey()
	tx := &Transaction{Data: []byte("roundtrip")}
	if err := tx.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	w := codec.NewWriter()
	tx.Encode(w)

	decoded, err := DecodeTransaction(codec.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if string(decoded.Data) != string(tx.Data) {
		t.Fatalf("Data mismatch: got %q want %q", decoded.Data, tx.Data)
	}
	if err := decoded.Verify(); err != nil {
		t.Fatalf("decoded transaction failed to verify: %v", err)
	}
}

func TestTransactionWithoutSenderEncodesAbsentOptionals(t *testing.T) {
	tx := &Transaction{Data: []byte("unsigned")}
	w := codec.NewWriter()
	tx.Encode(w)

	decoded, err := DecodeTransaction(codec.NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("DecodeTransaction: %v", err)
	}
	if decoded.From != nil || decoded.Signature != nil {
		t.Fatal("expected no sender or signature on an unsigned transaction")
	}
	if err := decoded.Verify(); err == nil {
		t.Fatal("expected Verify to fail on an unsigned transaction")
	}
}
