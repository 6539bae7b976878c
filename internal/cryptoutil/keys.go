// Package cryptoutil wraps ECDSA over NIST P-256 for block and transaction
// signing, and derives the 20-byte Address from a public key the way the
// reference node does: SHA-256 of the key's canonical string form, last 20
// bytes kept.
package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/empower1/ledgerchain/internal/types"
)

// ErrInvalidSignature is returned by SignatureFromBytes for input of the
// wrong length; it never panics on attacker-controlled input.
var ErrInvalidSignature = errors.New("cryptoutil: invalid signature")

// curve is the ECDSA curve mandated by the spec: NIST P-256.
var curve = elliptic.P256()

// PrivateKey wraps an ECDSA private key on the P-256 curve.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GeneratePrivateKey creates a fresh random private key.
func GeneratePrivateKey() (PrivateKey, error) {
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("cryptoutil: generate key: %w", err)
	}
	return PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes reconstructs a private key from its big-endian scalar.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	d := new(big.Int).SetBytes(b)
	priv := new(ecdsa.PrivateKey)
	priv.PublicKey.Curve = curve
	priv.D = d
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return PrivateKey{key: priv}, nil
}

// Bytes returns the big-endian scalar of the private key.
func (p PrivateKey) Bytes() []byte {
	return p.key.D.Bytes()
}

// PublicKey returns the public key matching this private key.
func (p PrivateKey) PublicKey() PublicKey {
	return PublicKey{key: &p.key.PublicKey}
}

// Sign produces a signature over arbitrary bytes (the caller determines the
// canonical form to sign: a transaction's data, or a block header's
// canonical encoding).
func (p PrivateKey) Sign(data []byte) (Signature, error) {
	r, s, err := ecdsa.Sign(rand.Reader, p.key, hashForSigning(data))
	if err != nil {
		return Signature{}, fmt.Errorf("cryptoutil: sign: %w", err)
	}
	return Signature{r: r, s: s}, nil
}

// PublicKey wraps an ECDSA public key on the P-256 curve.
type PublicKey struct {
	key *ecdsa.PublicKey
}

// PublicKeyFromBytes reconstructs a public key from its uncompressed
// elliptic-curve point encoding (as produced by Bytes).
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	x, y := elliptic.Unmarshal(curve, b)
	if x == nil {
		return PublicKey{}, errors.New("cryptoutil: invalid public key encoding")
	}
	return PublicKey{key: &ecdsa.PublicKey{Curve: curve, X: x, Y: y}}, nil
}

// Bytes returns the uncompressed elliptic-curve point encoding of the key.
func (p PublicKey) Bytes() []byte {
	if p.key == nil {
		return nil
	}
	return elliptic.Marshal(curve, p.key.X, p.key.Y)
}

// Equal reports whether two public keys encode the same point.
func (p PublicKey) Equal(o PublicKey) bool {
	if p.key == nil || o.key == nil {
		return p.key == o.key
	}
	return p.key.X.Cmp(o.key.X) == 0 && p.key.Y.Cmp(o.key.Y) == 0
}

// canonicalString is the "canonical string form" the spec derives an
// address from: the hex encoding of the uncompressed point, which is both
// deterministic and unambiguous across curve implementations.
func (p PublicKey) canonicalString() string {
	return fmt.Sprintf("%x", p.Bytes())
}

// Address derives the 20-byte address: SHA-256 of the public key's
// canonical string form, keeping the last 20 bytes.
func (p PublicKey) Address() types.Address {
	sum := sha256.Sum256([]byte(p.canonicalString()))
	addr, _ := types.AddressFromBytes(sum[len(sum)-types.AddressSize:])
	return addr
}

// Signature wraps an ECDSA (r, s) signature pair.
type Signature struct {
	r, s *big.Int
}

// Verify checks the signature over data under the given public key. It is
// deterministic and side-effect free, as required by the spec.
func (sig Signature) Verify(data []byte, pub PublicKey) bool {
	if sig.r == nil || sig.s == nil || pub.key == nil {
		return false
	}
	return ecdsa.Verify(pub.key, hashForSigning(data), sig.r, sig.s)
}

// Bytes returns the big-endian concatenation of r and s, each padded to the
// curve's coordinate size, for wire transmission.
func (sig Signature) Bytes() []byte {
	size := (curve.Params().BitSize + 7) / 8
	out := make([]byte, 2*size)
	if sig.r != nil {
		sig.r.FillBytes(out[size-len(sig.r.Bytes()) : size])
	}
	if sig.s != nil {
		sig.s.FillBytes(out[2*size-len(sig.s.Bytes()):])
	}
	return out
}

// SignatureFromBytes parses a signature produced by Bytes.
func SignatureFromBytes(b []byte) (Signature, error) {
	size := (curve.Params().BitSize + 7) / 8
	if len(b) != 2*size {
		return Signature{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidSignature, 2*size, len(b))
	}
	r := new(big.Int).SetBytes(b[:size])
	s := new(big.Int).SetBytes(b[size:])
	return Signature{r: r, s: s}, nil
}

// IsZero reports whether the signature carries no data, e.g. an RPC-decoded
// optional field whose tag was absent.
func (sig Signature) IsZero() bool {
	return sig.r == nil || sig.s == nil
}

// hashForSigning is the digest ECDSA actually signs. The spec's "signature
// over arbitrary bytes" is realized as ECDSA-over-SHA256, the standard
// pairing for P-256 signatures.
func hashForSigning(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
