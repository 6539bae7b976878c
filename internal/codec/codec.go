// Package codec implements the deterministic little-endian binary encoding
// shared by transactions, headers, blocks and RPC messages. Every value that
// participates in a hash or a signature must encode the same way on every
// node, so this package favors fixed-width, unambiguous layouts over
// anything reflective or self-describing.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxByteStringLen bounds any length-prefixed byte string this codec will
// decode, guarding against a corrupt or hostile length field driving an
// enormous allocation.
const MaxByteStringLen = 32 << 20 // 32 MiB

// Sentinel errors surfaced while decoding a byte-wise stream.
var (
	ErrShortInput  = errors.New("codec: input too short")
	ErrBadTag      = errors.New("codec: unrecognized tag byte")
	ErrLenTooLarge = errors.New("codec: length prefix exceeds maximum")
)

// Writer accumulates a canonical little-endian byte encoding.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// PutByte appends a single byte.
func (w *Writer) PutByte(b byte) {
	w.buf = append(w.buf, b)
}

// PutUint32 appends a fixed-width little-endian uint32.
func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutInt32 appends a fixed-width little-endian int32.
func (w *Writer) PutInt32(v int32) {
	w.PutUint32(uint32(v))
}

// PutUint64 appends a fixed-width little-endian uint64.
func (w *Writer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint128 appends a 128-bit unsigned value as two little-endian uint64
// limbs (low, then high). Used for the header's nanosecond timestamp.
func (w *Writer) PutUint128(lo, hi uint64) {
	w.PutUint64(lo)
	w.PutUint64(hi)
}

// PutBytes appends a uint64 length prefix followed by the raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.PutUint64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// PutFixed appends raw bytes with no length prefix, for fields whose width
// is already fixed by the type (a Hash, an Address, a Signature).
func (w *Writer) PutFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutOptional writes a one-byte presence tag (1 present, 0 absent) followed
// by the payload when present. Used for the Block's optional
// validator/signature pair before a block is signed.
func (w *Writer) PutOptional(present bool, payload func()) {
	if !present {
		w.PutByte(0)
		return
	}
	w.PutByte(1)
	payload()
}

// Reader consumes a canonical little-endian byte encoding produced by
// Writer, advancing an internal cursor and reporting ErrShortInput once the
// input is exhausted.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortInput, n, r.Remaining())
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Byte reads a single byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a fixed-width little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Int32 reads a fixed-width little-endian int32.
func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

// Uint64 reads a fixed-width little-endian uint64.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Uint128 reads a 128-bit unsigned value as two little-endian uint64 limbs,
// returned as (lo, hi).
func (r *Reader) Uint128() (lo, hi uint64, err error) {
	lo, err = r.Uint64()
	if err != nil {
		return 0, 0, err
	}
	hi, err = r.Uint64()
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// Bytes reads a uint64 length prefix followed by that many raw bytes.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint64()
	if err != nil {
		return nil, err
	}
	if n > MaxByteStringLen {
		return nil, fmt.Errorf("%w: %d", ErrLenTooLarge, n)
	}
	return r.take(int(n))
}

// Fixed reads exactly n raw bytes with no length prefix.
func (r *Reader) Fixed(n int) ([]byte, error) {
	return r.take(n)
}

// Optional reads a one-byte presence tag and, if present, invokes decode to
// consume the payload. It reports whether the payload was present.
func (r *Reader) Optional(decode func() error) (bool, error) {
	tag, err := r.Byte()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		if err := decode(); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: %d", ErrBadTag, tag)
	}
}
