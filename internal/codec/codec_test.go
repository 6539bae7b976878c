package codec

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutByte(0x7)
	w.PutUint32(42)
	w.PutInt32(-7)
	w.PutUint64(1 << 40)
	w.PutUint128(100, 200)
	w.PutBytes([]byte("hello"))
	w.PutFixed([]byte{1, 2, 3, 4})

	r := NewReader(w.Bytes())
	if b, err := r.Byte(); err != nil || b != 0x7 {
		t.Fatalf("Byte() = %v, %v", b, err)
	}
	if v, err := r.Uint32(); err != nil || v != 42 {
		t.Fatalf("Uint32() = %v, %v", v, err)
	}
	if v, err := r.Int32(); err != nil || v != -7 {
		t.Fatalf("Int32() = %v, %v", v, err)
	}
	if v, err := r.Uint64(); err != nil || v != 1<<40 {
		t.Fatalf("Uint64() = %v, %v", v, err)
	}
	if lo, hi, err := r.Uint128(); err != nil || lo != 100 || hi != 200 {
		t.Fatalf("Uint128() = %v, %v, %v", lo, hi, err)
	}
	if b, err := r.Bytes(); err != nil || string(b) != "hello" {
		t.Fatalf("Bytes() = %q, %v", b, err)
	}
	if b, err := r.Fixed(4); err != nil || string(b) != "\x01\x02\x03\x04" {
		t.Fatalf("Fixed() = %v, %v", b, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected no remaining bytes, got %d", r.Remaining())
	}
}

func TestReaderShortInput(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.Uint64(); err == nil {
		t.Fatal("expected ErrShortInput")
	}
}

func TestReaderBytesRejectsOversizedLength(t *testing.T) {
	w := NewWriter()
	w.PutUint64(MaxByteStringLen + 1)
	r := NewReader(w.Bytes())
	if _, err := r.Bytes(); err == nil {
		t.Fatal("expected ErrLenTooLarge")
	}
}

func TestOptionalPresentAndAbsent(t *testing.T) {
	w := NewWriter()
	w.PutOptional(true, func() { w.PutUint32(99) })
	w.PutOptional(false, func() { t.Fatal("payload func should not run when absent") })

	r := NewReader(w.Bytes())
	var got uint32
	present, err := r.Optional(func() error {
		v, err := r.Uint32()
		got = v
		return err
	})
	if err != nil || !present || got != 99 {
		t.Fatalf("present=%v got=%v err=%v", present, got, err)
	}
	present, err = r.Optional(func() error { return nil })
	if err != nil || present {
		t.Fatalf("expected absent, got present=%v err=%v", present, err)
	}
}

func TestOptionalRejectsBadTag(t *testing.T) {
	r := NewReader([]byte{5})
	if _, err := r.Optional(func() error { return nil }); err == nil {
		t.Fatal("expected ErrBadTag")
	}
}
