// Package vm implements the byte-coded stack machine that executes a
// transaction's payload against a contract key/value store. The
// instruction stream interleaves opcodes with inline operands: PushInt and
// PushByte consume the byte immediately preceding them in the stream, and
// every other non-opcode byte is inert filler for those two opcodes.
package vm

import (
	"errors"
	"fmt"

	"github.com/empower1/ledgerchain/internal/contractstate"
)

// Opcode values, bit-exact per the wire specification.
const (
	OpPushInt  byte = 0x0a
	OpAdd      byte = 0x0b
	OpPushByte byte = 0x0c
	OpPack     byte = 0x0d
	OpSub      byte = 0x0e
	OpStore    byte = 0x0f
	OpGet      byte = 0xae
	OpMul      byte = 0xea
	OpDiv      byte = 0xfd
)

// StackCapacity is the fixed operand stack capacity.
const StackCapacity = 128

// Sentinel errors, matching the spec's VM error taxonomy.
var (
	ErrTypeError      = errors.New("vm: type error")
	ErrArithmetic     = errors.New("vm: arithmetic error")
	ErrLimit          = errors.New("vm: limit exceeded")
	ErrState          = errors.New("vm: contract state error")
	ErrStackUnderflow = errors.New("vm: stack underflow")
	ErrStackOverflow  = errors.New("vm: stack overflow")
)

// Kind tags the variant a StackItem holds.
type Kind uint8

const (
	KindByte Kind = iota
	KindInt
	KindBytes4
	KindBytes8
	KindBytes16
	KindBytes32
	KindBytes64
)

// bytesWidth returns the fixed width in bytes for a BytesN kind.
func bytesWidth(k Kind) int {
	switch k {
	case KindBytes4:
		return 4
	case KindBytes8:
		return 8
	case KindBytes16:
		return 16
	case KindBytes32:
		return 32
	case KindBytes64:
		return 64
	default:
		return 0
	}
}

// smallestBytesKind returns the smallest fixed-width byte variant whose
// width is >= n, or an error if n exceeds the largest variant (64).
func smallestBytesKind(n int) (Kind, error) {
	switch {
	case n <= 4:
		return KindBytes4, nil
	case n <= 8:
		return KindBytes8, nil
	case n <= 16:
		return KindBytes16, nil
	case n <= 32:
		return KindBytes32, nil
	case n <= 64:
		return KindBytes64, nil
	default:
		return 0, fmt.Errorf("%w: %d bytes exceeds the largest variant", ErrLimit, n)
	}
}

// StackItem is a tagged value living on the VM's operand stack.
type StackItem struct {
	kind  Kind
	byte_ byte
	int_  int32
	bytes []byte
}

// ByteItem constructs a Byte(u8) item.
func ByteItem(b byte) StackItem {
	return StackItem{kind: KindByte, byte_: b}
}

// IntItem constructs an Int(i32) item.
func IntItem(v int32) StackItem {
	return StackItem{kind: KindInt, int_: v}
}

// bytesItem constructs a fixed-width bytes item of the given kind. data
// must already be exactly bytesWidth(kind) long.
func bytesItem(kind Kind, data []byte) StackItem {
	return StackItem{kind: kind, bytes: data}
}

// Kind reports the item's variant tag.
func (s StackItem) Kind() Kind {
	return s.kind
}

// AsInt32 converts a Byte or Int item to an int32 for arithmetic;
// any other variant fails with ErrTypeError.
func (s StackItem) AsInt32() (int32, error) {
	switch s.kind {
	case KindByte:
		return int32(s.byte_), nil
	case KindInt:
		return s.int_, nil
	default:
		return 0, fmt.Errorf("%w: expected Byte or Int, got bytes variant", ErrTypeError)
	}
}

// AsUsize converts a Byte or Int item to a non-negative length, truncating
// on out-of-range values per the spec's "truncating cast" rule.
func (s StackItem) AsUsize() (int, error) {
	v, err := s.AsInt32()
	if err != nil {
		return 0, err
	}
	return int(uint32(v)), nil
}

// AsU8 converts a Byte or Int item to a single byte, truncating.
func (s StackItem) AsU8() (byte, error) {
	v, err := s.AsInt32()
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// Bytes returns the item's byte representation for STORE/GET keys and
// values: the single byte for Byte, 4-byte little-endian for Int, or the
// underlying fixed-width array for a BytesN variant.
func (s StackItem) Bytes() []byte {
	switch s.kind {
	case KindByte:
		return []byte{s.byte_}
	case KindInt:
		v := uint32(s.int_)
		return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	default:
		out := make([]byte, len(s.bytes))
		copy(out, s.bytes)
		return out
	}
}

// VM executes a single instruction stream against a shared ContractState.
type VM struct {
	ip    int
	stack []StackItem
	state *contractstate.State
}

// New returns a VM ready to execute against state.
func New(state *contractstate.State) *VM {
	return &VM{state: state}
}

func (vm *VM) push(item StackItem) error {
	if len(vm.stack) >= StackCapacity {
		return fmt.Errorf("%w: capacity %d", ErrStackOverflow, StackCapacity)
	}
	vm.stack = append(vm.stack, item)
	return nil
}

func (vm *VM) pop() (StackItem, error) {
	if len(vm.stack) == 0 {
		return StackItem{}, ErrStackUnderflow
	}
	top := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return top, nil
}

// Top returns the current top-of-stack item, for callers inspecting the
// result of a finished program (e.g. tests, the block append path which
// otherwise ignores it).
func (vm *VM) Top() (StackItem, bool) {
	if len(vm.stack) == 0 {
		return StackItem{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// Run executes program to completion. The instruction pointer walks every
// byte of the stream; bytes that are not one of the nine opcodes are inline
// operands, consumed only when the following PushInt/PushByte executes.
func (vm *VM) Run(program []byte) error {
	for vm.ip = 0; vm.ip < len(program); vm.ip++ {
		op := program[vm.ip]
		switch op {
		case OpPushInt:
			if err := vm.execPush(program, true); err != nil {
				return err
			}
		case OpPushByte:
			if err := vm.execPush(program, false); err != nil {
				return err
			}
		case OpAdd:
			if err := vm.execArith(func(a, b int32) int32 { return a + b }); err != nil {
				return err
			}
		case OpSub:
			if err := vm.execArith(func(a, b int32) int32 { return a - b }); err != nil {
				return err
			}
		case OpMul:
			if err := vm.execArith(func(a, b int32) int32 { return a * b }); err != nil {
				return err
			}
		case OpDiv:
			if err := vm.execDiv(); err != nil {
				return err
			}
		case OpPack:
			if err := vm.execPack(); err != nil {
				return err
			}
		case OpStore:
			if err := vm.execStore(); err != nil {
				return err
			}
		case OpGet:
			if err := vm.execGet(); err != nil {
				return err
			}
		default:
			// Inline operand byte for a not-yet-reached PushInt/PushByte.
		}
	}
	return nil
}

func (vm *VM) execPush(program []byte, asInt bool) error {
	if vm.ip == 0 {
		return fmt.Errorf("%w: push opcode at start of stream has no preceding operand", ErrTypeError)
	}
	operand := program[vm.ip-1]
	if asInt {
		return vm.push(IntItem(int32(operand)))
	}
	return vm.push(ByteItem(operand))
}

func (vm *VM) execArith(op func(a, b int32) int32) error {
	a, err := vm.popInt32()
	if err != nil {
		return err
	}
	b, err := vm.popInt32()
	if err != nil {
		return err
	}
	return vm.push(IntItem(op(a, b)))
}

func (vm *VM) execDiv() error {
	a, err := vm.popInt32()
	if err != nil {
		return err
	}
	b, err := vm.popInt32()
	if err != nil {
		return err
	}
	if b == 0 {
		return fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	return vm.push(IntItem(a / b))
}

func (vm *VM) popInt32() (int32, error) {
	item, err := vm.pop()
	if err != nil {
		return 0, err
	}
	return item.AsInt32()
}

// execPack pops n, pops n further bytes (restoring their original push
// order), and bundles them into the smallest fixed-width variant >= n,
// zero-padded.
func (vm *VM) execPack() error {
	nItem, err := vm.pop()
	if err != nil {
		return err
	}
	n, err := nItem.AsUsize()
	if err != nil {
		return err
	}
	if n > 64 {
		return fmt.Errorf("%w: pack length %d exceeds 64", ErrLimit, n)
	}
	kind, err := smallestBytesKind(n)
	if err != nil {
		return err
	}

	popped := make([]byte, n)
	for i := 0; i < n; i++ {
		item, err := vm.pop()
		if err != nil {
			return err
		}
		b, err := item.AsU8()
		if err != nil {
			return err
		}
		popped[i] = b
	}
	// popped is in pop order (reverse of the original push order); reverse
	// it back so the packed array preserves push order.
	original := make([]byte, n)
	for i := 0; i < n; i++ {
		original[i] = popped[n-1-i]
	}

	width := bytesWidth(kind)
	buf := make([]byte, width)
	copy(buf, original)
	return vm.push(bytesItem(kind, buf))
}

// execStore pops the key, then the value, and writes them into state.
func (vm *VM) execStore() error {
	keyItem, err := vm.pop()
	if err != nil {
		return err
	}
	valItem, err := vm.pop()
	if err != nil {
		return err
	}
	vm.state.Store(keyItem.Bytes(), valItem.Bytes())
	return nil
}

// execGet pops the key, reads it from state, and pushes the result wrapped
// in the smallest variant that fits (Byte for a single byte, else the
// smallest BytesN >= length).
func (vm *VM) execGet() error {
	keyItem, err := vm.pop()
	if err != nil {
		return err
	}
	value, ok := vm.state.Get(keyItem.Bytes())
	if !ok {
		return fmt.Errorf("%w: key not found", ErrState)
	}
	if len(value) > 64 {
		return fmt.Errorf("%w: stored value of %d bytes exceeds 64", ErrState, len(value))
	}
	if len(value) <= 1 {
		var b byte
		if len(value) == 1 {
			b = value[0]
		}
		return vm.push(ByteItem(b))
	}
	kind, err := smallestBytesKind(len(value))
	if err != nil {
		return fmt.Errorf("%w", ErrState)
	}
	buf := make([]byte, bytesWidth(kind))
	copy(buf, value)
	return vm.push(bytesItem(kind, buf))
}
