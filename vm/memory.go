package vm

import (
	"encoding/binary"

	"github.com/chazu/spacevm/ir"
)

// SpaceSize is the size of the static and return arrays.
const SpaceSize = 0x10000

// RegisterCount is the number of slots in each register bank.
const RegisterCount = 64

// DefaultFrameSize is the byte size of a call frame unless WithFrameSize
// overrides it.
const DefaultFrameSize = 1024

// Memory holds the spaces that outlive any single call. Absolute and Static
// pointers both address Static.
type Memory struct {
	Static [SpaceSize]byte
	Return [SpaceSize]byte
}

// Frame is one call's stack space. A new zeroed frame is created per call.
type Frame []byte

// Registers is a fixed bank of RegisterCount slots.
type Registers[T uint8 | uint16] struct {
	slots [RegisterCount]T
}

// Get returns slot i. ok is false when i is outside the bank.
func (r *Registers[T]) Get(i int) (v T, ok bool) {
	if i < 0 || i >= RegisterCount {
		return 0, false
	}
	return r.slots[i], true
}

// Set stores v in slot i and reports whether i is inside the bank.
func (r *Registers[T]) Set(i int, v T) bool {
	if i < 0 || i >= RegisterCount {
		return false
	}
	r.slots[i] = v
	return true
}

// ---------------------------------------------------------------------------
// Operand widths
// ---------------------------------------------------------------------------

// width describes one operand size. Every data op is implemented once and
// parameterized by a width, so 8-bit and 16-bit variants cannot drift.
type width struct {
	bytes int
	bits  uint
	mask  uint16
}

var (
	w8  = width{bytes: 1, bits: 8, mask: 0xFF}
	w16 = width{bytes: 2, bits: 16, mask: 0xFFFF}
)

func widthOf(op ir.Op) width {
	if op.Width() == 16 {
		return w16
	}
	return w8
}

func (w width) load(b []byte, order binary.ByteOrder) uint16 {
	if w.bytes == 1 {
		return uint16(b[0])
	}
	return order.Uint16(b)
}

func (w width) store(b []byte, order binary.ByteOrder, v uint16) {
	if w.bytes == 1 {
		b[0] = byte(v)
		return
	}
	order.PutUint16(b, v)
}
