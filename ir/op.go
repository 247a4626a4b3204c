package ir

import "fmt"

// ---------------------------------------------------------------------------
// Op definitions
// ---------------------------------------------------------------------------

// Op identifies a statement variant. The set is closed: the VM rejects any
// value that is not listed here.
type Op uint8

// Control
const (
	OpNop  Op = 0x00 // no operation
	OpStop Op = 0x01 // halt the machine
)

// Moves
const (
	OpLd  Op = 0x10 // 8-bit copy source -> destination
	OpLdW Op = 0x11 // 16-bit copy source -> destination
)

// Unary arithmetic
const (
	OpInc  Op = 0x20 // 8-bit wrapping +1
	OpDec  Op = 0x21 // 8-bit wrapping -1
	OpIncW Op = 0x22 // 16-bit wrapping +1
	OpDecW Op = 0x23 // 16-bit wrapping -1
)

// Binary arithmetic, 8-bit
const (
	OpAdd        Op = 0x30
	OpSub        Op = 0x31
	OpAnd        Op = 0x32
	OpOr         Op = 0x33
	OpXor        Op = 0x34
	OpMul        Op = 0x35
	OpDiv        Op = 0x36
	OpRem        Op = 0x37
	OpLeftShift  Op = 0x38
	OpRightShift Op = 0x39
)

// Binary arithmetic, 16-bit
const (
	OpAddW        Op = 0x40
	OpSubW        Op = 0x41
	OpAndW        Op = 0x42
	OpOrW         Op = 0x43
	OpXorW        Op = 0x44
	OpMulW        Op = 0x45
	OpDivW        Op = 0x46
	OpRemW        Op = 0x47
	OpLeftShiftW  Op = 0x48
	OpRightShiftW Op = 0x49
)

// Comparisons (8-bit only, result is 1 or 0)
const (
	OpEq        Op = 0x50
	OpNotEq     Op = 0x51
	OpGreater   Op = 0x52
	OpGreaterEq Op = 0x53
	OpLess      Op = 0x54
	OpLessEq    Op = 0x55
)

// Flow control
const (
	OpJmp       Op = 0x60 // pc += rel
	OpJmpCmp    Op = 0x61 // pc += rel if source != 0
	OpJmpCmpNot Op = 0x62 // pc += rel if source == 0
)

// Routines
const (
	OpCall Op = 0x70 // push routine, pc and a frame seeded from the caller's frame
	OpRet  Op = 0x71 // pop routine, pc and frame
)

// ---------------------------------------------------------------------------
// Op metadata
// ---------------------------------------------------------------------------

// Class groups ops that share an operand shape.
type Class uint8

const (
	ClassControl Class = iota
	ClassMove
	ClassUnary
	ClassBinary
	ClassCompare
	ClassJump
	ClassCall
)

// OpInfo holds metadata about an op.
type OpInfo struct {
	Name  string // mnemonic used by the disassembler
	Class Class  // operand shape
	Width int    // operand width in bits, 0 when the op has no data operands
}

var opTable = map[Op]OpInfo{
	OpNop:  {"nop", ClassControl, 0},
	OpStop: {"stop", ClassControl, 0},

	OpLd:  {"ld", ClassMove, 8},
	OpLdW: {"ldw", ClassMove, 16},

	OpInc:  {"inc", ClassUnary, 8},
	OpDec:  {"dec", ClassUnary, 8},
	OpIncW: {"incw", ClassUnary, 16},
	OpDecW: {"decw", ClassUnary, 16},

	OpAdd:        {"add", ClassBinary, 8},
	OpSub:        {"sub", ClassBinary, 8},
	OpAnd:        {"and", ClassBinary, 8},
	OpOr:         {"or", ClassBinary, 8},
	OpXor:        {"xor", ClassBinary, 8},
	OpMul:        {"mul", ClassBinary, 8},
	OpDiv:        {"div", ClassBinary, 8},
	OpRem:        {"rem", ClassBinary, 8},
	OpLeftShift:  {"shl", ClassBinary, 8},
	OpRightShift: {"shr", ClassBinary, 8},

	OpAddW:        {"addw", ClassBinary, 16},
	OpSubW:        {"subw", ClassBinary, 16},
	OpAndW:        {"andw", ClassBinary, 16},
	OpOrW:         {"orw", ClassBinary, 16},
	OpXorW:        {"xorw", ClassBinary, 16},
	OpMulW:        {"mulw", ClassBinary, 16},
	OpDivW:        {"divw", ClassBinary, 16},
	OpRemW:        {"remw", ClassBinary, 16},
	OpLeftShiftW:  {"shlw", ClassBinary, 16},
	OpRightShiftW: {"shrw", ClassBinary, 16},

	OpEq:        {"eq", ClassCompare, 8},
	OpNotEq:     {"ne", ClassCompare, 8},
	OpGreater:   {"gt", ClassCompare, 8},
	OpGreaterEq: {"ge", ClassCompare, 8},
	OpLess:      {"lt", ClassCompare, 8},
	OpLessEq:    {"le", ClassCompare, 8},

	OpJmp:       {"jmp", ClassJump, 0},
	OpJmpCmp:    {"jmpcmp", ClassJump, 8},
	OpJmpCmpNot: {"jmpcmpnot", ClassJump, 8},

	OpCall: {"call", ClassCall, 0},
	OpRet:  {"ret", ClassCall, 0},
}

// Info returns the metadata for an op.
func (op Op) Info() OpInfo {
	if info, ok := opTable[op]; ok {
		return info
	}
	return OpInfo{Name: fmt.Sprintf("unknown_%02x", uint8(op))}
}

// Valid reports whether op is part of the instruction set.
func (op Op) Valid() bool {
	_, ok := opTable[op]
	return ok
}

// Width returns the operand width in bits (8 or 16), or 0.
func (op Op) Width() int {
	return op.Info().Width
}

// String implements the Stringer interface.
func (op Op) String() string {
	return op.Info().Name
}

// Ops returns every defined op in ascending order.
func Ops() []Op {
	ops := make([]Op, 0, len(opTable))
	for op := Op(0); ; op++ {
		if _, ok := opTable[op]; ok {
			ops = append(ops, op)
		}
		if op == 0xff {
			break
		}
	}
	return ops
}
