package ir

import (
	"fmt"
	"strings"
)

// Range is a half-open byte range [Start, End) of the caller's stack frame.
type Range struct {
	Start uint16 `cbor:"1,keyasint"`
	End   uint16 `cbor:"2,keyasint"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// Statement is one IR instruction. Which fields are meaningful depends on the
// op's class:
//
//	move, unary   Left -> Dst
//	binary, cmp   Left, Right -> Dst
//	jump          Rel (and Left for the conditional forms)
//	call          Routine, Args
type Statement struct {
	Op      Op          `cbor:"1,keyasint"`
	Left    Source      `cbor:"2,keyasint"`
	Right   Source      `cbor:"3,keyasint"`
	Dst     Destination `cbor:"4,keyasint"`
	Rel     int         `cbor:"5,keyasint,omitempty"`
	Routine int         `cbor:"6,keyasint,omitempty"`
	Args    Range       `cbor:"7,keyasint"`
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Nop returns a no-op statement.
func Nop() Statement { return Statement{Op: OpNop} }

// Stop returns the statement that halts the machine.
func Stop() Statement { return Statement{Op: OpStop} }

// Ret returns a routine return.
func Ret() Statement { return Statement{Op: OpRet} }

// Ld copies an 8-bit value.
func Ld(src Source, dst Destination) Statement { return move(OpLd, src, dst) }

// LdW copies a 16-bit value.
func LdW(src Source, dst Destination) Statement { return move(OpLdW, src, dst) }

func Inc(src Source, dst Destination) Statement  { return move(OpInc, src, dst) }
func Dec(src Source, dst Destination) Statement  { return move(OpDec, src, dst) }
func IncW(src Source, dst Destination) Statement { return move(OpIncW, src, dst) }
func DecW(src Source, dst Destination) Statement { return move(OpDecW, src, dst) }

func Add(l, r Source, dst Destination) Statement        { return binaryOp(OpAdd, l, r, dst) }
func Sub(l, r Source, dst Destination) Statement        { return binaryOp(OpSub, l, r, dst) }
func And(l, r Source, dst Destination) Statement        { return binaryOp(OpAnd, l, r, dst) }
func Or(l, r Source, dst Destination) Statement         { return binaryOp(OpOr, l, r, dst) }
func Xor(l, r Source, dst Destination) Statement        { return binaryOp(OpXor, l, r, dst) }
func Mul(l, r Source, dst Destination) Statement        { return binaryOp(OpMul, l, r, dst) }
func Div(l, r Source, dst Destination) Statement        { return binaryOp(OpDiv, l, r, dst) }
func Rem(l, r Source, dst Destination) Statement        { return binaryOp(OpRem, l, r, dst) }
func LeftShift(l, r Source, dst Destination) Statement  { return binaryOp(OpLeftShift, l, r, dst) }
func RightShift(l, r Source, dst Destination) Statement { return binaryOp(OpRightShift, l, r, dst) }

func AddW(l, r Source, dst Destination) Statement        { return binaryOp(OpAddW, l, r, dst) }
func SubW(l, r Source, dst Destination) Statement        { return binaryOp(OpSubW, l, r, dst) }
func AndW(l, r Source, dst Destination) Statement        { return binaryOp(OpAndW, l, r, dst) }
func OrW(l, r Source, dst Destination) Statement         { return binaryOp(OpOrW, l, r, dst) }
func XorW(l, r Source, dst Destination) Statement        { return binaryOp(OpXorW, l, r, dst) }
func MulW(l, r Source, dst Destination) Statement        { return binaryOp(OpMulW, l, r, dst) }
func DivW(l, r Source, dst Destination) Statement        { return binaryOp(OpDivW, l, r, dst) }
func RemW(l, r Source, dst Destination) Statement        { return binaryOp(OpRemW, l, r, dst) }
func LeftShiftW(l, r Source, dst Destination) Statement  { return binaryOp(OpLeftShiftW, l, r, dst) }
func RightShiftW(l, r Source, dst Destination) Statement { return binaryOp(OpRightShiftW, l, r, dst) }

func Eq(l, r Source, dst Destination) Statement        { return binaryOp(OpEq, l, r, dst) }
func NotEq(l, r Source, dst Destination) Statement     { return binaryOp(OpNotEq, l, r, dst) }
func Greater(l, r Source, dst Destination) Statement   { return binaryOp(OpGreater, l, r, dst) }
func GreaterEq(l, r Source, dst Destination) Statement { return binaryOp(OpGreaterEq, l, r, dst) }
func Less(l, r Source, dst Destination) Statement      { return binaryOp(OpLess, l, r, dst) }
func LessEq(l, r Source, dst Destination) Statement    { return binaryOp(OpLessEq, l, r, dst) }

// Jmp adds rel to the program counter.
func Jmp(rel int) Statement { return Statement{Op: OpJmp, Rel: rel} }

// JmpCmp adds rel to the program counter when src reads nonzero.
func JmpCmp(src Source, rel int) Statement { return Statement{Op: OpJmpCmp, Left: src, Rel: rel} }

// JmpCmpNot adds rel to the program counter when src reads zero.
func JmpCmpNot(src Source, rel int) Statement {
	return Statement{Op: OpJmpCmpNot, Left: src, Rel: rel}
}

// Call enters routine with a fresh frame whose first bytes are copied from
// args of the caller's frame. The callee starts at statement 0, and Ret
// resumes the caller at the statement after the Call.
func Call(routine int, args Range) Statement {
	return Statement{Op: OpCall, Routine: routine, Args: args}
}

func move(op Op, src Source, dst Destination) Statement {
	return Statement{Op: op, Left: src, Dst: dst}
}

func binaryOp(op Op, l, r Source, dst Destination) Statement {
	return Statement{Op: op, Left: l, Right: r, Dst: dst}
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

func (s Statement) String() string {
	info := s.Op.Info()
	var sb strings.Builder
	sb.WriteString(info.Name)
	switch info.Class {
	case ClassMove, ClassUnary:
		fmt.Fprintf(&sb, " %s <- %s", s.Dst, s.Left)
	case ClassBinary, ClassCompare:
		fmt.Fprintf(&sb, " %s <- %s, %s", s.Dst, s.Left, s.Right)
	case ClassJump:
		if s.Op != OpJmp {
			fmt.Fprintf(&sb, " %s,", s.Left)
		}
		fmt.Fprintf(&sb, " %+d", s.Rel)
	case ClassCall:
		if s.Op == OpCall {
			fmt.Fprintf(&sb, " @%d (%s)", s.Routine, s.Args)
		}
	}
	return sb.String()
}
