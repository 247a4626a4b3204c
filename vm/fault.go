package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/spacevm/ir"
)

// ---------------------------------------------------------------------------
// Machine state
// ---------------------------------------------------------------------------

// State is the machine's run state. Running is the only non-terminal state.
type State uint8

const (
	Running State = iota
	Stopped
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

// FaultKind classifies a runtime fault.
type FaultKind uint8

const (
	FaultWriteConst FaultKind = iota + 1
	FaultDivideByZero
	FaultOverflow
	FaultAddressOutOfBounds
	FaultRegisterOutOfBounds
	FaultFrameOutOfBounds
	FaultStackUnderflow
	FaultStackOverflow
	FaultBadRoutine
	FaultPCOutOfRange
	FaultBadOperand
)

var faultNames = map[FaultKind]string{
	FaultWriteConst:          "write to const space",
	FaultDivideByZero:        "divide by zero",
	FaultOverflow:            "arithmetic overflow",
	FaultAddressOutOfBounds:  "address out of bounds",
	FaultRegisterOutOfBounds: "register out of bounds",
	FaultFrameOutOfBounds:    "frame offset out of bounds",
	FaultStackUnderflow:      "call stack underflow",
	FaultStackOverflow:       "call stack overflow",
	FaultBadRoutine:          "no such routine",
	FaultPCOutOfRange:        "program counter out of range",
	FaultBadOperand:          "malformed operand",
}

func (k FaultKind) String() string {
	if name, ok := faultNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", uint8(k))
}

// ErrFault is wrapped by every *Fault, so errors.Is(err, ErrFault) tells a
// machine fault apart from host errors such as ErrCycleLimit.
var ErrFault = errors.New("vm fault")

// ErrCycleLimit is returned by Step once the configured cycle budget is
// spent. The machine stays Running and can continue after the limit is
// raised.
var ErrCycleLimit = errors.New("cycle limit reached")

// Fault is the terminal diagnostic of a faulted machine.
type Fault struct {
	Kind    FaultKind
	Space   ir.Space // space of the offending address, when there is one
	Addr    int      // offending address, register, routine or pc
	Routine int      // routine executing when the fault was raised
	PC      int      // pc of the faulting statement
	Op      ir.Op    // op of the faulting statement
	Detail  string
}

func (f *Fault) Error() string {
	where := fmt.Sprintf("@%d:%04x", f.Routine, f.PC)
	msg := fmt.Sprintf("%s at %s", f.Kind, where)
	switch f.Kind {
	case FaultWriteConst, FaultAddressOutOfBounds, FaultFrameOutOfBounds:
		msg += fmt.Sprintf(" (%s %s[%#x])", f.Op, f.Space, f.Addr)
	case FaultRegisterOutOfBounds:
		msg += fmt.Sprintf(" (%s r%d)", f.Op, f.Addr)
	case FaultBadRoutine:
		msg += fmt.Sprintf(" (routine %d)", f.Addr)
	case FaultPCOutOfRange:
		msg += fmt.Sprintf(" (pc %d)", f.Addr)
	default:
		msg += fmt.Sprintf(" (%s)", f.Op)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return ErrFault
}
