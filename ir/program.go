package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ByteOrder selects how 16-bit values are laid out in memory and in the
// constant pool.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

// Valid reports whether o names a supported byte order.
func (o ByteOrder) Valid() bool {
	return o == LittleEndian || o == BigEndian
}

// Codec returns the encoder for the byte order. Unknown values fall back to
// little endian; Validate and Unmarshal reject them first.
func (o ByteOrder) Codec() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (o ByteOrder) String() string {
	switch o {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	}
	return fmt.Sprintf("order(%d)", uint8(o))
}

// ParseByteOrder accepts "little"/"le" and "big"/"be".
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToLower(s) {
	case "", "little", "le", "little-endian":
		return LittleEndian, nil
	case "big", "be", "big-endian":
		return BigEndian, nil
	}
	return 0, fmt.Errorf("unknown byte order %q", s)
}

// Routine is a named sequence of statements and the unit of call/return.
type Routine struct {
	Name       string      `cbor:"1,keyasint"`
	Statements []Statement `cbor:"2,keyasint"`
}

// Handlers names the routines the machine enters on its own.
type Handlers struct {
	Main int `cbor:"1,keyasint"`
}

// Program is a complete lowered unit: the routine table, the constant pool
// (ROM) and the entry routine.
type Program struct {
	Routines []Routine `cbor:"1,keyasint"`
	Const    []byte    `cbor:"2,keyasint"`
	Handlers Handlers  `cbor:"3,keyasint"`
	Order    ByteOrder `cbor:"4,keyasint"`
}

// Main returns the entry routine, or nil when the handler index is invalid.
func (p *Program) Main() *Routine {
	if p.Handlers.Main < 0 || p.Handlers.Main >= len(p.Routines) {
		return nil
	}
	return &p.Routines[p.Handlers.Main]
}

// RoutineIndex returns the index of the routine with the given name.
func (p *Program) RoutineIndex(name string) (int, bool) {
	for i := range p.Routines {
		if p.Routines[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ErrInvalidProgram is wrapped by every problem Validate reports.
var ErrInvalidProgram = errors.New("invalid program")

// Validate performs static checks that do not need execution: the entry
// routine exists, every op is known, call targets are in range and call
// ranges are ordered. All problems are reported together.
//
// Validate is advisory. The VM repeats the checks that matter at runtime and
// faults instead of trusting the program.
func (p *Program) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidProgram, fmt.Sprintf(format, args...)))
	}

	if !p.Order.Valid() {
		fail("unknown byte %s", p.Order)
	}
	if p.Main() == nil {
		fail("entry routine %d out of range (%d routines)", p.Handlers.Main, len(p.Routines))
	}
	for ri := range p.Routines {
		r := &p.Routines[ri]
		for pc, s := range r.Statements {
			if !s.Op.Valid() {
				fail("%s:%d: unknown op %#02x", r.Name, pc, uint8(s.Op))
				continue
			}
			switch s.Op.Info().Class {
			case ClassCall:
				if s.Op == OpCall {
					if s.Routine < 0 || s.Routine >= len(p.Routines) {
						fail("%s:%d: call target %d out of range", r.Name, pc, s.Routine)
					}
					if s.Args.End < s.Args.Start {
						fail("%s:%d: call range %s is reversed", r.Name, pc, s.Args)
					}
				}
			case ClassJump:
				if target := pc + s.Rel + 1; target < 0 || target >= len(r.Statements) {
					fail("%s:%d: jump target %d outside routine", r.Name, pc, target)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble returns a listing of every routine.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; routines: %d, const: %d bytes, order: %s\n", len(p.Routines), len(p.Const), p.Order)
	for i := range p.Routines {
		r := &p.Routines[i]
		marker := ""
		if i == p.Handlers.Main {
			marker = " (main)"
		}
		fmt.Fprintf(&sb, "\n; === @%d %s%s ===\n", i, r.Name, marker)
		for pc, s := range r.Statements {
			fmt.Fprintf(&sb, "%04x | %s\n", pc, s)
		}
	}
	return sb.String()
}
