package ir

import "fmt"

// ---------------------------------------------------------------------------
// Address spaces
// ---------------------------------------------------------------------------

// Space tags the byte range a pointer addresses.
//
// Absolute and Static are allocation-time distinctions only (a fixed address
// chosen by the program vs. one chosen by the compiler). Both resolve to the
// same static array at runtime.
type Space uint8

const (
	Absolute Space = iota
	Static
	Const
	Stack
	Return
)

var spaceNames = [...]string{
	Absolute: "abs",
	Static:   "static",
	Const:    "const",
	Stack:    "stack",
	Return:   "ret",
}

func (s Space) String() string {
	if int(s) < len(spaceNames) {
		return spaceNames[s]
	}
	return fmt.Sprintf("space(%d)", uint8(s))
}

// Valid reports whether s names one of the five spaces.
func (s Space) Valid() bool {
	return s <= Return
}

// Pointer is a base address inside one space.
type Pointer struct {
	Space Space  `cbor:"1,keyasint"`
	Addr  uint16 `cbor:"2,keyasint"`
}

func (p Pointer) String() string {
	return fmt.Sprintf("%s[%#x]", p.Space, p.Addr)
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

// SourceKind selects which field of a Source is meaningful.
type SourceKind uint8

const (
	SourcePointer SourceKind = iota
	SourceRegister
	SourceLiteral
)

// Source is a readable operand: a pointer expression, a register, or a
// literal. The operand width comes from the statement that uses it.
//
// A pointer expression may carry an Index, an 8-bit source whose value is
// added to Ptr.Addr to form the effective address.
type Source struct {
	Kind  SourceKind `cbor:"1,keyasint"`
	Ptr   Pointer    `cbor:"2,keyasint"`
	Index *Source    `cbor:"3,keyasint,omitempty"`
	Reg   int        `cbor:"4,keyasint,omitempty"`
	Lit   uint16     `cbor:"5,keyasint,omitempty"`
}

// DestKind selects which field of a Destination is meaningful.
type DestKind uint8

const (
	DestPointer DestKind = iota
	DestRegister
)

// Destination is a writable operand. Literals are not representable.
type Destination struct {
	Kind  DestKind `cbor:"1,keyasint"`
	Ptr   Pointer  `cbor:"2,keyasint"`
	Index *Source  `cbor:"3,keyasint,omitempty"`
	Reg   int      `cbor:"4,keyasint,omitempty"`
}

// Lit returns a literal source.
func Lit(v uint16) Source {
	return Source{Kind: SourceLiteral, Lit: v}
}

// Reg returns a register source.
func Reg(i int) Source {
	return Source{Kind: SourceRegister, Reg: i}
}

// Ptr returns a pointer source with no index.
func Ptr(space Space, addr uint16) Source {
	return Source{Kind: SourcePointer, Ptr: Pointer{Space: space, Addr: addr}}
}

// PtrIndex returns a pointer source whose effective address is addr plus the
// 8-bit value read from index.
func PtrIndex(space Space, addr uint16, index Source) Source {
	return Source{Kind: SourcePointer, Ptr: Pointer{Space: space, Addr: addr}, Index: &index}
}

// ToReg returns a register destination.
func ToReg(i int) Destination {
	return Destination{Kind: DestRegister, Reg: i}
}

// ToPtr returns a pointer destination with no index.
func ToPtr(space Space, addr uint16) Destination {
	return Destination{Kind: DestPointer, Ptr: Pointer{Space: space, Addr: addr}}
}

// ToPtrIndex returns an indexed pointer destination.
func ToPtrIndex(space Space, addr uint16, index Source) Destination {
	return Destination{Kind: DestPointer, Ptr: Pointer{Space: space, Addr: addr}, Index: &index}
}

// AsSource returns the source that reads the location d writes.
func (d Destination) AsSource() Source {
	if d.Kind == DestRegister {
		return Reg(d.Reg)
	}
	return Source{Kind: SourcePointer, Ptr: d.Ptr, Index: d.Index}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceLiteral:
		return fmt.Sprintf("#%d", s.Lit)
	case SourceRegister:
		return fmt.Sprintf("r%d", s.Reg)
	case SourcePointer:
		if s.Index != nil {
			return fmt.Sprintf("%s[%#x+%s]", s.Ptr.Space, s.Ptr.Addr, s.Index)
		}
		return s.Ptr.String()
	}
	return fmt.Sprintf("source(%d)", uint8(s.Kind))
}

func (d Destination) String() string {
	switch d.Kind {
	case DestRegister:
		return fmt.Sprintf("r%d", d.Reg)
	case DestPointer:
		if d.Index != nil {
			return fmt.Sprintf("%s[%#x+%s]", d.Ptr.Space, d.Ptr.Addr, d.Index)
		}
		return d.Ptr.String()
	}
	return fmt.Sprintf("dest(%d)", uint8(d.Kind))
}
