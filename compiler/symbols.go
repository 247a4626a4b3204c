package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/spacevm/ir"
)

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// Symbol binds a scope-qualified name to a byte range in one space.
type Symbol struct {
	Name   string   // "::"-joined path, e.g. "player::pos::x"
	Offset uint16   // first byte within the space
	Size   uint16   // bytes occupied
	Type   TypeID   // leaf type of the symbol
	Space  ir.Space // Absolute, Const, Static or Stack
}

// End returns the first byte past the symbol.
func (s Symbol) End() int {
	return int(s.Offset) + int(s.Size)
}

// PathSeparator joins field names into symbol paths.
const PathSeparator = "::"

// addressLimit is the size of every address space.
const addressLimit = 0x10000

// ---------------------------------------------------------------------------
// SymbolAlloc
// ---------------------------------------------------------------------------

// SymbolAlloc assigns offsets to named fields in the four allocation spaces.
// Struct and union fields are flattened: only leaf types become symbols.
//
// Each space except Absolute has its own cursor. The stack cursor restarts
// at zero after ClearStack, which the lowering pass calls between routines.
type SymbolAlloc struct {
	types *TypeTable

	absolute []Symbol
	consts   []Symbol
	statics  []Symbol
	stack    []Symbol

	constCursor  int
	staticCursor int
	stackCursor  int

	rom []byte
}

// NewSymbolAlloc creates an allocator that resolves types through types.
func NewSymbolAlloc(types *TypeTable) *SymbolAlloc {
	return &SymbolAlloc{types: types}
}

// ClearStack drops every stack symbol and resets the stack cursor.
func (a *SymbolAlloc) ClearStack() {
	a.stack = nil
	a.stackCursor = 0
}

// AllocConst lays field out in the constant space and copies init into the
// ROM image at the field's offset. A short initializer leaves the remaining
// bytes zero.
func (a *SymbolAlloc) AllocConst(field Field, init []byte) error {
	const op = "alloc const"
	if size, err := a.types.SizeOf(field.Type); err == nil && len(init) > int(size) {
		return &AllocError{Op: op, Name: field.Name, Err: fmt.Errorf("%w: %d > %d bytes", ErrInitializerTooLong, len(init), size)}
	}
	size, err := a.alloc(op, field, a.constCursor, ir.Const, &a.consts)
	if err != nil {
		return err
	}
	start := a.constCursor
	a.constCursor += int(size)
	if len(a.rom) < a.constCursor {
		a.rom = append(a.rom, make([]byte, a.constCursor-len(a.rom))...)
	}
	copy(a.rom[start:], init)
	return nil
}

// AllocStatic lays field out at the next free static offset.
func (a *SymbolAlloc) AllocStatic(field Field) error {
	size, err := a.alloc("alloc static", field, a.staticCursor, ir.Static, &a.statics)
	if err != nil {
		return err
	}
	a.staticCursor += int(size)
	return nil
}

// AllocAbsolute lays field out at a fixed offset. No cursor moves, and the
// field may overlap other symbols; whether aliasing is allowed is up to the
// language front end.
func (a *SymbolAlloc) AllocAbsolute(field Field, offset uint16) error {
	_, err := a.alloc("alloc absolute", field, int(offset), ir.Absolute, &a.absolute)
	return err
}

// AllocStackField lays field out at the next free offset of the current
// frame and returns that offset.
func (a *SymbolAlloc) AllocStackField(field Field) (uint16, error) {
	size, err := a.alloc("alloc stack", field, a.stackCursor, ir.Stack, &a.stack)
	if err != nil {
		return 0, err
	}
	start := a.stackCursor
	a.stackCursor += int(size)
	return uint16(start), nil
}

// Get finds a symbol by its full path. Stack symbols shadow static ones,
// which shadow const ones, which shadow absolute ones.
func (a *SymbolAlloc) Get(name string) (Symbol, error) {
	for _, table := range [][]Symbol{a.stack, a.statics, a.consts, a.absolute} {
		for _, s := range table {
			if s.Name == name {
				return s, nil
			}
		}
	}
	return Symbol{}, &AllocError{Op: "get", Name: name, Err: ErrUndefinedSymbol}
}

// Symbols returns a copy of the symbols allocated in space.
func (a *SymbolAlloc) Symbols(space ir.Space) []Symbol {
	var table []Symbol
	switch space {
	case ir.Absolute:
		table = a.absolute
	case ir.Const:
		table = a.consts
	case ir.Static:
		table = a.statics
	case ir.Stack:
		table = a.stack
	}
	return append([]Symbol(nil), table...)
}

// ROM returns the constant pool built from const initializers.
func (a *SymbolAlloc) ROM() []byte {
	return append([]byte(nil), a.rom...)
}

// StackSize returns the bytes used by the current routine's stack symbols.
func (a *SymbolAlloc) StackSize() uint16 {
	return uint16(a.stackCursor)
}

// StaticSize returns the bytes used by compiler-placed static symbols.
func (a *SymbolAlloc) StaticSize() uint16 {
	return uint16(a.staticCursor)
}

// defined reports whether name, or any field path below it, exists in any
// of the four spaces.
func (a *SymbolAlloc) defined(name string) bool {
	prefix := name + PathSeparator
	for _, table := range [][]Symbol{a.absolute, a.statics, a.consts, a.stack} {
		for _, s := range table {
			if s.Name == name || strings.HasPrefix(s.Name, prefix) {
				return true
			}
		}
	}
	return false
}

// alloc checks the name, flattens the field starting at base and appends the
// resulting symbols to out. Nothing is appended when an error is returned.
func (a *SymbolAlloc) alloc(op string, field Field, base int, space ir.Space, out *[]Symbol) (uint16, error) {
	if a.defined(field.Name) {
		return 0, &AllocError{Op: op, Name: field.Name, Err: ErrDuplicateSymbol}
	}
	var syms []Symbol
	size, err := a.layout("", base, field, space, &syms)
	if err != nil {
		return 0, err
	}
	if base+int(size) > addressLimit {
		return 0, &AllocError{Op: op, Name: field.Name, Err: fmt.Errorf("%w: %s needs %d bytes at %#x", ErrSpaceExhausted, space, size, base)}
	}
	*out = append(*out, syms...)
	return size, nil
}

// layout flattens field into leaf symbols. Leaves take SizeOf(type) bytes at
// offset. Struct members follow each other from offset; union members all
// start at offset. The returned size is SizeOf(field type), so a union
// contributes its largest member to an enclosing struct.
func (a *SymbolAlloc) layout(prefix string, offset int, field Field, space ir.Space, out *[]Symbol) (uint16, error) {
	name := field.Name
	if prefix != "" {
		name = prefix + PathSeparator + field.Name
	}

	size, err := a.types.SizeOf(field.Type)
	if err != nil {
		return 0, &AllocError{Op: "layout", Name: name, Err: err}
	}
	ty, err := a.types.Lookup(field.Type)
	if err != nil {
		return 0, &AllocError{Op: "layout", Name: name, Err: err}
	}

	switch {
	case ty.Kind.Leaf():
		*out = append(*out, Symbol{
			Name:   name,
			Offset: uint16(offset),
			Size:   size,
			Type:   field.Type,
			Space:  space,
		})
	case ty.Kind == KindStruct:
		if err := a.layoutStruct(name, offset, ty.Fields, space, out); err != nil {
			return 0, err
		}
	case ty.Kind == KindUnion:
		if err := a.layoutUnion(name, offset, ty.Fields, space, out); err != nil {
			return 0, err
		}
	default:
		return 0, &AllocError{Op: "layout", Name: name, Err: fmt.Errorf("%w: kind %s", ErrUnknownType, ty.Kind)}
	}
	return size, nil
}

// layoutStruct places each member at the running cursor.
func (a *SymbolAlloc) layoutStruct(name string, offset int, fields []Field, space ir.Space, out *[]Symbol) error {
	cursor := offset
	for _, f := range fields {
		size, err := a.layout(name, cursor, f, space, out)
		if err != nil {
			return err
		}
		cursor += int(size)
	}
	return nil
}

// layoutUnion places every member at the same offset.
func (a *SymbolAlloc) layoutUnion(name string, offset int, fields []Field, space ir.Space, out *[]Symbol) error {
	for _, f := range fields {
		if _, err := a.layout(name, offset, f, space, out); err != nil {
			return err
		}
	}
	return nil
}
