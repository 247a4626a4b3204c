package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Type table: arena of declared types
// ---------------------------------------------------------------------------

// TypeID indexes a TypeTable. IDs are only meaningful for the table that
// issued them.
type TypeID int

// Kind is the shape of a type.
type Kind uint8

const (
	KindU8 Kind = iota
	KindI8
	KindArray
	KindPointer
	KindFn
	KindStruct
	KindUnion
)

var kindNames = [...]string{
	KindU8:      "u8",
	KindI8:      "i8",
	KindArray:   "array",
	KindPointer: "pointer",
	KindFn:      "fn",
	KindStruct:  "struct",
	KindUnion:   "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Leaf reports whether values of this kind occupy one symbol.
func (k Kind) Leaf() bool {
	switch k {
	case KindU8, KindI8, KindArray, KindPointer, KindFn:
		return true
	}
	return false
}

// PointerSize is the width of addresses and function references.
const PointerSize = 2

// Field is a named, typed member: a struct/union field, a function argument
// or a top-level variable declaration.
type Field struct {
	Name string
	Type TypeID
}

// Type describes one entry of the table.
type Type struct {
	Kind   Kind
	Elem   TypeID  // array element, pointee, fn return (-1 for none)
	Len    int     // array length
	Fields []Field // struct/union members, fn arguments
}

// TypeTable owns every type used by a compilation unit. U8 and I8 are
// predeclared.
type TypeTable struct {
	types []Type
	sizes map[TypeID]uint16
}

// Predeclared type ids.
const (
	U8 TypeID = 0
	I8 TypeID = 1
)

// NoType marks an absent element type (a function with no return value).
const NoType TypeID = -1

// NewTypeTable creates a table holding the predeclared integer types.
func NewTypeTable() *TypeTable {
	return &TypeTable{
		types: []Type{
			U8: {Kind: KindU8, Elem: NoType},
			I8: {Kind: KindI8, Elem: NoType},
		},
		sizes: make(map[TypeID]uint16),
	}
}

func (t *TypeTable) add(ty Type) TypeID {
	t.types = append(t.types, ty)
	return TypeID(len(t.types) - 1)
}

// Array declares an array of n elements.
func (t *TypeTable) Array(elem TypeID, n int) TypeID {
	return t.add(Type{Kind: KindArray, Elem: elem, Len: n})
}

// Pointer declares a pointer to elem.
func (t *TypeTable) Pointer(elem TypeID) TypeID {
	return t.add(Type{Kind: KindPointer, Elem: elem})
}

// Fn declares a function reference type.
func (t *TypeTable) Fn(ret TypeID, args ...Field) TypeID {
	return t.add(Type{Kind: KindFn, Elem: ret, Fields: args})
}

// Struct declares a struct whose fields are laid out one after another.
func (t *TypeTable) Struct(fields ...Field) TypeID {
	return t.add(Type{Kind: KindStruct, Elem: NoType, Fields: fields})
}

// Union declares a union whose fields share one offset.
func (t *TypeTable) Union(fields ...Field) TypeID {
	return t.add(Type{Kind: KindUnion, Elem: NoType, Fields: fields})
}

// Lookup returns the type for id.
func (t *TypeTable) Lookup(id TypeID) (*Type, error) {
	if id < 0 || int(id) >= len(t.types) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
	return &t.types[id], nil
}

// SizeOf returns the number of bytes a value of the type occupies.
//
//	u8, i8          1
//	pointer, fn     2
//	array           len * size(elem)
//	struct          sum of field sizes
//	union           largest field size
func (t *TypeTable) SizeOf(id TypeID) (uint16, error) {
	return t.sizeOf(id, 0)
}

// maxTypeDepth bounds recursion through self-referential struct definitions.
const maxTypeDepth = 64

func (t *TypeTable) sizeOf(id TypeID, depth int) (uint16, error) {
	if size, ok := t.sizes[id]; ok {
		return size, nil
	}
	if depth > maxTypeDepth {
		return 0, fmt.Errorf("%w: id %d nests deeper than %d", ErrUnknownType, id, maxTypeDepth)
	}
	ty, err := t.Lookup(id)
	if err != nil {
		return 0, err
	}

	var size int
	switch ty.Kind {
	case KindU8, KindI8:
		size = 1
	case KindPointer, KindFn:
		size = PointerSize
	case KindArray:
		if ty.Len < 0 {
			return 0, fmt.Errorf("%w: id %d is an array of negative length %d", ErrUnknownType, id, ty.Len)
		}
		elem, err := t.sizeOf(ty.Elem, depth+1)
		if err != nil {
			return 0, err
		}
		size = int(elem) * ty.Len
	case KindStruct:
		for _, f := range ty.Fields {
			fs, err := t.sizeOf(f.Type, depth+1)
			if err != nil {
				return 0, err
			}
			size += int(fs)
		}
	case KindUnion:
		for _, f := range ty.Fields {
			fs, err := t.sizeOf(f.Type, depth+1)
			if err != nil {
				return 0, err
			}
			size = max(size, int(fs))
		}
	default:
		return 0, fmt.Errorf("%w: id %d has kind %s", ErrUnknownType, id, ty.Kind)
	}
	if size > 0xFFFF {
		return 0, fmt.Errorf("%w: id %d is %d bytes, larger than the address space", ErrTypeTooLarge, id, size)
	}
	t.sizes[id] = uint16(size)
	return uint16(size), nil
}

// Format renders a type for diagnostics.
func (t *TypeTable) Format(id TypeID) string {
	ty, err := t.Lookup(id)
	if err != nil {
		return fmt.Sprintf("<bad type %d>", id)
	}
	switch ty.Kind {
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Format(ty.Elem), ty.Len)
	case KindPointer:
		return "&" + t.Format(ty.Elem)
	case KindFn, KindStruct, KindUnion:
		parts := make([]string, len(ty.Fields))
		for i, f := range ty.Fields {
			parts[i] = f.Name + ":" + t.Format(f.Type)
		}
		s := fmt.Sprintf("%s(%s)", ty.Kind, strings.Join(parts, " "))
		if ty.Kind == KindFn && ty.Elem != NoType {
			s += " " + t.Format(ty.Elem)
		}
		return s
	}
	return ty.Kind.String()
}
