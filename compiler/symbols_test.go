package compiler

import (
	"errors"
	"testing"

	"github.com/chazu/spacevm/ir"
)

func offsets(syms []Symbol) []uint16 {
	out := make([]uint16, len(syms))
	for i, s := range syms {
		out[i] = s.Offset
	}
	return out
}

func equalOffsets(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// abcTypes declares fields of sizes 1, 2 and 4.
func abcTypes(types *TypeTable) []Field {
	return []Field{
		{Name: "a", Type: U8},
		{Name: "b", Type: types.Pointer(U8)},
		{Name: "c", Type: types.Array(U8, 4)},
	}
}

func TestAllocStaticStructIsSequential(t *testing.T) {
	types := NewTypeTable()
	s := types.Struct(abcTypes(types)...)
	alloc := NewSymbolAlloc(types)

	if err := alloc.AllocStatic(Field{Name: "v", Type: s}); err != nil {
		t.Fatal(err)
	}
	syms := alloc.Symbols(ir.Static)
	if got, want := offsets(syms), []uint16{0, 1, 3}; !equalOffsets(got, want) {
		t.Errorf("offsets = %v, want %v", got, want)
	}
	names := []string{"v::a", "v::b", "v::c"}
	for i, sym := range syms {
		if sym.Name != names[i] {
			t.Errorf("symbol %d name = %q, want %q", i, sym.Name, names[i])
		}
		if sym.Space != ir.Static {
			t.Errorf("symbol %s space = %s", sym.Name, sym.Space)
		}
	}
	if alloc.StaticSize() != 7 {
		t.Errorf("static cursor = %d, want 7", alloc.StaticSize())
	}

	// the next static field starts after the struct
	if err := alloc.AllocStatic(Field{Name: "w", Type: U8}); err != nil {
		t.Fatal(err)
	}
	w, err := alloc.Get("w")
	if err != nil {
		t.Fatal(err)
	}
	if w.Offset != 7 {
		t.Errorf("w offset = %d, want 7", w.Offset)
	}
}

func TestAllocUnionOverlaps(t *testing.T) {
	types := NewTypeTable()
	u := types.Union(abcTypes(types)...)
	alloc := NewSymbolAlloc(types)

	if err := alloc.AllocStatic(Field{Name: "u", Type: u}); err != nil {
		t.Fatal(err)
	}
	if got, want := offsets(alloc.Symbols(ir.Static)), []uint16{0, 0, 0}; !equalOffsets(got, want) {
		t.Errorf("offsets = %v, want %v", got, want)
	}
	// consumed size is the largest member
	if alloc.StaticSize() != 4 {
		t.Errorf("static cursor = %d, want 4", alloc.StaticSize())
	}
}

func TestUnionInsideStructAdvancesByLargestMember(t *testing.T) {
	types := NewTypeTable()
	u := types.Union(
		Field{Name: "small", Type: U8},
		Field{Name: "big", Type: types.Array(U8, 3)},
	)
	s := types.Struct(
		Field{Name: "tag", Type: U8},
		Field{Name: "data", Type: u},
		Field{Name: "after", Type: U8},
	)
	alloc := NewSymbolAlloc(types)
	if err := alloc.AllocStatic(Field{Name: "msg", Type: s}); err != nil {
		t.Fatal(err)
	}

	want := map[string]uint16{
		"msg::tag":         0,
		"msg::data::small": 1,
		"msg::data::big":   1,
		"msg::after":       4,
	}
	for name, off := range want {
		sym, err := alloc.Get(name)
		if err != nil {
			t.Errorf("Get(%q): %v", name, err)
			continue
		}
		if sym.Offset != off {
			t.Errorf("%s offset = %d, want %d", name, sym.Offset, off)
		}
	}
	if alloc.StaticSize() != 5 {
		t.Errorf("static cursor = %d, want 5", alloc.StaticSize())
	}
}

func TestAllocAbsoluteUsesFixedOffset(t *testing.T) {
	types := NewTypeTable()
	s := types.Struct(abcTypes(types)...)
	alloc := NewSymbolAlloc(types)

	if err := alloc.AllocAbsolute(Field{Name: "io", Type: s}, 0xFF00); err != nil {
		t.Fatal(err)
	}
	if got, want := offsets(alloc.Symbols(ir.Absolute)), []uint16{0xFF00, 0xFF01, 0xFF03}; !equalOffsets(got, want) {
		t.Errorf("offsets = %#v, want %#v", got, want)
	}
	// aliasing is allowed
	if err := alloc.AllocAbsolute(Field{Name: "alias", Type: U8}, 0xFF00); err != nil {
		t.Errorf("aliasing absolute: %v", err)
	}
	// and no cursor moved
	if err := alloc.AllocStatic(Field{Name: "s", Type: U8}); err != nil {
		t.Fatal(err)
	}
	if sym, _ := alloc.Get("s"); sym.Offset != 0 {
		t.Errorf("static offset = %d, want 0", sym.Offset)
	}
}

func TestAllocAbsoluteOverflow(t *testing.T) {
	types := NewTypeTable()
	alloc := NewSymbolAlloc(types)
	err := alloc.AllocAbsolute(Field{Name: "tail", Type: types.Array(U8, 4)}, 0xFFFE)
	if !errors.Is(err, ErrSpaceExhausted) {
		t.Errorf("err = %v, want ErrSpaceExhausted", err)
	}
	if len(alloc.Symbols(ir.Absolute)) != 0 {
		t.Error("failed allocation left symbols behind")
	}
}

func TestAllocStackFieldReturnsOffsetAndClears(t *testing.T) {
	types := NewTypeTable()
	alloc := NewSymbolAlloc(types)

	off, err := alloc.AllocStackField(Field{Name: "x", Type: types.Pointer(U8)})
	if err != nil || off != 0 {
		t.Fatalf("first stack field = %d, %v", off, err)
	}
	off, err = alloc.AllocStackField(Field{Name: "y", Type: U8})
	if err != nil || off != 2 {
		t.Fatalf("second stack field = %d, %v", off, err)
	}
	if alloc.StackSize() != 3 {
		t.Errorf("stack size = %d, want 3", alloc.StackSize())
	}

	alloc.ClearStack()
	if _, err := alloc.Get("x"); !errors.Is(err, ErrUndefinedSymbol) {
		t.Errorf("x after ClearStack: %v", err)
	}
	// the same name can be reused by the next routine
	off, err = alloc.AllocStackField(Field{Name: "x", Type: U8})
	if err != nil || off != 0 {
		t.Errorf("stack field after clear = %d, %v", off, err)
	}
}

func TestDuplicateNamesRejectedAcrossSpaces(t *testing.T) {
	types := NewTypeTable()
	pair := types.Struct(Field{Name: "lo", Type: U8}, Field{Name: "hi", Type: U8})
	alloc := NewSymbolAlloc(types)

	if err := alloc.AllocStatic(Field{Name: "counter", Type: U8}); err != nil {
		t.Fatal(err)
	}
	if err := alloc.AllocConst(Field{Name: "pair", Type: pair}, nil); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		fn   func() error
	}{
		{"stack over static", func() error {
			_, err := alloc.AllocStackField(Field{Name: "counter", Type: U8})
			return err
		}},
		{"absolute over static", func() error {
			return alloc.AllocAbsolute(Field{Name: "counter", Type: U8}, 0x100)
		}},
		{"static over const struct root", func() error {
			return alloc.AllocStatic(Field{Name: "pair", Type: U8})
		}},
		{"const over const", func() error {
			return alloc.AllocConst(Field{Name: "pair", Type: pair}, nil)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			if !errors.Is(err, ErrDuplicateSymbol) {
				t.Fatalf("err = %v, want ErrDuplicateSymbol", err)
			}
			var ae *AllocError
			if !errors.As(err, &ae) || ae.Name == "" {
				t.Errorf("error does not name the symbol: %v", err)
			}
		})
	}
	if alloc.StackSize() != 0 || alloc.StaticSize() != 1 {
		t.Errorf("rejected allocations moved cursors: stack=%d static=%d", alloc.StackSize(), alloc.StaticSize())
	}
}

func TestGetShadowingOrder(t *testing.T) {
	types := NewTypeTable()
	alloc := NewSymbolAlloc(types)

	// Same path in several spaces can only be produced by bypassing the
	// duplicate check, which is how a lowering pass models shadowing.
	alloc.absolute = append(alloc.absolute, Symbol{Name: "v", Offset: 1, Space: ir.Absolute})
	alloc.consts = append(alloc.consts, Symbol{Name: "v", Offset: 2, Space: ir.Const})
	alloc.statics = append(alloc.statics, Symbol{Name: "v", Offset: 3, Space: ir.Static})
	alloc.stack = append(alloc.stack, Symbol{Name: "v", Offset: 4, Space: ir.Stack})

	for _, want := range []ir.Space{ir.Stack, ir.Static, ir.Const, ir.Absolute} {
		sym, err := alloc.Get("v")
		if err != nil {
			t.Fatal(err)
		}
		if sym.Space != want {
			t.Fatalf("Get(v).Space = %s, want %s", sym.Space, want)
		}
		switch want {
		case ir.Stack:
			alloc.stack = nil
		case ir.Static:
			alloc.statics = nil
		case ir.Const:
			alloc.consts = nil
		}
	}
}

func TestAllocConstWritesROM(t *testing.T) {
	types := NewTypeTable()
	alloc := NewSymbolAlloc(types)

	if err := alloc.AllocConst(Field{Name: "greeting", Type: types.Array(U8, 4)}, []byte("hi")); err != nil {
		t.Fatal(err)
	}
	if err := alloc.AllocConst(Field{Name: "answer", Type: U8}, []byte{42}); err != nil {
		t.Fatal(err)
	}
	rom := alloc.ROM()
	want := []byte{'h', 'i', 0, 0, 42}
	if string(rom) != string(want) {
		t.Errorf("ROM = % x, want % x", rom, want)
	}
	if sym, _ := alloc.Get("answer"); sym.Offset != 4 || sym.Space != ir.Const {
		t.Errorf("answer = %+v", sym)
	}

	err := alloc.AllocConst(Field{Name: "tiny", Type: U8}, []byte{1, 2})
	if !errors.Is(err, ErrInitializerTooLong) {
		t.Errorf("err = %v, want ErrInitializerTooLong", err)
	}
}

func TestAllocConstTooLongLeavesNoSymbol(t *testing.T) {
	types := NewTypeTable()
	alloc := NewSymbolAlloc(types)

	err := alloc.AllocConst(Field{Name: "k", Type: U8}, []byte{1, 2})
	if !errors.Is(err, ErrInitializerTooLong) {
		t.Fatalf("err = %v, want ErrInitializerTooLong", err)
	}
	if syms := alloc.Symbols(ir.Const); len(syms) != 0 {
		t.Fatalf("const symbols after failure = %+v, want none", syms)
	}
	if err := alloc.AllocConst(Field{Name: "k", Type: U8}, []byte{1}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := alloc.AllocConst(Field{Name: "j", Type: U8}, []byte{9}); err != nil {
		t.Fatal(err)
	}
	k, _ := alloc.Get("k")
	j, _ := alloc.Get("j")
	if k.Offset != 0 || j.Offset != 1 {
		t.Errorf("k at %d, j at %d, want 0 and 1", k.Offset, j.Offset)
	}
	if got := alloc.ROM(); string(got) != string([]byte{1, 9}) {
		t.Errorf("ROM = % x, want 01 09", got)
	}
}

func TestUnresolvableTypeNamesPath(t *testing.T) {
	types := NewTypeTable()
	s := types.Struct(Field{Name: "ok", Type: U8}, Field{Name: "broken", Type: TypeID(99)})
	alloc := NewSymbolAlloc(types)

	err := alloc.AllocStatic(Field{Name: "rec", Type: s})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
	if len(alloc.Symbols(ir.Static)) != 0 {
		t.Error("failed allocation left symbols behind")
	}
}

func TestGetUndefined(t *testing.T) {
	alloc := NewSymbolAlloc(NewTypeTable())
	_, err := alloc.Get("nope")
	if !errors.Is(err, ErrUndefinedSymbol) {
		t.Errorf("err = %v, want ErrUndefinedSymbol", err)
	}
}
