package main

import (
	"sort"

	"github.com/chazu/spacevm/compiler"
	"github.com/chazu/spacevm/ir"
	"github.com/chazu/spacevm/vm"
)

// ---------------------------------------------------------------------------
// Demo programs
// ---------------------------------------------------------------------------

// demo is a program assembled in-process with the allocators, the way a
// lowering pass would. build also returns the symbol holding the answer,
// and want is the value it should hold after a clean run.
type demo struct {
	about string
	build func(order ir.ByteOrder) (*ir.Program, compiler.Symbol, error)
	want  uint16
}

var demos = map[string]demo{
	"counter": {"count to 42 in a loop", buildCounter, 42},
	"call":    {"add two stack arguments in a called routine", buildCall, 42},
	"fib":     {"24th Fibonacci number with 16-bit ops", buildFib, 46368},
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readSymbol reads sym from a finished machine. Symbols wider than one byte
// are read as 16-bit values in the program's byte order.
func readSymbol(m *vm.VM, sym compiler.Symbol) uint16 {
	in := vm.NewInspector(m)
	n := 1
	if sym.Size >= 2 {
		n = 2
	}
	b, err := in.Peek(sym.Space, int(sym.Offset), n)
	if err != nil {
		return 0
	}
	if n == 1 {
		return uint16(b[0])
	}
	return m.Program().Order.Codec().Uint16(b)
}

// buildCounter increments RESULT once per trip of a loop driven by an 8-bit
// counter register.
func buildCounter(order ir.ByteOrder) (*ir.Program, compiler.Symbol, error) {
	types := compiler.NewTypeTable()
	syms := compiler.NewSymbolAlloc(types)
	if err := syms.AllocAbsolute(compiler.Field{Name: "RESULT", Type: compiler.U8}, 0); err != nil {
		return nil, compiler.Symbol{}, err
	}
	result, err := syms.Get("RESULT")
	if err != nil {
		return nil, compiler.Symbol{}, err
	}

	var regs compiler.RegisterAlloc
	counter := regs.Alloc()
	defer regs.Free(counter)
	cell := ir.ToPtr(result.Space, result.Offset)

	b := ir.NewBuilder(order)
	b.Routine("main").
		Emit(
			ir.Ld(ir.Lit(42), ir.ToReg(counter)),
			ir.Ld(ir.Lit(0), cell),
		).
		Label("loop").
		Emit(
			ir.Inc(cell.AsSource(), cell),
			ir.Dec(ir.Reg(counter), ir.ToReg(counter)),
		).
		JmpCmp(ir.Reg(counter), "loop").
		Emit(ir.Stop())

	prog, err := b.Build()
	return prog, result, err
}

// buildCall passes two stack locals to add(a, b), which returns their sum
// through the return space.
func buildCall(order ir.ByteOrder) (*ir.Program, compiler.Symbol, error) {
	fail := func(err error) (*ir.Program, compiler.Symbol, error) {
		return nil, compiler.Symbol{}, err
	}
	types := compiler.NewTypeTable()
	syms := compiler.NewSymbolAlloc(types)
	fns := compiler.NewFnAlloc()
	b := ir.NewBuilder(order)
	main := b.Routine("main")
	add := b.Routine("add")

	addDecl := &compiler.FnDecl{
		Name:    "add",
		Args:    []compiler.Field{{Name: "a", Type: compiler.U8}, {Name: "b", Type: compiler.U8}},
		Ret:     compiler.U8,
		Routine: add.Index(),
	}
	if err := fns.Alloc(addDecl); err != nil {
		return fail(err)
	}
	if err := syms.AllocStatic(compiler.Field{Name: "RESULT", Type: compiler.U8}); err != nil {
		return fail(err)
	}
	result, err := syms.Get("RESULT")
	if err != nil {
		return fail(err)
	}

	// main's frame: the two arguments, laid out in declaration order
	x, err := syms.AllocStackField(compiler.Field{Name: "x", Type: compiler.U8})
	if err != nil {
		return fail(err)
	}
	y, err := syms.AllocStackField(compiler.Field{Name: "y", Type: compiler.U8})
	if err != nil {
		return fail(err)
	}
	fn, err := fns.Get("add")
	if err != nil {
		return fail(err)
	}
	argsSize, err := compiler.ArgsSize(types, fn)
	if err != nil {
		return fail(err)
	}
	main.Emit(
		ir.Ld(ir.Lit(20), ir.ToPtr(ir.Stack, x)),
		ir.Ld(ir.Lit(22), ir.ToPtr(ir.Stack, y)),
		ir.Call(fn.Routine, ir.Range{Start: x, End: x + argsSize}),
		ir.Ld(ir.Ptr(ir.Return, 0), ir.ToPtr(result.Space, result.Offset)),
		ir.Stop(),
	)

	// add's frame starts with its arguments
	syms.ClearStack()
	var offs []uint16
	for _, arg := range fn.Args {
		off, err := syms.AllocStackField(arg)
		if err != nil {
			return fail(err)
		}
		offs = append(offs, off)
	}
	add.Emit(
		ir.Add(ir.Ptr(ir.Stack, offs[0]), ir.Ptr(ir.Stack, offs[1]), ir.ToPtr(ir.Return, 0)),
		ir.Ret(),
	)

	prog, err := b.Build()
	return prog, result, err
}

// buildFib iterates (a, b) = (b, a+b) with 16-bit cells in static memory.
func buildFib(order ir.ByteOrder) (*ir.Program, compiler.Symbol, error) {
	fail := func(err error) (*ir.Program, compiler.Symbol, error) {
		return nil, compiler.Symbol{}, err
	}
	types := compiler.NewTypeTable()
	word := types.Array(compiler.U8, 2)
	state := types.Struct(
		compiler.Field{Name: "a", Type: word},
		compiler.Field{Name: "b", Type: word},
	)
	syms := compiler.NewSymbolAlloc(types)
	if err := syms.AllocStatic(compiler.Field{Name: "fib", Type: state}); err != nil {
		return fail(err)
	}
	a, err := syms.Get("fib::a")
	if err != nil {
		return fail(err)
	}
	bsym, err := syms.Get("fib::b")
	if err != nil {
		return fail(err)
	}

	var regs8, regs16 compiler.RegisterAlloc
	n := regs8.Alloc()
	sum := regs16.Alloc()
	pa, pb := ir.ToPtr(a.Space, a.Offset), ir.ToPtr(bsym.Space, bsym.Offset)

	b := ir.NewBuilder(order)
	b.Routine("main").
		Emit(
			ir.LdW(ir.Lit(0), pa),
			ir.LdW(ir.Lit(1), pb),
			ir.Ld(ir.Lit(24), ir.ToReg(n)),
		).
		Label("loop").
		Emit(
			ir.AddW(pa.AsSource(), pb.AsSource(), ir.ToReg(sum)),
			ir.LdW(pb.AsSource(), pa),
			ir.LdW(ir.Reg(sum), pb),
			ir.Dec(ir.Reg(n), ir.ToReg(n)),
		).
		JmpCmp(ir.Reg(n), "loop").
		Emit(ir.Stop())

	prog, err := b.Build()
	if err != nil {
		return fail(err)
	}
	return prog, a, nil
}
