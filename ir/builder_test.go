package ir

import (
	"errors"
	"strings"
	"testing"
)

func TestBuilderResolvesLabels(t *testing.T) {
	b := NewBuilder(LittleEndian)
	main := b.Routine("main")
	main.Label("top")
	main.Emit(Dec(Reg(0), ToReg(0)))
	main.JmpCmp(Reg(0), "top")
	main.Jmp("end")
	main.Emit(Nop())
	main.Label("end")
	main.Emit(Stop())

	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	stmts := p.Routines[0].Statements
	if len(stmts) != 5 {
		t.Fatalf("statement count = %d, want 5", len(stmts))
	}
	// backward: pc 1 -> 0 carries 0-1-1
	if stmts[1].Rel != -2 {
		t.Errorf("backward rel = %d, want -2", stmts[1].Rel)
	}
	// forward: pc 2 -> 4 carries 4-2-1
	if stmts[2].Rel != 1 {
		t.Errorf("forward rel = %d, want 1", stmts[2].Rel)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuilderReportsLabelErrors(t *testing.T) {
	b := NewBuilder(LittleEndian)
	r := b.Routine("main")
	r.Label("a")
	r.Label("a")
	r.Jmp("missing")

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, `label "a" defined twice`) {
		t.Errorf("missing duplicate label error: %s", msg)
	}
	if !strings.Contains(msg, `undefined label "missing"`) {
		t.Errorf("missing undefined label error: %s", msg)
	}
}

func TestBuilderConstPool(t *testing.T) {
	for _, tc := range []struct {
		order ByteOrder
		want  []byte
	}{
		{LittleEndian, []byte{7, 0x34, 0x12}},
		{BigEndian, []byte{7, 0x12, 0x34}},
	} {
		t.Run(tc.order.String(), func(t *testing.T) {
			b := NewBuilder(tc.order)
			b.Routine("main").Emit(Stop())
			if off := b.Const(7); off != 0 {
				t.Errorf("first const offset = %d, want 0", off)
			}
			if off := b.ConstU16(0x1234); off != 1 {
				t.Errorf("u16 const offset = %d, want 1", off)
			}
			p, err := b.Build()
			if err != nil {
				t.Fatal(err)
			}
			if string(p.Const) != string(tc.want) {
				t.Errorf("const = % x, want % x", p.Const, tc.want)
			}
			if p.Order != tc.order {
				t.Errorf("order = %s, want %s", p.Order, tc.order)
			}
		})
	}
}

func TestBuilderSetMain(t *testing.T) {
	b := NewBuilder(LittleEndian)
	helper := b.Routine("helper").Emit(Ret())
	main := b.Routine("main")
	main.Call(helper, Range{0, 2}).Emit(Stop())
	b.SetMain(main)

	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if p.Handlers.Main != 1 {
		t.Errorf("main = %d, want 1", p.Handlers.Main)
	}
	if p.Main().Name != "main" {
		t.Errorf("Main().Name = %q", p.Main().Name)
	}
	if got := p.Routines[1].Statements[0]; got.Op != OpCall || got.Routine != 0 || got.Args != (Range{0, 2}) {
		t.Errorf("call = %+v", got)
	}
	if idx, ok := p.RoutineIndex("helper"); !ok || idx != 0 {
		t.Errorf("RoutineIndex(helper) = %d, %v", idx, ok)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	p := &Program{
		Routines: []Routine{{
			Name: "main",
			Statements: []Statement{
				{Op: Op(0xEE)},
				Call(9, Range{4, 2}),
				Jmp(-5),
			},
		}},
		Handlers: Handlers{Main: 3},
		Order:    ByteOrder(7),
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidProgram) {
		t.Errorf("error does not wrap ErrInvalidProgram: %v", err)
	}
	for _, want := range []string{"unknown byte order(7)", "entry routine 3", "unknown op", "call target 9", "reversed", "jump target"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestStatementString(t *testing.T) {
	cases := []struct {
		stmt Statement
		want string
	}{
		{Ld(Lit(42), ToPtr(Static, 0x10)), "ld static[0x10] <- #42"},
		{Add(Reg(1), PtrIndex(Const, 0x20, Reg(2)), ToReg(3)), "add r3 <- r1, const[0x20+r2]"},
		{JmpCmpNot(Reg(0), -3), "jmpcmpnot r0, -3"},
		{Jmp(2), "jmp +2"},
		{Call(1, Range{0, 2}), "call @1 (0..2)"},
		{Stop(), "stop"},
	}
	for _, tc := range cases {
		if got := tc.stmt.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestOpTable(t *testing.T) {
	ops := Ops()
	if len(ops) != 39 {
		t.Errorf("op count = %d, want 39", len(ops))
	}
	for _, op := range ops {
		info := op.Info()
		if strings.HasPrefix(info.Name, "unknown") {
			t.Errorf("op %#02x has no name", uint8(op))
		}
		switch info.Class {
		case ClassMove, ClassUnary, ClassBinary, ClassCompare:
			if info.Width != 8 && info.Width != 16 {
				t.Errorf("%s width = %d", op, info.Width)
			}
		}
	}
	for _, op := range []Op{OpEq, OpNotEq, OpGreater, OpGreaterEq, OpLess, OpLessEq} {
		if op.Width() != 8 {
			t.Errorf("%s width = %d, comparisons are 8-bit only", op, op.Width())
		}
	}
	if Op(0xEE).Valid() {
		t.Error("0xEE should not be valid")
	}
}

func TestParseByteOrder(t *testing.T) {
	for in, want := range map[string]ByteOrder{"little": LittleEndian, "LE": LittleEndian, "": LittleEndian, "big": BigEndian, "be": BigEndian} {
		got, err := ParseByteOrder(in)
		if err != nil || got != want {
			t.Errorf("ParseByteOrder(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Error("expected error for unknown order")
	}
}
