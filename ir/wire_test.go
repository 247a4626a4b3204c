package ir

import (
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func sampleProgram(t *testing.T) *Program {
	t.Helper()
	b := NewBuilder(BigEndian)
	b.ConstU16(0xBEEF)
	callee := b.Routine("callee")
	callee.Emit(
		LdW(Ptr(Stack, 0), ToPtr(Return, 0)),
		Ret(),
	)
	main := b.Routine("main")
	main.Emit(LdW(Ptr(Const, 0), ToPtrIndex(Stack, 0, Lit(0))))
	main.Call(callee, Range{0, 2})
	main.Emit(Stop())
	b.SetMain(main)
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestMarshalRoundTrip(t *testing.T) {
	p := sampleProgram(t)
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Disassemble() != p.Disassemble() {
		t.Errorf("round trip changed listing:\n%s\nwant:\n%s", got.Disassemble(), p.Disassemble())
	}
	idx := got.Routines[1].Statements[0].Dst.Index
	if idx == nil || idx.Kind != SourceLiteral {
		t.Errorf("index operand lost in round trip: %+v", got.Routines[1].Statements[0].Dst)
	}
	if got.Order != BigEndian || got.Handlers.Main != 1 {
		t.Errorf("header = %s/%d", got.Order, got.Handlers.Main)
	}
}

func TestUnmarshalRejectsForeignData(t *testing.T) {
	foreign, _ := cbor.Marshal(map[int]any{1: "NOPE", 2: 1})
	if _, err := Unmarshal(foreign); err == nil || !strings.Contains(err.Error(), "not a program file") {
		t.Errorf("foreign magic: err = %v", err)
	}

	stale, _ := cborEncMode.Marshal(envelope{Magic: formatMagic, Version: FormatVersion + 1, Program: &Program{}})
	if _, err := Unmarshal(stale); err == nil || !strings.Contains(err.Error(), "unsupported format version") {
		t.Errorf("stale version: err = %v", err)
	}

	odd, _ := cborEncMode.Marshal(envelope{Magic: formatMagic, Version: FormatVersion, Program: &Program{Order: ByteOrder(2)}})
	if _, err := Unmarshal(odd); err == nil || !strings.Contains(err.Error(), "unknown byte order(2)") {
		t.Errorf("unknown order: err = %v", err)
	}

	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Error("garbage: expected error")
	}
}

func TestHashIsDeterministic(t *testing.T) {
	a, err := Hash(sampleProgram(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Hash(sampleProgram(t))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("equal programs hashed differently")
	}

	p := sampleProgram(t)
	p.Routines[1].Statements[0].Left.Ptr.Addr = 1
	c, err := Hash(p)
	if err != nil {
		t.Fatal(err)
	}
	if a == c {
		t.Error("different programs hashed equal")
	}
}
