package vm

import (
	"strings"
	"testing"

	"github.com/chazu/spacevm/ir"
)

func TestProfilerCountsCountingLoop(t *testing.T) {
	prog, _ := countingLoop(t)
	p := NewProfiler()
	mustRun(t, prog, WithTracer(p))

	stats := p.Stats()
	if stats.TotalCycles != 129 {
		t.Errorf("total cycles = %d, want 129", stats.TotalCycles)
	}
	if p.RoutineCycles(0) != 129 {
		t.Errorf("main cycles = %d, want 129", p.RoutineCycles(0))
	}
	counts := map[ir.Op]uint64{
		ir.OpLd:     2,
		ir.OpInc:    42,
		ir.OpDec:    42,
		ir.OpJmpCmp: 42,
		ir.OpStop:   1,
	}
	for op, want := range counts {
		if got := p.OpCount(op); got != want {
			t.Errorf("%s count = %d, want %d", op, got, want)
		}
	}
	if stats.Ops != len(counts) || stats.Calls != 0 || stats.MaxDepth != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProfilerCallsAndReport(t *testing.T) {
	prog := callProgram()
	p := NewProfiler()
	mustRun(t, prog, WithTracer(p))

	if p.CallCount(1) != 1 {
		t.Errorf("calls to bump = %d, want 1", p.CallCount(1))
	}
	if p.RoutineCycles(0) != 4 || p.RoutineCycles(1) != 3 {
		t.Errorf("cycles main=%d bump=%d, want 4/3", p.RoutineCycles(0), p.RoutineCycles(1))
	}
	if p.Stats().MaxDepth != 1 {
		t.Errorf("max depth = %d, want 1", p.Stats().MaxDepth)
	}

	top := p.TopRoutines(prog, 1)
	if len(top) != 1 || top[0].Name != "main" {
		t.Errorf("top routine = %v, want main", top)
	}
	ops := p.TopOps(1)
	if len(ops) != 1 || ops[0].Name != "ld" || ops[0].Count != 3 {
		t.Errorf("top op = %v, want ld x3", ops)
	}

	report := p.Report(prog)
	for _, want := range []string{"cycles: 7", "main", "bump", "call"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	p.Reset()
	if p.Stats().TotalCycles != 0 || p.OpCount(ir.OpLd) != 0 {
		t.Error("Reset kept counts")
	}
}
