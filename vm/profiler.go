package vm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chazu/spacevm/ir"
)

// ---------------------------------------------------------------------------
// Profiler: cycle counts per routine and per op
// ---------------------------------------------------------------------------

// Profiler counts fetched statements. Register it with WithTracer.
type Profiler struct {
	total    uint64
	routines map[int]uint64
	ops      map[ir.Op]uint64
	calls    map[int]uint64
	deepest  int
}

// NewProfiler creates an empty profiler.
func NewProfiler() *Profiler {
	p := &Profiler{}
	p.Reset()
	return p
}

// Reset clears all counters.
func (p *Profiler) Reset() {
	p.total = 0
	p.routines = make(map[int]uint64)
	p.ops = make(map[ir.Op]uint64)
	p.calls = make(map[int]uint64)
	p.deepest = 0
}

// Trace records one statement.
func (p *Profiler) Trace(ev StepEvent) {
	p.total++
	p.routines[ev.Routine]++
	p.ops[ev.Stmt.Op]++
	if ev.Stmt.Op == ir.OpCall {
		p.calls[ev.Stmt.Routine]++
		if ev.Depth+1 > p.deepest {
			p.deepest = ev.Depth + 1
		}
	}
}

// ProfilerStats summarizes a profile.
type ProfilerStats struct {
	TotalCycles uint64 // statements fetched
	Routines    int    // distinct routines that executed
	Ops         int    // distinct ops that executed
	Calls       uint64 // Call statements fetched
	MaxDepth    int    // deepest call nesting reached
}

// Stats returns aggregate statistics.
func (p *Profiler) Stats() ProfilerStats {
	var calls uint64
	for _, n := range p.calls {
		calls += n
	}
	return ProfilerStats{
		TotalCycles: p.total,
		Routines:    len(p.routines),
		Ops:         len(p.ops),
		Calls:       calls,
		MaxDepth:    p.deepest,
	}
}

// RoutineCycles returns the statements fetched in routine.
func (p *Profiler) RoutineCycles(routine int) uint64 {
	return p.routines[routine]
}

// OpCount returns how many times op was fetched.
func (p *Profiler) OpCount(op ir.Op) uint64 {
	return p.ops[op]
}

// CallCount returns how many times routine was called.
func (p *Profiler) CallCount(routine int) uint64 {
	return p.calls[routine]
}

// ProfileEntry is one row of a sorted profile.
type ProfileEntry struct {
	Name  string
	Count uint64
}

// TopRoutines returns up to n routines by cycles, most expensive first.
// Names come from prog when given.
func (p *Profiler) TopRoutines(prog *ir.Program, n int) []ProfileEntry {
	entries := make([]ProfileEntry, 0, len(p.routines))
	for r, c := range p.routines {
		name := fmt.Sprintf("@%d", r)
		if prog != nil && r >= 0 && r < len(prog.Routines) {
			name = prog.Routines[r].Name
		}
		entries = append(entries, ProfileEntry{name, c})
	}
	return top(entries, n)
}

// TopOps returns up to n ops by count, most frequent first.
func (p *Profiler) TopOps(n int) []ProfileEntry {
	entries := make([]ProfileEntry, 0, len(p.ops))
	for op, c := range p.ops {
		entries = append(entries, ProfileEntry{op.String(), c})
	}
	return top(entries, n)
}

func top(entries []ProfileEntry, n int) []ProfileEntry {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

// Report renders the full profile as text.
func (p *Profiler) Report(prog *ir.Program) string {
	var sb strings.Builder
	stats := p.Stats()
	fmt.Fprintf(&sb, "cycles: %d  calls: %d  max depth: %d\n", stats.TotalCycles, stats.Calls, stats.MaxDepth)
	sb.WriteString("routines:\n")
	for _, e := range p.TopRoutines(prog, -1) {
		fmt.Fprintf(&sb, "  %-16s %8d %5.1f%%\n", e.Name, e.Count, p.percent(e.Count))
	}
	sb.WriteString("ops:\n")
	for _, e := range p.TopOps(-1) {
		fmt.Fprintf(&sb, "  %-16s %8d %5.1f%%\n", e.Name, e.Count, p.percent(e.Count))
	}
	return sb.String()
}

func (p *Profiler) percent(n uint64) float64 {
	if p.total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(p.total)
}
