package vm

import (
	"errors"
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Debugger: host-driven stepping and breakpoints
// ---------------------------------------------------------------------------

// Location is a statement address: a routine and a pc within it.
type Location struct {
	Routine int
	PC      int
}

func (l Location) String() string {
	return fmt.Sprintf("@%d:%04x", l.Routine, l.PC)
}

// StepMode names how far a debugger command runs.
type StepMode int

const (
	StepNone StepMode = iota
	StepOver
	StepInto
	StepOut
)

// Event types reported by the debugger.
const (
	EventStep       = "step"       // the command completed
	EventBreakpoint = "breakpoint" // the next statement has a breakpoint
	EventStopped    = "stopped"    // the program executed Stop
	EventFault      = "fault"      // the machine faulted
	EventLimit      = "limit"      // the cycle budget ran out
)

// DebugEvent reports why a debugger command returned.
type DebugEvent struct {
	Type     string
	Mode     StepMode
	Location Location // next statement to execute
	Depth    int
	Cycles   uint64
	Fault    *Fault
}

func (e DebugEvent) String() string {
	s := fmt.Sprintf("%s at %s depth=%d cycles=%d", e.Type, e.Location, e.Depth, e.Cycles)
	if e.Fault != nil {
		s += ": " + e.Fault.Error()
	}
	return s
}

// Debugger drives a VM one command at a time. Breakpoints fire before the
// statement at their location executes.
type Debugger struct {
	vm          *VM
	breakpoints map[Location]bool
}

// NewDebugger attaches a debugger to vm.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[Location]bool)}
}

// SetBreakpoint adds a breakpoint.
func (d *Debugger) SetBreakpoint(routine, pc int) {
	d.breakpoints[Location{routine, pc}] = true
}

// ClearBreakpoint removes a breakpoint.
func (d *Debugger) ClearBreakpoint(routine, pc int) {
	delete(d.breakpoints, Location{routine, pc})
}

// ClearAllBreakpoints removes every breakpoint.
func (d *Debugger) ClearAllBreakpoints() {
	d.breakpoints = make(map[Location]bool)
}

// Breakpoints lists breakpoints ordered by routine then pc.
func (d *Debugger) Breakpoints() []Location {
	out := make([]Location, 0, len(d.breakpoints))
	for loc := range d.breakpoints {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Routine != out[j].Routine {
			return out[i].Routine < out[j].Routine
		}
		return out[i].PC < out[j].PC
	})
	return out
}

// Location returns the next statement's location.
func (d *Debugger) Location() Location {
	return Location{d.vm.Routine(), d.vm.PC()}
}

// StepInto executes exactly one statement.
func (d *Debugger) StepInto() DebugEvent {
	if ev, done := d.step(StepInto); done {
		return ev
	}
	return d.event(EventStep, StepInto)
}

// StepOver executes one statement. If it is a Call, execution continues
// until the call returns, unless a breakpoint inside it is reached first.
func (d *Debugger) StepOver() DebugEvent {
	depth := d.vm.Depth()
	if ev, done := d.step(StepOver); done {
		return ev
	}
	return d.runWhile(StepOver, func() bool { return d.vm.Depth() > depth })
}

// StepOut runs until the current call returns. In the entry routine it
// behaves like Continue.
func (d *Debugger) StepOut() DebugEvent {
	depth := d.vm.Depth()
	if ev, done := d.step(StepOut); done {
		return ev
	}
	return d.runWhile(StepOut, func() bool { return depth == 0 || d.vm.Depth() >= depth })
}

// Continue runs until a breakpoint, Stop, a fault or the cycle limit. At
// least one statement executes, so continuing from a breakpoint moves past it.
func (d *Debugger) Continue() DebugEvent {
	if ev, done := d.step(StepNone); done {
		return ev
	}
	return d.runWhile(StepNone, func() bool { return true })
}

// runWhile steps while cond holds and no breakpoint is pending.
func (d *Debugger) runWhile(mode StepMode, cond func() bool) DebugEvent {
	for cond() {
		if d.breakpoints[d.Location()] {
			return d.event(EventBreakpoint, mode)
		}
		if ev, done := d.step(mode); done {
			return ev
		}
	}
	return d.event(EventStep, mode)
}

// step executes one statement and reports whether the command must end.
func (d *Debugger) step(mode StepMode) (DebugEvent, bool) {
	err := d.vm.Step()
	switch {
	case errors.Is(err, ErrCycleLimit):
		return d.event(EventLimit, mode), true
	case d.vm.State() == Faulted:
		return d.event(EventFault, mode), true
	case d.vm.State() == Stopped:
		return d.event(EventStopped, mode), true
	}
	return DebugEvent{}, false
}

func (d *Debugger) event(typ string, mode StepMode) DebugEvent {
	return DebugEvent{
		Type:     typ,
		Mode:     mode,
		Location: d.Location(),
		Depth:    d.vm.Depth(),
		Cycles:   d.vm.Cycles(),
		Fault:    d.vm.Fault(),
	}
}
