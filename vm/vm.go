package vm

import (
	"context"
	"encoding/binary"

	"github.com/chazu/spacevm/ir"
)

// ---------------------------------------------------------------------------
// VM: the machine
// ---------------------------------------------------------------------------

// DefaultMaxDepth bounds nested calls unless WithMaxDepth overrides it.
const DefaultMaxDepth = 256

// ctxCheckInterval is how many cycles RunContext executes between checks of
// its context.
const ctxCheckInterval = 256

// VM executes one program. It is not safe for concurrent use.
type VM struct {
	prog  *ir.Program
	order binary.ByteOrder

	mem      *Memory
	frames   []Frame
	pcs      []int
	routines []int // empty while the entry routine runs
	r8       Registers[uint8]
	r16      Registers[uint16]

	state  State
	fault  *Fault
	cycles uint64

	frameSize int
	maxDepth  int
	maxCycles uint64
	tracers   []Tracer
}

// StepEvent describes one fetched statement. It is delivered to tracers
// before the statement executes.
type StepEvent struct {
	Cycle   uint64 // 1-based cycle number
	Routine int
	PC      int
	Depth   int
	Stmt    ir.Statement
}

// Tracer observes every fetched statement.
type Tracer interface {
	Trace(ev StepEvent)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(StepEvent)

func (f TracerFunc) Trace(ev StepEvent) { f(ev) }

// Option configures a VM.
type Option func(*VM)

// WithFrameSize sets the byte size of each call frame.
func WithFrameSize(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.frameSize = n
		}
	}
}

// WithMaxDepth sets the number of nested calls allowed before a Call faults
// with FaultStackOverflow.
func WithMaxDepth(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxDepth = n
		}
	}
}

// WithMaxCycles makes Step return ErrCycleLimit once n statements have been
// fetched. Zero means no limit.
func WithMaxCycles(n uint64) Option {
	return func(vm *VM) { vm.maxCycles = n }
}

// WithTracer registers a tracer. It may be given more than once.
func WithTracer(t Tracer) Option {
	return func(vm *VM) {
		if t != nil {
			vm.tracers = append(vm.tracers, t)
		}
	}
}

// New creates a machine ready to execute prog's entry routine. The program
// is not validated; malformed statements fault when they are reached.
func New(prog *ir.Program, opts ...Option) *VM {
	if prog == nil {
		prog = &ir.Program{}
	}
	vm := &VM{
		prog:      prog,
		order:     prog.Order.Codec(),
		frameSize: DefaultFrameSize,
		maxDepth:  DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.Reset()
	return vm
}

// Reset returns the machine to its initial state: Running, pc 0 in the entry
// routine, one zeroed frame, zeroed memory and registers, no cycles.
func (vm *VM) Reset() {
	vm.mem = new(Memory)
	vm.frames = []Frame{make(Frame, vm.frameSize)}
	vm.pcs = []int{0}
	vm.routines = nil
	vm.r8 = Registers[uint8]{}
	vm.r16 = Registers[uint16]{}
	vm.state = Running
	vm.fault = nil
	vm.cycles = 0
}

// SetMaxCycles changes the cycle budget. Zero removes it.
func (vm *VM) SetMaxCycles(n uint64) {
	vm.maxCycles = n
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Step fetches and executes one statement.
//
// A stopped machine returns nil and a faulted one returns its fault; neither
// executes anything. After a statement executes, the pc slot of the call
// level that fetched it is incremented if that level still exists. A callee
// therefore starts at statement 0, and after Ret the caller continues with
// the statement following its Call.
func (vm *VM) Step() error {
	switch vm.state {
	case Stopped:
		return nil
	case Faulted:
		return vm.fault
	}
	if vm.maxCycles > 0 && vm.cycles >= vm.maxCycles {
		return ErrCycleLimit
	}

	routine := vm.Routine()
	slot := len(vm.pcs) - 1
	pc := vm.pcs[slot]
	if routine < 0 || routine >= len(vm.prog.Routines) {
		return vm.raise(&Fault{Kind: FaultBadRoutine, Addr: routine}, routine, pc, ir.OpNop)
	}
	stmts := vm.prog.Routines[routine].Statements
	if pc < 0 || pc >= len(stmts) {
		return vm.raise(&Fault{Kind: FaultPCOutOfRange, Addr: pc}, routine, pc, ir.OpNop)
	}
	stmt := &stmts[pc]

	vm.cycles++
	if len(vm.tracers) > 0 {
		ev := StepEvent{Cycle: vm.cycles, Routine: routine, PC: pc, Depth: len(vm.routines), Stmt: *stmt}
		for _, t := range vm.tracers {
			t.Trace(ev)
		}
	}

	if f := vm.execute(stmt); f != nil {
		return vm.raise(f, routine, pc, stmt.Op)
	}
	if slot < len(vm.pcs) {
		vm.pcs[slot]++
	}
	return nil
}

// raise records f as the terminal fault.
func (vm *VM) raise(f *Fault, routine, pc int, op ir.Op) error {
	f.Routine = routine
	f.PC = pc
	f.Op = op
	vm.state = Faulted
	vm.fault = f
	return f
}

// Run steps until the machine stops or faults and returns its memory. The
// error is the fault, ErrCycleLimit, or nil after Stop.
func (vm *VM) Run() (*Memory, error) {
	return vm.RunContext(context.Background())
}

// RunContext is Run with cancellation. The context is polled between
// statements, never in the middle of one.
func (vm *VM) RunContext(ctx context.Context) (*Memory, error) {
	done := ctx.Done()
	for vm.state == Running {
		if done != nil && vm.cycles%ctxCheckInterval == 0 {
			select {
			case <-done:
				return vm.mem, ctx.Err()
			default:
			}
		}
		if err := vm.Step(); err != nil {
			return vm.mem, err
		}
	}
	if vm.state == Faulted {
		return vm.mem, vm.fault
	}
	return vm.mem, nil
}

// ---------------------------------------------------------------------------
// Host views
// ---------------------------------------------------------------------------

// Program returns the program being executed.
func (vm *VM) Program() *ir.Program { return vm.prog }

// State returns the run state.
func (vm *VM) State() State { return vm.state }

// Fault returns the terminal fault, or nil unless the state is Faulted.
func (vm *VM) Fault() *Fault { return vm.fault }

// Cycles returns the number of statements fetched so far.
func (vm *VM) Cycles() uint64 { return vm.cycles }

// PC returns the program counter of the innermost call level.
func (vm *VM) PC() int { return vm.pcs[len(vm.pcs)-1] }

// Routine returns the index of the routine that will execute next.
func (vm *VM) Routine() int {
	if len(vm.routines) == 0 {
		return vm.prog.Handlers.Main
	}
	return vm.routines[len(vm.routines)-1]
}

// Depth returns the number of active calls. It is 0 while the entry routine
// runs.
func (vm *VM) Depth() int { return len(vm.routines) }

// Memory returns the durable memory. Hosts should treat it as read only
// while the machine is Running.
func (vm *VM) Memory() *Memory { return vm.mem }

// Frame returns a copy of the innermost call frame.
func (vm *VM) Frame() Frame {
	return append(Frame(nil), vm.frame()...)
}

// Reg8 returns 8-bit register i.
func (vm *VM) Reg8(i int) (uint8, bool) { return vm.r8.Get(i) }

// Reg16 returns 16-bit register i.
func (vm *VM) Reg16(i int) (uint16, bool) { return vm.r16.Get(i) }

// Next returns the statement the next Step would execute.
func (vm *VM) Next() (ir.Statement, bool) {
	r := vm.Routine()
	if r < 0 || r >= len(vm.prog.Routines) {
		return ir.Statement{}, false
	}
	stmts := vm.prog.Routines[r].Statements
	pc := vm.PC()
	if pc < 0 || pc >= len(stmts) {
		return ir.Statement{}, false
	}
	return stmts[pc], true
}

func (vm *VM) frame() Frame {
	return vm.frames[len(vm.frames)-1]
}
