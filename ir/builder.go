package ir

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Builder: helper for assembling programs
// ---------------------------------------------------------------------------

// Builder assembles a Program routine by routine. Routine indices are fixed
// when the routine is created, so calls can reference routines that have not
// been filled in yet.
type Builder struct {
	order    ByteOrder
	routines []*RoutineBuilder
	rom      []byte
	main     int
}

// NewBuilder creates a builder whose constant pool uses the given byte order.
func NewBuilder(order ByteOrder) *Builder {
	return &Builder{order: order}
}

// Routine appends a new empty routine. The first routine is the entry
// routine unless SetMain says otherwise.
func (b *Builder) Routine(name string) *RoutineBuilder {
	rb := &RoutineBuilder{
		name:   name,
		index:  len(b.routines),
		labels: make(map[string]int),
	}
	b.routines = append(b.routines, rb)
	return rb
}

// SetMain selects the entry routine.
func (b *Builder) SetMain(rb *RoutineBuilder) {
	b.main = rb.index
}

// Const appends bytes to the constant pool and returns their offset.
func (b *Builder) Const(data ...byte) uint16 {
	off := uint16(len(b.rom))
	b.rom = append(b.rom, data...)
	return off
}

// ConstU16 appends a 16-bit value encoded with the builder's byte order.
func (b *Builder) ConstU16(v uint16) uint16 {
	var buf [2]byte
	b.order.Codec().PutUint16(buf[:], v)
	return b.Const(buf[:]...)
}

// SetROM replaces the constant pool, typically with the image produced by
// the symbol allocator.
func (b *Builder) SetROM(rom []byte) {
	b.rom = append([]byte(nil), rom...)
}

// Build resolves labels and returns the finished program.
func (b *Builder) Build() (*Program, error) {
	if len(b.rom) > 0x10000 {
		return nil, fmt.Errorf("constant pool is %d bytes, limit is 65536", len(b.rom))
	}
	p := &Program{
		Routines: make([]Routine, len(b.routines)),
		Const:    append([]byte(nil), b.rom...),
		Handlers: Handlers{Main: b.main},
		Order:    b.order,
	}
	var errs []error
	for i, rb := range b.routines {
		stmts, err := rb.resolve()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Routines[i] = Routine{Name: rb.name, Statements: stmts}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// RoutineBuilder
// ---------------------------------------------------------------------------

// RoutineBuilder collects the statements of one routine.
type RoutineBuilder struct {
	name   string
	index  int
	stmts  []Statement
	labels map[string]int
	refs   []labelRef
	errs   []error
}

type labelRef struct {
	label string
	pc    int
}

// Index returns the routine's index in the program.
func (r *RoutineBuilder) Index() int {
	return r.index
}

// Name returns the routine name.
func (r *RoutineBuilder) Name() string {
	return r.name
}

// Len returns the number of statements emitted so far.
func (r *RoutineBuilder) Len() int {
	return len(r.stmts)
}

// Emit appends statements.
func (r *RoutineBuilder) Emit(stmts ...Statement) *RoutineBuilder {
	r.stmts = append(r.stmts, stmts...)
	return r
}

// Label marks the position of the next emitted statement.
func (r *RoutineBuilder) Label(name string) *RoutineBuilder {
	if _, dup := r.labels[name]; dup {
		r.errs = append(r.errs, fmt.Errorf("%s: label %q defined twice", r.name, name))
		return r
	}
	r.labels[name] = len(r.stmts)
	return r
}

// Jmp emits an unconditional jump to label.
func (r *RoutineBuilder) Jmp(label string) *RoutineBuilder {
	return r.jump(Jmp(0), label)
}

// JmpCmp emits a jump to label taken when src is nonzero.
func (r *RoutineBuilder) JmpCmp(src Source, label string) *RoutineBuilder {
	return r.jump(JmpCmp(src, 0), label)
}

// JmpCmpNot emits a jump to label taken when src is zero.
func (r *RoutineBuilder) JmpCmpNot(src Source, label string) *RoutineBuilder {
	return r.jump(JmpCmpNot(src, 0), label)
}

// Call emits a call to target passing args from the current frame.
func (r *RoutineBuilder) Call(target *RoutineBuilder, args Range) *RoutineBuilder {
	return r.Emit(Call(target.index, args))
}

func (r *RoutineBuilder) jump(s Statement, label string) *RoutineBuilder {
	r.refs = append(r.refs, labelRef{label: label, pc: len(r.stmts)})
	return r.Emit(s)
}

// resolve patches jump offsets. The machine increments the program counter
// after a jump, so a jump at pc to target carries target-pc-1.
func (r *RoutineBuilder) resolve() ([]Statement, error) {
	errs := append([]error(nil), r.errs...)
	stmts := append([]Statement(nil), r.stmts...)
	for _, ref := range r.refs {
		target, ok := r.labels[ref.label]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: undefined label %q", r.name, ref.label))
			continue
		}
		stmts[ref.pc].Rel = target - ref.pc - 1
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return stmts, nil
}
