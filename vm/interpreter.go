package vm

import (
	"fmt"

	"github.com/chazu/spacevm/ir"
)

// ---------------------------------------------------------------------------
// Dispatch
// ---------------------------------------------------------------------------

// execute runs one statement. The returned fault lacks routine, pc and op;
// Step fills them in.
func (vm *VM) execute(s *ir.Statement) *Fault {
	if !s.Op.Valid() {
		return &Fault{Kind: FaultBadOperand, Detail: fmt.Sprintf("unknown op %#02x", uint8(s.Op))}
	}
	w := widthOf(s.Op)

	switch s.Op.Info().Class {
	case ir.ClassControl:
		if s.Op == ir.OpStop {
			vm.state = Stopped
		}
		return nil

	case ir.ClassMove:
		v, f := vm.read(s.Left, w)
		if f != nil {
			return f
		}
		return vm.write(s.Dst, w, v)

	case ir.ClassUnary:
		v, f := vm.read(s.Left, w)
		if f != nil {
			return f
		}
		switch s.Op {
		case ir.OpInc, ir.OpIncW:
			v++
		case ir.OpDec, ir.OpDecW:
			v--
		}
		return vm.write(s.Dst, w, v&w.mask)

	case ir.ClassBinary:
		l, r, f := vm.readPair(s, w)
		if f != nil {
			return f
		}
		v, f := arith(s.Op, l, r, w)
		if f != nil {
			return f
		}
		return vm.write(s.Dst, w, v)

	case ir.ClassCompare:
		l, r, f := vm.readPair(s, w8)
		if f != nil {
			return f
		}
		var v uint16
		if compare(s.Op, l, r) {
			v = 1
		}
		return vm.write(s.Dst, w8, v)

	case ir.ClassJump:
		return vm.jump(s)

	case ir.ClassCall:
		if s.Op == ir.OpCall {
			return vm.call(s)
		}
		return vm.ret()
	}
	return &Fault{Kind: FaultBadOperand, Detail: "unhandled op class"}
}

func (vm *VM) readPair(s *ir.Statement, w width) (uint16, uint16, *Fault) {
	l, f := vm.read(s.Left, w)
	if f != nil {
		return 0, 0, f
	}
	r, f := vm.read(s.Right, w)
	if f != nil {
		return 0, 0, f
	}
	return l, r, nil
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// arith applies a binary op at width w. Add and Sub wrap; Mul and the shifts
// fault when the result does not fit; Div and Rem fault on a zero divisor.
func arith(op ir.Op, l, r uint16, w width) (uint16, *Fault) {
	switch op {
	case ir.OpAdd, ir.OpAddW:
		return (l + r) & w.mask, nil
	case ir.OpSub, ir.OpSubW:
		return (l - r) & w.mask, nil
	case ir.OpAnd, ir.OpAndW:
		return l & r, nil
	case ir.OpOr, ir.OpOrW:
		return l | r, nil
	case ir.OpXor, ir.OpXorW:
		return l ^ r, nil
	case ir.OpMul, ir.OpMulW:
		p := uint32(l) * uint32(r)
		if p > uint32(w.mask) {
			return 0, &Fault{Kind: FaultOverflow, Detail: fmt.Sprintf("%d * %d", l, r)}
		}
		return uint16(p), nil
	case ir.OpDiv, ir.OpDivW:
		if r == 0 {
			return 0, &Fault{Kind: FaultDivideByZero}
		}
		return l / r, nil
	case ir.OpRem, ir.OpRemW:
		if r == 0 {
			return 0, &Fault{Kind: FaultDivideByZero}
		}
		return l % r, nil
	case ir.OpLeftShift, ir.OpLeftShiftW:
		if uint(r) >= w.bits {
			return 0, &Fault{Kind: FaultOverflow, Detail: fmt.Sprintf("shift by %d", r)}
		}
		return (l << r) & w.mask, nil
	case ir.OpRightShift, ir.OpRightShiftW:
		if uint(r) >= w.bits {
			return 0, &Fault{Kind: FaultOverflow, Detail: fmt.Sprintf("shift by %d", r)}
		}
		return l >> r, nil
	}
	return 0, &Fault{Kind: FaultBadOperand, Detail: "not a binary op"}
}

func compare(op ir.Op, l, r uint16) bool {
	switch op {
	case ir.OpEq:
		return l == r
	case ir.OpNotEq:
		return l != r
	case ir.OpGreater:
		return l > r
	case ir.OpGreaterEq:
		return l >= r
	case ir.OpLess:
		return l < r
	case ir.OpLessEq:
		return l <= r
	}
	return false
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// jump adjusts the current pc by Rel. Step's increment follows, so the next
// statement is pc+Rel+1.
func (vm *VM) jump(s *ir.Statement) *Fault {
	take := true
	if s.Op != ir.OpJmp {
		v, f := vm.read(s.Left, w8)
		if f != nil {
			return f
		}
		take = (v != 0) == (s.Op == ir.OpJmpCmp)
	}
	if take {
		vm.pcs[len(vm.pcs)-1] += s.Rel
	}
	return nil
}

// call pushes the routine, a pc of 0 and a zeroed frame whose first bytes
// are copied from Args of the caller's frame.
func (vm *VM) call(s *ir.Statement) *Fault {
	if s.Routine < 0 || s.Routine >= len(vm.prog.Routines) {
		return &Fault{Kind: FaultBadRoutine, Addr: s.Routine}
	}
	if len(vm.routines) >= vm.maxDepth {
		return &Fault{Kind: FaultStackOverflow, Addr: len(vm.routines), Detail: fmt.Sprintf("max depth %d", vm.maxDepth)}
	}
	caller := vm.frame()
	if s.Args.End < s.Args.Start || int(s.Args.End) > len(caller) {
		return &Fault{Kind: FaultFrameOutOfBounds, Space: ir.Stack, Addr: int(s.Args.End), Detail: fmt.Sprintf("argument range %s", s.Args)}
	}
	frame := make(Frame, vm.frameSize)
	copy(frame, caller[s.Args.Start:s.Args.End])

	vm.routines = append(vm.routines, s.Routine)
	vm.pcs = append(vm.pcs, 0)
	vm.frames = append(vm.frames, frame)
	return nil
}

// ret pops the routine, pc and frame of the innermost call. Returning from
// the entry routine is an underflow.
func (vm *VM) ret() *Fault {
	if len(vm.routines) == 0 {
		return &Fault{Kind: FaultStackUnderflow, Detail: "ret outside a call"}
	}
	vm.routines = vm.routines[:len(vm.routines)-1]
	vm.pcs = vm.pcs[:len(vm.pcs)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	return nil
}

// ---------------------------------------------------------------------------
// Operand access
// ---------------------------------------------------------------------------

func (vm *VM) read(src ir.Source, w width) (uint16, *Fault) {
	switch src.Kind {
	case ir.SourceLiteral:
		if src.Lit > w.mask {
			return 0, &Fault{Kind: FaultBadOperand, Detail: fmt.Sprintf("literal %d wider than %d bits", src.Lit, w.bits)}
		}
		return src.Lit, nil
	case ir.SourceRegister:
		return vm.readReg(src.Reg, w)
	case ir.SourcePointer:
		b, f := vm.resolve(src.Ptr, src.Index, w, false)
		if f != nil {
			return 0, f
		}
		return w.load(b, vm.order), nil
	}
	return 0, &Fault{Kind: FaultBadOperand, Detail: fmt.Sprintf("source kind %d", src.Kind)}
}

func (vm *VM) write(dst ir.Destination, w width, v uint16) *Fault {
	switch dst.Kind {
	case ir.DestRegister:
		return vm.writeReg(dst.Reg, w, v)
	case ir.DestPointer:
		b, f := vm.resolve(dst.Ptr, dst.Index, w, true)
		if f != nil {
			return f
		}
		w.store(b, vm.order, v)
		return nil
	}
	return &Fault{Kind: FaultBadOperand, Detail: fmt.Sprintf("destination kind %d", dst.Kind)}
}

func (vm *VM) readReg(i int, w width) (uint16, *Fault) {
	if w.bytes == 1 {
		v, ok := vm.r8.Get(i)
		if !ok {
			return 0, &Fault{Kind: FaultRegisterOutOfBounds, Addr: i}
		}
		return uint16(v), nil
	}
	v, ok := vm.r16.Get(i)
	if !ok {
		return 0, &Fault{Kind: FaultRegisterOutOfBounds, Addr: i}
	}
	return v, nil
}

func (vm *VM) writeReg(i int, w width, v uint16) *Fault {
	var ok bool
	if w.bytes == 1 {
		ok = vm.r8.Set(i, uint8(v))
	} else {
		ok = vm.r16.Set(i, v)
	}
	if !ok {
		return &Fault{Kind: FaultRegisterOutOfBounds, Addr: i}
	}
	return nil
}

// resolve returns the w.bytes bytes a pointer expression designates. The
// effective address is the base plus the 8-bit index, when present.
func (vm *VM) resolve(p ir.Pointer, index *ir.Source, w width, write bool) ([]byte, *Fault) {
	addr := int(p.Addr)
	if index != nil {
		i, f := vm.read(*index, w8)
		if f != nil {
			return nil, f
		}
		addr += int(i)
	}

	var mem []byte
	kind := FaultAddressOutOfBounds
	switch p.Space {
	case ir.Absolute, ir.Static:
		mem = vm.mem.Static[:]
	case ir.Return:
		mem = vm.mem.Return[:]
	case ir.Const:
		if write {
			return nil, &Fault{Kind: FaultWriteConst, Space: p.Space, Addr: addr}
		}
		mem = vm.prog.Const
	case ir.Stack:
		mem = vm.frame()
		kind = FaultFrameOutOfBounds
	default:
		return nil, &Fault{Kind: FaultBadOperand, Space: p.Space, Addr: addr, Detail: "unknown space"}
	}
	if addr+w.bytes > len(mem) {
		return nil, &Fault{Kind: kind, Space: p.Space, Addr: addr}
	}
	return mem[addr : addr+w.bytes], nil
}
