package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/spacevm/ir"
)

// Inspector provides read-only views of a VM for hosts and debuggers.
type Inspector struct {
	vm *VM
}

// NewInspector creates an Inspector attached to the given VM.
func NewInspector(vm *VM) *Inspector {
	return &Inspector{vm: vm}
}

// Snapshot is a point-in-time summary of machine state.
type Snapshot struct {
	State       State
	Cycles      uint64
	Routine     int
	RoutineName string
	PC          int
	Depth       int
	Next        string         // disassembly of the next statement, if any
	Reg8        map[int]uint8  // nonzero 8-bit registers
	Reg16       map[int]uint16 // nonzero 16-bit registers
	CallStack   []Location     // outermost first, innermost last
	Fault       *Fault
}

// Snapshot captures the current state.
func (i *Inspector) Snapshot() Snapshot {
	vm := i.vm
	s := Snapshot{
		State:   vm.state,
		Cycles:  vm.cycles,
		Routine: vm.Routine(),
		PC:      vm.PC(),
		Depth:   vm.Depth(),
		Reg8:    make(map[int]uint8),
		Reg16:   make(map[int]uint16),
		Fault:   vm.fault,
	}
	if r := s.Routine; r >= 0 && r < len(vm.prog.Routines) {
		s.RoutineName = vm.prog.Routines[r].Name
	}
	if stmt, ok := vm.Next(); ok {
		s.Next = stmt.String()
	}
	for r := 0; r < RegisterCount; r++ {
		if v, _ := vm.r8.Get(r); v != 0 {
			s.Reg8[r] = v
		}
		if v, _ := vm.r16.Get(r); v != 0 {
			s.Reg16[r] = v
		}
	}
	for level, pc := range vm.pcs {
		routine := vm.prog.Handlers.Main
		if level > 0 {
			routine = vm.routines[level-1]
		}
		s.CallStack = append(s.CallStack, Location{routine, pc})
	}
	return s
}

func (s Snapshot) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s cycles=%d depth=%d at @%d %s:%04x", s.State, s.Cycles, s.Depth, s.Routine, s.RoutineName, s.PC)
	if s.Next != "" {
		fmt.Fprintf(&sb, " | %s", s.Next)
	}
	if s.Fault != nil {
		fmt.Fprintf(&sb, "\nfault: %s", s.Fault)
	}
	return sb.String()
}

// bytesOf returns the backing bytes of space. Stack is the innermost frame.
func (i *Inspector) bytesOf(space ir.Space) ([]byte, error) {
	switch space {
	case ir.Absolute, ir.Static:
		return i.vm.mem.Static[:], nil
	case ir.Return:
		return i.vm.mem.Return[:], nil
	case ir.Const:
		return i.vm.prog.Const, nil
	case ir.Stack:
		return i.vm.frame(), nil
	}
	return nil, fmt.Errorf("unknown space %s", space)
}

// Peek returns a copy of n bytes of space starting at start.
func (i *Inspector) Peek(space ir.Space, start, n int) ([]byte, error) {
	mem, err := i.bytesOf(space)
	if err != nil {
		return nil, err
	}
	if start < 0 || n < 0 || start+n > len(mem) {
		return nil, fmt.Errorf("%s[%#x:+%d] outside %d bytes", space, start, n, len(mem))
	}
	return append([]byte(nil), mem[start:start+n]...), nil
}

// HexDump renders n bytes of space from start, 16 per line, each line
// prefixed by its address within the space.
func (i *Inspector) HexDump(space ir.Space, start, n int) (string, error) {
	data, err := i.Peek(space, start, n)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&sb, "%s %04x:", space, start+off)
		for _, b := range data[off:end] {
			fmt.Fprintf(&sb, " %02x", b)
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
