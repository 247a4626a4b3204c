// Package vm executes ir programs.
//
// The machine owns two durable 64KB arrays (static and return), a stack of
// call frames, parallel stacks of program counters and routine indices, and
// two register banks (8-bit and 16-bit). Nothing is shared between VM
// instances and nothing in the core blocks, so a VM needs no locking as long
// as one goroutine drives it.
//
// Runtime errors never panic. A statement that would write the constant
// pool, divide by zero, leave a space or unwind an empty call stack moves the
// machine to the Faulted state and Step returns a *Fault describing it. The
// host decides what to do next; the machine never resumes on its own.
//
// Debugger, Profiler and Inspector observe a VM from the host side. They
// drive or watch Step and never change program semantics.
package vm
