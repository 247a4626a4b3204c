package compiler

import (
	"errors"
	"fmt"
)

// Allocation contract violations. They indicate a bug in the pass that drives
// the allocators (usually name resolution), not a problem in user input.
var (
	ErrDuplicateSymbol    = errors.New("symbol already defined")
	ErrUndefinedSymbol    = errors.New("undefined symbol")
	ErrDuplicateFunction  = errors.New("function already defined")
	ErrUndefinedFunction  = errors.New("undefined function")
	ErrUnknownType        = errors.New("unresolvable type")
	ErrTypeTooLarge       = errors.New("type too large")
	ErrSpaceExhausted     = errors.New("address space exhausted")
	ErrInitializerTooLong = errors.New("initializer longer than field")
)

// AllocError reports which operation failed and on which name or path.
type AllocError struct {
	Op   string // allocator entry point, e.g. "alloc static"
	Name string // offending symbol path or function name
	Err  error
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *AllocError) Unwrap() error {
	return e.Err
}
