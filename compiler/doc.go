// Package compiler holds the allocators a lowering pass uses to turn a
// name-resolved syntax tree into IR: virtual registers, symbol offsets in the
// four allocation spaces, and the function table used to resolve calls.
package compiler
