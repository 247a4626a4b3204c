package compiler

import (
	"fmt"
	"math/bits"
)

// RegisterCount is the number of virtual registers in one bank.
const RegisterCount = 64

// RegisterAlloc hands out virtual registers from a 64-slot bank. Bit i of the
// mask is set while register i is in use. One allocator serves one bank; the
// lowering pass keeps separate allocators for 8-bit and 16-bit registers.
//
// Misuse (exhausting the bank, freeing a free register) is a bug in the
// caller and panics.
type RegisterAlloc struct {
	bitset uint64
}

// Len returns the number of allocated registers.
func (r *RegisterAlloc) Len() int {
	return bits.OnesCount64(r.bitset)
}

// Alloc reserves and returns the lowest free register.
func (r *RegisterAlloc) Alloc() int {
	free := ^r.bitset
	if free == 0 {
		panic(fmt.Sprintf("register bank exhausted (%d in use)", RegisterCount))
	}
	index := bits.TrailingZeros64(free)
	r.bitset |= 1 << uint(index)
	return index
}

// Free releases a register previously returned by Alloc.
func (r *RegisterAlloc) Free(index int) {
	if !r.InUse(index) {
		panic(fmt.Sprintf("free of unallocated register %d", index))
	}
	r.bitset &^= 1 << uint(index)
}

// InUse reports whether register index is allocated.
func (r *RegisterAlloc) InUse(index int) bool {
	if index < 0 || index >= RegisterCount {
		return false
	}
	return r.bitset&(1<<uint(index)) != 0
}
