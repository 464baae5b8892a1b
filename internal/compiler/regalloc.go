package compiler

import "fmt"

// Register is a virtual machine register index.
type Register uint8

// MaxRegisters is the size of the register file addressable by one byte.
const MaxRegisters = 256

// RegisterAllocator hands out registers in stack order. Live registers always
// form a contiguous prefix [0, next); Free must release the most recently
// allocated register.
type RegisterAllocator struct {
	next int
	high int
}

func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{}
}

// Alloc returns the next free register, or ErrTooManyRegisters when the
// register file is full.
func (ra *RegisterAllocator) Alloc() (Register, error) {
	if ra.next >= MaxRegisters {
		return 0, ErrTooManyRegisters
	}
	reg := Register(ra.next)
	ra.next++
	if ra.next > ra.high {
		ra.high = ra.next
	}
	return reg, nil
}

// Free releases reg, which must be the top of the stack.
func (ra *RegisterAllocator) Free(reg Register) {
	if ra.next == 0 || int(reg) != ra.next-1 {
		panic(fmt.Sprintf("regalloc: free of r%d out of order (top is r%d)", reg, ra.next-1))
	}
	ra.next--
}

// Live returns the number of registers currently allocated.
func (ra *RegisterAllocator) Live() int {
	return ra.next
}

// HighWater returns the largest number of registers ever live at once.
func (ra *RegisterAllocator) HighWater() int {
	return ra.high
}
