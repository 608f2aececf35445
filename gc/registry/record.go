package registry

import "unsafe"

// Finalizer is invoked exactly once with the block's address and size,
// immediately before the block is released.
type Finalizer func(p unsafe.Pointer, size uintptr)

// Index addresses a slot in the record table.
type Index uint32

// None is the empty link.
const None Index = ^Index(0)

// Record describes one tracked allocation.
type Record struct {
	Addr      uintptr   // Start of the block
	Size      uintptr   // Requested length of the block
	Finalizer Finalizer // Optional cleanup, may be nil
	Alive     bool      // Mark bit, meaningful only during a collection

	prev, next Index
	used       bool // Slot is occupied
	linked     bool // Record is on the list
}

// End returns one past the last byte of the block.
func (r *Record) End() uintptr {
	return r.Addr + r.Size
}

// Contains reports whether cand lies in [Addr, Addr+Size]. The upper bound
// is inclusive: a one-past-the-end address counts as pointing into the block.
func (r *Record) Contains(cand uintptr) bool {
	return cand >= r.Addr && cand <= r.Addr+r.Size
}

// Linked reports whether the record is on the registry list.
func (r *Record) Linked() bool {
	return r.linked
}
