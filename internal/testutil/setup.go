// Package testutil builds collectors wired to a shadow stack for tests.
package testutil

import (
	"testing"
	"unsafe"

	"github.com/joshuapare/markgc/gc"
	"github.com/joshuapare/markgc/gc/stack"
)

// DefaultStackWords is the shadow stack depth used by SetupCollector.
const DefaultStackWords = 4096

// SetupCollector creates an initialized collector whose root range is a
// fresh shadow stack. Both are closed when the test ends.
//
// Example:
//
//	c, ss := testutil.SetupCollector(t, nil)
//	p := testutil.MustAllocate(t, c, 64, nil)
//	testutil.Root(t, ss, p)
func SetupCollector(t testing.TB, opts *gc.Options) (*gc.Collector, *stack.ShadowStack) {
	t.Helper()

	ss, err := stack.NewShadowStack(DefaultStackWords)
	if err != nil {
		t.Fatalf("Failed to create shadow stack: %v", err)
	}

	var o gc.Options
	if opts != nil {
		o = *opts
	}
	if o.Provider == nil {
		o.Provider = ss
	}

	c, err := gc.New(&o)
	if err != nil {
		_ = ss.Close()
		t.Fatalf("Failed to create collector: %v", err)
	}
	if err := c.Init(ss.Bottom()); err != nil {
		_ = ss.Close()
		t.Fatalf("Failed to init collector: %v", err)
	}

	t.Cleanup(func() {
		_ = c.Close()
		_ = ss.Close()
	})
	return c, ss
}

// MustAllocate allocates or fails the test.
func MustAllocate(t testing.TB, c *gc.Collector, size uintptr, fin gc.Finalizer) unsafe.Pointer {
	t.Helper()
	p, err := c.Allocate(size, fin)
	if err != nil {
		t.Fatalf("Allocate(%d): %v", size, err)
	}
	return p
}

// Root pushes p onto the shadow stack and returns its slot.
func Root(t testing.TB, ss *stack.ShadowStack, p unsafe.Pointer) stack.Slot {
	t.Helper()
	slot, err := ss.Push(uintptr(p))
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	return slot
}

// FinalizerCounter counts finalizer calls per block address.
type FinalizerCounter struct {
	Calls map[uintptr]int
	Sizes map[uintptr]uintptr
}

// NewFinalizerCounter returns an empty counter.
func NewFinalizerCounter() *FinalizerCounter {
	return &FinalizerCounter{Calls: make(map[uintptr]int), Sizes: make(map[uintptr]uintptr)}
}

// Finalizer returns a finalizer that records into the counter.
func (f *FinalizerCounter) Finalizer() gc.Finalizer {
	return func(p unsafe.Pointer, size uintptr) {
		f.Calls[uintptr(p)]++
		f.Sizes[uintptr(p)] = size
	}
}

// Count returns how many times the finalizer ran for p.
func (f *FinalizerCounter) Count(p unsafe.Pointer) int {
	return f.Calls[uintptr(p)]
}
