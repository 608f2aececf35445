// Package gc is a conservative mark-and-sweep collector for off-heap memory.
//
// # Overview
//
// Allocate hands out blocks of raw memory that the Go runtime neither scans
// nor moves. Collect reclaims every block that is no longer reachable from
// the mutator's root range, running each reclaimed block's finalizer first.
// No type information is needed: every word-aligned word in the root range
// and in reachable blocks is treated as a possible address.
//
// # Root Range
//
// The root range is [top, bottom). bottom is fixed by Init; top is obtained
// from a stack.Provider each time Collect runs (or passed directly to
// CollectFrom). Go programs normally keep their roots on a
// stack.ShadowStack and use it as the provider:
//
//	ss, _ := stack.NewShadowStack(1024)
//	c, _ := gc.New(&gc.Options{Provider: ss})
//	_ = c.Init(ss.Bottom())
//
//	p, _ := c.Allocate(64, nil)
//	slot, _ := ss.Push(uintptr(p)) // p is now rooted
//	_, _ = c.Collect()             // p survives
//	_ = ss.Set(slot, 0)
//	_, _ = c.Collect()             // p is reclaimed
//
// # Containment
//
// A candidate word c refers to a block [start, start+size) when
// start <= c <= start+size. The upper bound is inclusive: a one-past-the-end
// pointer keeps a block alive, and a word equal to the boundary between two
// adjacent blocks keeps both alive. Such false retention is accepted; a
// reachable block is never reclaimed.
//
// # Finalizers
//
// Finalizers run synchronously during the sweep, once per reclaimed block,
// before its memory is released, in no particular order. Storing the pointer
// somewhere reachable (resurrection) is not supported. A finalizer may call
// Allocate: the new block is tracked immediately but only joins the
// collector's list once the sweep finishes, so the cycle that ran the
// finalizer never reclaims it. Calling Collect from a finalizer fails with
// ErrCollectInProgress.
//
// # Thread Safety
//
// A Collector is not thread-safe. Allocate and Collect must not overlap with
// a running Collect. Independent collectors may be used from different
// goroutines.
package gc
