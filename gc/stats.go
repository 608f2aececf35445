package gc

import (
	"time"

	"github.com/joshuapare/markgc/gc/heap"
	"github.com/joshuapare/markgc/gc/mark"
	"github.com/joshuapare/markgc/gc/sweep"
)

// CycleStats describes one collection.
type CycleStats struct {
	Cycle     int           // 1-based cycle number
	StackTop  uintptr       // Near end of the root range
	Before    int           // Tracked allocations when the cycle started
	After     int           // Tracked allocations when the cycle ended
	Deferred  int           // Allocations made by finalizers, linked after the sweep
	Mark      mark.Stats    // Mark phase counters
	Sweep     sweep.Stats   // Sweep phase counters
	Duration  time.Duration // Wall time of the whole cycle
	MarkTime  time.Duration // Wall time of the mark phase
	SweepTime time.Duration // Wall time of the sweep phase
}

// Stats holds cumulative collector counters.
type Stats struct {
	Allocations    int     // Successful Allocate calls
	FailedAllocs   int     // Allocate calls that returned an error
	BytesAllocated uintptr // Sum of requested sizes
	Cycles         int     // Completed collections
	Reclaimed      int     // Allocations reclaimed over all cycles
	BytesReclaimed uintptr // Sum of reclaimed sizes
	FinalizersRun  int     // Finalizer invocations
	DeferredAllocs int     // Allocations made from inside finalizers
	Live           int     // Allocations currently tracked
	Heap           heap.Stats
}
