package gc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/joshuapare/markgc/gc/heap"
	"github.com/joshuapare/markgc/gc/mark"
	"github.com/joshuapare/markgc/gc/registry"
	"github.com/joshuapare/markgc/gc/stack"
	"github.com/joshuapare/markgc/gc/sweep"
	"github.com/joshuapare/markgc/internal/logger"
	"github.com/joshuapare/markgc/internal/scan"
)

// Runtime debug flag for allocation logging - controlled by MARKGC_LOG_ALLOC env var.
var logAlloc = os.Getenv("MARKGC_LOG_ALLOC") != ""

// Finalizer is called with a block's address and size right before the
// block is released.
type Finalizer = registry.Finalizer

// Collector owns a heap, the registry of its allocations and the root range
// bottom. Create one with New, then call Init once.
type Collector struct {
	heap     *heap.Heap
	reg      *registry.Registry
	provider stack.Provider
	log      *slog.Logger

	initialized bool
	closed      bool
	collecting  bool

	// Records reserved by Allocate during a sweep, linked when it ends.
	pending []registry.Index

	stats Stats
	last  CycleStats
}

// New creates a collector. It does not map any memory until the first Allocate.
func New(opts *Options) (*Collector, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.MaxRecords < 0 {
		return nil, fmt.Errorf("gc: negative MaxRecords %d", o.MaxRecords)
	}
	return &Collector{
		heap:     heap.New(o.Heap),
		reg:      registry.New(o.MaxRecords),
		provider: o.Provider,
		log:      o.Logger,
	}, nil
}

func (c *Collector) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return logger.L
}

// Init records the far end of the root range and empties the registry.
// It must be called exactly once, before any Allocate or Collect.
func (c *Collector) Init(stackBottom uintptr) error {
	if c.closed {
		return ErrClosed
	}
	if c.initialized {
		return ErrAlreadyInitialized
	}
	c.reg.Init(stackBottom)
	c.initialized = true
	c.logger().Debug("gc init", "stack_bottom", fmt.Sprintf("%#x", stackBottom))
	return nil
}

func (c *Collector) ready() error {
	switch {
	case c.closed:
		return ErrClosed
	case !c.initialized:
		return ErrNotInitialized
	}
	return nil
}

// Allocate returns a zeroed block of size bytes tracked by the collector.
// fin, if non-nil, runs once right before the block is reclaimed.
//
// If storage cannot be obtained the error wraps heap.ErrNoMemory. If the
// record table is full the storage is released again and the error wraps
// registry.ErrTableFull. Allocate never starts a collection.
func (c *Collector) Allocate(size uintptr, fin Finalizer) (unsafe.Pointer, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	addr, err := c.heap.Acquire(size)
	if err != nil {
		c.stats.FailedAllocs++
		return nil, fmt.Errorf("gc: allocate %d bytes: %w", size, err)
	}

	rec := registry.Record{Addr: addr, Size: size, Finalizer: fin, Alive: true}
	var idx registry.Index
	if c.collecting {
		idx, err = c.reg.Reserve(rec)
	} else {
		idx, err = c.reg.Insert(rec)
	}
	if err != nil {
		// Give the storage back so a failed Allocate leaks nothing.
		if relErr := c.heap.Release(addr); relErr != nil {
			err = errors.Join(err, relErr)
		}
		c.stats.FailedAllocs++
		return nil, fmt.Errorf("gc: allocate %d bytes: %w", size, err)
	}
	if c.collecting {
		c.pending = append(c.pending, idx)
		c.stats.DeferredAllocs++
	}

	c.stats.Allocations++
	c.stats.BytesAllocated += size
	if logAlloc {
		c.logger().Debug("gc allocate",
			"size", size,
			"addr", fmt.Sprintf("%#x", addr),
			"index", idx,
			"deferred", c.collecting)
	}
	return scan.Pointer(addr), nil
}

// Collect runs one collection using the configured stack provider for the
// near end of the root range.
func (c *Collector) Collect() (CycleStats, error) {
	if err := c.ready(); err != nil {
		return CycleStats{}, err
	}
	if c.provider == nil {
		return CycleStats{}, ErrNoProvider
	}
	if c.collecting {
		return CycleStats{}, ErrCollectInProgress
	}
	return c.CollectFrom(c.provider.StackTop())
}

// CollectFrom runs one collection over the root range [stackTop, bottom):
// reset every mark, mark from the roots, then sweep. It returns after both
// phases complete.
func (c *Collector) CollectFrom(stackTop uintptr) (CycleStats, error) {
	if err := c.ready(); err != nil {
		return CycleStats{}, err
	}
	if c.collecting {
		return CycleStats{}, ErrCollectInProgress
	}

	c.collecting = true
	defer func() {
		c.collecting = false
		c.linkPending()
	}()

	cs := CycleStats{
		Cycle:    c.stats.Cycles + 1,
		StackTop: stackTop,
		Before:   c.reg.Len(),
	}
	start := time.Now()

	sweep.Reset(c.reg)
	cs.Mark = mark.Run(c.reg, stackTop, c.reg.StackBottom)
	cs.MarkTime = time.Since(start)

	sweepStart := time.Now()
	ss, err := sweep.Run(c.reg, c.heap)
	cs.Sweep = ss
	cs.SweepTime = time.Since(sweepStart)

	c.stats.Cycles++
	c.stats.Reclaimed += ss.Reclaimed
	c.stats.BytesReclaimed += ss.ReclaimedBytes
	c.stats.FinalizersRun += ss.Finalized

	cs.Deferred = len(c.pending)
	cs.After = c.reg.Len() + len(c.pending)
	cs.Duration = time.Since(start)
	c.last = cs

	c.logger().Debug("gc cycle",
		"cycle", cs.Cycle,
		"before", cs.Before,
		"after", cs.After,
		"marked", cs.Mark.Marked,
		"reclaimed", ss.Reclaimed,
		"reclaimed_bytes", ss.ReclaimedBytes,
		"finalized", ss.Finalized,
		"deferred", cs.Deferred,
		"duration", cs.Duration)

	if err != nil {
		return cs, fmt.Errorf("gc: sweep: %w", err)
	}
	return cs, nil
}

// linkPending puts records reserved during the sweep on the list.
func (c *Collector) linkPending() {
	for _, i := range c.pending {
		if err := c.reg.Link(i); err != nil {
			c.logger().Error("gc link deferred allocation", "index", i, "error", err)
		}
	}
	c.pending = c.pending[:0]
}

// Close releases every block and all mapped memory without running
// finalizers. Pointers returned by Allocate become invalid.
func (c *Collector) Close() error {
	if c.closed {
		return nil
	}
	if c.collecting {
		return ErrCollectInProgress
	}
	c.closed = true
	c.reg.Init(0)
	c.pending = nil
	return c.heap.Close()
}

// Stats returns cumulative counters.
func (c *Collector) Stats() Stats {
	s := c.stats
	s.Live = c.reg.Occupied()
	s.Heap = c.heap.Stats()
	return s
}

// LastCycle returns the statistics of the most recent collection.
func (c *Collector) LastCycle() CycleStats {
	return c.last
}

// Len returns the number of allocations on the collector's list.
func (c *Collector) Len() int {
	return c.reg.Len()
}

// Tracked reports whether p is the start of a block on the collector's list.
func (c *Collector) Tracked(p unsafe.Pointer) bool {
	_, ok := c.reg.Find(uintptr(p))
	return ok
}

// LiveIndices returns the record indices currently on the collector's list.
// Record indices are stable while a record lives, so two snapshots taken
// around a collection can be compared directly.
func (c *Collector) LiveIndices() *roaring.Bitmap {
	return c.reg.Indices()
}

// LiveAddrs returns the block addresses currently on the collector's list.
func (c *Collector) LiveAddrs() []uintptr {
	out := make([]uintptr, 0, c.reg.Len())
	c.reg.Each(func(_ registry.Index, rec *registry.Record) bool {
		out = append(out, rec.Addr)
		return true
	})
	return out
}
