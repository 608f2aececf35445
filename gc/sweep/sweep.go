// Package sweep implements the reset and reclaim halves of a collection.
package sweep

import (
	"errors"
	"fmt"

	"github.com/joshuapare/markgc/gc/registry"
	"github.com/joshuapare/markgc/internal/scan"
)

// Releaser gives a block's storage back to wherever it came from.
type Releaser interface {
	Release(addr uintptr) error
}

// Stats describes one sweep.
type Stats struct {
	Visited        int     // Records examined
	Survivors      int     // Records left in place
	Reclaimed      int     // Records removed
	ReclaimedBytes uintptr // Sum of reclaimed record sizes
	Finalized      int     // Finalizers run
}

// Reset clears the mark bit of every linked record.
func Reset(reg *registry.Registry) {
	reg.Each(func(_ registry.Index, rec *registry.Record) bool {
		rec.Alive = false
		return true
	})
}

// Run walks the list once and reclaims every unmarked record: its finalizer
// runs first, then the block is released, then the record is unlinked and
// its slot freed. Marked records are left untouched.
//
// The finalizer may allocate; such allocations must not be linked into reg
// until Run returns. A release error does not stop the sweep: the record is
// still removed and the errors are joined into the result.
func Run(reg *registry.Registry, rel Releaser) (Stats, error) {
	var (
		st   Stats
		errs []error
	)
	for i := reg.Head(); i != registry.None; {
		rec := reg.Get(i)
		next := reg.Next(i)
		st.Visited++

		if rec.Alive {
			st.Survivors++
			i = next
			continue
		}

		// Copy out before calling user code: the finalizer may reserve
		// records, which can move the table.
		addr, size, fin := rec.Addr, rec.Size, rec.Finalizer
		if fin != nil {
			fin(scan.Pointer(addr), size)
			st.Finalized++
		}
		if err := rel.Release(addr); err != nil {
			errs = append(errs, fmt.Errorf("sweep record %d: %w", i, err))
		}
		if err := reg.Remove(i); err != nil {
			errs = append(errs, fmt.Errorf("sweep record %d: %w", i, err))
		}
		st.Reclaimed++
		st.ReclaimedBytes += size
		i = next
	}
	return st, errors.Join(errs...)
}
