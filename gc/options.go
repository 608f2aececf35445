package gc

import (
	"log/slog"

	"github.com/joshuapare/markgc/gc/heap"
	"github.com/joshuapare/markgc/gc/stack"
)

// Options controls collector construction. A nil *Options selects the defaults.
type Options struct {
	// Heap configures block storage. If nil, heap defaults are used.
	Heap *heap.Options

	// MaxRecords caps the number of tracked allocations (live plus
	// allocated-during-sweep). 0 means unlimited. When the cap is reached,
	// Allocate fails with registry.ErrTableFull and leaks nothing.
	MaxRecords int

	// Provider reports the top of the root range for Collect.
	// May be nil when only CollectFrom is used.
	Provider stack.Provider

	// Logger receives cycle summaries at Debug level.
	// If nil, the process-wide logger (internal/logger) is used.
	Logger *slog.Logger
}
