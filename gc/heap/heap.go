package heap

import (
	"fmt"
	"os"

	"github.com/joshuapare/markgc/internal/buf"
	"github.com/joshuapare/markgc/internal/osmem"
	"github.com/joshuapare/markgc/internal/scan"
)

// Runtime debug flag for mapping logging - controlled by MARKGC_LOG_HEAP env var.
var logHeap = os.Getenv("MARKGC_LOG_HEAP") != ""

const (
	// DefaultChunkSize is the size of each chunk mapped for size-classed blocks.
	DefaultChunkSize = 256 << 10

	// largeClass marks a block that owns a dedicated mapping.
	largeClass = -1
)

// Options configures a Heap. The zero value selects the defaults.
type Options struct {
	// ChunkSize is the size of the mappings blocks are carved from.
	// Rounded up to whole pages. Default: DefaultChunkSize.
	ChunkSize uintptr

	// MaxBytes caps the total mapped memory. 0 means unlimited.
	MaxBytes uintptr

	// Classes selects the size class table. nil means DefaultConfig.
	Classes *SizeClassConfig
}

// Stats holds heap counters.
type Stats struct {
	Mapped       uintptr // Bytes currently mapped from the OS
	InUse        uintptr // Bytes in live blocks (class-rounded)
	LiveBlocks   int     // Number of live blocks
	Chunks       int     // Number of chunk mappings
	LargeBlocks  int     // Number of live dedicated mappings
	Acquires     int     // Total Acquire calls that succeeded
	Releases     int     // Total Release calls that succeeded
	Reused       int     // Acquires served from a free list
	FailedMaps   int     // Mappings refused by the OS or by MaxBytes
	Classes      int     // Number of size classes
	ClassesTable string  // Name of the size class configuration
}

// chunk is one mapping obtained from the OS.
type chunk struct {
	data    []byte
	base    uintptr
	release func() error
}

// Heap is a size-classed block source backed by OS mappings.
type Heap struct {
	chunkSize uintptr
	maxBytes  uintptr
	table     *sizeClassTable

	// Segregated free lists, one LIFO stack of addresses per class.
	free [][]uintptr

	chunks []*chunk
	cur    *chunk  // chunk currently bumped from
	off    uintptr // bump offset in cur

	// Dedicated mappings for blocks larger than the biggest class, by address.
	large map[uintptr]*chunk

	// Live blocks: address -> class (largeClass for dedicated mappings).
	live map[uintptr]int

	mapped uintptr
	inUse  uintptr
	stats  Stats
	closed bool

	// Test hook: replaces osmem.Map when set (nil in production)
	mapFn func(size int) ([]byte, func() error, error)
}

// New creates an empty heap. No memory is mapped until the first Acquire.
func New(opts *Options) *Heap {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = DefaultChunkSize
	}
	o.ChunkSize = uintptr(osmem.RoundToPages(int(o.ChunkSize)))
	cfg := DefaultConfig
	if o.Classes != nil {
		cfg = *o.Classes
	}
	table := newSizeClassTable(cfg)

	return &Heap{
		chunkSize: o.ChunkSize,
		maxBytes:  o.MaxBytes,
		table:     table,
		free:      make([][]uintptr, table.numClasses()),
		large:     make(map[uintptr]*chunk),
		live:      make(map[uintptr]int),
	}
}

// Acquire returns the address of a zeroed block of at least size bytes.
// A zero size still yields a distinct minimum-size block.
func (h *Heap) Acquire(size uintptr) (uintptr, error) {
	if h.closed {
		return 0, ErrClosed
	}
	n, ok := buf.AlignUp(size, scan.WordSize)
	if !ok {
		return 0, fmt.Errorf("acquire %d bytes: %w", size, ErrTooLarge)
	}
	if n == 0 {
		n = scan.WordSize
	}

	class := h.table.classFor(n)
	if class == h.table.numClasses() {
		return h.acquireLarge(n)
	}
	bs := h.table.blockSize(class)

	// Fast path: reuse a released block of the same class.
	if list := h.free[class]; len(list) > 0 {
		addr := list[len(list)-1]
		h.free[class] = list[:len(list)-1]
		scan.Clear(addr, bs)
		h.stats.Reused++
		h.track(addr, class, bs)
		return addr, nil
	}

	// Slow path: bump from the current chunk, mapping a new one when full.
	if h.cur == nil || h.off+bs > uintptr(len(h.cur.data)) {
		c, err := h.mapChunk(h.chunkSize)
		if err != nil {
			return 0, fmt.Errorf("acquire %d bytes: %w", size, err)
		}
		h.chunks = append(h.chunks, c)
		h.cur, h.off = c, 0
	}
	addr := h.cur.base + h.off
	h.off += bs
	h.track(addr, class, bs)
	return addr, nil
}

func (h *Heap) acquireLarge(n uintptr) (uintptr, error) {
	sz, ok := buf.AlignUp(n, uintptr(osmem.PageSize()))
	if !ok {
		return 0, fmt.Errorf("acquire %d bytes: %w", n, ErrTooLarge)
	}
	c, err := h.mapChunk(sz)
	if err != nil {
		return 0, fmt.Errorf("acquire %d bytes: %w", n, err)
	}
	h.large[c.base] = c
	h.track(c.base, largeClass, sz)
	return c.base, nil
}

func (h *Heap) track(addr uintptr, class int, bs uintptr) {
	h.live[addr] = class
	h.inUse += bs
	h.stats.Acquires++
}

// Release returns the block at addr to the heap. Releasing an address that
// is not a live block fails with ErrBadBlock and changes nothing.
func (h *Heap) Release(addr uintptr) error {
	if h.closed {
		return ErrClosed
	}
	class, ok := h.live[addr]
	if !ok {
		return fmt.Errorf("release %#x: %w", addr, ErrBadBlock)
	}
	delete(h.live, addr)
	h.stats.Releases++

	if class == largeClass {
		c := h.large[addr]
		delete(h.large, addr)
		sz := uintptr(len(c.data))
		h.inUse -= sz
		h.mapped -= sz
		if err := c.release(); err != nil {
			return fmt.Errorf("release %#x: %w", addr, err)
		}
		return nil
	}

	h.inUse -= h.table.blockSize(class)
	h.free[class] = append(h.free[class], addr)
	return nil
}

// Owns reports whether addr is the start of a live block.
func (h *Heap) Owns(addr uintptr) bool {
	_, ok := h.live[addr]
	return ok
}

// BlockSize returns the usable size of the live block at addr, or 0.
func (h *Heap) BlockSize(addr uintptr) uintptr {
	class, ok := h.live[addr]
	if !ok {
		return 0
	}
	if class == largeClass {
		return uintptr(len(h.large[addr].data))
	}
	return h.table.blockSize(class)
}

func (h *Heap) mapChunk(size uintptr) (*chunk, error) {
	if h.maxBytes != 0 && h.mapped+size > h.maxBytes {
		h.stats.FailedMaps++
		return nil, fmt.Errorf("map %d bytes (mapped=%d, max=%d): %w", size, h.mapped, h.maxBytes, ErrNoMemory)
	}
	mapFn := h.mapFn
	if mapFn == nil {
		mapFn = osmem.Map
	}
	data, release, err := mapFn(int(size))
	if err != nil {
		h.stats.FailedMaps++
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	h.mapped += size
	if logHeap {
		fmt.Fprintf(os.Stderr, "[HEAP] mapped %d bytes at %#x (total %d)\n", size, scan.Addr(data), h.mapped)
	}
	return &chunk{data: data, base: scan.Addr(data), release: release}, nil
}

// Close unmaps every chunk and dedicated mapping. All outstanding block
// addresses become invalid. Calling Close twice is a no-op.
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	var firstErr error
	for _, c := range h.chunks {
		if err := c.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range h.large {
		if err := c.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.chunks, h.cur, h.off = nil, nil, 0
	h.large = nil
	h.live = nil
	h.free = nil
	h.mapped, h.inUse = 0, 0
	return firstErr
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.Mapped = h.mapped
	s.InUse = h.inUse
	s.LiveBlocks = len(h.live)
	s.Chunks = len(h.chunks)
	s.LargeBlocks = len(h.large)
	s.Classes = h.table.numClasses()
	s.ClassesTable = h.table.String()
	return s
}
