// Package heap hands out raw blocks of off-heap memory for the collector.
//
// # Overview
//
// Blocks are carved from chunks of anonymous memory obtained from the
// operating system (see internal/osmem). Requests are rounded up to a size
// class; released blocks go onto a per-class free list and are zeroed before
// they are handed out again. Requests larger than the biggest size class get
// a dedicated mapping that is returned to the OS on release.
//
// # Size Classes
//
// Size classes are computed from a SizeClassConfig: linear steps for small
// blocks, then geometric growth up to MediumMax. DefaultConfig is tuned for
// small object graphs (16..512 in word steps, then factor 1.5 up to 16KB).
//
// # Growth
//
// When no free block of the right class exists, the heap bumps a pointer in
// the current chunk. When the chunk is exhausted a new one of ChunkSize bytes
// is mapped; the unused tail of the old chunk is abandoned. MaxBytes caps the
// total amount of mapped memory and makes Acquire fail with ErrNoMemory.
//
// # Thread Safety
//
// Heap instances are not thread-safe. Callers must synchronize access
// externally.
package heap
