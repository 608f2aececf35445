// Package scan reads and writes machine words at raw addresses.
//
// It is the only package in the module that converts integers back into
// memory references. Callers must only pass addresses inside memory they
// own (heap blocks or a shadow stack); nothing here validates that.
package scan

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/joshuapare/markgc/internal/buf"
)

// WordSize is the size and alignment of a candidate address.
const WordSize = uintptr(buf.WordSize)

// Debug enables alignment assertions on range walks - controlled by MARKGC_DEBUG_SCAN env var.
var Debug = os.Getenv("MARKGC_DEBUG_SCAN") != ""

// AlignUp rounds addr up to word alignment.
func AlignUp(addr uintptr) uintptr {
	return (addr + WordSize - 1) &^ (WordSize - 1)
}

// Words visits every word-aligned word in [start, end) and hands its value
// to visit without interpreting it. A trailing partial word is skipped.
// Returns the number of words visited.
func Words(start, end uintptr, visit func(word uintptr)) int {
	if Debug && start%WordSize != 0 {
		panic(fmt.Sprintf("scan: unaligned range start %#x", start))
	}
	start = AlignUp(start)
	n := 0
	for addr := start; addr < end && end-addr >= WordSize; addr += WordSize {
		visit(Load(addr))
		n++
	}
	return n
}

// Load reads the word stored at addr.
func Load(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// Store writes v to the word at addr.
func Store(addr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

// Pointer converts an address into a pointer for handing to callers.
func Pointer(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

// Bytes returns a byte view of n bytes at addr.
func Bytes(addr, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// Clear zeroes n bytes at addr.
func Clear(addr, n uintptr) {
	clear(Bytes(addr, n))
}

// Addr returns the address of the first byte of b, or 0 for an empty slice.
func Addr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
