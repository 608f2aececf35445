package gc

import (
	"unsafe"

	"github.com/joshuapare/markgc/internal/scan"
)

// WordSize is the alignment at which blocks and the root range are scanned.
const WordSize = scan.WordSize

// StoreWord writes v into word i of the block at p.
// Storing another block's address here makes that block reachable from p.
func StoreWord(p unsafe.Pointer, i int, v uintptr) {
	scan.Store(uintptr(p)+uintptr(i)*WordSize, v)
}

// LoadWord reads word i of the block at p.
func LoadWord(p unsafe.Pointer, i int) uintptr {
	return scan.Load(uintptr(p) + uintptr(i)*WordSize)
}

// Bytes returns a byte view of the size bytes at p.
func Bytes(p unsafe.Pointer, size uintptr) []byte {
	return scan.Bytes(uintptr(p), size)
}
