package buf

import (
	"encoding/binary"
	"math/bits"
)

const (
	// UintptrBits is the width of a machine word in bits.
	UintptrBits = bits.UintSize

	// WordSize is the width of a machine word in bytes.
	WordSize = UintptrBits / 8
)

// Word reads a native-endian machine word at off. Returns 0 when b is too short.
func Word(b []byte, off int) uintptr {
	s, ok := Slice(b, off, WordSize)
	if !ok {
		return 0
	}
	if WordSize == 8 {
		return uintptr(binary.NativeEndian.Uint64(s))
	}
	return uintptr(binary.NativeEndian.Uint32(s))
}

// PutWord writes v as a native-endian machine word at off.
// Returns false (and writes nothing) when b is too short.
func PutWord(b []byte, off int, v uintptr) bool {
	s, ok := Slice(b, off, WordSize)
	if !ok {
		return false
	}
	if WordSize == 8 {
		binary.NativeEndian.PutUint64(s, uint64(v))
	} else {
		binary.NativeEndian.PutUint32(s, uint32(v))
	}
	return true
}
