// Package osmem provides platform-specific helpers for obtaining anonymous,
// zero-filled, read-write memory directly from the operating system.
//
// Memory returned by Map is never scanned or moved by the Go runtime, which
// makes it a suitable home for blocks whose contents hold raw addresses.
package osmem

import "os"

// PageSize returns the operating system page size.
func PageSize() int {
	return os.Getpagesize()
}

// RoundToPages rounds n up to a whole number of pages.
func RoundToPages(n int) int {
	ps := PageSize()
	return (n + ps - 1) &^ (ps - 1)
}
