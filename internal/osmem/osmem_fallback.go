//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly) && !windows

package osmem

import "fmt"

// Map allocates size bytes from the Go heap when anonymous mappings are not
// available. The Go heap does not move objects, so addresses stay stable for
// as long as the returned slice is referenced.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("osmem: invalid mapping size %d", size)
	}
	data := make([]byte, size)
	return data, func() error { return nil }, nil
}
