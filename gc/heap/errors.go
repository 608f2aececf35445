package heap

import "errors"

var (
	// ErrNoMemory indicates the OS refused a mapping or MaxBytes would be exceeded.
	ErrNoMemory = errors.New("heap: out of memory")

	// ErrBadBlock indicates Release was called with an address that is not a live block.
	ErrBadBlock = errors.New("heap: address is not a live block")

	// ErrTooLarge indicates a request whose rounded size does not fit in a uintptr.
	ErrTooLarge = errors.New("heap: request too large")

	// ErrClosed indicates use of a heap after Close.
	ErrClosed = errors.New("heap: closed")
)
