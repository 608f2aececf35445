package gc

import "errors"

var (
	// ErrNotInitialized indicates Allocate or Collect before Init.
	ErrNotInitialized = errors.New("gc: collector not initialized")

	// ErrAlreadyInitialized indicates a second Init call.
	ErrAlreadyInitialized = errors.New("gc: collector already initialized")

	// ErrCollectInProgress indicates Collect was called while a collection was running.
	ErrCollectInProgress = errors.New("gc: collection already in progress")

	// ErrNoProvider indicates Collect without a stack provider.
	ErrNoProvider = errors.New("gc: no stack provider configured")

	// ErrClosed indicates use of a collector after Close.
	ErrClosed = errors.New("gc: collector closed")
)
