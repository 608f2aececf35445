package registry

import "errors"

var (
	// ErrTableFull indicates the record table reached its configured capacity.
	ErrTableFull = errors.New("registry: record table full")

	// ErrBadIndex indicates an index that does not name an occupied slot.
	ErrBadIndex = errors.New("registry: bad record index")

	// ErrLinked indicates Link was called on a record that is already linked.
	ErrLinked = errors.New("registry: record already linked")
)
