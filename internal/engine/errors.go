package engine

import "errors"

var (
	// ErrInvalidInput indicates a single malformed item (missing content or
	// required identifier). The item is rejected; batches continue.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrCorruptState indicates an invariant violation, such as two stored
	// episodic entries satisfying the similarity predicate. It is fatal to
	// the current consolidation cycle and must be surfaced to the caller,
	// never silently repaired.
	ErrCorruptState = errors.New("corrupt store state")

	// ErrInvalidTrigger indicates an unknown consolidation trigger reason.
	ErrInvalidTrigger = errors.New("invalid trigger reason")
)
