package spoke

import "github.com/rotisserie/eris"

var (
	// ErrCollectionModified is returned by a non-modifying iteration if the
	// number of rows in the archetype changed while iterating.
	ErrCollectionModified = eris.New("collection was modified during iteration")

	// ErrSharedTableFull is returned if a shared table can not hold any more values.
	ErrSharedTableFull = eris.New("shared table is full")

	// ErrUnknownComponent is returned when a component type was expected to be
	// part of an archetype, but is not.
	ErrUnknownComponent = eris.New("component type not part of archetype")

	ErrInvariantViolated = eris.New("archetype invariant violated")
)
