package table

import "errors"

var (
	// ErrNotFound is returned when no row matches an identifier
	ErrNotFound = errors.New("record not found")

	// ErrUnknownComponent is returned when a component was never registered
	ErrUnknownComponent = errors.New("unknown component")

	// ErrDuplicateComponent is returned when a component is registered twice
	ErrDuplicateComponent = errors.New("duplicate component")
)
