package relationships

import "errors"

var (
	// ErrUnknownRelation is returned when an alias has no binding
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrDuplicateRelation is returned when an alias is bound twice
	ErrDuplicateRelation = errors.New("duplicate relation")

	// ErrInvalidRelation is returned when a binding's cardinality or topology
	// cannot produce a relation
	ErrInvalidRelation = errors.New("invalid relation")
)
