package schema

import "errors"

var (
	// ErrConfiguration is returned for malformed column or primary key declarations
	ErrConfiguration = errors.New("invalid table configuration")

	// ErrUnknownColumn is returned when a column has not been declared
	ErrUnknownColumn = errors.New("unknown column")
)
