package schema

import "strings"

// IdentifierStrategy describes how primary key values are produced
type IdentifierStrategy int

const (
	// IdentifierAutoIncrement means the database assigns the key on insert
	IdentifierAutoIncrement IdentifierStrategy = iota
	// IdentifierSequence means the key is drawn from a named sequence
	IdentifierSequence
	// IdentifierComposite means the key spans several columns
	IdentifierComposite
	// IdentifierNormal means the application assigns the key
	IdentifierNormal
)

// String returns the string representation of the strategy
func (s IdentifierStrategy) String() string {
	switch s {
	case IdentifierAutoIncrement:
		return "autoincrement"
	case IdentifierSequence:
		return "sequence"
	case IdentifierComposite:
		return "composite"
	case IdentifierNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Identifier is the finalized identifier of a table
type Identifier struct {
	Strategy IdentifierStrategy
	Columns  []string // ordered key columns
	Sequence string   // set for IdentifierSequence
}

// IsComposite returns true if the identifier spans several columns
func (i Identifier) IsComposite() bool {
	return i.Strategy == IdentifierComposite
}

// Name returns the identifier column, or the key columns joined with ","
// for composite identifiers
func (i Identifier) Name() string {
	return strings.Join(i.Columns, ",")
}
