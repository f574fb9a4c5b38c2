// Package relationships stores relation bindings declared by a table and
// resolves them lazily into concrete relations between tables.
package relationships

import (
	"fmt"
	"strings"
)

// Cardinality tags a binding with its multiplicity and ownership
type Cardinality int

const (
	// OneAggregate is a to-one relation to an independent record
	OneAggregate Cardinality = iota
	// OneComposite is a to-one relation to an owned record
	OneComposite
	// ManyAggregate is a to-many relation to independent records
	ManyAggregate
	// ManyComposite is a to-many relation to owned records
	ManyComposite
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	switch c {
	case OneAggregate:
		return "one_aggregate"
	case OneComposite:
		return "one_composite"
	case ManyAggregate:
		return "many_aggregate"
	case ManyComposite:
		return "many_composite"
	default:
		return "unknown"
	}
}

// IsOne returns true for to-one cardinalities
func (c Cardinality) IsOne() bool {
	return c == OneAggregate || c == OneComposite
}

// IsComposite returns true when the related records are owned
func (c Cardinality) IsComposite() bool {
	return c == OneComposite || c == ManyComposite
}

// Table is the view of a table the binder needs
type Table interface {
	// ComponentName returns the mapped component
	ComponentName() string
	// Parents returns the ancestor chain, least-derived first
	Parents() []string
	// IdentifierName returns the identifier column(s)
	IdentifierName() string
	// Binder returns the table's relation binder
	Binder() *Binder
}

// Lookup returns the table mapped to a component, constructing it if needed
type Lookup func(component string) (Table, error)

// Binding is a declared, unresolved relation
type Binding struct {
	Name        string // related component
	Alias       string
	FieldPath   string // component.column or component.column1-column2
	Cardinality Cardinality
	LocalKey    string // empty means the default key
}

// Split separates the field path into its component and column parts
func (b Binding) Split() (component, column string, err error) {
	component, column, found := strings.Cut(b.FieldPath, ".")
	if !found || component == "" || column == "" {
		return "", "", fmt.Errorf("%w: malformed field path %q for %s", ErrInvalidRelation, b.FieldPath, b.Alias)
	}
	return component, column, nil
}

// parseName splits "<name> as <alias>" into its parts
func parseName(name string) (string, string) {
	component, alias, found := strings.Cut(name, " as ")
	component = strings.TrimSpace(component)
	if !found {
		return component, component
	}
	return component, strings.TrimSpace(alias)
}
