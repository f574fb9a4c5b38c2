package table

import (
	"fmt"

	"github.com/conduit-lang/tablemap/internal/orm/identity"
	"github.com/conduit-lang/tablemap/internal/orm/inheritance"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

// Component describes a mapped entity type
type Component struct {
	// Name is the component name relations refer to
	Name string
	// Parents is the ancestor chain, least-derived first. A component with
	// parents shares the table of its root ancestor.
	Parents []string
	// TableName overrides the table name derived from the root component
	TableName string
	// Identifier names the column synthesized when no primary key is declared
	Identifier string
	// Define declares the columns. The hooks of the ancestors run first.
	Define func(*Definition)
	// SetUp declares the bindings. It must not resolve relations.
	SetUp func(*Table) error
	// Construct is called for every record the table creates
	Construct identity.Constructor
}

// root returns the least-derived component of the chain
func (c Component) root() string {
	if len(c.Parents) > 0 {
		return c.Parents[0]
	}
	return c.Name
}

// Definition collects the column declarations of a component. The first
// failing declaration is kept and reported when the table is built.
type Definition struct {
	columns     *schema.Columns
	inheritance inheritance.Map
	err         error
}

func newDefinition() *Definition {
	return &Definition{columns: schema.NewColumns()}
}

// HasColumn declares a column
func (d *Definition) HasColumn(name string, typ schema.PrimitiveType, length int, options interface{}) {
	if d.err != nil {
		return
	}
	if err := d.columns.Define(name, typ, length, options); err != nil {
		d.err = fmt.Errorf("column %s: %w", name, err)
	}
}

// SetPrimaryKey marks the given columns as the primary key
func (d *Definition) SetPrimaryKey(keys ...string) {
	if d.err != nil {
		return
	}
	d.err = d.columns.SetPrimaryKey(keys...)
}

// SetEnumValues maps the indexes stored in an enum column to values
func (d *Definition) SetEnumValues(field string, values ...interface{}) {
	d.columns.SetEnumValues(field, values...)
}

// Discriminate restricts the table to rows where column = value
func (d *Definition) Discriminate(column string, value interface{}) {
	d.inheritance = d.inheritance.With(column, value)
}

// Err returns the first declaration error
func (d *Definition) Err() error {
	return d.err
}
