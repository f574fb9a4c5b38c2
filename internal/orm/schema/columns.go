package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// DefaultIdentifierName is the name of the synthesized surrogate key column
const DefaultIdentifierName = "id"

// Columns is the column registry of a single table.
// It is populated while the table is constructed and read-only afterwards.
type Columns struct {
	definitions map[string]ColumnDefinition
	order       []string
	primaryKeys []string
	hasDefaults bool
	identifier  *Identifier
	enums       map[string][]interface{}
}

// NewColumns creates an empty column registry
func NewColumns() *Columns {
	return &Columns{
		definitions: make(map[string]ColumnDefinition),
		enums:       make(map[string][]interface{}),
	}
}

// Define declares a column. The name is lower-cased and options are
// normalized by ParseOptions.
//
// After Finalize a column may still be redefined as long as its primary key
// state matches the finalized identifier.
func (c *Columns) Define(name string, typ PrimitiveType, length int, options interface{}) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("%w: column name cannot be empty", ErrConfiguration)
	}

	opts, err := ParseOptions(options)
	if err != nil {
		return fmt.Errorf("column %s: %w", name, err)
	}

	def := ColumnDefinition{Name: name, Type: typ, Length: length, Options: opts}

	if c.identifier != nil && def.IsPrimary() != c.IsPrimaryKey(name) {
		return fmt.Errorf("%w: column %s changes the primary key after the identifier was finalized",
			ErrConfiguration, name)
	}

	if _, exists := c.definitions[name]; !exists {
		c.order = append(c.order, name)
	}
	c.definitions[name] = def

	if c.identifier == nil {
		if def.IsPrimary() {
			c.addPrimaryKey(name)
		} else {
			c.removePrimaryKey(name)
		}
	}

	if _, ok := def.Default(); ok {
		c.hasDefaults = true
	}

	return nil
}

// SetPrimaryKey declares the primary key columns explicitly, in order.
// It must be called before Finalize.
func (c *Columns) SetPrimaryKey(keys ...string) error {
	if c.identifier != nil {
		return fmt.Errorf("%w: primary key set after the identifier was finalized", ErrConfiguration)
	}

	c.primaryKeys = c.primaryKeys[:0]
	for _, key := range keys {
		c.addPrimaryKey(strings.ToLower(key))
	}
	return nil
}

func (c *Columns) addPrimaryKey(name string) {
	for _, pk := range c.primaryKeys {
		if pk == name {
			return
		}
	}
	c.primaryKeys = append(c.primaryKeys, name)
}

func (c *Columns) removePrimaryKey(name string) {
	for i, pk := range c.primaryKeys {
		if pk == name {
			c.primaryKeys = append(c.primaryKeys[:i], c.primaryKeys[i+1:]...)
			return
		}
	}
}

// Finalize derives the identifier strategy from the declared primary keys.
// It runs exactly once per table:
//
//   - no primary key: a surrogate "<identifierName> integer(11) primary|autoincrement"
//     column is placed first and the strategy is IdentifierAutoIncrement
//   - one primary key: its options pick autoincrement, sequence or normal
//   - several primary keys: IdentifierComposite over the declaration order
func (c *Columns) Finalize(identifierName string) (Identifier, error) {
	if c.identifier != nil {
		return Identifier{}, fmt.Errorf("%w: identifier already finalized", ErrConfiguration)
	}
	if identifierName == "" {
		identifierName = DefaultIdentifierName
	}
	identifierName = strings.ToLower(identifierName)

	for _, pk := range c.primaryKeys {
		if _, ok := c.definitions[pk]; !ok {
			return Identifier{}, fmt.Errorf("%w: primary key %s is not a declared column", ErrConfiguration, pk)
		}
	}

	var id Identifier

	switch len(c.primaryKeys) {
	case 0:
		c.definitions[identifierName] = ColumnDefinition{
			Name:   identifierName,
			Type:   TypeInteger,
			Length: 11,
			Options: Options{
				{Name: OptionPrimary, Value: true},
				{Name: OptionAutoIncrement, Value: true},
			},
		}
		order := make([]string, 0, len(c.order)+1)
		order = append(order, identifierName)
		for _, name := range c.order {
			if name != identifierName {
				order = append(order, name)
			}
		}
		c.order = order
		c.primaryKeys = []string{identifierName}
		id = Identifier{Strategy: IdentifierAutoIncrement, Columns: []string{identifierName}}

	case 1:
		pk := c.primaryKeys[0]
		id = Identifier{Strategy: IdentifierNormal, Columns: []string{pk}}

		for _, opt := range c.definitions[pk].Options {
			if opt.Name == OptionAutoIncrement {
				id.Strategy = IdentifierAutoIncrement
				break
			}
			if opt.Name == OptionSequence {
				id.Strategy = IdentifierSequence
				id.Sequence, _ = opt.Value.(string)
				break
			}
		}

	default:
		keys := make([]string, len(c.primaryKeys))
		copy(keys, c.primaryKeys)
		id = Identifier{Strategy: IdentifierComposite, Columns: keys}
	}

	c.identifier = &id
	return id, nil
}

// Finalized returns true once the identifier strategy has been derived
func (c *Columns) Finalized() bool {
	return c.identifier != nil
}

// Identifier returns the finalized identifier
func (c *Columns) Identifier() Identifier {
	if c.identifier == nil {
		return Identifier{}
	}
	id := *c.identifier
	id.Columns = append([]string(nil), id.Columns...)
	return id
}

// PrimaryKeys returns the primary key columns in declaration order
func (c *Columns) PrimaryKeys() []string {
	return append([]string(nil), c.primaryKeys...)
}

// IsPrimaryKey returns true if the column is part of the primary key
func (c *Columns) IsPrimaryKey(name string) bool {
	name = strings.ToLower(name)
	for _, pk := range c.primaryKeys {
		if pk == name {
			return true
		}
	}
	return false
}

// Has returns true if the column has been declared
func (c *Columns) Has(name string) bool {
	_, ok := c.definitions[strings.ToLower(name)]
	return ok
}

// Definition returns the definition of a declared column
func (c *Columns) Definition(name string) (ColumnDefinition, bool) {
	def, ok := c.definitions[strings.ToLower(name)]
	if !ok {
		return ColumnDefinition{}, false
	}
	return def.clone(), true
}

// Definitions returns all column definitions in declaration order
func (c *Columns) Definitions() []ColumnDefinition {
	defs := make([]ColumnDefinition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.definitions[name].clone())
	}
	return defs
}

// TypeOf returns the logical type of a declared column
func (c *Columns) TypeOf(name string) (PrimitiveType, error) {
	def, ok := c.definitions[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	return def.Type, nil
}

// Names returns the column names in declaration order
func (c *Columns) Names() []string {
	return append([]string(nil), c.order...)
}

// Count returns the number of declared columns
func (c *Columns) Count() int {
	return len(c.order)
}

// HasDefaultValues returns true if any column declares a default
func (c *Columns) HasDefaultValues() bool {
	return c.hasDefaults
}

// DefaultValue returns the declared default of a column.
// The boolean is false when the column has no default.
func (c *Columns) DefaultValue(name string) (interface{}, bool, error) {
	def, ok := c.definitions[strings.ToLower(name)]
	if !ok {
		return nil, false, fmt.Errorf("%w: couldn't get default value, column %s doesn't exist",
			ErrUnknownColumn, name)
	}
	v, ok := def.Default()
	return v, ok, nil
}

// Defaults returns every declared default keyed by column name
func (c *Columns) Defaults() map[string]interface{} {
	defaults := make(map[string]interface{})
	for name, def := range c.definitions {
		if v, ok := def.Default(); ok {
			defaults[name] = v
		}
	}
	return defaults
}

// SetEnumValues sets the ordered value list of an enum column
func (c *Columns) SetEnumValues(field string, values ...interface{}) {
	c.enums[strings.ToLower(field)] = append([]interface{}(nil), values...)
}

// EnumValues returns the value list of a field, empty when unmapped
func (c *Columns) EnumValues(field string) []interface{} {
	return append([]interface{}(nil), c.enums[strings.ToLower(field)]...)
}

// EnumValue returns the value stored at index. Unmapped fields and
// out-of-range indexes return the index itself.
func (c *Columns) EnumValue(field string, index int) interface{} {
	values := c.enums[strings.ToLower(field)]
	if index < 0 || index >= len(values) {
		return index
	}
	return values[index]
}

// EnumIndex returns the position of value in the field's value list.
// The boolean is false when the value is not found.
func (c *Columns) EnumIndex(field string, value interface{}) (int, bool) {
	for i, v := range c.enums[strings.ToLower(field)] {
		if reflect.DeepEqual(v, value) {
			return i, true
		}
	}
	return -1, false
}
