// Package table maps components to database tables. A Table owns the
// column registry, relation binder, inheritance map and identity map of
// its component and runs the statements that load records.
package table

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/orm/identity"
	"github.com/conduit-lang/tablemap/internal/orm/inheritance"
	"github.com/conduit-lang/tablemap/internal/orm/relationships"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// metadataPrefix prefixes the metadata cache id of a component
const metadataPrefix = "metadata:"

// Table is the mapping of one component
type Table struct {
	component   Component
	name        string
	registry    *Registry
	logger      *zap.Logger
	columns     *schema.Columns
	identifier  schema.Identifier
	inheritance inheritance.Map
	binder      *relationships.Binder
	identity    *identity.Map

	queryOnce sync.Once
	query     string
}

// ComponentName returns the mapped component
func (t *Table) ComponentName() string {
	return t.component.Name
}

// Parents returns the ancestor chain, least-derived first
func (t *Table) Parents() []string {
	return append([]string(nil), t.component.Parents...)
}

// IdentifierName returns the identifier column, or the comma-joined
// columns of a composite key
func (t *Table) IdentifierName() string {
	return t.identifier.Name()
}

// Binder returns the relation binder
func (t *Table) Binder() *relationships.Binder {
	return t.binder
}

// Columns returns the column registry
func (t *Table) Columns() *schema.Columns {
	return t.columns
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// Identifier returns the identifier strategy and key columns
func (t *Table) Identifier() schema.Identifier {
	return t.identifier
}

// Inheritance returns the discriminators of the table
func (t *Table) Inheritance() inheritance.Map {
	return t.inheritance
}

// IdentityMap returns the records loaded through the table
func (t *Table) IdentityMap() *identity.Map {
	return t.identity
}

// Connection returns the connection the table queries through
func (t *Table) Connection() Connection {
	return t.registry.conn
}

// Query returns the base select of the table
func (t *Table) Query() string {
	t.queryOnce.Do(func() {
		t.query = "SELECT " + strings.Join(t.columns.Names(), ", ") + " FROM " + t.name
	})
	return t.query
}

// Bind declares a relation. See relationships.Binder.Bind.
func (t *Table) Bind(name, fieldPath string, cardinality relationships.Cardinality, localKey string) error {
	return t.binder.Bind(name, fieldPath, cardinality, localKey)
}

// HasOne declares a to-one relation owned by this table
func (t *Table) HasOne(name, fieldPath string) error {
	return t.binder.Bind(name, fieldPath, relationships.OneComposite, "")
}

// HasMany declares a to-many relation owned by this table
func (t *Table) HasMany(name, fieldPath string) error {
	return t.binder.Bind(name, fieldPath, relationships.ManyComposite, "")
}

// Relation returns the relation bound under alias
func (t *Table) Relation(alias string) (relationships.Relation, error) {
	return t.binder.Resolve(alias)
}

// Relations resolves every binding of the table
func (t *Table) Relations() (map[string]relationships.Relation, error) {
	return t.binder.ResolveAll()
}

// CompositePaths returns the dotted paths reachable through composite relations
func (t *Table) CompositePaths() []string {
	return t.binder.CompositePaths()
}

// DescribeRelations resolves every binding and returns the relations sorted
// by alias. When the registry has a metadata cache, the descriptions are
// stored there as JSON.
func (t *Table) DescribeRelations(ctx context.Context) ([]relationships.Description, error) {
	relations, err := t.binder.ResolveAll()
	if err != nil {
		return nil, err
	}

	descriptions := lo.MapToSlice(relations, func(_ string, r relationships.Relation) relationships.Description {
		return relationships.Describe(r)
	})
	sort.Slice(descriptions, func(i, j int) bool {
		return descriptions[i].Alias < descriptions[j].Alias
	})

	if t.registry.metadata != nil {
		data, err := json.Marshal(descriptions)
		if err != nil {
			return nil, fmt.Errorf("failed to encode relations of %s: %w", t.component.Name, err)
		}
		if err := t.registry.metadata.Set(ctx, metadataPrefix+t.component.Name, data, 0); err != nil {
			return nil, fmt.Errorf("failed to cache relations of %s: %w", t.component.Name, err)
		}
	}

	return descriptions, nil
}

// Find returns the record with the given identifier. id is a scalar for a
// single key or a slice with one value per key column, in key order.
func (t *Table) Find(ctx context.Context, id interface{}) (*identity.Record, error) {
	params, err := t.identifierParams(id)
	if err != nil {
		return nil, err
	}

	where := t.keyClause()
	query := t.Query() + " WHERE " + t.inheritance.Apply(where)
	params = append(params, t.inheritance.Params()...)

	records, err := t.fetch(ctx, query, params, t.identity.Materialize)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, t.component.Name, id)
	}
	return records[0], nil
}

// Proxy returns a record holding only the identifier columns. A record
// already loaded under the identifier is returned as is.
func (t *Table) Proxy(ctx context.Context, id interface{}) (*identity.Record, error) {
	params, err := t.identifierParams(id)
	if err != nil {
		return nil, err
	}
	if record, ok := t.identity.Get(params...); ok {
		return record, nil
	}

	keys := t.columns.PrimaryKeys()
	where := t.keyClause()
	query := "SELECT " + strings.Join(keys, ", ") + " FROM " + t.name + " WHERE " + t.inheritance.Apply(where)
	params = append(params, t.inheritance.Params()...)

	records, err := t.fetch(ctx, query, params, t.identity.MaterializeProxy)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, t.component.Name, id)
	}
	return records[0], nil
}

// keyClause returns "pk1 = ? AND pk2 = ?" in key order
func (t *Table) keyClause() string {
	return strings.Join(lo.Map(t.columns.PrimaryKeys(), func(key string, _ int) string {
		return key + " = ?"
	}), " AND ")
}

// identifierParams normalizes an id into one parameter per key column
func (t *Table) identifierParams(id interface{}) ([]interface{}, error) {
	var params []interface{}
	switch v := id.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil identifier for %s", schema.ErrConfiguration, t.component.Name)
	case []interface{}:
		params = append(params, v...)
	case []int:
		params = lo.ToAnySlice(v)
	case []int64:
		params = lo.ToAnySlice(v)
	case []string:
		params = lo.ToAnySlice(v)
	default:
		params = []interface{}{v}
	}

	keys := t.columns.PrimaryKeys()
	if len(params) != len(keys) {
		return nil, fmt.Errorf("%w: %s expects %d identifier values, got %d",
			schema.ErrConfiguration, t.component.Name, len(keys), len(params))
	}
	return params, nil
}

// Execute runs query and materializes every row, in row order. A zero
// limit and offset leave the query unpaginated.
func (t *Table) Execute(ctx context.Context, query string, params []interface{}, limit, offset int) (*Collection, error) {
	if limit > 0 || offset > 0 {
		query = t.registry.conn.ModifyLimitQuery(query, limit, offset)
	}

	records, err := t.fetch(ctx, query, params, t.identity.Materialize)
	if err != nil {
		return nil, err
	}
	return NewCollection(t, records), nil
}

func (t *Table) fetch(ctx context.Context, query string, params []interface{},
	materialize func(map[string]interface{}) (*identity.Record, error)) ([]*identity.Record, error) {
	t.logger.Debug("executing query", zap.String("sql", query))

	rs, err := t.registry.conn.Execute(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	defer rs.Close()

	var records []*identity.Record
	for rs.Next() {
		row, err := rs.Row()
		if err != nil {
			return nil, err
		}
		if !t.inheritance.Matches(row) {
			t.logger.Debug("skipping row of another subtype", zap.Any("row", row))
			continue
		}
		record, err := materialize(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.name, err)
	}
	return records, nil
}

// FindAll returns every record of the table
func (t *Table) FindAll(ctx context.Context) *Collection {
	return t.registry.builder.Query(ctx, t, "", nil)
}

// FindBySQL returns the records matching a where fragment
func (t *Table) FindBySQL(ctx context.Context, where string, params []interface{}) *Collection {
	return t.registry.builder.Query(ctx, t, where, params)
}

// Create returns a new record seeded with the column defaults and values.
// The record is not placed in the identity map.
func (t *Table) Create(values map[string]interface{}) *identity.Record {
	return t.identity.CreateTransient(values)
}

// Count returns the number of rows of the table
func (t *Table) Count(ctx context.Context) (int, error) {
	query := "SELECT COUNT(1) FROM " + t.name
	if !t.inheritance.Empty() {
		query += " WHERE " + t.inheritance.Clause()
	}

	v, err := t.scalar(ctx, query, t.inheritance.Params())
	if err != nil {
		return 0, err
	}
	return cast.ToIntE(v)
}

// MaxIdentifier returns the largest identifier value, or nil for an empty
// table. It is only defined for single column keys.
func (t *Table) MaxIdentifier(ctx context.Context) (interface{}, error) {
	if t.identifier.IsComposite() {
		return nil, fmt.Errorf("%w: %s has a composite identifier", schema.ErrConfiguration, t.component.Name)
	}

	query := "SELECT MAX(" + t.identifier.Name() + ") FROM " + t.name
	if !t.inheritance.Empty() {
		query += " WHERE " + t.inheritance.Clause()
	}
	return t.scalar(ctx, query, t.inheritance.Params())
}

func (t *Table) scalar(ctx context.Context, query string, params []interface{}) (interface{}, error) {
	t.logger.Debug("executing query", zap.String("sql", query))

	rs, err := t.registry.conn.Execute(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.name, err)
	}
	defer rs.Close()

	if !rs.Next() {
		if err := rs.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no result for %s", query)
	}

	columns, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	row, err := rs.Row()
	if err != nil {
		return nil, err
	}
	return row[columns[0]], nil
}

// Clear empties the identity map
func (t *Table) Clear() {
	t.identity.Clear()
}
