package table

import (
	"context"
	"database/sql"

	"github.com/conduit-lang/tablemap/internal/orm/dbal"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

// Connection executes the statements a table issues. Tables never open
// connections; the registry hands its connection to every table.
type Connection interface {
	Execute(ctx context.Context, query string, params []interface{}) (dbal.RowSet, error)
	RawHandle() *sql.DB
	ModifyLimitQuery(query string, limit, offset int) string
	Dialect() dbal.Dialect
}

// QueryBuilder builds the collections returned by FindAll and FindBySQL
type QueryBuilder interface {
	Query(ctx context.Context, t *Table, where string, params []interface{}) *Collection
}

// SchemaCreator issues the DDL of a table when create tables mode is enabled
type SchemaCreator interface {
	CreateTable(ctx context.Context, tableName string, columns []schema.ColumnDefinition) error
}
