package codegen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/orm/dbal"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

// Execer runs DDL statements
type Execer interface {
	Exec(ctx context.Context, query string, params []interface{}) (sql.Result, error)
}

// DDLGenerator generates CREATE statements for a dialect
type DDLGenerator struct {
	typeMapper *TypeMapper
	dialect    dbal.Dialect
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(dialect dbal.Dialect) *DDLGenerator {
	return &DDLGenerator{
		typeMapper: NewTypeMapper(dialect),
		dialect:    dialect,
	}
}

// GenerateCreateTable returns the statements creating a table, in execution
// order. Columns keep their declaration order.
func (g *DDLGenerator) GenerateCreateTable(tableName string, columns []schema.ColumnDefinition) ([]string, error) {
	if tableName == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", tableName)
	}

	var primaryKeys []string
	for _, col := range columns {
		if col.IsPrimary() {
			primaryKeys = append(primaryKeys, col.Name)
		}
	}

	var statements []string
	columnDefs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		def, sequence, err := g.generateColumnDefinition(tableName, col, len(primaryKeys) == 1)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		if sequence != "" {
			statements = append(statements,
				fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s;", g.typeMapper.QuoteIdentifier(sequence)))
		}
		columnDefs = append(columnDefs, def)
	}

	if len(primaryKeys) > 1 {
		quoted := make([]string, len(primaryKeys))
		for i, pk := range primaryKeys {
			quoted[i] = g.typeMapper.QuoteIdentifier(pk)
		}
		columnDefs = append(columnDefs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", g.typeMapper.QuoteIdentifier(tableName)))
	for i, def := range columnDefs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(columnDefs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")

	return append(statements, b.String()), nil
}

// generateColumnDefinition renders one column. The second result names a
// sequence the column draws its default from.
func (g *DDLGenerator) generateColumnDefinition(tableName string, col schema.ColumnDefinition, singleKey bool) (string, string, error) {
	parts := []string{g.typeMapper.QuoteIdentifier(col.Name)}

	if col.IsPrimary() && singleKey && col.IsAutoIncrement() {
		parts = append(parts, g.typeMapper.MapAutoIncrement(col))
		return strings.Join(parts, " "), "", nil
	}

	columnType, err := g.typeMapper.MapType(col)
	if err != nil {
		return "", "", err
	}
	parts = append(parts, columnType)

	if col.IsNotNull() || col.IsPrimary() {
		parts = append(parts, "NOT NULL")
	}

	var sequence string
	if seq, ok := col.Sequence(); ok && g.dialect == dbal.Postgres {
		if seq == "" {
			seq = tableName + "_seq"
		}
		sequence = seq
		parts = append(parts, fmt.Sprintf("DEFAULT nextval('%s')", strings.ReplaceAll(seq, "'", "''")))
	} else if v, ok := col.Default(); ok {
		literal, err := g.typeMapper.MapDefault(v)
		if err != nil {
			return "", "", err
		}
		parts = append(parts, "DEFAULT "+literal)
	}

	if col.IsUnique() && !col.IsPrimary() {
		parts = append(parts, "UNIQUE")
	}

	if col.IsPrimary() && singleKey {
		parts = append(parts, "PRIMARY KEY")
	}

	return strings.Join(parts, " "), sequence, nil
}

// Creator issues CREATE TABLE statements through a connection
type Creator struct {
	db        Execer
	generator *DDLGenerator
	retry     dbal.RetryConfig
	logger    *zap.Logger
}

// NewCreator creates a schema creator for a dialect
func NewCreator(db Execer, dialect dbal.Dialect, logger *zap.Logger) *Creator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Creator{
		db:        db,
		generator: NewDDLGenerator(dialect),
		retry:     dbal.DefaultRetryConfig(),
		logger:    logger,
	}
}

// WithRetry sets how often a transaction that failed on a deadlock or lock
// timeout is run again
func (c *Creator) WithRetry(config dbal.RetryConfig) *Creator {
	c.retry = config
	return c
}

// CreateTable creates a table unless it already exists. The statements run
// in one transaction when the connection supports it, retried on deadlocks
// and lock timeouts.
func (c *Creator) CreateTable(ctx context.Context, tableName string, columns []schema.ColumnDefinition) error {
	statements, err := c.generator.GenerateCreateTable(tableName, columns)
	if err != nil {
		return err
	}

	run := func(db Execer) error {
		for _, stmt := range statements {
			if _, err := db.Exec(ctx, stmt, nil); err != nil {
				return fmt.Errorf("failed to create table %s: %w", tableName, err)
			}
		}
		return nil
	}

	if conn, ok := c.db.(*dbal.Connection); ok {
		err = conn.TransactionalRetry(ctx, c.retry, func(tx *dbal.Tx) error { return run(tx) })
	} else {
		err = run(c.db)
	}
	if err != nil {
		return err
	}

	c.logger.Info("table created", zap.String("table", tableName))
	return nil
}
