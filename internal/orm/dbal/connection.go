// Package dbal adapts database/sql drivers to the connection tables query
// through: placeholder rebinding, pagination and driver error conversion.
package dbal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Options configures Open
type Options struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Option configures a Connection
type Option func(*Connection)

// WithLogger sets the query logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Connection executes queries against a database handle
type Connection struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// New wraps an open handle
func New(db *sql.DB, dialect Dialect, opts ...Option) *Connection {
	c := &Connection{
		db:      db,
		dialect: dialect,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens and pings a database
func Open(ctx context.Context, options Options, opts ...Option) (*Connection, error) {
	dialect, err := ParseDialect(options.Driver)
	if err != nil {
		return nil, err
	}
	if options.DSN == "" {
		return nil, fmt.Errorf("database dsn is required for driver %s", options.Driver)
	}

	db, err := sql.Open(options.Driver, options.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == SQLite {
		// A second connection would see a different in-memory database
		db.SetMaxOpenConns(1)
	} else if options.MaxOpenConns > 0 {
		db.SetMaxOpenConns(options.MaxOpenConns)
	}
	if options.MaxIdleConns > 0 {
		db.SetMaxIdleConns(options.MaxIdleConns)
	}
	if options.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(options.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db, dialect, opts...), nil
}

// Execute runs a query and returns its rows. Placeholders are written as "?"
// regardless of the dialect.
func (c *Connection) Execute(ctx context.Context, query string, params []interface{}) (RowSet, error) {
	query = c.dialect.Rebind(query)
	c.logger.Debug("query",
		zap.String("sql", query),
		zap.Int("params", len(params)),
	)

	rows, err := c.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return NewRows(rows), nil
}

// Exec runs a statement that returns no rows
func (c *Connection) Exec(ctx context.Context, query string, params []interface{}) (sql.Result, error) {
	query = c.dialect.Rebind(query)
	c.logger.Debug("exec",
		zap.String("sql", query),
		zap.Int("params", len(params)),
	)

	result, err := c.db.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return result, nil
}

// QueryScalar runs a query and scans the first column of its single row
func (c *Connection) QueryScalar(ctx context.Context, query string, params []interface{}, dest interface{}) error {
	query = c.dialect.Rebind(query)
	c.logger.Debug("query", zap.String("sql", query), zap.Int("params", len(params)))

	if err := c.db.QueryRowContext(ctx, query, params...).Scan(dest); err != nil {
		return ConvertDBError(err)
	}
	return nil
}

// ModifyLimitQuery applies pagination in the connection's dialect
func (c *Connection) ModifyLimitQuery(query string, limit, offset int) string {
	return c.dialect.ModifyLimitQuery(query, limit, offset)
}

// RawHandle returns the underlying handle
func (c *Connection) RawHandle() *sql.DB {
	return c.db
}

// Dialect returns the connection's dialect
func (c *Connection) Dialect() Dialect {
	return c.dialect
}

// Ping checks the database is reachable
func (c *Connection) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the underlying handle
func (c *Connection) Close() error {
	return c.db.Close()
}
