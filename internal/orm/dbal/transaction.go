package dbal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries is the default number of attempts for retryable failures
	DefaultMaxRetries = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// ErrRetriesExhausted is returned when every attempt of a transaction failed
// with a retryable error
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// RetryConfig configures TransactionalRetry
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  DefaultMaxRetries,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// Tx executes statements inside a transaction with the rebinding and error
// conversion of its connection
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
	logger  *zap.Logger
}

// Execute runs a query inside the transaction
func (t *Tx) Execute(ctx context.Context, query string, params []interface{}) (RowSet, error) {
	query = t.dialect.Rebind(query)
	t.logger.Debug("query", zap.String("sql", query), zap.Int("params", len(params)), zap.Bool("tx", true))

	rows, err := t.tx.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return NewRows(rows), nil
}

// Exec runs a statement inside the transaction
func (t *Tx) Exec(ctx context.Context, query string, params []interface{}) (sql.Result, error) {
	query = t.dialect.Rebind(query)
	t.logger.Debug("exec", zap.String("sql", query), zap.Int("params", len(params)), zap.Bool("tx", true))

	result, err := t.tx.ExecContext(ctx, query, params...)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return result, nil
}

// Transactional runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when it returns an error or panics.
func (c *Connection) Transactional(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", ConvertDBError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, dialect: c.dialect, logger: c.logger}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", ConvertDBError(err))
	}
	return nil
}

// TransactionalRetry runs Transactional again when it fails with a deadlock,
// serialization or lock failure, backing off exponentially between attempts
func (c *Connection) TransactionalRetry(ctx context.Context, config RetryConfig, fn func(*Tx) error) error {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("transaction cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		err := c.Transactional(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		backoff := config.BaseBackoff * time.Duration(1<<uint(attempt))
		c.logger.Debug("retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, config.MaxRetries, lastErr)
}

// IsRetryable reports whether err is a deadlock, serialization or lock
// failure that may succeed when the transaction runs again
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40P01" || pqErr.Code == "40001"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return myErr.Number == 1213 || myErr.Number == 1205
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	return false
}
