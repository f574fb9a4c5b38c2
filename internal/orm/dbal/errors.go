package dbal

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNoRows is returned when a query expected a row and got none
	ErrNoRows = errors.New("no rows in result set")

	// ErrUnsupportedDialect is returned for drivers without a dialect
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConvertDBError converts driver-specific errors to the errors of this package
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}

	// PostgreSQL through pgx
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if converted := convertSQLState(pgErr.Code, pgErr.Detail, pgErr.ColumnName); converted != nil {
			return converted
		}
		return err
	}

	// PostgreSQL through lib/pq
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if converted := convertSQLState(string(pqErr.Code), pqErr.Detail, pqErr.Column); converted != nil {
			return converted
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // ER_DUP_ENTRY
			return fmt.Errorf("%w: %s", ErrUniqueViolation, myErr.Message)
		case 1451, 1452: // ER_ROW_IS_REFERENCED_2, ER_NO_REFERENCED_ROW_2
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, myErr.Message)
		case 1048: // ER_BAD_NULL_ERROR
			return fmt.Errorf("%w: %s", ErrNotNullViolation, myErr.Message)
		case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
			return fmt.Errorf("%w: %s", ErrCheckViolation, myErr.Message)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, liteErr.Error())
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, liteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, liteErr.Error())
		}
	}

	return err
}

// convertSQLState maps PostgreSQL SQLSTATE codes
func convertSQLState(code, detail, column string) error {
	switch code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %s", ErrUniqueViolation, detail)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", ErrForeignKeyViolation, detail)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", ErrCheckViolation, detail)
	case "23502": // not_null_violation
		return fmt.Errorf("%w: column %s", ErrNotNullViolation, column)
	}
	return nil
}
