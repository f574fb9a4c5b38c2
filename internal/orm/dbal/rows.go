package dbal

import (
	"database/sql"
	"fmt"
)

// RowSet iterates over query results as column/value maps
type RowSet interface {
	Columns() ([]string, error)
	Next() bool
	Row() (map[string]interface{}, error)
	Err() error
	Close() error
}

// Rows adapts *sql.Rows to RowSet
type Rows struct {
	rows    *sql.Rows
	columns []string
}

// NewRows wraps rows
func NewRows(rows *sql.Rows) *Rows {
	return &Rows{rows: rows}
}

// Columns returns the result column names
func (r *Rows) Columns() ([]string, error) {
	if r.columns == nil {
		columns, err := r.rows.Columns()
		if err != nil {
			return nil, err
		}
		r.columns = columns
	}
	return r.columns, nil
}

// Next advances to the next row
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Row scans the current row into a map keyed by column name.
// Byte slices are converted to strings.
func (r *Rows) Row() (map[string]interface{}, error) {
	columns, err := r.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := r.rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		row[col] = val
	}
	return row, nil
}

// Err returns the error encountered during iteration
func (r *Rows) Err() error {
	return ConvertDBError(r.rows.Err())
}

// Close releases the result set
func (r *Rows) Close() error {
	return r.rows.Close()
}

// FetchAll drains rs and closes it
func FetchAll(rs RowSet) ([]map[string]interface{}, error) {
	defer rs.Close()

	var rows []map[string]interface{}
	for rs.Next() {
		row, err := rs.Row()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
