package dbal

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavour of a connection
type Dialect string

const (
	// SQLite is served by github.com/mattn/go-sqlite3
	SQLite Dialect = "sqlite3"
	// Postgres is served by pgx or lib/pq
	Postgres Dialect = "postgres"
	// MySQL is served by github.com/go-sql-driver/mysql
	MySQL Dialect = "mysql"
)

// mysqlMaxLimit is the documented way to express an unbounded LIMIT in MySQL
const mysqlMaxLimit = "18446744073709551615"

// ParseDialect returns the dialect spoken by a database/sql driver name
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDialect, driver)
	}
}

// String returns the dialect name
func (d Dialect) String() string {
	return string(d)
}

// ModifyLimitQuery appends LIMIT and OFFSET clauses. Zero leaves the
// respective clause out.
func (d Dialect) ModifyLimitQuery(query string, limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return query
	}

	var b strings.Builder
	b.WriteString(query)

	switch {
	case limit > 0:
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	case d == SQLite:
		b.WriteString(" LIMIT -1")
	case d == MySQL:
		b.WriteString(" LIMIT ")
		b.WriteString(mysqlMaxLimit)
	}

	if offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(offset))
	}
	return b.String()
}

// Rebind rewrites "?" placeholders into the dialect's bind syntax.
// Placeholders inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QuoteIdentifier quotes a table or column name
func (d Dialect) QuoteIdentifier(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
