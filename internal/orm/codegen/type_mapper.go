// Package codegen generates and runs the DDL of tables when the create
// tables mode is enabled.
package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conduit-lang/tablemap/internal/orm/dbal"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

// TypeMapper maps column types to the column types of a dialect
type TypeMapper struct {
	dialect dbal.Dialect
}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper(dialect dbal.Dialect) *TypeMapper {
	return &TypeMapper{dialect: dialect}
}

// MapType converts a column definition to a column type
func (tm *TypeMapper) MapType(def schema.ColumnDefinition) (string, error) {
	switch def.Type {
	case schema.TypeInteger, schema.TypeEnum:
		if def.Length > 11 {
			return "BIGINT", nil
		}
		if tm.dialect == dbal.MySQL {
			return "INT", nil
		}
		return "INTEGER", nil

	case schema.TypeFloat:
		switch tm.dialect {
		case dbal.SQLite:
			return "REAL", nil
		case dbal.MySQL:
			return "DOUBLE", nil
		}
		return "DOUBLE PRECISION", nil

	case schema.TypeDecimal:
		if tm.dialect == dbal.MySQL {
			return "DECIMAL(65,30)", nil
		}
		return "NUMERIC", nil

	case schema.TypeString:
		if def.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", def.Length), nil
		}
		return "TEXT", nil

	case schema.TypeClob, schema.TypeArray, schema.TypeObject:
		if tm.dialect == dbal.MySQL {
			return "LONGTEXT", nil
		}
		return "TEXT", nil

	case schema.TypeBoolean:
		if tm.dialect == dbal.MySQL {
			return "TINYINT(1)", nil
		}
		return "BOOLEAN", nil

	case schema.TypeTimestamp:
		if tm.dialect == dbal.MySQL {
			return "DATETIME", nil
		}
		return "TIMESTAMP", nil

	case schema.TypeDate:
		return "DATE", nil

	case schema.TypeTime:
		return "TIME", nil

	case schema.TypeBlob, schema.TypeGzip:
		switch tm.dialect {
		case dbal.Postgres:
			return "BYTEA", nil
		case dbal.MySQL:
			return "LONGBLOB", nil
		}
		return "BLOB", nil

	default:
		return "", fmt.Errorf("unsupported column type: %s", def.Type)
	}
}

// MapAutoIncrement returns the type and modifiers of a single autoincrement key
func (tm *TypeMapper) MapAutoIncrement(def schema.ColumnDefinition) string {
	switch tm.dialect {
	case dbal.Postgres:
		if def.Length > 11 {
			return "BIGSERIAL PRIMARY KEY"
		}
		return "SERIAL PRIMARY KEY"
	case dbal.MySQL:
		if def.Length > 11 {
			return "BIGINT AUTO_INCREMENT PRIMARY KEY"
		}
		return "INT AUTO_INCREMENT PRIMARY KEY"
	default:
		// SQLite only honours AUTOINCREMENT on an INTEGER PRIMARY KEY
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// MapDefault renders a default value as a SQL literal
func (tm *TypeMapper) MapDefault(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case bool:
		if tm.dialect == dbal.Postgres {
			return strings.ToUpper(strconv.FormatBool(v)), nil
		}
		if v {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05") + "'", nil
	default:
		return "", fmt.Errorf("unsupported default value type %T", value)
	}
}

// QuoteIdentifier quotes a table or column name
func (tm *TypeMapper) QuoteIdentifier(name string) string {
	return tm.dialect.QuoteIdentifier(name)
}
