// Package schema provides column metadata for mapped components.
// It stores column definitions, derives the primary-key set and identifier
// strategy, and answers default-value and enum lookups.
package schema

import (
	"fmt"
	"strings"
)

// PrimitiveType represents the logical type of a column
type PrimitiveType int

const (
	// Numeric types
	TypeInteger PrimitiveType = iota
	TypeFloat
	TypeDecimal

	// Text types
	TypeString
	TypeClob

	// Boolean
	TypeBoolean

	// Enum (stored as the value index)
	TypeEnum

	// Time types
	TypeTimestamp
	TypeDate
	TypeTime

	// Serialized types
	TypeArray
	TypeObject
	TypeGzip

	// Binary
	TypeBlob
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeString:
		return "string"
	case TypeClob:
		return "clob"
	case TypeBoolean:
		return "boolean"
	case TypeEnum:
		return "enum"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	case TypeGzip:
		return "gzip"
	case TypeBlob:
		return "blob"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType.
// Common aliases (int, bool, text) are accepted.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return TypeInteger, nil
	case "float", "double":
		return TypeFloat, nil
	case "decimal":
		return TypeDecimal, nil
	case "string", "varchar":
		return TypeString, nil
	case "clob", "text":
		return TypeClob, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "enum":
		return TypeEnum, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "array":
		return TypeArray, nil
	case "object":
		return TypeObject, nil
	case "gzip":
		return TypeGzip, nil
	case "blob":
		return TypeBlob, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// IsNumeric returns true if values of the type are numbers
func (p PrimitiveType) IsNumeric() bool {
	return p == TypeInteger || p == TypeFloat || p == TypeDecimal || p == TypeEnum
}

// IsText returns true if values of the type are stored as text
func (p PrimitiveType) IsText() bool {
	switch p {
	case TypeString, TypeClob, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// Tableize converts a component name to its table name ("ArticleTag" -> "article_tag")
func Tableize(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			// Boundaries: camelCase ("userID" -> "user_id") and the end of an
			// acronym followed by a word ("HTTPServer" -> "http_server")
			if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' && prev != '_' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}
