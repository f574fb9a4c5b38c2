package query

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpLike
	OpILike
	OpIsNull
	OpIsNotNull
	OpBetween
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpLike:
		return "LIKE"
	case OpILike:
		return "ILIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	default:
		return "UNKNOWN"
	}
}

// Condition represents a WHERE condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
	Or       bool // true for OR, false for AND
}

// ToSQL renders the condition with ? placeholders and appends its
// parameters to args
func (c *Condition) ToSQL(args *[]interface{}) (string, error) {
	switch c.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpLike, OpILike:
		*args = append(*args, c.Value)
		return fmt.Sprintf("%s %s ?", c.Field, c.Operator), nil

	case OpIn, OpNotIn:
		values, ok := c.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("%s operator requires []interface{} value", c.Operator)
		}
		if len(values) == 0 {
			// IN () matches nothing, NOT IN () matches everything
			if c.Operator == OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		*args = append(*args, values...)
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return fmt.Sprintf("%s %s (%s)", c.Field, c.Operator, placeholders), nil

	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", c.Field, c.Operator), nil

	case OpBetween:
		values, ok := c.Value.([]interface{})
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("BETWEEN operator requires [min, max] values")
		}
		*args = append(*args, values[0], values[1])
		return fmt.Sprintf("%s BETWEEN ? AND ?", c.Field), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", c.Operator)
	}
}

// rawPredicate is a where fragment with its own parameters
type rawPredicate struct {
	fragment string
	params   []interface{}
}

// joinConditions renders conditions joined by their AND/OR connectors
func joinConditions(conditions []*Condition, args *[]interface{}) (string, error) {
	var b strings.Builder
	for i, cond := range conditions {
		if i > 0 {
			if cond.Or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		sql, err := cond.ToSQL(args)
		if err != nil {
			return "", fmt.Errorf("failed to build condition on %s: %w", cond.Field, err)
		}
		b.WriteString(sql)
	}
	return b.String(), nil
}
