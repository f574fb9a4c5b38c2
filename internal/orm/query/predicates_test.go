package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperator_String(t *testing.T) {
	tests := []struct {
		op       Operator
		expected string
	}{
		{OpEqual, "="},
		{OpNotEqual, "!="},
		{OpGreaterThan, ">"},
		{OpGreaterThanOrEqual, ">="},
		{OpLessThan, "<"},
		{OpLessThanOrEqual, "<="},
		{OpIn, "IN"},
		{OpNotIn, "NOT IN"},
		{OpLike, "LIKE"},
		{OpILike, "ILIKE"},
		{OpIsNull, "IS NULL"},
		{OpIsNotNull, "IS NOT NULL"},
		{OpBetween, "BETWEEN"},
		{Operator(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.op.String())
	}
}

func TestCondition_ToSQL(t *testing.T) {
	tests := []struct {
		name     string
		cond     Condition
		wantSQL  string
		wantArgs []interface{}
	}{
		{"equal", Condition{Field: "title", Operator: OpEqual, Value: "x"}, "title = ?", []interface{}{"x"}},
		{"greater", Condition{Field: "views", Operator: OpGreaterThan, Value: 10}, "views > ?", []interface{}{10}},
		{"like", Condition{Field: "title", Operator: OpLike, Value: "%go%"}, "title LIKE ?", []interface{}{"%go%"}},
		{"in", Condition{Field: "id", Operator: OpIn, Value: []interface{}{1, 2, 3}}, "id IN (?, ?, ?)", []interface{}{1, 2, 3}},
		{"not in", Condition{Field: "id", Operator: OpNotIn, Value: []interface{}{4}}, "id NOT IN (?)", []interface{}{4}},
		{"empty in", Condition{Field: "id", Operator: OpIn, Value: []interface{}{}}, "1 = 0", nil},
		{"empty not in", Condition{Field: "id", Operator: OpNotIn, Value: []interface{}{}}, "1 = 1", nil},
		{"is null", Condition{Field: "body", Operator: OpIsNull}, "body IS NULL", nil},
		{"is not null", Condition{Field: "body", Operator: OpIsNotNull}, "body IS NOT NULL", nil},
		{"between", Condition{Field: "views", Operator: OpBetween, Value: []interface{}{1, 9}}, "views BETWEEN ? AND ?", []interface{}{1, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args []interface{}
			sql, err := tt.cond.ToSQL(&args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCondition_ToSQLErrors(t *testing.T) {
	var args []interface{}

	_, err := (&Condition{Field: "id", Operator: OpIn, Value: 1}).ToSQL(&args)
	assert.Error(t, err)

	_, err = (&Condition{Field: "views", Operator: OpBetween, Value: []interface{}{1}}).ToSQL(&args)
	assert.Error(t, err)

	_, err = (&Condition{Field: "id", Operator: Operator(99)}).ToSQL(&args)
	assert.Error(t, err)

	assert.Empty(t, args)
}

func TestJoinConditions(t *testing.T) {
	var args []interface{}
	sql, err := joinConditions([]*Condition{
		{Field: "status", Operator: OpEqual, Value: 1},
		{Field: "views", Operator: OpGreaterThan, Value: 100, Or: true},
		{Field: "title", Operator: OpIsNotNull},
	}, &args)

	require.NoError(t, err)
	assert.Equal(t, "status = ? OR views > ? AND title IS NOT NULL", sql)
	assert.Equal(t, []interface{}{1, 100}, args)

	_, err = joinConditions([]*Condition{{Field: "id", Operator: OpIn, Value: "x"}}, &args)
	assert.ErrorContains(t, err, "condition on id")
}
