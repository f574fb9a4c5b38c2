// Package query builds the select statements of a table and returns their
// results as lazy collections.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/orm/dbal"
	"github.com/conduit-lang/tablemap/internal/orm/identity"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
	"github.com/conduit-lang/tablemap/internal/orm/table"
)

// Builder serves FindAll and FindBySQL of the tables of a registry
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a builder
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Query returns a collection of the records of t matching where. Nothing is
// executed until the collection is first read.
func (b *Builder) Query(_ context.Context, t *table.Table, where string, params []interface{}) *table.Collection {
	s := From(t)
	if where != "" {
		s.WhereRaw(where, params...)
	}
	b.logger.Debug("query built",
		zap.String("component", t.ComponentName()),
		zap.String("where", where),
	)
	return s.Collection()
}

// Select is a select statement on one table
type Select struct {
	table      *table.Table
	conditions []*Condition
	raw        []rawPredicate
	orderBy    []string
	limit      int
	offset     int
	err        error
}

// From starts a select on t
func From(t *table.Table) *Select {
	return &Select{table: t}
}

// Where adds a WHERE condition on a declared column
func (s *Select) Where(field string, op Operator, value interface{}) *Select {
	return s.addCondition(field, op, value, false)
}

// OrWhere adds an OR WHERE condition on a declared column
func (s *Select) OrWhere(field string, op Operator, value interface{}) *Select {
	return s.addCondition(field, op, value, true)
}

func (s *Select) addCondition(field string, op Operator, value interface{}, or bool) *Select {
	field = strings.ToLower(field)
	if !s.table.Columns().Has(field) {
		if s.err == nil {
			s.err = fmt.Errorf("%w: %s has no column %s", schema.ErrUnknownColumn, s.table.ComponentName(), field)
		}
		return s
	}

	s.conditions = append(s.conditions, &Condition{
		Field:    field,
		Operator: op,
		Value:    value,
		Or:       or,
	})
	return s
}

// WhereIn adds a WHERE IN condition
func (s *Select) WhereIn(field string, values []interface{}) *Select {
	return s.Where(field, OpIn, values)
}

// WhereNull adds a WHERE IS NULL condition
func (s *Select) WhereNull(field string) *Select {
	return s.Where(field, OpIsNull, nil)
}

// WhereLike adds a WHERE LIKE condition
func (s *Select) WhereLike(field string, pattern string) *Select {
	return s.Where(field, OpLike, pattern)
}

// WhereBetween adds a WHERE BETWEEN condition
func (s *Select) WhereBetween(field string, min, max interface{}) *Select {
	return s.Where(field, OpBetween, []interface{}{min, max})
}

// WhereRaw adds a where fragment with ? placeholders. Fragments are ANDed
// with everything else.
func (s *Select) WhereRaw(fragment string, params ...interface{}) *Select {
	s.raw = append(s.raw, rawPredicate{fragment: fragment, params: params})
	return s
}

// OrderBy adds an ORDER BY clause
func (s *Select) OrderBy(field string, direction string) *Select {
	dir := strings.ToUpper(direction)
	if dir != "ASC" && dir != "DESC" {
		dir = "ASC"
	}
	s.orderBy = append(s.orderBy, fmt.Sprintf("%s %s", strings.ToLower(field), dir))
	return s
}

// OrderByAsc adds an ascending ORDER BY clause
func (s *Select) OrderByAsc(field string) *Select {
	return s.OrderBy(field, "ASC")
}

// OrderByDesc adds a descending ORDER BY clause
func (s *Select) OrderByDesc(field string) *Select {
	return s.OrderBy(field, "DESC")
}

// Limit sets the maximum number of records
func (s *Select) Limit(n int) *Select {
	s.limit = n
	return s
}

// Offset sets the number of records to skip
func (s *Select) Offset(n int) *Select {
	s.offset = n
	return s
}

// where renders the WHERE clause, discriminators included, without the
// WHERE keyword
func (s *Select) where() (string, []interface{}, error) {
	if s.err != nil {
		return "", nil, s.err
	}

	var (
		parts []string
		args  []interface{}
	)

	if len(s.conditions) > 0 {
		sql, err := joinConditions(s.conditions, &args)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
	}
	for _, raw := range s.raw {
		parts = append(parts, raw.fragment)
		args = append(args, raw.params...)
	}

	inheritance := s.table.Inheritance()
	if len(parts) == 0 {
		if inheritance.Empty() {
			return "", nil, nil
		}
		return inheritance.Clause(), inheritance.Params(), nil
	}
	if len(parts) > 1 || !inheritance.Empty() {
		for i, part := range parts {
			parts[i] = "(" + part + ")"
		}
	}
	return inheritance.Apply(strings.Join(parts, " AND ")), append(args, inheritance.Params()...), nil
}

// ToSQL returns the statement and its parameters. Limit and offset are
// applied by the connection when the statement runs.
func (s *Select) ToSQL() (string, []interface{}, error) {
	where, args, err := s.where()
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString(s.table.Query())
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if len(s.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.orderBy, ", "))
	}
	return b.String(), args, nil
}

// Collection returns a lazy collection of the matching records
func (s *Select) Collection() *table.Collection {
	return table.NewLazyCollection(s.table, func(ctx context.Context) ([]*identity.Record, error) {
		query, args, err := s.ToSQL()
		if err != nil {
			return nil, fmt.Errorf("failed to generate SQL: %w", err)
		}
		c, err := s.table.Execute(ctx, query, args, s.limit, s.offset)
		if err != nil {
			return nil, err
		}
		return c.Records(ctx)
	})
}

// All executes the statement and returns every matching record
func (s *Select) All(ctx context.Context) ([]*identity.Record, error) {
	return s.Collection().Records(ctx)
}

// First returns the first matching record
func (s *Select) First(ctx context.Context) (*identity.Record, error) {
	s.limit = 1
	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", table.ErrNotFound, s.table.ComponentName())
	}
	return records[0], nil
}

// Count returns the number of matching rows
func (s *Select) Count(ctx context.Context) (int, error) {
	where, args, err := s.where()
	if err != nil {
		return 0, fmt.Errorf("failed to generate SQL: %w", err)
	}

	query := "SELECT COUNT(1) FROM " + s.table.Name()
	if where != "" {
		query += " WHERE " + where
	}

	rs, err := s.table.Connection().Execute(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("failed to execute count query: %w", err)
	}
	rows, err := dbal.FetchAll(rs)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, v := range rows[0] {
		return cast.ToIntE(v)
	}
	return 0, nil
}

// Exists checks if any rows match
func (s *Select) Exists(ctx context.Context) (bool, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
