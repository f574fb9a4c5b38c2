// Package inheritance holds the single-table inheritance discriminators of a
// table and applies them to generated predicates.
package inheritance

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Discriminator is a column that must hold Value for a row to belong to a subtype
type Discriminator struct {
	Column string
	Value  interface{}
}

// Map is an ordered set of discriminators. The zero value has no inheritance.
type Map struct {
	discriminators []Discriminator
}

// New creates a map from discriminators in the given order. A repeated
// column keeps its first position and takes the last value.
func New(discriminators ...Discriminator) Map {
	var m Map
	for _, d := range discriminators {
		m = m.With(d.Column, d.Value)
	}
	return m
}

// With returns a copy of m that also requires column = value
func (m Map) With(column string, value interface{}) Map {
	column = strings.ToLower(strings.TrimSpace(column))
	out := Map{discriminators: append([]Discriminator(nil), m.discriminators...)}
	for i := range out.discriminators {
		if out.discriminators[i].Column == column {
			out.discriminators[i].Value = value
			return out
		}
	}
	out.discriminators = append(out.discriminators, Discriminator{Column: column, Value: value})
	return out
}

// Empty returns true when no discriminator is set
func (m Map) Empty() bool {
	return len(m.discriminators) == 0
}

// Discriminators returns the discriminators in order
func (m Map) Discriminators() []Discriminator {
	return append([]Discriminator(nil), m.discriminators...)
}

// Columns returns the discriminator columns in order
func (m Map) Columns() []string {
	return lo.Map(m.discriminators, func(d Discriminator, _ int) string {
		return d.Column
	})
}

// Params returns the discriminator values in the order of their placeholders
func (m Map) Params() []interface{} {
	return lo.Map(m.discriminators, func(d Discriminator, _ int) interface{} {
		return d.Value
	})
}

// Clause returns "col = ? AND col2 = ?", or an empty string when m is empty
func (m Map) Clause() string {
	return strings.Join(lo.Map(m.discriminators, func(d Discriminator, _ int) string {
		return d.Column + " = ?"
	}), " AND ")
}

// Apply appends " AND col = ?" to where for every discriminator
func (m Map) Apply(where string) string {
	if m.Empty() {
		return where
	}
	return where + " AND " + m.Clause()
}

// Matches reports whether a fetched row satisfies every discriminator.
// Column names match case-insensitively and a column the row does not hold
// is not checked. Values are compared by their formatted representation
// since drivers return numbers and strings in differing Go types.
func (m Map) Matches(row map[string]interface{}) bool {
	for _, d := range m.discriminators {
		v, ok := lookup(row, d.Column)
		if !ok {
			continue
		}
		if b, isBytes := v.([]byte); isBytes {
			v = string(b)
		}
		if fmt.Sprint(v) != fmt.Sprint(d.Value) {
			return false
		}
	}
	return true
}

func lookup(row map[string]interface{}, column string) (interface{}, bool) {
	if v, ok := row[column]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}
