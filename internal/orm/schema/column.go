package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known option names
const (
	OptionPrimary       = "primary"
	OptionAutoIncrement = "autoincrement"
	OptionDefault       = "default"
	OptionSequence      = "seq"
	OptionNotNull       = "notnull"
	OptionUnique        = "unique"
)

// Option is a single column option. Flags carry the value true.
type Option struct {
	Name  string
	Value interface{}
}

// Options is an ordered option set. Order matters when the identifier
// strategy is derived: the first recognized token wins.
type Options []Option

// Get returns the value of the named option
func (o Options) Get(name string) (interface{}, bool) {
	for _, opt := range o {
		if opt.Name == name {
			return opt.Value, true
		}
	}
	return nil, false
}

// Has returns true if the named option is present
func (o Options) Has(name string) bool {
	_, ok := o.Get(name)
	return ok
}

// set replaces an existing option or appends a new one
func (o Options) set(name string, value interface{}) Options {
	for i := range o {
		if o[i].Name == name {
			o[i].Value = value
			return o
		}
	}
	return append(o, Option{Name: name, Value: value})
}

// ParseOptions normalizes the accepted option forms into an ordered set:
//
//   - "primary|autoincrement|default:0|seq:users_seq" (shorthand string)
//   - []string{"primary", "notnull"} (flags)
//   - map[string]interface{}{"default": "x", "primary": true} (explicit pairs, sorted by name)
//   - Options (used as is)
//
// Empty flags are dropped. Names are lower-cased.
func ParseOptions(v interface{}) (Options, error) {
	var opts Options

	switch val := v.(type) {
	case nil:
		return Options{}, nil
	case string:
		for _, token := range strings.Split(val, "|") {
			opts = addToken(opts, token)
		}
	case []string:
		for _, token := range val {
			opts = addToken(opts, token)
		}
	case map[string]interface{}:
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			opts = addPair(opts, name, val[name])
		}
	case Options:
		for _, opt := range val {
			opts = addPair(opts, opt.Name, opt.Value)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported option type %T", ErrConfiguration, v)
	}

	if opts == nil {
		opts = Options{}
	}
	return opts, nil
}

// addToken parses a shorthand token ("flag" or "name:value")
func addToken(opts Options, token string) Options {
	token = strings.TrimSpace(token)
	if token == "" {
		return opts
	}

	name, value, found := strings.Cut(token, ":")
	if !found {
		return opts.set(strings.ToLower(token), true)
	}
	return opts.set(strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value))
}

// addPair adds an explicit name/value pair; "seq:name" keys are split
func addPair(opts Options, name string, value interface{}) Options {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return opts
	}
	if prefix, seq, found := strings.Cut(name, ":"); found && prefix == OptionSequence {
		return opts.set(OptionSequence, seq)
	}
	return opts.set(name, value)
}

// ColumnDefinition describes a single declared column
type ColumnDefinition struct {
	Name    string
	Type    PrimitiveType
	Length  int
	Options Options
}

// IsPrimary returns true if the column is part of the primary key
func (c ColumnDefinition) IsPrimary() bool {
	return c.Options.Has(OptionPrimary)
}

// IsAutoIncrement returns true if the column value is generated by the database
func (c ColumnDefinition) IsAutoIncrement() bool {
	return c.Options.Has(OptionAutoIncrement)
}

// IsNotNull returns true if the column rejects NULL values
func (c ColumnDefinition) IsNotNull() bool {
	return c.Options.Has(OptionNotNull)
}

// IsUnique returns true if the column carries a unique constraint
func (c ColumnDefinition) IsUnique() bool {
	return c.Options.Has(OptionUnique)
}

// Default returns the declared default value
func (c ColumnDefinition) Default() (interface{}, bool) {
	return c.Options.Get(OptionDefault)
}

// Sequence returns the sequence name when the column uses one.
// A bare "seq" flag yields an empty name.
func (c ColumnDefinition) Sequence() (string, bool) {
	v, ok := c.Options.Get(OptionSequence)
	if !ok {
		return "", false
	}
	name, _ := v.(string)
	return name, true
}

// clone returns a copy that does not share the option slice
func (c ColumnDefinition) clone() ColumnDefinition {
	opts := make(Options, len(c.Options))
	copy(opts, c.Options)
	c.Options = opts
	return c
}
