package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	t.Run("shorthand string", func(t *testing.T) {
		opts, err := ParseOptions("primary|AutoIncrement||default:draft|seq:users_seq")
		require.NoError(t, err)

		assert.Equal(t, Options{
			{Name: "primary", Value: true},
			{Name: "autoincrement", Value: true},
			{Name: "default", Value: "draft"},
			{Name: "seq", Value: "users_seq"},
		}, opts)
	})

	t.Run("flag slice", func(t *testing.T) {
		opts, err := ParseOptions([]string{"notnull", "", "unique"})
		require.NoError(t, err)
		assert.True(t, opts.Has(OptionNotNull))
		assert.True(t, opts.Has(OptionUnique))
		assert.Len(t, opts, 2)
	})

	t.Run("explicit pairs", func(t *testing.T) {
		opts, err := ParseOptions(map[string]interface{}{
			"default":    0,
			"Primary":    true,
			"seq:orders": true,
		})
		require.NoError(t, err)

		v, ok := opts.Get(OptionDefault)
		assert.True(t, ok)
		assert.Equal(t, 0, v)

		seq, ok := opts.Get(OptionSequence)
		assert.True(t, ok)
		assert.Equal(t, "orders", seq)
		assert.True(t, opts.Has(OptionPrimary))
	})

	t.Run("nil", func(t *testing.T) {
		opts, err := ParseOptions(nil)
		require.NoError(t, err)
		assert.Empty(t, opts)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ParseOptions(42)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestColumns_Define(t *testing.T) {
	c := NewColumns()

	require.NoError(t, c.Define("Title", TypeString, 200, "notnull|default:untitled"))
	require.NoError(t, c.Define("body", TypeClob, 0, nil))

	assert.True(t, c.Has("title"))
	assert.True(t, c.Has("TITLE"))
	assert.Equal(t, []string{"title", "body"}, c.Names())
	assert.True(t, c.HasDefaultValues())

	def, ok := c.Definition("title")
	require.True(t, ok)
	assert.Equal(t, TypeString, def.Type)
	assert.Equal(t, 200, def.Length)
	assert.True(t, def.IsNotNull())

	typ, err := c.TypeOf("body")
	require.NoError(t, err)
	assert.Equal(t, TypeClob, typ)

	_, err = c.TypeOf("missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	err = c.Define("", TypeString, 0, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestColumns_FinalizeWithoutPrimaryKey(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.Define("name", TypeString, 50, nil))

	id, err := c.Finalize("")
	require.NoError(t, err)

	assert.Equal(t, IdentifierAutoIncrement, id.Strategy)
	assert.Equal(t, []string{"id"}, id.Columns)
	assert.Equal(t, []string{"id"}, c.PrimaryKeys())
	assert.Equal(t, []string{"id", "name"}, c.Names())
	assert.Equal(t, 2, c.Count())

	def, ok := c.Definition("id")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, def.Type)
	assert.Equal(t, 11, def.Length)
	assert.True(t, def.IsPrimary())
	assert.True(t, def.IsAutoIncrement())

	// Exactly one identifier column exists
	count := 0
	for _, d := range c.Definitions() {
		if d.IsPrimary() {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestColumns_FinalizeSingleKey(t *testing.T) {
	tests := []struct {
		name     string
		options  interface{}
		strategy IdentifierStrategy
		sequence string
	}{
		{"autoincrement", "primary|autoincrement", IdentifierAutoIncrement, ""},
		{"named sequence", "primary|seq:user_seq", IdentifierSequence, "user_seq"},
		{"bare sequence", "primary|seq", IdentifierSequence, ""},
		{"normal", "primary", IdentifierNormal, ""},
		{"first token wins", "primary|seq:s|autoincrement", IdentifierSequence, "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewColumns()
			require.NoError(t, c.Define("user_id", TypeInteger, 11, tt.options))
			require.NoError(t, c.Define("name", TypeString, 50, nil))

			id, err := c.Finalize("id")
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, id.Strategy)
			assert.Equal(t, tt.sequence, id.Sequence)
			assert.Equal(t, "user_id", id.Name())
			assert.False(t, c.Has("id"))
		})
	}
}

func TestColumns_FinalizeComposite(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.Define("org_id", TypeInteger, 11, "primary"))
	require.NoError(t, c.Define("role", TypeString, 20, nil))
	require.NoError(t, c.Define("user_id", TypeInteger, 11, "primary"))

	id, err := c.Finalize("id")
	require.NoError(t, err)

	assert.Equal(t, IdentifierComposite, id.Strategy)
	assert.True(t, id.IsComposite())
	assert.Equal(t, []string{"org_id", "user_id"}, c.PrimaryKeys())
	assert.Equal(t, "org_id,user_id", id.Name())
}

func TestColumns_SetPrimaryKey(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.Define("a", TypeInteger, 11, nil))
	require.NoError(t, c.Define("b", TypeInteger, 11, nil))
	require.NoError(t, c.SetPrimaryKey("B", "a"))

	id, err := c.Finalize("id")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, id.Columns)

	assert.ErrorIs(t, c.SetPrimaryKey("a"), ErrConfiguration)
}

func TestColumns_FinalizeOnce(t *testing.T) {
	c := NewColumns()
	_, err := c.Finalize("id")
	require.NoError(t, err)
	assert.True(t, c.Finalized())

	_, err = c.Finalize("id")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestColumns_FinalizeUndeclaredKey(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.SetPrimaryKey("ghost"))

	_, err := c.Finalize("id")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestColumns_DefineAfterFinalize(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.Define("code", TypeString, 10, "primary"))
	require.NoError(t, c.Define("label", TypeString, 10, nil))
	_, err := c.Finalize("id")
	require.NoError(t, err)

	// Same primary key state is accepted
	require.NoError(t, c.Define("label", TypeString, 40, nil))
	def, _ := c.Definition("label")
	assert.Equal(t, 40, def.Length)

	// Conflicting primary key state is rejected
	err = c.Define("label", TypeString, 40, "primary")
	assert.ErrorIs(t, err, ErrConfiguration)

	err = c.Define("code", TypeString, 10, nil)
	assert.ErrorIs(t, err, ErrConfiguration)

	assert.Equal(t, []string{"code"}, c.PrimaryKeys())
}

func TestColumns_DefaultValue(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.Define("status", TypeString, 10, map[string]interface{}{"default": "draft"}))
	require.NoError(t, c.Define("title", TypeString, 10, nil))

	v, ok, err := c.DefaultValue("STATUS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "draft", v)

	v, ok, err = c.DefaultValue("title")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	_, _, err = c.DefaultValue("missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	assert.Equal(t, map[string]interface{}{"status": "draft"}, c.Defaults())
}

func TestColumns_Enums(t *testing.T) {
	c := NewColumns()
	c.SetEnumValues("Status", "draft", "published", "archived")

	assert.Equal(t, "published", c.EnumValue("status", 1))
	assert.Equal(t, 7, c.EnumValue("status", 7))
	assert.Equal(t, 3, c.EnumValue("unmapped", 3))
	assert.Equal(t, -1, c.EnumValue("status", -1))

	idx, ok := c.EnumIndex("status", "archived")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = c.EnumIndex("status", "deleted")
	assert.False(t, ok)

	_, ok = c.EnumIndex("unmapped", "draft")
	assert.False(t, ok)

	assert.Equal(t, []interface{}{"draft", "published", "archived"}, c.EnumValues("status"))
	assert.Empty(t, c.EnumValues("unmapped"))
}

func TestColumns_ReturnedSlicesAreCopies(t *testing.T) {
	c := NewColumns()
	require.NoError(t, c.Define("a", TypeInteger, 11, "primary"))
	_, err := c.Finalize("id")
	require.NoError(t, err)

	keys := c.PrimaryKeys()
	keys[0] = "mutated"
	assert.Equal(t, []string{"a"}, c.PrimaryKeys())

	def, _ := c.Definition("a")
	def.Options[0].Name = "mutated"
	again, _ := c.Definition("a")
	assert.True(t, again.IsPrimary())
}
