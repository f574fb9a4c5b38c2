package table

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablemap/internal/cache"
	"github.com/conduit-lang/tablemap/internal/orm/codegen"
	"github.com/conduit-lang/tablemap/internal/orm/dbal"
	"github.com/conduit-lang/tablemap/internal/orm/relationships"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

type recordingCreator struct {
	tables  []string
	columns map[string][]string
	err     error
}

func (c *recordingCreator) CreateTable(_ context.Context, tableName string, columns []schema.ColumnDefinition) error {
	c.tables = append(c.tables, tableName)
	if c.columns == nil {
		c.columns = make(map[string][]string)
	}
	for _, col := range columns {
		c.columns[tableName] = append(c.columns[tableName], col.Name)
	}
	return c.err
}

func TestRegistry_Register(t *testing.T) {
	r, _ := setupMock(t)

	require.NoError(t, r.Register(article()))
	assert.ErrorIs(t, r.Register(article()), ErrDuplicateComponent)
	assert.ErrorIs(t, r.Register(Component{Name: "  "}), schema.ErrConfiguration)
	assert.Equal(t, []string{"Article"}, r.Components())

	_, err := r.Table("Comment")
	assert.ErrorIs(t, err, ErrUnknownComponent)
}

func TestRegistry_TableIsBuiltOnce(t *testing.T) {
	calls := 0
	c := article()
	define := c.Define
	c.Define = func(d *Definition) {
		calls++
		define(d)
	}

	r, _ := setupMock(t)
	require.NoError(t, r.Register(c))

	first, err := r.Table("Article")
	require.NoError(t, err)
	second, err := r.Table("Article")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRegistry_BuildErrors(t *testing.T) {
	r, _ := setupMock(t)

	require.NoError(t, r.Register(Component{Name: "Orphan", Parents: []string{"Missing"}}))
	_, err := r.Table("Orphan")
	assert.ErrorIs(t, err, ErrUnknownComponent)

	require.NoError(t, r.Register(Component{
		Name: "Broken",
		Define: func(d *Definition) {
			d.HasColumn("a", schema.TypeString, 0, 42)
			d.HasColumn("b", schema.TypeString, 0, nil)
		},
	}))
	_, err = r.Table("Broken")
	assert.ErrorIs(t, err, schema.ErrConfiguration)

	setUpErr := errors.New("boom")
	require.NoError(t, r.Register(Component{
		Name:  "Failing",
		SetUp: func(*Table) error { return setUpErr },
	}))
	_, err = r.Table("Failing")
	assert.ErrorIs(t, err, setUpErr)

	require.NoError(t, r.Register(Component{
		Name: "Twice",
		SetUp: func(t *Table) error {
			if err := t.HasOne("Profile", "Profile.user_id"); err != nil {
				return err
			}
			return t.HasOne("Profile", "Profile.owner_id")
		},
	}))
	_, err = r.Table("Twice")
	assert.ErrorIs(t, err, relationships.ErrDuplicateRelation)
}

func TestRegistry_Options(t *testing.T) {
	creator := &recordingCreator{}
	r, _ := setupMock(t, WithCreateTables(true), WithSchemaCreator(creator), WithLogger(nil), WithQueryBuilder(nil))

	assert.NotNil(t, r.logger)
	assert.IsType(t, directBuilder{}, r.builder)
	assert.True(t, r.createTables)
	assert.Same(t, creator, r.creator)
}

func TestRegistry_LoadCreatesTablesOnce(t *testing.T) {
	creator := &recordingCreator{}
	r, _ := setupMock(t, WithSchemaCreator(creator), WithCreateTables(true))

	require.NoError(t, r.Register(Component{
		Name: "Entity",
		Define: func(d *Definition) {
			d.HasColumn("name", schema.TypeString, 100, nil)
		},
	}))
	require.NoError(t, r.Register(Component{
		Name:    "User",
		Parents: []string{"Entity"},
		Define: func(d *Definition) {
			d.HasColumn("email", schema.TypeString, 100, nil)
			d.Discriminate("type", 1)
		},
	}))
	require.NoError(t, r.Register(membership()))

	require.NoError(t, r.Load(context.Background()))
	require.NoError(t, r.Load(context.Background()))

	// User shares the entity table and adds its columns to it
	assert.Equal(t, []string{"entity", "membership"}, creator.tables)
	assert.Equal(t, []string{"id", "name", "email"}, creator.columns["entity"])
}

func TestRegistry_LoadWithoutCreateTables(t *testing.T) {
	creator := &recordingCreator{}
	r, _ := setupMock(t, WithSchemaCreator(creator))
	require.NoError(t, r.Register(membership()))

	require.NoError(t, r.Load(context.Background()))
	assert.Empty(t, creator.tables)

	creator.err = errors.New("denied")
	r.createTables = true
	r.created = map[string]bool{}
	assert.ErrorIs(t, r.Load(context.Background()), creator.err)
}

func TestTable_DescribeRelationsCachesMetadata(t *testing.T) {
	metadata := cache.NewMemoryDriver(cache.Config{})
	defer metadata.Close()

	r, _ := setupMock(t, WithMetadataCache(metadata))
	require.NoError(t, r.Register(Component{
		Name: "User",
		SetUp: func(t *Table) error {
			if err := t.Bind("Group as Groups", "Groupuser.group_id", relationships.ManyAggregate, ""); err != nil {
				return err
			}
			return t.HasMany("Phonenumber as Phones", "Phonenumber.user_id")
		},
	}))
	require.NoError(t, r.Register(Component{
		Name: "Group",
		SetUp: func(t *Table) error {
			return t.Bind("User as Users", "Groupuser.user_id", relationships.ManyAggregate, "")
		},
	}))
	require.NoError(t, r.Register(Component{Name: "Groupuser"}))
	require.NoError(t, r.Register(Component{Name: "Phonenumber"}))

	tbl, err := r.Table("User")
	require.NoError(t, err)

	descriptions, err := tbl.DescribeRelations(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptions, 3)
	assert.Equal(t, "Groups", descriptions[0].Alias)
	assert.Equal(t, "association", descriptions[0].Kind)
	assert.Equal(t, "Groupuser", descriptions[0].JoinTable)
	assert.Equal(t, "Groupuser", descriptions[1].Alias)
	assert.Equal(t, "foreign_key", descriptions[1].Kind)
	assert.Equal(t, "Phones", descriptions[2].Alias)

	data, err := metadata.Get(context.Background(), "metadata:User")
	require.NoError(t, err)

	var cached []relationships.Description
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, descriptions, cached)
}

func TestRegistry_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := dbal.Open(ctx, dbal.Options{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	r := NewRegistry(conn,
		WithSchemaCreator(codegen.NewCreator(conn, conn.Dialect(), nil)),
		WithCreateTables(true),
	)
	require.NoError(t, r.Register(membership()))
	require.NoError(t, r.Register(article()))
	require.NoError(t, r.Load(ctx))

	_, err = conn.Exec(ctx, "INSERT INTO membership (org_id, user_id) VALUES (?, ?), (?, ?)",
		[]interface{}{1, 2, 1, 3})
	require.NoError(t, err)

	members, err := r.Table("Membership")
	require.NoError(t, err)

	record, err := members.Find(ctx, []interface{}{1, 3})
	require.NoError(t, err)
	role, _ := record.Get("role")
	assert.Equal(t, "member", role)

	count, err := members.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = members.Find(ctx, []interface{}{2, 2})
	assert.ErrorIs(t, err, ErrNotFound)

	articles, err := r.Table("Article")
	require.NoError(t, err)
	highest, err := articles.MaxIdentifier(ctx)
	require.NoError(t, err)
	assert.Nil(t, highest)
}
