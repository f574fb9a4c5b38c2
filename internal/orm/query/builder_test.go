package query

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/tablemap/internal/orm/codegen"
	"github.com/conduit-lang/tablemap/internal/orm/dbal"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
	"github.com/conduit-lang/tablemap/internal/orm/table"
)

func post() table.Component {
	return table.Component{
		Name: "Post",
		Define: func(d *table.Definition) {
			d.HasColumn("title", schema.TypeString, 200, "notnull")
			d.HasColumn("views", schema.TypeInteger, 11, "default:0")
			d.HasColumn("status", schema.TypeInteger, 4, nil)
		},
	}
}

func setupPosts(t *testing.T, components ...table.Component) (*table.Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := table.NewRegistry(dbal.New(db, dbal.SQLite), table.WithQueryBuilder(NewBuilder(nil)))
	for _, c := range components {
		require.NoError(t, r.Register(c))
	}
	return r, mock
}

func mustTable(t *testing.T, r *table.Registry, name string) *table.Table {
	t.Helper()
	tbl, err := r.Table(name)
	require.NoError(t, err)
	return tbl
}

func TestSelect_ToSQL(t *testing.T) {
	r, _ := setupPosts(t, post())
	posts := mustTable(t, r, "Post")

	tests := []struct {
		name     string
		build    func() *Select
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "no conditions",
			build:   func() *Select { return From(posts) },
			wantSQL: "SELECT id, title, views, status FROM post",
		},
		{
			name: "conditions and order",
			build: func() *Select {
				return From(posts).
					Where("title", OpEqual, "go").
					OrWhere("Views", OpGreaterThan, 10).
					OrderByDesc("views")
			},
			wantSQL:  "SELECT id, title, views, status FROM post WHERE title = ? OR views > ? ORDER BY views DESC",
			wantArgs: []interface{}{"go", 10},
		},
		{
			name: "raw fragments are parenthesized",
			build: func() *Select {
				return From(posts).
					Where("status", OpEqual, 1).
					WhereRaw("views > ? OR views IS NULL", 5)
			},
			wantSQL:  "SELECT id, title, views, status FROM post WHERE (status = ?) AND (views > ? OR views IS NULL)",
			wantArgs: []interface{}{1, 5},
		},
		{
			name: "helpers",
			build: func() *Select {
				return From(posts).
					WhereIn("id", []interface{}{1, 2}).
					WhereNull("status").
					WhereLike("title", "%orm%").
					WhereBetween("views", 1, 9).
					OrderBy("title", "sideways")
			},
			wantSQL: "SELECT id, title, views, status FROM post WHERE id IN (?, ?) AND status IS NULL " +
				"AND title LIKE ? AND views BETWEEN ? AND ? ORDER BY title ASC",
			wantArgs: []interface{}{1, 2, "%orm%", 1, 9},
		},
		{
			name:     "scopes",
			build:    func() *Select { return From(posts).Scoped(Equals("status", 1), Recent("views", 2)) },
			wantSQL:  "SELECT id, title, views, status FROM post WHERE status = ? ORDER BY views DESC",
			wantArgs: []interface{}{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.build().ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelect_ToSQLWithInheritance(t *testing.T) {
	content := table.Component{
		Name: "Content",
		Define: func(d *table.Definition) {
			d.HasColumn("title", schema.TypeString, 200, nil)
			d.HasColumn("type", schema.TypeInteger, 4, nil)
		},
	}
	article := table.Component{
		Name:    "Article",
		Parents: []string{"Content"},
		Define: func(d *table.Definition) {
			d.HasColumn("views", schema.TypeInteger, 11, nil)
			d.Discriminate("type", 2)
		},
	}
	r, _ := setupPosts(t, content, article)
	articles := mustTable(t, r, "Article")

	sql, args, err := From(articles).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title, type, views FROM content WHERE type = ?", sql)
	assert.Equal(t, []interface{}{2}, args)

	sql, args, err = From(articles).WhereRaw("views > ? OR views IS NULL", 3).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, title, type, views FROM content WHERE (views > ? OR views IS NULL) AND type = ?", sql)
	assert.Equal(t, []interface{}{3, 2}, args)
}

func TestSelect_UnknownColumn(t *testing.T) {
	r, mock := setupPosts(t, post())
	posts := mustTable(t, r, "Post")

	s := From(posts).Where("author", OpEqual, "ann").Where("title", OpEqual, "x")
	_, _, err := s.ToSQL()
	assert.ErrorIs(t, err, schema.ErrUnknownColumn)

	_, err = s.All(context.Background())
	assert.ErrorIs(t, err, schema.ErrUnknownColumn)

	_, err = s.Count(context.Background())
	assert.ErrorIs(t, err, schema.ErrUnknownColumn)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilder_FindBySQLIsLazy(t *testing.T) {
	r, mock := setupPosts(t, post())
	posts := mustTable(t, r, "Post")
	ctx := context.Background()

	collection := posts.FindBySQL(ctx, "title = ?", []interface{}{"a"})
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery("SELECT id, title, views, status FROM post WHERE title = ?").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "views", "status"}).
			AddRow(1, "a", 3, 1).
			AddRow(2, "a", 0, 0))

	n, err := collection.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Loaded once
	records, err := collection.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Same(t, posts, collection.Table())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilder_FindAll(t *testing.T) {
	r, mock := setupPosts(t, post())
	posts := mustTable(t, r, "Post")

	mock.ExpectQuery("SELECT id, title, views, status FROM post").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "views", "status"}).AddRow(1, "a", 3, 1))

	first, err := posts.FindAll(context.Background()).First(context.Background())
	require.NoError(t, err)
	title, _ := first.Get("title")
	assert.Equal(t, "a", title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_First(t *testing.T) {
	r, mock := setupPosts(t, post())
	posts := mustTable(t, r, "Post")
	ctx := context.Background()

	query := "SELECT id, title, views, status FROM post WHERE status = ? ORDER BY views DESC LIMIT 1"
	mock.ExpectQuery(query).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "views", "status"}).AddRow(4, "top", 99, 1))
	mock.ExpectQuery(query).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "views", "status"}))

	record, err := From(posts).Where("status", OpEqual, 1).OrderByDesc("views").First(ctx)
	require.NoError(t, err)
	title, _ := record.Get("title")
	assert.Equal(t, "top", title)

	_, err = From(posts).Where("status", OpEqual, 1).OrderByDesc("views").First(ctx)
	assert.ErrorIs(t, err, table.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_Paginated(t *testing.T) {
	r, mock := setupPosts(t, post())
	posts := mustTable(t, r, "Post")

	mock.ExpectQuery("SELECT id, title, views, status FROM post ORDER BY id ASC LIMIT 2 OFFSET 4").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "views", "status"}).
			AddRow(5, "e", 0, 1).
			AddRow(6, "f", 0, 1))

	records, err := From(posts).OrderByAsc("id").Limit(2).Offset(4).All(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_CountAndExists(t *testing.T) {
	r, mock := setupPosts(t, post())
	posts := mustTable(t, r, "Post")
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT(1) FROM post WHERE status = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT COUNT(1) FROM post WHERE views > ?").
		WithArgs(1000).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(1)"}).AddRow("0"))

	count, err := From(posts).Where("status", OpEqual, 1).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	exists, err := From(posts).Where("views", OpGreaterThan, 1000).Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelect_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := dbal.Open(ctx, dbal.Options{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	r := table.NewRegistry(conn,
		table.WithQueryBuilder(NewBuilder(nil)),
		table.WithSchemaCreator(codegen.NewCreator(conn, conn.Dialect(), nil)),
		table.WithCreateTables(true),
	)
	require.NoError(t, r.Register(post()))
	require.NoError(t, r.Load(ctx))

	_, err = conn.Exec(ctx, "INSERT INTO post (title, views, status) VALUES (?, ?, ?), (?, ?, ?), (?, ?, ?)",
		[]interface{}{"one", 10, 1, "two", 20, 1, "three", 30, 0})
	require.NoError(t, err)

	posts := mustTable(t, r, "Post")

	records, err := From(posts).Scoped(Equals("status", 1), Recent("views", 1)).All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	title, _ := records[0].Get("title")
	assert.Equal(t, "two", title)

	count, err := From(posts).WhereIn("title", []interface{}{"one", "three"}).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	n, err := posts.FindBySQL(ctx, "views >= ?", []interface{}{20}).Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
