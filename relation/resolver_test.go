package relation

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talangzhe005/objsql/datasource"
	"github.com/talangzhe005/objsql/engine"
	"github.com/talangzhe005/objsql/schema"
)

type Author struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type Comment struct {
	ID     int64  `db:"id"`
	PostID int64  `db:"post_id"`
	Body   string `db:"body"`
}

type Post struct {
	ID       int64      `db:"id"`
	Title    string     `db:"title"`
	AuthorID int64      `db:"author_id"`
	Author   *Author    `rel:"belongs_to,fk=author_id"`
	Comments []*Comment `rel:"has_many,fk=post_id"`
}

func setupResolver(t *testing.T) (*Resolver, *engine.Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pools := datasource.NewManager()
	pools.Register(datasource.Default, "sqlite3", db)
	exec := engine.New(schema.NewRegistry(), pools)
	return NewResolver(exec), exec, mock
}

func postMeta(t *testing.T, exec *engine.Executor) *schema.Metadata {
	t.Helper()
	meta, err := exec.Registry().Lookup(Post{})
	require.NoError(t, err)
	return meta
}

func postSet(n int) []any {
	posts := make([]any, n)
	for i := range posts {
		posts[i] = &Post{ID: int64(i + 1), Title: fmt.Sprintf("post %d", i+1), AuthorID: int64(i%2 + 1)}
	}
	return posts
}

func TestLoadHasManyBatchesIntoOneQuery(t *testing.T) {
	r, exec, mock := setupResolver(t)
	meta := postMeta(t, exec)

	posts := postSet(3)

	// One IN query covers the whole set; grouping preserves row order.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM comments WHERE post_id IN (?, ?, ?)")).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "body"}).
			AddRow(int64(10), int64(1), "first").
			AddRow(int64(11), int64(1), "second").
			AddRow(int64(12), int64(3), "third"))

	require.NoError(t, r.Load(context.Background(), meta, posts, "Comments"))

	p1 := posts[0].(*Post)
	require.Len(t, p1.Comments, 2)
	assert.Equal(t, "first", p1.Comments[0].Body)
	assert.Equal(t, "second", p1.Comments[1].Body)

	p2 := posts[1].(*Post)
	assert.NotNil(t, p2.Comments, "no matches still yields an empty collection")
	assert.Len(t, p2.Comments, 0)

	p3 := posts[2].(*Post)
	require.Len(t, p3.Comments, 1)
	assert.Equal(t, "third", p3.Comments[0].Body)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadHasManyLargeSetStillOneQuery(t *testing.T) {
	r, exec, mock := setupResolver(t)
	meta := postMeta(t, exec)

	const n = 1000
	posts := postSet(n)

	mock.ExpectQuery(`SELECT \* FROM comments WHERE post_id IN \(`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "body"}))

	require.NoError(t, r.Load(context.Background(), meta, posts, "Comments"))
	assert.NoError(t, mock.ExpectationsWereMet(), "1000 entities cost exactly one follow-up query")
	for _, p := range posts {
		assert.NotNil(t, p.(*Post).Comments)
	}
}

func TestLoadBelongsTo(t *testing.T) {
	r, exec, mock := setupResolver(t)
	meta := postMeta(t, exec)

	posts := []any{
		&Post{ID: 1, AuthorID: 7},
		&Post{ID: 2, AuthorID: 8},
		&Post{ID: 3, AuthorID: 7}, // duplicate key queried once
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM authors WHERE id IN (?, ?)")).
		WithArgs(int64(7), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(7), "Ann").
			AddRow(int64(8), "Bob"))

	require.NoError(t, r.Load(context.Background(), meta, posts, "Author"))

	assert.Equal(t, "Ann", posts[0].(*Post).Author.Name)
	assert.Equal(t, "Bob", posts[1].(*Post).Author.Name)
	assert.Same(t, posts[0].(*Post).Author, posts[2].(*Post).Author,
		"a shared key resolves to one loaded instance")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBelongsToMissingRowStaysUnset(t *testing.T) {
	r, exec, mock := setupResolver(t)
	meta := postMeta(t, exec)

	posts := []any{&Post{ID: 1, AuthorID: 99}}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM authors WHERE id IN (?)")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	require.NoError(t, r.Load(context.Background(), meta, posts, "Author"))
	assert.Nil(t, posts[0].(*Post).Author, "a dangling foreign key is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBelongsToSkipsZeroKeys(t *testing.T) {
	r, exec, mock := setupResolver(t)
	meta := postMeta(t, exec)

	posts := []any{&Post{ID: 1}} // zero AuthorID, nothing to batch

	require.NoError(t, r.Load(context.Background(), meta, posts, "Author"))
	assert.Nil(t, posts[0].(*Post).Author)
	assert.NoError(t, mock.ExpectationsWereMet(), "no query is issued for an all-zero key set")
}

func TestLoadEmptySetIsFree(t *testing.T) {
	r, exec, mock := setupResolver(t)
	meta := postMeta(t, exec)

	require.NoError(t, r.Load(context.Background(), meta, nil, "Comments"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadUnknownRelation(t *testing.T) {
	r, exec, _ := setupResolver(t)
	meta := postMeta(t, exec)

	err := r.Load(context.Background(), meta, postSet(1), "Tags")
	assert.ErrorIs(t, err, schema.ErrUnknownRelation)
}
