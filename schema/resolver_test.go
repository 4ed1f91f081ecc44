package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Member struct {
	No     string `db:"no,primary"`
	Name   string `db:"name"`
	Gender int    `db:"gender"`
	Mobile string `db:"mobile"`
}

type Person struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type Category struct {
	Code string `db:"code"`
	Name string
}

type Order struct {
	ID     int64  `db:"id"`
	Secret string `db:"-"`
	Note   string
}

type Legacy struct {
	ID int64 `db:"id"`
}

func (Legacy) TableName() string      { return "legacy_records" }
func (Legacy) DataSourceName() string { return "archive" }

type Comment struct {
	ID     int64  `db:"id"`
	PostID int64  `db:"post_id"`
	Body   string `db:"body"`
}

type Post struct {
	ID       int64      `db:"id"`
	Title    string     `db:"title"`
	AuthorID int64      `db:"author_id"`
	Author   *Person    `rel:"belongs_to,fk=author_id"`
	Comments []*Comment `rel:"has_many"`
}

func TestResolveTableNameDefaults(t *testing.T) {
	tests := []struct {
		model any
		table string
	}{
		{Member{}, "members"},
		{Person{}, "people"},
		{Category{}, "categories"},
	}
	for _, tt := range tests {
		meta, err := Resolve(tt.model)
		require.NoError(t, err)
		assert.Equal(t, tt.table, meta.TableName)
		assert.Equal(t, DefaultDataSource, meta.DataSourceName)
	}
}

func TestResolveOverrides(t *testing.T) {
	meta, err := Resolve(Legacy{})
	require.NoError(t, err)
	assert.Equal(t, "legacy_records", meta.TableName)
	assert.Equal(t, "archive", meta.DataSourceName)
}

func TestResolveColumns(t *testing.T) {
	meta, err := Resolve(&Member{})
	require.NoError(t, err)

	col, err := meta.Column("No")
	require.NoError(t, err)
	assert.Equal(t, "no", col)

	field, ok := meta.FieldForColumn("mobile")
	require.True(t, ok)
	assert.Equal(t, "Mobile", field)

	_, err = meta.Column("Unknown")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestResolveUntaggedFieldUnderscores(t *testing.T) {
	meta, err := Resolve(Category{})
	require.NoError(t, err)
	col, err := meta.Column("Name")
	require.NoError(t, err)
	assert.Equal(t, "name", col)
}

func TestResolveSkipsExcludedFields(t *testing.T) {
	meta, err := Resolve(Order{})
	require.NoError(t, err)
	_, err = meta.Column("Secret")
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, []string{"ID", "Note"}, meta.Fields())
}

func TestResolvePrimaryKey(t *testing.T) {
	t.Run("explicit marking wins", func(t *testing.T) {
		meta, err := Resolve(Member{})
		require.NoError(t, err)
		assert.Equal(t, "No", meta.PrimaryKey)
		col, err := meta.PrimaryKeyColumn()
		require.NoError(t, err)
		assert.Equal(t, "no", col)
	})

	t.Run("conventional id fallback", func(t *testing.T) {
		meta, err := Resolve(Person{})
		require.NoError(t, err)
		assert.Equal(t, "ID", meta.PrimaryKey)
	})

	t.Run("no key leaves keyed operations unavailable", func(t *testing.T) {
		meta, err := Resolve(Category{})
		require.NoError(t, err)
		assert.False(t, meta.HasPrimaryKey())
		_, err = meta.PrimaryKeyColumn()
		assert.ErrorIs(t, err, ErrNoPrimaryKey)
	})

	t.Run("duplicate explicit marking fails", func(t *testing.T) {
		type Broken struct {
			A string `db:"a,primary"`
			B string `db:"b,primary"`
		}
		_, err := Resolve(Broken{})
		assert.ErrorIs(t, err, ErrDuplicatePrimaryKey)
	})
}

func TestResolveNonModel(t *testing.T) {
	_, err := Resolve(42)
	assert.ErrorIs(t, err, ErrNotModel)

	_, err = Resolve("member")
	assert.ErrorIs(t, err, ErrNotModel)
}

func TestResolveRelations(t *testing.T) {
	meta, err := Resolve(Post{})
	require.NoError(t, err)

	author, err := meta.Relation("Author")
	require.NoError(t, err)
	assert.Equal(t, BelongsTo, author.Kind)
	assert.Equal(t, "author_id", author.ForeignKey)
	assert.Equal(t, "Person", author.Target.Name())

	comments, err := meta.Relation("Comments")
	require.NoError(t, err)
	assert.Equal(t, HasMany, comments.Kind)
	assert.Equal(t, "post_id", comments.ForeignKey, "foreign key defaults to underscored owner name")
	assert.Equal(t, "Comment", comments.Target.Name())

	_, err = meta.Relation("Tags")
	assert.ErrorIs(t, err, ErrUnknownRelation)

	// Relation fields are not columns.
	_, err = meta.Column("Comments")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestResolveInvalidRelation(t *testing.T) {
	type Bad struct {
		ID       int64  `db:"id"`
		Children string `rel:"has_many"`
	}
	_, err := Resolve(Bad{})
	assert.ErrorIs(t, err, ErrInvalidRelation)
}

func TestAccessors(t *testing.T) {
	meta, err := Resolve(Member{})
	require.NoError(t, err)

	m := &Member{No: "M1", Name: "Ann"}

	got, err := meta.ReadField(m, "Name")
	require.NoError(t, err)
	assert.Equal(t, "Ann", got)

	require.NoError(t, meta.WriteField(m, "Gender", int64(1)), "driver integers convert to the declared width")
	assert.Equal(t, 1, m.Gender)

	require.NoError(t, meta.WriteField(m, "Mobile", []byte("12345")))
	assert.Equal(t, "12345", m.Mobile)

	require.NoError(t, meta.WriteField(m, "Name", nil))
	assert.Equal(t, "", m.Name, "nil resets to the zero value")

	pk, err := meta.PrimaryValue(m)
	require.NoError(t, err)
	assert.Equal(t, "M1", pk)

	require.NoError(t, meta.SetPrimaryValue(m, "M2"))
	assert.Equal(t, "M2", m.No)
}

func TestEncodeDefaultKey(t *testing.T) {
	assert.Equal(t, "member_id", EncodeDefaultKey("Member"))
	assert.Equal(t, "post_id", EncodeDefaultKey("Post"))
}
