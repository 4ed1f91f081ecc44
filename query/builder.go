// Package query builds parameterized SELECT statements from loosely-typed
// predicate fragments. Parameter values are never interpolated into the SQL
// text; everything is bound positionally with ? placeholders.
package query

import (
	"fmt"
	"strings"

	"github.com/talangzhe005/objsql/schema"
)

// CountAlias is the synthetic column name count projections are read through
const CountAlias = "_count"

// Builder accumulates select, predicate, ordering and limit fragments plus
// their positional parameters for one statement. A Builder is built per call
// and must not be shared across goroutines.
type Builder struct {
	meta       *schema.Metadata
	selectExpr string
	predicates []string
	params     []any
	orderBy    string
	limit      *int
	offset     *int
}

// New creates a builder for the given model metadata
func New(meta *schema.Metadata) *Builder {
	return &Builder{meta: meta, selectExpr: "*"}
}

// Select replaces the projection, which defaults to *
func (b *Builder) Select(expr string) *Builder {
	if expr != "" {
		b.selectExpr = expr
	}
	return b
}

// Where appends a predicate fragment and its bound parameters. Repeated
// calls are joined with AND in the order they were supplied.
func (b *Builder) Where(predicate string, params ...any) *Builder {
	predicate = strings.TrimSpace(predicate)
	if predicate != "" {
		b.predicates = append(b.predicates, predicate)
	}
	b.params = append(b.params, params...)
	return b
}

// ByPrimaryKey constrains the statement to one row by the model's primary
// key, deriving the column name from metadata
func (b *Builder) ByPrimaryKey(value any) (*Builder, error) {
	col, err := b.meta.PrimaryKeyColumn()
	if err != nil {
		return nil, err
	}
	return b.Where(col+" = ?", value), nil
}

// OrderBy sets the ordering clause
func (b *Builder) OrderBy(clause string) *Builder {
	b.orderBy = strings.TrimSpace(clause)
	return b
}

// Limit caps the number of returned rows
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset skips the first n rows
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Params returns the parameters bound so far
func (b *Builder) Params() []any {
	out := make([]any, len(b.params))
	copy(out, b.params)
	return out
}

// SQL assembles the statement and its parameter sequence. It fails with
// ErrPredicateMismatch when placeholder and parameter counts diverge.
func (b *Builder) SQL() (string, []any, error) {
	return b.assemble(b.selectExpr)
}

// CountSQL assembles the count variant of the statement: the accumulated
// predicate wrapped in a COUNT(*) projection read back through CountAlias
func (b *Builder) CountSQL() (string, []any, error) {
	return b.assemble("COUNT(*) AS " + CountAlias)
}

func (b *Builder) assemble(selectExpr string) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectExpr)
	sb.WriteString(" FROM ")
	sb.WriteString(b.meta.TableName)

	if len(b.predicates) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.predicates, " AND "))
	}

	args := make([]any, len(b.params))
	copy(args, b.params)

	if got, want := len(args), CountPlaceholders(sb.String()); got != want {
		return "", nil, fmt.Errorf("%w: %d placeholders, %d parameters",
			ErrPredicateMismatch, want, got)
	}

	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
	}
	if b.limit != nil {
		sb.WriteString(" LIMIT ?")
		args = append(args, *b.limit)
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET ?")
		args = append(args, *b.offset)
	}

	return sb.String(), args, nil
}

// In expands an IN predicate with n placeholders for batched lookups
func In(column string, n int) string {
	if n <= 0 {
		return column + " IN (NULL)"
	}
	var sb strings.Builder
	sb.WriteString(column)
	sb.WriteString(" IN (")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('?')
	}
	sb.WriteByte(')')
	return sb.String()
}

// CountPlaceholders counts ? placeholders in a statement, ignoring any that
// appear inside single-quoted string literals
func CountPlaceholders(s string) int {
	count := 0
	inLiteral := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inLiteral = !inLiteral
		case '?':
			if !inLiteral {
				count++
			}
		}
	}
	return count
}

// Validate checks a raw statement against its parameters before dispatch
func Validate(sql string, params []any) error {
	if want := CountPlaceholders(sql); want != len(params) {
		return fmt.Errorf("%w: %d placeholders, %d parameters",
			ErrPredicateMismatch, want, len(params))
	}
	return nil
}
