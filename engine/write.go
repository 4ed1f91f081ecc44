package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/talangzhe005/objsql/schema"
)

// Insert builds and executes an INSERT for the entity's mapped fields.
// When includePK is false the primary-key column is left to the database
// (auto-assigned keys); callers read it back through the driver result.
func (e *Executor) Insert(ctx context.Context, meta *schema.Metadata, entity any, includePK bool) (sql.Result, error) {
	q, dialect, err := e.conn(ctx, meta)
	if err != nil {
		return nil, err
	}

	var cols []string
	var args []any
	for _, field := range meta.Fields() {
		if !includePK && field == meta.PrimaryKey {
			continue
		}
		col, err := meta.Column(field)
		if err != nil {
			return nil, err
		}
		value, err := meta.ReadField(entity, field)
		if err != nil {
			return nil, err
		}
		cols = append(cols, QuoteIdentifier(dialect, col))
		args = append(args, value)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("insert %s: no mapped fields", meta.TableName)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(dialect, meta.TableName),
		strings.Join(cols, ", "),
		placeholders)

	res, err := q.ExecContext(ctx, Rebind(dialect, stmt), args...)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", meta.TableName, ConvertDBError(err))
	}
	return res, nil
}

// Update builds and executes an UPDATE of every non-key mapped field,
// addressed by primary key
func (e *Executor) Update(ctx context.Context, meta *schema.Metadata, entity any) (int64, error) {
	pkCol, err := meta.PrimaryKeyColumn()
	if err != nil {
		return 0, err
	}
	pkValue, err := meta.PrimaryValue(entity)
	if err != nil {
		return 0, err
	}

	q, dialect, err := e.conn(ctx, meta)
	if err != nil {
		return 0, err
	}

	var sets []string
	var args []any
	for _, field := range meta.Fields() {
		if field == meta.PrimaryKey {
			continue
		}
		col, err := meta.Column(field)
		if err != nil {
			return 0, err
		}
		value, err := meta.ReadField(entity, field)
		if err != nil {
			return 0, err
		}
		sets = append(sets, QuoteIdentifier(dialect, col)+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("update %s: no mapped fields besides the key", meta.TableName)
	}
	args = append(args, pkValue)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		QuoteIdentifier(dialect, meta.TableName),
		strings.Join(sets, ", "),
		QuoteIdentifier(dialect, pkCol))

	res, err := q.ExecContext(ctx, Rebind(dialect, stmt), args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", meta.TableName, ConvertDBError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, ConvertDBError(err)
	}
	return affected, nil
}
