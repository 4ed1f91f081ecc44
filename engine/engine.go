// Package engine executes parameterized statements against the datasource a
// model is bound to and maps result rows back into typed instances through
// the metadata registry. It also provides transaction demarcation: all
// statements issued inside a unit of work share one connection.
package engine

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/talangzhe005/objsql/datasource"
	"github.com/talangzhe005/objsql/query"
	"github.com/talangzhe005/objsql/schema"
)

// execQuerier is the subset of database/sql shared by *sql.DB and *sql.Tx
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor resolves datasources, dispatches statements and maps rows
type Executor struct {
	registry *schema.Registry
	pools    *datasource.Manager
	logger   *zap.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the logger used for statement tracing
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Executor on top of a metadata registry and pool manager
func New(registry *schema.Registry, pools *datasource.Manager, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		pools:    pools,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the metadata registry the executor resolves through
func (e *Executor) Registry() *schema.Registry {
	return e.registry
}

// conn resolves the connection a statement runs on: the transaction bound to
// the context when inside a unit of work, the model's datasource pool
// otherwise
func (e *Executor) conn(ctx context.Context, meta *schema.Metadata) (execQuerier, string, error) {
	if tx, ok := txFromContext(ctx); ok {
		return tx.tx, tx.dialect, nil
	}
	db, dialect, err := e.pools.Get(meta.DataSourceName)
	if err != nil {
		return nil, "", err
	}
	return db, dialect, nil
}

// Query executes a parameterized select for the given model and maps every
// result row into a fresh instance of the model type. Mapping is
// column-name-driven: result columns without a mapped field are discarded,
// mapped fields absent from the result keep their zero value.
func (e *Executor) Query(ctx context.Context, meta *schema.Metadata, sqlText string, params []any) ([]any, error) {
	if err := query.Validate(sqlText, params); err != nil {
		return nil, err
	}
	q, dialect, err := e.conn(ctx, meta)
	if err != nil {
		return nil, err
	}

	stmt := Rebind(dialect, sqlText)
	rows, err := q.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", meta.TableName, ConvertDBError(err))
	}
	defer rows.Close()

	entities, err := e.mapRows(rows, meta)
	if err != nil {
		return nil, fmt.Errorf("map %s rows: %w", meta.TableName, err)
	}

	e.logger.Debug("query executed",
		zap.String("table", meta.TableName),
		zap.String("sql", stmt),
		zap.Int("rows", len(entities)))
	return entities, nil
}

// mapRows maps rows in driver order into fresh model instances
func (e *Executor) mapRows(rows *sql.Rows, meta *schema.Metadata) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fields := make([]string, len(columns))
	for i, col := range columns {
		if f, ok := meta.FieldForColumn(col); ok {
			fields[i] = f
		}
	}

	var entities []any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		entity := meta.NewInstance()
		for i, field := range fields {
			if field == "" {
				continue
			}
			if err := meta.WriteField(entity, field, values[i]); err != nil {
				return nil, err
			}
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// QueryScalar executes a statement whose single result is read from a
// synthetic aliased column, e.g. COUNT(*) AS _count. An empty result yields
// zero.
func (e *Executor) QueryScalar(ctx context.Context, meta *schema.Metadata, sqlText string, params []any, alias string) (int64, error) {
	if err := query.Validate(sqlText, params); err != nil {
		return 0, err
	}
	q, dialect, err := e.conn(ctx, meta)
	if err != nil {
		return 0, err
	}

	stmt := Rebind(dialect, sqlText)
	rows, err := q.QueryContext(ctx, stmt, params...)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", meta.TableName, ConvertDBError(err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, col := range columns {
		if col == alias {
			idx = i
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("query %s: result has no column %q", meta.TableName, alias)
	}

	if !rows.Next() {
		return 0, rows.Err()
	}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return 0, err
	}
	return toInt64(values[idx])
}

// Exec executes a non-select statement and returns the affected row count
func (e *Executor) Exec(ctx context.Context, meta *schema.Metadata, sqlText string, params []any) (int64, error) {
	res, err := e.ExecResult(ctx, meta, sqlText, params)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, ConvertDBError(err)
	}
	return affected, nil
}

// ExecResult executes a non-select statement and exposes the driver result,
// letting callers read driver-assigned keys
func (e *Executor) ExecResult(ctx context.Context, meta *schema.Metadata, sqlText string, params []any) (sql.Result, error) {
	if err := query.Validate(sqlText, params); err != nil {
		return nil, err
	}
	q, dialect, err := e.conn(ctx, meta)
	if err != nil {
		return nil, err
	}

	stmt := Rebind(dialect, sqlText)
	res, err := q.ExecContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", meta.TableName, ConvertDBError(err))
	}
	e.logger.Debug("statement executed",
		zap.String("table", meta.TableName),
		zap.String("sql", stmt))
	return res, nil
}

// toInt64 widens a scalar result into int64, whatever width the driver chose
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		var out int64
		if _, err := fmt.Sscanf(string(n), "%d", &out); err != nil {
			return 0, fmt.Errorf("non-numeric scalar result %q", n)
		}
		return out, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported scalar result type %T", v)
	}
}
