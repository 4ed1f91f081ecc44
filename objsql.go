// Package objsql is a lightweight object-relational mapper. A program
// declares a model type once — a struct with optional db/rel tags — and
// derives table identity, primary-key handling, column mapping, relations,
// query construction and row mapping from that declaration. Raw SQL stays
// available as an escape hatch.
package objsql

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/talangzhe005/objsql/datasource"
	"github.com/talangzhe005/objsql/engine"
	"github.com/talangzhe005/objsql/query"
	"github.com/talangzhe005/objsql/relation"
	"github.com/talangzhe005/objsql/schema"
)

// Session wires the metadata registry, pool manager, execution engine and
// relation resolver together. Most programs configure one process-wide
// session and use the package-level generic operations.
type Session struct {
	registry  *schema.Registry
	pools     *datasource.Manager
	exec      *engine.Executor
	relations *relation.Resolver
}

// SessionOption configures a Session
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	registry *schema.Registry
	logger   *zap.Logger
}

// WithRegistry uses a private metadata registry instead of the shared one
func WithRegistry(r *schema.Registry) SessionOption {
	return func(c *sessionConfig) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithLogger sets the logger the execution engine traces statements with
func WithLogger(l *zap.Logger) SessionOption {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewSession creates a session over the given pool manager
func NewSession(pools *datasource.Manager, opts ...SessionOption) *Session {
	cfg := &sessionConfig{
		registry: schema.DefaultRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	exec := engine.New(cfg.registry, pools, engine.WithLogger(cfg.logger))
	return &Session{
		registry:  cfg.registry,
		pools:     pools,
		exec:      exec,
		relations: relation.NewResolver(exec),
	}
}

// Executor exposes the session's execution engine
func (s *Session) Executor() *engine.Executor {
	return s.exec
}

// Metadata resolves metadata for a model through the session registry
func (s *Session) Metadata(model any) (*schema.Metadata, error) {
	return s.registry.Lookup(model)
}

var (
	stdMu sync.RWMutex
	std   *Session
)

// Configure installs the process-wide session used by the package-level
// operations. Call it once during initialization.
func Configure(pools *datasource.Manager, opts ...SessionOption) *Session {
	s := NewSession(pools, opts...)
	stdMu.Lock()
	std = s
	stdMu.Unlock()
	return s
}

// Default returns the process-wide session installed by Configure
func Default() *Session {
	stdMu.RLock()
	defer stdMu.RUnlock()
	if std == nil {
		panic("objsql: no session configured; call objsql.Configure first")
	}
	return std
}

func metaFor[T any](s *Session) (*schema.Metadata, error) {
	return s.registry.Lookup((*T)(nil))
}

func castAll[T any](entities []any) []*T {
	out := make([]*T, len(entities))
	for i, e := range entities {
		out[i] = e.(*T)
	}
	return out
}

// Find loads one entity by primary-key value. A missing row is not an
// error: the result is nil.
func Find[T any](ctx context.Context, pk any) (*T, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return nil, err
	}
	b, err := query.New(meta).ByPrimaryKey(pk)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := b.SQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.Query(ctx, meta, sqlText, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].(*T), nil
}

// QueryFirst returns the first entity matching a predicate, or nil
func QueryFirst[T any](ctx context.Context, predicate string, params ...any) (*T, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := query.New(meta).Where(predicate, params...).Limit(1).SQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.Query(ctx, meta, sqlText, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].(*T), nil
}

// Query returns every entity matching a predicate with ? placeholders bound
// left to right
func Query[T any](ctx context.Context, predicate string, params ...any) ([]*T, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := query.New(meta).Where(predicate, params...).SQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.Query(ctx, meta, sqlText, args)
	if err != nil {
		return nil, err
	}
	return castAll[T](rows), nil
}

// QueryAll returns every row of the model's table
func QueryAll[T any](ctx context.Context) ([]*T, error) {
	return Query[T](ctx, "")
}

// QueryBySQL runs a raw select and maps the rows into the model type
func QueryBySQL[T any](ctx context.Context, rawSQL string, params ...any) ([]*T, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.Query(ctx, meta, rawSQL, params)
	if err != nil {
		return nil, err
	}
	return castAll[T](rows), nil
}

// Count returns the number of rows matching a predicate
func Count[T any](ctx context.Context, predicate string, params ...any) (int64, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return 0, err
	}
	sqlText, args, err := query.New(meta).Where(predicate, params...).CountSQL()
	if err != nil {
		return 0, err
	}
	return s.exec.QueryScalar(ctx, meta, sqlText, args, query.CountAlias)
}

// Execute runs a raw non-select statement on the model's datasource and
// returns the affected row count
func Execute[T any](ctx context.Context, rawSQL string, params ...any) (int64, error) {
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return 0, err
	}
	return s.exec.Exec(ctx, meta, rawSQL, params)
}

// LoadRelation populates the named relation on a loaded entity set with one
// batched follow-up query
func LoadRelation[T any](ctx context.Context, entities []*T, relationName string) error {
	if len(entities) == 0 {
		return nil
	}
	s := Default()
	meta, err := metaFor[T](s)
	if err != nil {
		return err
	}
	anys := make([]any, len(entities))
	for i, e := range entities {
		anys[i] = e
	}
	return s.relations.Load(ctx, meta, anys, relationName)
}

// WithTransaction runs fn as one unit of work on the default datasource.
// Nested units participate in the enclosing transaction.
func WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTransactionOn(ctx, datasource.Default, fn)
}

// WithTransactionOn runs fn as one unit of work on a named datasource
func WithTransactionOn(ctx context.Context, dataSourceName string, fn func(ctx context.Context) error) error {
	return Default().exec.WithTransaction(ctx, dataSourceName, fn)
}
