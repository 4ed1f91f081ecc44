package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// txKey carries the transaction bound to a unit of work
type txKey struct{}

type boundTx struct {
	tx      *sql.Tx
	dialect string
}

func txFromContext(ctx context.Context) (*boundTx, bool) {
	tx, ok := ctx.Value(txKey{}).(*boundTx)
	return tx, ok
}

// InTransaction reports whether the context is inside a unit of work
func InTransaction(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

// WithTransaction runs fn as one unit of work on the named datasource. Every
// executor call made with the context fn receives shares the transaction's
// connection. fn returning nil commits; an error or panic rolls back before
// the failure is re-raised unchanged. A unit of work started inside another
// is a no-op boundary: it participates in the enclosing transaction.
func (e *Executor) WithTransaction(ctx context.Context, dataSourceName string, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	db, dialect, err := e.pools.Get(dataSourceName)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction on %s: %w", dataSourceName, ConvertDBError(err))
	}

	txCtx := context.WithValue(ctx, txKey{}, &boundTx{tx: tx, dialect: dialect})

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction on %s: %w", dataSourceName, ConvertDBError(err))
	}
	return nil
}
