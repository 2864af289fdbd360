package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txContextKey struct{}

// ContextWithTx returns a child context carrying tx. Repositories resolve
// the transaction from context before falling back to the pool, so every
// statement issued under the returned context joins the same transaction.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction carried by ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx
}

// Runner executes functions inside a database transaction. Services that
// need multi-statement atomicity depend on this rather than on the pool
// directly.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type poolRunner struct {
	pool *pgxpool.Pool
}

// NewRunner returns a Runner backed by pool.
func NewRunner(pool *pgxpool.Pool) Runner {
	return &poolRunner{pool: pool}
}

// InTx begins a transaction, stores it in the context handed to fn, and
// commits if fn returns nil. Any error rolls the whole unit back, so
// partial effects are never durable. Nested calls join the transaction
// already in flight.
func (r *poolRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
