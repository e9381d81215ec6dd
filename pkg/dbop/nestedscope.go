package dbop

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxTxCtxKey struct{}

// TxFromContext returns the pgx.Tx a NestedScope placed in ctx for the
// current attempt, if any. Operations that need to issue SQL against the
// active transaction use this instead of threading a *pgx.Tx parameter
// through their own signature.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxTxCtxKey{}).(pgx.Tx)
	return tx, ok
}

// NestedScope is the second reference AttemptScope (§4.3b): a driver that
// already exposes nested transaction objects. pgx/v5's Tx.Begin, called on
// an already-open Tx, opens a SAVEPOINT-backed nested transaction natively
// — no hand-written SAVEPOINT/RELEASE/ROLLBACK TO SQL is needed here, only
// the outer/inner commit-or-rollback discipline.
type NestedScope struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewNestedScope returns a NestedScope over pool.
func NewNestedScope(pool *pgxpool.Pool) *NestedScope {
	return &NestedScope{Pool: pool}
}

func (s *NestedScope) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func accessMode(readOnly bool) pgx.TxAccessMode {
	if readOnly {
		return pgx.ReadOnly
	}
	return pgx.ReadWrite
}

// Run implements Scope.
func (s *NestedScope) Run(ctx context.Context, readOnly bool, body func(ctx context.Context) error) error {
	outer, err := s.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: accessMode(readOnly)})
	if err != nil {
		return err
	}
	// Rollback is a no-op once Commit has succeeded (pgx returns
	// pgx.ErrTxClosed, which we discard here exactly like the command
	// scope discards RELEASE/ROLLBACK TO failures).
	defer func() { _ = outer.Rollback(ctx) }()

	inner, err := outer.Begin(ctx)
	if err != nil {
		// Nested transactions unsupported on this connection; fall back
		// to running the body directly inside the outer transaction.
		s.logger().Debug("nested transaction unavailable, using outer tx directly", "err", err)
		bodyErr := body(context.WithValue(ctx, pgxTxCtxKey{}, outer))
		if bodyErr != nil {
			return bodyErr
		}
		return outer.Commit(ctx)
	}

	bodyCtx := context.WithValue(ctx, pgxTxCtxKey{}, inner)
	bodyErr := body(bodyCtx)

	if bodyErr == nil {
		if err := inner.Commit(ctx); err != nil {
			s.logger().Warn("nested commit failed", "err", err)
			return err
		}
		return outer.Commit(ctx)
	}

	if err := inner.Rollback(ctx); err != nil {
		s.logger().Warn("nested rollback failed", "err", err)
	}
	return bodyErr
}
