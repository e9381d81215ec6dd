package dbop

import (
	"context"
	"fmt"
	"time"
)

// LockAndStatementTimeoutSQL returns a PreAttemptHook that applies
// dialect-specific per-attempt timeouts against the bun transaction
// SQLScope placed in ctx for the current attempt (BunTxFromContext). Since
// SQLScope opens a new transaction on every attempt, the hook must look the
// transaction up per invocation rather than close over one captured at
// construction time — otherwise retries 2..N would run it against attempt
// 1's already-closed transaction. Pass a zero duration to skip the
// corresponding statement. Matches §4.4's canonical statement forms:
// Postgres SET LOCAL, MySQL/MariaDB SET SESSION, SQLite PRAGMA.
func LockAndStatementTimeoutSQL(dialect string, lockTimeout, stmtTimeout time.Duration) PreAttemptHook {
	return func(ctx context.Context) error {
		tx, ok := BunTxFromContext(ctx)
		if !ok {
			return nil
		}
		switch dialect {
		case "postgres":
			if lockTimeout > 0 {
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockTimeout)); err != nil {
					return err
				}
			}
			if stmtTimeout > 0 {
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%s'", stmtTimeout)); err != nil {
					return err
				}
			}
		case "mysql", "mariadb":
			if lockTimeout > 0 {
				secs := int64(lockTimeout / time.Second)
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)); err != nil {
					return err
				}
			}
			if stmtTimeout > 0 {
				ms := stmtTimeout.Milliseconds()
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION MAX_EXECUTION_TIME = %d", ms)); err != nil {
					return err
				}
			}
		case "sqlite":
			if lockTimeout > 0 {
				ms := lockTimeout.Milliseconds()
				if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", ms)); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// LockAndStatementTimeoutPgx returns a PreAttemptHook for use with
// NestedScope: it pulls the active pgx.Tx out of ctx (placed there by
// NestedScope.Run) and applies the same Postgres SET LOCAL statements.
func LockAndStatementTimeoutPgx(lockTimeout, stmtTimeout time.Duration) PreAttemptHook {
	return func(ctx context.Context) error {
		tx, ok := TxFromContext(ctx)
		if !ok {
			return nil
		}
		if lockTimeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", lockTimeout)); err != nil {
				return err
			}
		}
		if stmtTimeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%s'", stmtTimeout)); err != nil {
				return err
			}
		}
		return nil
	}
}
