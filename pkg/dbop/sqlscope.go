package dbop

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"
)

type bunTxCtxKey struct{}

// BunTxFromContext returns the bun.Tx a SQLScope placed in ctx for the
// current attempt, if any. An operation's op/PreAttemptHook must read the
// transaction this way to actually run inside the SAVEPOINT-protected
// transaction SQLScope opened — running against the *bun.DB directly would
// execute on a different pooled connection than the one being rolled back
// or committed.
func BunTxFromContext(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(bunTxCtxKey{}).(bun.Tx)
	return tx, ok
}

// SQLScope is the command-based reference AttemptScope (§4.3): it drives a
// bun.DB transaction with explicit BEGIN / SAVEPOINT / RELEASE SAVEPOINT /
// ROLLBACK TO SAVEPOINT / COMMIT / ROLLBACK statements, the same way the
// three bun dialects (pgdialect, mysqldialect, sqlitedialect) are already
// wired into a single *bun.DB by dbopsql.Open.
type SQLScope struct {
	DB *bun.DB

	// Dialect selects which best-effort statements are attempted:
	// "postgres", "mysql" or "mariadb" get SET TRANSACTION READ ONLY;
	// sqlite has no equivalent and is skipped.
	Dialect string

	// SupportsSavepoint disables SAVEPOINT emission entirely when false,
	// matching the source's supports_savepoint flag. Defaults to true
	// via the New*Scope constructors.
	SupportsSavepoint bool

	Logger *slog.Logger
}

// NewPostgresScope returns a SQLScope configured for Postgres: savepoints
// and best-effort SET TRANSACTION READ ONLY.
func NewPostgresScope(db *bun.DB) *SQLScope {
	return &SQLScope{DB: db, Dialect: "postgres", SupportsSavepoint: true}
}

// NewMySQLScope returns a SQLScope configured for MySQL/MariaDB.
func NewMySQLScope(db *bun.DB) *SQLScope {
	return &SQLScope{DB: db, Dialect: "mysql", SupportsSavepoint: true}
}

// NewSQLiteScope returns a SQLScope configured for SQLite. SQLite has no
// per-transaction read-only toggle, so the read-only hint is always a
// no-op for this dialect.
func NewSQLiteScope(db *bun.DB) *SQLScope {
	return &SQLScope{DB: db, Dialect: "sqlite", SupportsSavepoint: true}
}

func (s *SQLScope) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run implements Scope. Exactly one of COMMIT or ROLLBACK is reached on
// every path; cleanup statement failures (RELEASE/ROLLBACK TO) are logged
// and swallowed so the original body error always wins.
func (s *SQLScope) Run(ctx context.Context, readOnly bool, body func(ctx context.Context) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if readOnly {
		switch s.Dialect {
		case "postgres", "mysql", "mariadb":
			if _, err := tx.ExecContext(ctx, "SET TRANSACTION READ ONLY"); err != nil {
				s.logger().Debug("read-only hint not applied", "dialect", s.Dialect, "err", err)
			}
		}
	}

	var sp string
	useSavepoint := s.SupportsSavepoint
	if useSavepoint {
		candidate := newSavepointName()
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+candidate); err != nil {
			s.logger().Debug("savepoint unsupported, continuing without one", "err", err)
			useSavepoint = false
		} else {
			sp = candidate
		}
	}

	bodyCtx := context.WithValue(ctx, bunTxCtxKey{}, tx)
	bodyErr := body(bodyCtx)

	if bodyErr == nil {
		if useSavepoint {
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
				s.logger().Warn("release savepoint failed", "savepoint", sp, "err", err)
			}
		}
		return tx.Commit()
	}

	if useSavepoint {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); err != nil {
			s.logger().Warn("rollback to savepoint failed", "savepoint", sp, "err", err)
		}
	}
	if err := tx.Rollback(); err != nil {
		s.logger().Warn("outer rollback failed", "err", err)
	}
	return bodyErr
}
