// Command dbop-demo wires a config file, a SQL dialect and dbop.Execute
// together end to end, the same shape as a service's startup code would
// use. It is a compile-time demonstration, not a fixture: point it at a
// real database to see retries and savepoints happen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yokha/dbop-core/pkg/dbop"
	"github.com/yokha/dbop-core/pkg/dbopconfig"
	"github.com/yokha/dbop-core/pkg/dbopsql"
	"github.com/yokha/dbop-core/pkg/logx"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := dbopconfig.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logx.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.AddSource)
	logger := slog.Default()

	bunDB, err := dbopsql.Open(cfg.GetDatabaseConfig())
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer dbopsql.Close(bunDB)

	var scope dbop.Scope
	switch cfg.Database.Dialect {
	case "postgres", "postgresql", "pg":
		scope = dbop.NewPostgresScope(bunDB)
	case "mysql":
		scope = dbop.NewMySQLScope(bunDB)
	default:
		scope = dbop.NewSQLiteScope(bunDB)
	}

	policy := dbop.RetryPolicy{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: time.Duration(cfg.Retry.InitialDelay),
		MaxDelay:     time.Duration(cfg.Retry.MaxDelay),
		Jitter:       cfg.Retry.Jitter,
	}
	if policy.MaxRetries == 0 && policy.InitialDelay == 0 {
		policy = dbop.DefaultRetryPolicy()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	attempts := 0
	result, err := dbop.ExecuteTraced(ctx, func(ctx context.Context) (int64, error) {
		attempts++
		// Execute already wrapped this call in scope.Run before invoking
		// op; the active transaction travels on ctx rather than through
		// bunDB directly, so the query runs inside the same
		// SAVEPOINT-protected transaction a retry would roll back.
		tx, ok := dbop.BunTxFromContext(ctx)
		if !ok {
			return 0, fmt.Errorf("no active transaction in context")
		}
		var n int64
		err := tx.NewSelect().ColumnExpr("1").Scan(ctx, &n)
		return n, err
	}, dbop.TelemetryParams[int64]{
		Params: dbop.Params[int64]{
			Policy:     policy,
			Scope:      scope,
			Classifier: dbop.DBAPIClassifier,
			ReadOnly:   true,
		},
		SpanName: "dbop_demo.ping",
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("operation failed", "err", err, "attempts", attempts)
		os.Exit(1)
	}

	logger.Info("operation succeeded", "result", result, "attempts", attempts)
}
