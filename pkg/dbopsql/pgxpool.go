package dbopsql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yokha/dbop-core/pkg/dbopconfig"
)

// OpenPgxPool opens a *pgxpool.Pool for use with dbop.NestedScope, the
// reference scope built on pgx's native nested-transaction support.
func OpenPgxPool(ctx context.Context, c *dbopconfig.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
		urlEscape(c.User), urlEscape(c.Password), c.Host, c.Port, c.DBName)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	maxOpen, _, lifetime, idleTime := c.PoolLimits()
	poolCfg.MaxConns = int32(maxOpen)
	poolCfg.MaxConnLifetime = lifetime
	if idleTime > 0 {
		poolCfg.MaxConnIdleTime = idleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
