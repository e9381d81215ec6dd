package dbopsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"

	"github.com/yokha/dbop-core/pkg/dbopconfig"
)

// connectionInfo resolves the driver name, DSN and bun dialect for one
// canonical dialect, sharing normalizeDialect with DetectDialect so Open
// and URL-based dialect detection never disagree on accepted aliases.
func connectionInfo(c *dbopconfig.DatabaseConfig) (driver, dsn string, dial schema.Dialect, err error) {
	name, ok := normalizeDialect(c.Dialect)
	if !ok {
		return "", "", nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, c.Dialect)
	}

	switch name {
	case dialectPostgres:
		dsn := fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable",
			urlEscape(c.User), urlEscape(c.Password), c.Host, c.Port, c.DBName)
		return "pgx", dsn, pgdialect.New(), nil
	case dialectMySQL:
		addr := fmt.Sprintf("tcp(%s:%d)", c.Host, c.Port)
		dsn := fmt.Sprintf("%s:%s@%s/%s?parseTime=true&charset=utf8mb4&loc=Local",
			c.User, c.Password, addr, c.DBName)
		return "mysql", dsn, mysqldialect.New(), nil
	case dialectSQLite:
		if strings.TrimSpace(c.DBName) == "" {
			return "", "", nil, fmt.Errorf("sqlite requires dbname as file path or :memory:")
		}
		return "sqlite", c.DBName, sqlitedialect.New(), nil
	default:
		return "", "", nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, c.Dialect)
	}
}

// Open constructs a *bun.DB from c, backing dbop.SQLScope. Pool sizing
// comes from c.PoolLimits so bun-backed connections and NestedScope's
// OpenPgxPool connections are sized identically for the same config.
func Open(c *dbopconfig.DatabaseConfig) (*bun.DB, error) {
	if c == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	driver, dsn, dial, err := connectionInfo(c)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	maxOpen, maxIdle, lifetime, idleTime := c.PoolLimits()
	sqldb.SetMaxOpenConns(maxOpen)
	sqldb.SetMaxIdleConns(maxIdle)
	sqldb.SetConnMaxLifetime(lifetime)
	if idleTime > 0 {
		sqldb.SetConnMaxIdleTime(idleTime)
	}

	b := bun.NewDB(sqldb, dial)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.PingContext(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return b, nil
}

// OpenFromFile loads YAML config from path and opens the configured
// database.
func OpenFromFile(path string) (*bun.DB, error) {
	cfg, err := dbopconfig.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Open(&cfg.Database)
}

// Close closes the underlying bun DB and its driver.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func urlEscape(s string) string {
	return strings.ReplaceAll(s, "@", "%40")
}
