package dbopsql

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedDialect is returned by DetectDialect and Open for any
// dialect/scheme other than postgres/mysql/sqlite.
var ErrUnsupportedDialect = errors.New("dbopsql: unsupported dialect")

// canonicalDialect is the normalized dialect name both Open (driven by a
// dbopconfig.DatabaseConfig.Dialect field) and DetectDialect (driven by a
// connection URL's scheme) resolve to. Keeping one alias table means a new
// accepted spelling only needs adding once.
type canonicalDialect string

const (
	dialectPostgres canonicalDialect = "postgres"
	dialectMySQL    canonicalDialect = "mysql"
	dialectSQLite   canonicalDialect = "sqlite3"
)

// normalizeDialect canonicalizes any accepted spelling of a dialect name or
// URL scheme, case-insensitively.
func normalizeDialect(raw string) (canonicalDialect, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "postgresql", "pg":
		return dialectPostgres, true
	case "mysql":
		return dialectMySQL, true
	case "sqlite", "sqlite3":
		return dialectSQLite, true
	default:
		return "", false
	}
}

// DetectDialect inspects a connection URL's scheme and returns the
// normalised dialect name ("postgres", "mysql" or "sqlite3") used by Open
// and by dbop.NewPostgresScope/NewMySQLScope/NewSQLiteScope, so a caller
// holding only a URL doesn't have to name the dialect twice.
func DetectDialect(dbURL string) (string, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("dbopsql: parsing database URL: %w", err)
	}

	name, ok := normalizeDialect(u.Scheme)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDialect, u.Scheme)
	}
	return string(name), nil
}
