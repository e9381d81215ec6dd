package dbop

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Classifier decides whether a failure is transient, i.e. worth retrying.
// A Classifier must never panic; a panic inside one is treated by Execute
// as equivalent to returning false (see DBAPIClassifier's own internal
// discipline, which never panics in the first place).
type Classifier func(err error) bool

// transientPostgresCodes are SQLSTATEs treated as retryable: deadlock
// detected, lock not available, serialization failure.
var transientPostgresCodes = map[string]bool{
	"40P01": true,
	"55P03": true,
	"40001": true,
}

var transientPostgresMessages = []string{
	"canceling statement due to statement timeout",
	"deadlock detected",
	"canceling statement due to lock timeout",
}

// transientMySQLErrnos: 1213 deadlock, 1205 lock wait timeout, 3572 NOWAIT
// lock unavailable, 2006 server gone away, 2013 lost connection.
var transientMySQLErrnos = map[uint16]bool{
	1213: true,
	1205: true,
	3572: true,
	2006: true,
	2013: true,
}

var transientMySQLMessages = []string{
	"nowait is set",
	"deadlock",
	"lock wait timeout",
}

var genericTransientMessages = []string{
	"timeout",
	"deadlock",
	"lock wait",
	"gone away",
	"lost connection",
	"connection reset",
}

// DBAPIClassifier is the reference transient-error classifier. It inspects,
// in order: Postgres SQLSTATE codes, Postgres message substrings, MySQL/
// MariaDB error numbers, MySQL/MariaDB message substrings, the SQLite
// "database is locked" message, and finally a generic operational/interface/
// timeout fallback keyed on error type name. All substring comparisons are
// case-insensitive. The exact signal set and order are part of the contract
// and must not be reordered or pruned when adding new dialects.
func DBAPIClassifier(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientPostgresCodes[pgErr.Code] {
			return true
		}
	}
	if containsAny(msg, transientPostgresMessages) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if transientMySQLErrnos[myErr.Number] {
			return true
		}
	}
	if containsAny(msg, transientMySQLMessages) {
		return true
	}

	if strings.Contains(msg, "database is locked") {
		return true
	}

	if isGenericOperationalFailure(err) && containsAny(msg, genericTransientMessages) {
		return true
	}

	return false
}

// isGenericOperationalFailure reports whether err (or its wrapped cause)
// carries one of the generic DB-API exception names the source classifies
// by name alone: OperationalError, InterfaceError, TimeoutError. Go has no
// such named stdlib types; this matches against the dynamic type name the
// same way the reference classifier does, so that a caller's own
// OperationalError/InterfaceError/TimeoutError-named error type still
// participates in the generic fallback.
func isGenericOperationalFailure(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		name := typeName(e)
		switch name {
		case "OperationalError", "InterfaceError", "TimeoutError":
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
