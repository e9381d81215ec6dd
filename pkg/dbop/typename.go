package dbop

import "reflect"

// typeName returns the unqualified type name of err's dynamic value, e.g.
// "PgError" for *pgconn.PgError. Used only by the generic fallback branch
// of DBAPIClassifier, which keys on a DB-API exception class name rather
// than a Go type.
func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}
