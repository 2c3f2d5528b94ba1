package bunx

import (
	"database/sql/driver"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"modernc.org/sqlite"
)

// SQLiteLowerFunc is a Unicode-aware LOWER registered on every SQLite
// connection. The built-in LOWER only folds ASCII letters.
const SQLiteLowerFunc = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(SQLiteLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// IsSQLite reports whether db talks to SQLite.
func IsSQLite(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// IsPostgreSQL reports whether db talks to PostgreSQL.
func IsPostgreSQL(db bun.IDB) bool {
	return db.Dialect().Name() == dialect.PG
}

// LowerExpr wraps col in the case-folding function that matches Go's
// strings.ToLower for the dialect of db.
func LowerExpr(db bun.IDB, col string) string {
	if IsSQLite(db) {
		return SQLiteLowerFunc + "(" + col + ")"
	}
	return "LOWER(" + col + ")"
}
