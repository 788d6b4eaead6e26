package db

import (
	"database/sql/driver"
	"strings"

	gosqlite "github.com/glebarez/go-sqlite"
)

// sqlite's built-in lower() folds ASCII only; this override folds every script the way postgres does,
// so title and author search stays case-insensitive for Cyrillic and other non-Latin text.
func init() {
	gosqlite.MustRegisterDeterministicScalarFunction("lower", 1, unicodeLower)
}

func unicodeLower(_ *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
