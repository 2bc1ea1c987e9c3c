package store

import "strings"

// isSQLiteConflict reports whether the error is a SQLite concurrency
// failure (SQLITE_BUSY or "database is locked"). These are transient and
// warrant a retry; message writes race with the streaming reconciler.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
