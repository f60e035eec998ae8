// Package db opens the SQLite-backed store PromptHub persists to.
package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite database named by dsn with foreign keys enabled.
// dsn may be a bare file path (as in the default config) or a full
// "file:...?..." DSN; a bare path is turned into one with foreign_keys on.
func Open(dsn string) (*sql.DB, error) {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", dsn)
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}
