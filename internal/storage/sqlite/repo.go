// Package sqlite implements the run ledger on SQLite using the pure-Go
// modernc driver.
package sqlite

import (
	"context"
	"strings"

	"mailcorpus/internal/storage"
	"mailcorpus/internal/storage/sqldb"

	_ "modernc.org/sqlite"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:runs.db?cache=shared"
	//   "runs.db"
	DSN string

	// Table is the ledger table, e.g. "mailcorpus_runs".
	Table string
}

// Dialect is SQLite's quoting, placeholder and type mapping.
var Dialect = sqldb.Dialect{
	Name:        "sqlite",
	Quote:       quoteIdent,
	Placeholder: func(int) string { return "?" },
	Types: map[storage.ColumnType]string{
		storage.TypeText: "TEXT",
		storage.TypeInt:  "INTEGER",
		storage.TypeTime: "TEXT",
	},
	KeyType: "TEXT",
	CreateTable: func(table, body string) string {
		return "CREATE TABLE IF NOT EXISTS " + table + " (" + body + ")"
	},
	SelectRecent: func(cols, table, order string) string {
		return "SELECT " + cols + " FROM " + table + " ORDER BY " + order + " LIMIT ?"
	},
}

// Repository is a SQLite-backed storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository opens a SQLite connection and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	r, closeFn, err := sqldb.Open(ctx, "sqlite", cfg.DSN, cfg.Table, Dialect)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}

// BuildCreateTableSQL renders the ledger DDL for table.
func BuildCreateTableSQL(table string) string { return Dialect.CreateTableSQL(table) }

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
