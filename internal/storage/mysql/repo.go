// Package mysql implements the run ledger on MySQL using go-sql-driver.
package mysql

import (
	"context"
	"fmt"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"mailcorpus/internal/storage"
	"mailcorpus/internal/storage/sqldb"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN   string // e.g. "user:pass@tcp(localhost:3306)/corpus"
	Table string
}

// Dialect is MySQL's quoting, placeholder and type mapping. run_id is a
// VARCHAR because MySQL cannot key a TEXT column without a prefix length.
var Dialect = sqldb.Dialect{
	Name:        "mysql",
	Quote:       func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
	Placeholder: func(int) string { return "?" },
	Types: map[storage.ColumnType]string{
		storage.TypeText: "TEXT",
		storage.TypeInt:  "BIGINT",
		storage.TypeTime: "VARCHAR(40)",
	},
	KeyType: "VARCHAR(36)",
	CreateTable: func(table, body string) string {
		return "CREATE TABLE IF NOT EXISTS " + table + " (" + body + ")"
	},
	SelectRecent: func(cols, table, order string) string {
		return "SELECT " + cols + " FROM " + table + " ORDER BY " + order + " LIMIT ?"
	},
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository validates the DSN, connects, and returns a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := driver.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	r, closeFn, err := sqldb.Open(ctx, "mysql", cfg.DSN, cfg.Table, Dialect)
	if err != nil {
		return nil, nil, err
	}
	return &Repository{Repository: r}, closeFn, nil
}
