// Package postgres implements the run ledger on Postgres using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailcorpus/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // possibly schema-qualified, e.g. "public.mailcorpus_runs"
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if cfg.Table == "" {
		cfg.Table = storage.DefaultTable
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// BuildCreateTableSQL renders the ledger DDL for a possibly schema-qualified
// table.
func BuildCreateTableSQL(table string) string {
	cols := make([]string, 0, len(storage.Columns)+1)
	for _, c := range storage.Columns {
		var typ string
		switch c.Type {
		case storage.TypeInt:
			typ = "BIGINT"
		case storage.TypeTime:
			typ = "TIMESTAMPTZ"
		default:
			typ = "TEXT"
		}
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", pgIdent(c.Name), typ))
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", pgIdent("run_id")))
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", pgFQN(table), strings.Join(cols, ",\n  "))
}

// BuildInsertSQL renders the parameterised insert for table.
func BuildInsertSQL(table string) string {
	names := storage.ColumnNames()
	params := make([]string, len(names))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgFQN(table), strings.Join(mapIdent(names), ", "), strings.Join(params, ", "))
}

// EnsureTable implements storage.Repository.
func (r *Repository) EnsureTable(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, BuildCreateTableSQL(r.cfg.Table)); err != nil {
		return fmt.Errorf("postgres: create %s: %w", r.cfg.Table, err)
	}
	return nil
}

// RecordRun implements storage.Repository.
func (r *Repository) RecordRun(ctx context.Context, run storage.Run) error {
	if _, err := r.pool.Exec(ctx, BuildInsertSQL(r.cfg.Table), run.Values()...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("postgres: insert run %s: %s (SQLSTATE %s)", run.ID, pgErr.Message, pgErr.Code)
		}
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	return nil
}

// Recent implements storage.Repository.
func (r *Repository) Recent(ctx context.Context, limit int) ([]storage.Run, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC, %s DESC LIMIT $1",
		strings.Join(mapIdent(storage.ColumnNames()), ", "), pgFQN(r.cfg.Table),
		pgIdent("started_at"), pgIdent("run_id"))
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query runs: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Run, error) {
		var (
			run   storage.Run
			level int64
		)
		err := row.Scan(run.ScanTargets(&level, &run.Started, &run.Finished)...)
		run.Level = int(level)
		run.Started, run.Finished = run.Started.UTC(), run.Finished.UTC()
		return run, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan runs: %w", err)
	}
	return out, nil
}

// pgIdent quotes an identifier, escaping embedded double quotes.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.runs" to
// "public"."runs".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
