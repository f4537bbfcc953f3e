// Package sqldb implements the run ledger over database/sql. Backends supply
// a Dialect for quoting, placeholders and column types; times are stored as
// fixed-width UTC text so ordering and round trips do not depend on driver
// time handling.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mailcorpus/internal/storage"
)

// TimeLayout is fixed-width so text ordering matches time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Name string
	// Quote quotes one identifier.
	Quote func(id string) string
	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string
	// Types maps portable column types to SQL types. TypeTime columns are text.
	Types map[storage.ColumnType]string
	// KeyType is the SQL type of run_id; some engines cannot index TEXT.
	KeyType string
	// CreateTable wraps a column body into an idempotent CREATE statement.
	CreateTable func(table, body string) string
	// SelectRecent renders a newest-first select with one limit parameter.
	SelectRecent func(cols, table, order string) string
}

// QuoteFQN quotes a possibly schema-qualified name part by part.
func (d Dialect) QuoteFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// CreateTableSQL renders the ledger DDL.
func (d Dialect) CreateTableSQL(table string) string {
	cols := make([]string, 0, len(storage.Columns)+1)
	for _, c := range storage.Columns {
		typ := d.Types[c.Type]
		if c.Name == "run_id" {
			typ = d.KeyType
		}
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", d.Quote(c.Name), typ))
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", d.Quote("run_id")))
	return d.CreateTable(d.QuoteFQN(table), "\n  "+strings.Join(cols, ",\n  ")+"\n")
}

// InsertSQL renders the parameterised insert.
func (d Dialect) InsertSQL(table string) string {
	names := storage.ColumnNames()
	params := make([]string, len(names))
	for i := range params {
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteFQN(table), strings.Join(d.quoteAll(names), ", "), strings.Join(params, ", "))
}

// RecentSQL renders the newest-first select.
func (d Dialect) RecentSQL(table string) string {
	order := fmt.Sprintf("%s DESC, %s DESC", d.Quote("started_at"), d.Quote("run_id"))
	return d.SelectRecent(strings.Join(d.quoteAll(storage.ColumnNames()), ", "), d.QuoteFQN(table), order)
}

func (d Dialect) quoteAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = d.Quote(id)
	}
	return out
}

// Repository is a database/sql run ledger.
type Repository struct {
	db    *sql.DB
	d     Dialect
	table string
}

// Open connects with driver and pings within five seconds. It returns the
// Repository plus a Close function.
func Open(ctx context.Context, driver, dsn, table string, d Dialect) (*Repository, func(), error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("%s: DSN must not be empty", d.Name)
	}
	if table == "" {
		table = storage.DefaultTable
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	closeFn := func() { db.Close() }
	return &Repository{db: db, d: d, table: table}, closeFn, nil
}

// Table is the ledger table name.
func (r *Repository) Table() string { return r.table }

// EnsureTable implements storage.Repository.
func (r *Repository) EnsureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.d.CreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("%s: create %s: %w", r.d.Name, r.table, err)
	}
	return nil
}

// RecordRun implements storage.Repository.
func (r *Repository) RecordRun(ctx context.Context, run storage.Run) error {
	vals := run.Values()
	for i, c := range storage.Columns {
		if c.Type == storage.TypeTime {
			vals[i] = vals[i].(time.Time).UTC().Format(TimeLayout)
		}
	}
	if _, err := r.db.ExecContext(ctx, r.d.InsertSQL(r.table), vals...); err != nil {
		return fmt.Errorf("%s: insert run %s: %w", r.d.Name, run.ID, err)
	}
	return nil
}

// Recent implements storage.Repository.
func (r *Repository) Recent(ctx context.Context, limit int) ([]storage.Run, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, r.d.RecentSQL(r.table), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: query runs: %w", r.d.Name, err)
	}
	defer rows.Close()

	var out []storage.Run
	for rows.Next() {
		var (
			run               storage.Run
			level             int64
			started, finished string
		)
		if err := rows.Scan(run.ScanTargets(&level, &started, &finished)...); err != nil {
			return nil, fmt.Errorf("%s: scan run: %w", r.d.Name, err)
		}
		run.Level = int(level)
		if run.Started, err = time.Parse(TimeLayout, started); err != nil {
			return nil, fmt.Errorf("%s: run %s started_at: %w", r.d.Name, run.ID, err)
		}
		if run.Finished, err = time.Parse(TimeLayout, finished); err != nil {
			return nil, fmt.Errorf("%s: run %s finished_at: %w", r.d.Name, run.ID, err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
