package mysql

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"mailcorpus/internal/storage"
)

func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u:p@tcp(db:3306)/corpus"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.DSN != "u:p@tcp(db:3306)/corpus" || gotCfg.Table != storage.DefaultTable {
		t.Fatalf("cfg = %+v", gotCfg)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not reach closeFn")
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "tcp(no-closing-paren"})
	if err == nil || !strings.Contains(err.Error(), "mysql dsn") {
		t.Fatalf("err = %v, want mysql dsn error", err)
	}
}

func TestDialect(t *testing.T) {
	t.Parallel()

	ddl := Dialect.CreateTableSQL("corpus.mailcorpus_runs")
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS `corpus`.`mailcorpus_runs`", "`run_id` VARCHAR(36) NOT NULL", "`started_at` VARCHAR(40) NOT NULL"} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("DDL missing %q:\n%s", want, ddl)
		}
	}
	if q := Dialect.RecentSQL("r"); !strings.HasSuffix(q, "LIMIT ?") {
		t.Fatalf("recent = %s", q)
	}
}

func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: set TEST_MYSQL_DSN to run")
	}
	ctx := context.Background()
	r, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: "mailcorpus_runs_it"})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	defer closeFn()
	if err := r.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	run := storage.NewRun("enron", "enron.tar.gz", time.Now())
	run.Finish(nil, time.Now())
	if err := r.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	got, err := r.Recent(ctx, 1)
	if err != nil || len(got) != 1 || got[0].ID != run.ID {
		t.Fatalf("Recent = %+v, %v", got, err)
	}
}
