package mssql

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

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://sa@db:1433", Table: "dbo.runs"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.DSN != "sqlserver://sa@db:1433" || gotCfg.Table != "dbo.runs" {
		t.Fatalf("cfg = %+v", gotCfg)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not reach closeFn")
	}
}

func TestDialect(t *testing.T) {
	t.Parallel()

	ddl := Dialect.CreateTableSQL("dbo.mailcorpus_runs")
	for _, want := range []string{
		"IF OBJECT_ID(N'[dbo].[mailcorpus_runs]', N'U') IS NULL CREATE TABLE [dbo].[mailcorpus_runs]",
		"[run_id] NVARCHAR(36) NOT NULL",
		"[error] NVARCHAR(MAX) NOT NULL",
		"PRIMARY KEY ([run_id])",
	} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("DDL missing %q:\n%s", want, ddl)
		}
	}
	if ins := Dialect.InsertSQL("runs"); !strings.HasSuffix(ins, "@p19, @p20)") {
		t.Fatalf("insert = %s", ins)
	}
	if q := Dialect.RecentSQL("runs"); !strings.HasPrefix(q, "SELECT TOP (@p1) [run_id],") {
		t.Fatalf("recent = %s", q)
	}
	if got := msIdent("a]b"); got != "[a]]b]" {
		t.Fatalf("msIdent = %s", got)
	}
}

func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_MSSQL_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: set TEST_MSSQL_DSN to run")
	}
	ctx := context.Background()
	r, closeFn, err := NewRepository(ctx, Config{DSN: dsn, Table: "dbo.mailcorpus_runs_it"})
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
