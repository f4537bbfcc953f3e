package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mailcorpus/internal/storage"
)

func newRepo(tb testing.TB) *Repository {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "runs.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		tb.Fatalf("NewRepository(%s): %v", dsn, err)
	}
	tb.Cleanup(closeFn)
	if err := r.EnsureTable(context.Background()); err != nil {
		tb.Fatalf("EnsureTable: %v", err)
	}
	return r
}

func sampleRun(job string, started time.Time, err error) storage.Run {
	run := storage.NewRun(job, "enron.tar.gz", started)
	run.Columnar, run.Artifact = "out/emails.arrow", "out/emails.parquet"
	run.Codec, run.Level = "zstd", 9
	run.Leaf, run.Skipped, run.Rows, run.Batches = 5, 1, 4, 1
	run.DateParsed, run.DateSentinel = 3, 1
	run.ColumnarBytes, run.ArtifactBytes = 4096, 1024
	run.Checksum = "00000000deadbeef"
	run.Finish(err, started.Add(90*time.Second))
	return run
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("NewRepository(empty DSN) error = nil")
	}
}

func TestEnsureTable_Idempotent(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	if err := r.EnsureTable(context.Background()); err != nil {
		t.Fatalf("second EnsureTable: %v", err)
	}
}

func TestRecordRunAndRecent(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := sampleRun("enron", t0, nil)
	second := sampleRun("enron", t0.Add(500*time.Millisecond), errors.New("export: disk full"))
	third := sampleRun("enron", t0.Add(time.Hour), nil)
	for _, run := range []storage.Run{first, second, third} {
		if err := r.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	got, err := r.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if diff := cmp.Diff([]storage.Run{third, second}, got); diff != "" {
		t.Fatalf("Recent (-want +got):\n%s", diff)
	}
	if got[1].Status != storage.StatusFailed || got[1].Error != "export: disk full" {
		t.Fatalf("failed run = %+v", got[1])
	}

	if none, err := r.Recent(ctx, 0); err != nil || none != nil {
		t.Fatalf("Recent(0) = %v, %v", none, err)
	}
}

func TestRecordRun_DuplicateID(t *testing.T) {
	t.Parallel()

	r := newRepo(t)
	run := sampleRun("enron", time.Now(), nil)
	if err := r.RecordRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordRun(context.Background(), run); err == nil {
		t.Fatalf("duplicate run_id accepted")
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := BuildCreateTableSQL(`runs"x`)
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "runs""x"`,
		`"rows_written" INTEGER NOT NULL`,
		`"started_at" TEXT NOT NULL`,
		`PRIMARY KEY ("run_id")`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("DDL missing %q:\n%s", want, got)
		}
	}
}
