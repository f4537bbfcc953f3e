package storage

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTable is the ledger table used when Config.Table is empty.
const DefaultTable = "mailcorpus_runs"

// Run status values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one ledger row.
type Run struct {
	ID       string
	Job      string
	Source   string
	Columnar string
	Artifact string
	Codec    string
	Level    int

	Leaf         int64
	Skipped      int64
	Rows         int64
	Batches      int64
	DateParsed   int64
	DateSentinel int64

	ColumnarBytes int64
	ArtifactBytes int64
	Checksum      string // hex xxh3 of the artifact

	Status   string
	Error    string
	Started  time.Time
	Finished time.Time
}

// NewRun starts a ledger row with a fresh id.
func NewRun(job, source string, now time.Time) Run {
	return Run{ID: uuid.NewString(), Job: job, Source: source, Started: now.UTC()}
}

// Finish stamps the outcome. A nil err marks the run succeeded.
func (r *Run) Finish(err error, now time.Time) {
	r.Finished = now.UTC()
	r.Status = StatusSucceeded
	r.Error = ""
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// ColumnType is the portable type of a ledger column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInt
	TypeTime
)

// Column is one ledger column definition.
type Column struct {
	Name string
	Type ColumnType
}

// Columns is the ledger layout; Values and backend scans follow this order.
var Columns = []Column{
	{"run_id", TypeText},
	{"job", TypeText},
	{"source", TypeText},
	{"columnar_path", TypeText},
	{"artifact_path", TypeText},
	{"codec", TypeText},
	{"level", TypeInt},
	{"leaf_entries", TypeInt},
	{"skipped_entries", TypeInt},
	{"rows_written", TypeInt},
	{"batches", TypeInt},
	{"date_parsed", TypeInt},
	{"date_sentinel", TypeInt},
	{"columnar_bytes", TypeInt},
	{"artifact_bytes", TypeInt},
	{"checksum", TypeText},
	{"status", TypeText},
	{"error", TypeText},
	{"started_at", TypeTime},
	{"finished_at", TypeTime},
}

// ColumnNames returns the names of Columns in order.
func ColumnNames() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Name
	}
	return out
}

// Values returns r's fields in Columns order.
func (r Run) Values() []any {
	return []any{
		r.ID, r.Job, r.Source, r.Columnar, r.Artifact, r.Codec, int64(r.Level),
		r.Leaf, r.Skipped, r.Rows, r.Batches, r.DateParsed, r.DateSentinel,
		r.ColumnarBytes, r.ArtifactBytes, r.Checksum,
		r.Status, r.Error, r.Started, r.Finished,
	}
}

// ScanTargets returns scan destinations in Columns order. The level and time
// destinations are supplied by the backend so it can convert them itself.
func (r *Run) ScanTargets(level *int64, started, finished any) []any {
	return []any{
		&r.ID, &r.Job, &r.Source, &r.Columnar, &r.Artifact, &r.Codec, level,
		&r.Leaf, &r.Skipped, &r.Rows, &r.Batches, &r.DateParsed, &r.DateSentinel,
		&r.ColumnarBytes, &r.ArtifactBytes, &r.Checksum,
		&r.Status, &r.Error, started, finished,
	}
}
