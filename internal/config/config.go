// Package config defines the run configuration for a corpus conversion.
//
// A Pipeline is decoded from a JSON file, or from TOML when the file name
// ends in ".toml". Decoding starts from Default(), so a file only needs to
// name the keys it changes.
//
// Example (trimmed):
//
//	{
//	  "job":     "enron",
//	  "source":  { "path": "enron_mail_20150507.tar.gz" },
//	  "schema":  { "file": "schema.json" },
//	  "runtime": { "batch_size": 10000, "parse_workers": 4 },
//	  "output":  { "dir": "out", "codec": "zstd", "level": 9 },
//	  "ledger":  { "kind": "sqlite", "dsn": "file:runs.db" }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Pipeline is the top-level run configuration.
type Pipeline struct {
	// Job names the run in logs, metrics and the run ledger.
	Job string `json:"job" toml:"job"`

	Source    Source        `json:"source" toml:"source"`
	Parser    Parser        `json:"parser" toml:"parser"`
	Schema    Schema        `json:"schema" toml:"schema"`
	Timestamp Timestamp     `json:"timestamp" toml:"timestamp"`
	Runtime   RuntimeConfig `json:"runtime" toml:"runtime"`
	Output    Output        `json:"output" toml:"output"`
	Ledger    Ledger        `json:"ledger" toml:"ledger"`
	Metrics   MetricsConfig `json:"metrics" toml:"metrics"`
}

// Source locates the archive container.
type Source struct {
	Path string `json:"path" toml:"path"`
}

// Parser selects the single-byte text encoding of the corpus.
type Parser struct {
	Encoding string `json:"encoding" toml:"encoding"`
}

// Schema decides the declared field list. Fields wins over File; when both
// are empty and Discover is disabled the built-in header list is used.
type Schema struct {
	Fields    []string `json:"fields" toml:"fields"`
	File      string   `json:"file" toml:"file"`
	DateField string   `json:"date_field" toml:"date_field"`
	Discover  Discover `json:"discover" toml:"discover"`
}

// Discover configures the sampling pass run before the main pass.
type Discover struct {
	Enabled     bool    `json:"enabled" toml:"enabled"`
	Prefix      int     `json:"prefix" toml:"prefix"`
	SampleSize  int     `json:"sample_size" toml:"sample_size"`
	TopK        int     `json:"top_k" toml:"top_k"`
	MinFraction float64 `json:"min_fraction" toml:"min_fraction"`
	Seed        int64   `json:"seed" toml:"seed"`
}

// Timestamp configures date normalisation. Bounds and the sentinel use the
// layout "2006-01-02 15:04:05" and are read in Zone.
type Timestamp struct {
	PrefixLen   int    `json:"prefix_len" toml:"prefix_len"`
	Layout      string `json:"layout" toml:"layout"`
	Zone        string `json:"zone" toml:"zone"`
	WindowStart string `json:"window_start" toml:"window_start"`
	WindowEnd   string `json:"window_end" toml:"window_end"`
	Sentinel    string `json:"sentinel" toml:"sentinel"`
}

// RuntimeConfig controls batching and parse parallelism.
type RuntimeConfig struct {
	BatchSize int `json:"batch_size" toml:"batch_size"`
	// ParseWorkers > 1 parses windows of ParseWindow entries concurrently.
	ParseWorkers    int   `json:"parse_workers" toml:"parse_workers"`
	ParseWindow     int   `json:"parse_window" toml:"parse_window"`
	MaxEntryBytes   int64 `json:"max_entry_bytes" toml:"max_entry_bytes"`
	StripComponents int   `json:"strip_components" toml:"strip_components"`
}

// Output names the output files. Columnar and Artifact are relative to Dir
// unless absolute.
type Output struct {
	Dir          string `json:"dir" toml:"dir"`
	Columnar     string `json:"columnar" toml:"columnar"`
	Artifact     string `json:"artifact" toml:"artifact"`
	Codec        string `json:"codec" toml:"codec"`
	Level        int    `json:"level" toml:"level"`
	RowGroupSize int64  `json:"row_group_size" toml:"row_group_size"`
}

// ColumnarPath resolves the intermediate file path.
func (o Output) ColumnarPath() string { return o.resolve(o.Columnar) }

// ArtifactPath resolves the compressed artifact path.
func (o Output) ArtifactPath() string { return o.resolve(o.Artifact) }

func (o Output) resolve(name string) string {
	if filepath.IsAbs(name) || o.Dir == "" {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// Ledger selects the run ledger backend. An empty Kind disables it.
type Ledger struct {
	Kind  string `json:"kind" toml:"kind"`
	DSN   string `json:"dsn" toml:"dsn"`
	Table string `json:"table" toml:"table"`
}

// MetricsConfig selects the metrics backend: "none", "pushgateway" or
// "datadog".
type MetricsConfig struct {
	Backend        string `json:"backend" toml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" toml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" toml:"datadog_addr"`
}

// Default returns the configuration of the reference Enron conversion.
func Default() Pipeline {
	return Pipeline{
		Job:    "mailcorpus",
		Parser: Parser{Encoding: "iso-8859-1"},
		Schema: Schema{
			DateField: "Date",
			Discover: Discover{
				Prefix:     100_000,
				SampleSize: 10_000,
				TopK:       17,
				Seed:       1,
			},
		},
		Timestamp: Timestamp{
			PrefixLen:   25,
			Layout:      "Mon, 2 Jan 2006 15:04:05",
			Zone:        "America/Chicago",
			WindowStart: "1997-01-01 00:00:00",
			WindowEnd:   "2003-01-01 00:00:00",
			Sentinel:    "1997-01-01 01:00:00",
		},
		Runtime: RuntimeConfig{
			BatchSize:       10_000,
			ParseWorkers:    1,
			ParseWindow:     256,
			MaxEntryBytes:   64 << 20,
			StripComponents: 1,
		},
		Output: Output{
			Dir:          ".",
			Columnar:     "emails.arrow",
			Artifact:     "emails.parquet",
			Codec:        "zstd",
			Level:        9,
			RowGroupSize: 64 * 1024,
		},
		Ledger: Ledger{Table: "mailcorpus_runs"},
		Metrics: MetricsConfig{
			Backend:        "none",
			PushgatewayURL: "http://localhost:9091",
			DatadogAddr:    "127.0.0.1:8125",
		},
	}
}

// Load reads path over Default() and applies environment overrides. An empty
// path yields Default() with overrides.
func Load(path string) (Pipeline, error) {
	p := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Pipeline{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decode(b, strings.EqualFold(filepath.Ext(path), ".toml"), &p); err != nil {
			return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	ApplyEnv(&p, os.Getenv)
	return p, nil
}

// Decode parses a JSON document over Default().
func Decode(b []byte) (Pipeline, error) {
	p := Default()
	if err := decode(b, false, &p); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

func decode(b []byte, isTOML bool, p *Pipeline) error {
	if isTOML {
		d := toml.NewDecoder(bytes.NewReader(b))
		d.DisallowUnknownFields()
		return d.Decode(p)
	}
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode(p)
}

// ApplyEnv overlays the runtime knobs that may be set per host:
//
//	MAILCORPUS_BATCH_SIZE, MAILCORPUS_PARSE_WORKERS, MAILCORPUS_PARSE_WINDOW
//	MAILCORPUS_METRICS_BACKEND, PUSHGATEWAY_URL
//
// Unset or unparsable values leave the configuration unchanged.
func ApplyEnv(p *Pipeline, getenv func(string) string) {
	p.Runtime.BatchSize = getenvInt(getenv, "MAILCORPUS_BATCH_SIZE", p.Runtime.BatchSize)
	p.Runtime.ParseWorkers = getenvInt(getenv, "MAILCORPUS_PARSE_WORKERS", p.Runtime.ParseWorkers)
	p.Runtime.ParseWindow = getenvInt(getenv, "MAILCORPUS_PARSE_WINDOW", p.Runtime.ParseWindow)
	if s := getenv("MAILCORPUS_METRICS_BACKEND"); s != "" {
		p.Metrics.Backend = s
	}
	if s := getenv("PUSHGATEWAY_URL"); s != "" {
		p.Metrics.PushgatewayURL = s
	}
}

// getenvInt reads a positive int from the environment, returning def when
// unset or invalid.
func getenvInt(getenv func(string) string, k string, def int) int {
	if s := getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
