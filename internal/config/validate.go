package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"mailcorpus/internal/export"
	"mailcorpus/internal/parser/mailparse"
	"mailcorpus/internal/schema"
	"mailcorpus/internal/transformer"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the config
// (e.g. "runtime.batch_size").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline lints p without touching the filesystem or network.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and ledger rows",
		})
	}
	if strings.TrimSpace(p.Source.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.path",
			Message:  "source.path is empty; the archive must be passed on the command line",
		})
	}
	if _, err := mailparse.NewParser(p.Parser.Encoding); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.encoding",
			Message:  err.Error(),
		})
	}
	issues = append(issues, validateSchema(p.Schema)...)
	issues = append(issues, validateTimestamp(p.Timestamp)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateOutput(p.Output)...)
	issues = append(issues, validateLedger(p.Ledger)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSchema(s Schema) []Issue {
	var issues []Issue

	if len(s.Fields) > 0 {
		if _, err := schema.New(s.Fields, s.DateField); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Path: "schema.fields", Message: err.Error()})
		}
		if s.File != "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "schema.file",
				Message:  "schema.fields is set; schema.file is ignored",
			})
		}
	}
	if s.Discover.Enabled && (len(s.Fields) > 0 || s.File != "") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "schema.discover.enabled",
			Message:  "an explicit field list is configured; discovery is skipped",
		})
	}

	d := s.Discover
	if d.SampleSize <= 0 {
		sev := SeverityWarning
		if d.Enabled {
			sev = SeverityError
		}
		issues = append(issues, Issue{
			Severity: sev,
			Path:     "schema.discover.sample_size",
			Message:  fmt.Sprintf("sample_size=%d; the reservoir must hold at least one entry", d.SampleSize),
		})
	}
	if d.Prefix < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "schema.discover.prefix", Message: "prefix must not be negative"})
	}
	if d.Prefix > 0 && d.Prefix < d.SampleSize {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "schema.discover.prefix",
			Message:  fmt.Sprintf("prefix=%d is smaller than sample_size=%d; the whole prefix is sampled", d.Prefix, d.SampleSize),
		})
	}
	if d.TopK < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "schema.discover.top_k", Message: "top_k must not be negative"})
	}
	if d.MinFraction < 0 || d.MinFraction > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "schema.discover.min_fraction",
			Message:  fmt.Sprintf("min_fraction=%v must be within [0, 1]", d.MinFraction),
		})
	}
	return issues
}

func validateTimestamp(t Timestamp) []Issue {
	if _, err := transformer.ParseTimestampSpec(t.PrefixLen, t.Layout, t.Zone, t.WindowStart, t.WindowEnd, t.Sentinel); err != nil {
		return []Issue{{Severity: SeverityError, Path: "timestamp", Message: err.Error()}}
	}
	return nil
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; batches must hold at least one row", r.BatchSize),
		})
	}
	if r.ParseWorkers < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.parse_workers", Message: "parse_workers must not be negative"})
	}
	if r.ParseWorkers > 1 && r.ParseWindow <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.parse_window",
			Message:  "parse_window must be positive when parse_workers > 1",
		})
	}
	if r.StripComponents < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.strip_components", Message: "strip_components must not be negative"})
	}
	if r.MaxEntryBytes < 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.max_entry_bytes",
			Message:  "negative max_entry_bytes disables the per-entry size limit",
		})
	}
	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue

	if strings.TrimSpace(o.Columnar) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "output.columnar", Message: "output.columnar must not be empty"})
	}
	if strings.TrimSpace(o.Artifact) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "output.artifact", Message: "output.artifact must not be empty"})
	}
	if o.Columnar != "" && filepath.Clean(o.ColumnarPath()) == filepath.Clean(o.ArtifactPath()) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.artifact",
			Message:  "artifact and columnar outputs resolve to the same file",
		})
	}
	if err := export.CheckOptions(export.Options{Codec: o.Codec, Level: o.Level}); err != nil {
		issues = append(issues, Issue{Severity: SeverityError, Path: "output.codec", Message: err.Error()})
	}
	if o.RowGroupSize < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "output.row_group_size", Message: "row_group_size must not be negative"})
	}
	return issues
}

func validateLedger(l Ledger) []Issue {
	var issues []Issue

	if l.Kind == "" {
		return nil
	}
	known := map[string]struct{}{"sqlite": {}, "postgres": {}, "mysql": {}, "mssql": {}}
	if _, ok := known[l.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "ledger.kind",
			Message:  fmt.Sprintf("unknown ledger kind %q; ensure a matching backend is registered", l.Kind),
		})
	}
	if strings.TrimSpace(l.DSN) == "" {
		issues = append(issues, Issue{Severity: SeverityError, Path: "ledger.dsn", Message: "ledger.dsn must not be empty when ledger.kind is set"})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "", "none":
		return nil
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.pushgateway_url", Message: "pushgateway backend requires a URL"}}
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			return []Issue{{Severity: SeverityError, Path: "metrics.datadog_addr", Message: "datadog backend requires an agent address"}}
		}
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics are disabled", m.Backend),
		}}
	}
	return nil
}
