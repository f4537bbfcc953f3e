package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validDefault() Pipeline {
	p := Default()
	p.Source.Path = "enron.tar.gz"
	return p
}

func TestValidatePipeline_DefaultIsClean(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validDefault()); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestValidatePipeline_MissingSourceWarns(t *testing.T) {
	t.Parallel()

	issues := ValidatePipeline(Default())
	if !hasIssue(t, issues, SeverityWarning, "source.path", "command line") {
		t.Fatalf("expected source.path warning; got %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("missing source must not be an error: %+v", issues)
	}
}

func TestValidatePipeline_Cases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Pipeline)
		sev    IssueSeverity
		path   string
		substr string
	}{
		{"empty_job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "must not be empty"},
		{"bad_encoding", func(p *Pipeline) { p.Parser.Encoding = "utf-8" }, SeverityError, "parser.encoding", "unsupported"},
		{"duplicate_field", func(p *Pipeline) { p.Schema.Fields = []string{"To", "To"} }, SeverityError, "schema.fields", "duplicate"},
		{"reserved_field", func(p *Pipeline) { p.Schema.Fields = []string{"_text"} }, SeverityError, "schema.fields", "reserved"},
		{"fields_and_file", func(p *Pipeline) {
			p.Schema.Fields = []string{"To"}
			p.Schema.File = "schema.json"
		}, SeverityWarning, "schema.file", "ignored"},
		{"discover_with_fields", func(p *Pipeline) {
			p.Schema.Fields = []string{"To"}
			p.Schema.Discover.Enabled = true
		}, SeverityWarning, "schema.discover.enabled", "skipped"},
		{"discover_zero_sample", func(p *Pipeline) {
			p.Schema.Discover.Enabled = true
			p.Schema.Discover.SampleSize = 0
		}, SeverityError, "schema.discover.sample_size", "at least one"},
		{"min_fraction_range", func(p *Pipeline) { p.Schema.Discover.MinFraction = 1.5 }, SeverityError, "schema.discover.min_fraction", "within"},
		{"bad_zone", func(p *Pipeline) { p.Timestamp.Zone = "Mars/Olympus" }, SeverityError, "timestamp", "zone"},
		{"inverted_window", func(p *Pipeline) { p.Timestamp.WindowEnd = "1990-01-01 00:00:00" }, SeverityError, "timestamp", "before"},
		{"zero_batch", func(p *Pipeline) { p.Runtime.BatchSize = 0 }, SeverityError, "runtime.batch_size", "at least one row"},
		{"workers_without_window", func(p *Pipeline) {
			p.Runtime.ParseWorkers = 4
			p.Runtime.ParseWindow = 0
		}, SeverityError, "runtime.parse_window", "positive"},
		{"negative_strip", func(p *Pipeline) { p.Runtime.StripComponents = -1 }, SeverityError, "runtime.strip_components", "negative"},
		{"same_outputs", func(p *Pipeline) { p.Output.Artifact = p.Output.Columnar }, SeverityError, "output.artifact", "same file"},
		{"bad_codec", func(p *Pipeline) { p.Output.Codec = "lzo" }, SeverityError, "output.codec", "unsupported"},
		{"bad_level", func(p *Pipeline) { p.Output.Level = 40 }, SeverityError, "output.codec", "out of range"},
		{"ledger_without_dsn", func(p *Pipeline) { p.Ledger.Kind = "sqlite" }, SeverityError, "ledger.dsn", "must not be empty"},
		{"ledger_unknown", func(p *Pipeline) {
			p.Ledger.Kind = "oracle"
			p.Ledger.DSN = "oracle://x"
		}, SeverityWarning, "ledger.kind", "unknown"},
		{"pushgateway_without_url", func(p *Pipeline) {
			p.Metrics.Backend = "pushgateway"
			p.Metrics.PushgatewayURL = ""
		}, SeverityError, "metrics.pushgateway_url", "requires"},
		{"metrics_unknown", func(p *Pipeline) { p.Metrics.Backend = "graphite" }, SeverityWarning, "metrics.backend", "unknown"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			p := validDefault()
			c.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, c.sev, c.path, c.substr) {
				t.Fatalf("want %s at %s containing %q; got %+v", c.sev, c.path, c.substr, issues)
			}
		})
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "runtime.batch_size", Message: "bad"}
	if got := iss.Error(); got != "error at runtime.batch_size: bad" {
		t.Fatalf("Error() = %q", got)
	}
}
