package transformer

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata" // the target zone must resolve on hosts without zoneinfo

	"mailcorpus/internal/record"
)

// Defaults for the mail corpus date header.
const (
	DefaultPrefixLen = 25
	DefaultLayout    = "Mon, 2 Jan 2006 15:04:05"
	DefaultZone      = "America/Chicago"

	// BoundLayout is the layout of window bounds and the sentinel in config.
	BoundLayout = "2006-01-02 15:04:05"

	DefaultWindowStart = "1997-01-01 00:00:00"
	DefaultWindowEnd   = "2003-01-01 00:00:00"
	DefaultSentinel    = "1997-01-01 01:00:00"
)

// TimestampSpec is a compiled timestamp rule. Window bounds are inclusive.
type TimestampSpec struct {
	PrefixLen   int
	Layout      string
	Location    *time.Location
	WindowStart time.Time
	WindowEnd   time.Time
	Sentinel    time.Time
}

// ParseTimestampSpec compiles a rule from its textual configuration. Empty
// strings and a zero prefixLen take the package defaults. Bounds and the
// sentinel are interpreted in zone.
func ParseTimestampSpec(prefixLen int, layout, zone, start, end, sentinel string) (TimestampSpec, error) {
	if prefixLen == 0 {
		prefixLen = DefaultPrefixLen
	}
	if prefixLen < 0 {
		return TimestampSpec{}, fmt.Errorf("timestamp: prefix_len must be positive, got %d", prefixLen)
	}
	layout = orDefault(layout, DefaultLayout)
	loc, err := time.LoadLocation(orDefault(zone, DefaultZone))
	if err != nil {
		return TimestampSpec{}, fmt.Errorf("timestamp: zone: %w", err)
	}
	bound := func(name, v, def string) (time.Time, error) {
		t, err := time.ParseInLocation(BoundLayout, orDefault(v, def), loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp: %s: %w", name, err)
		}
		return t, nil
	}
	spec := TimestampSpec{PrefixLen: prefixLen, Layout: layout, Location: loc}
	if spec.WindowStart, err = bound("window_start", start, DefaultWindowStart); err != nil {
		return TimestampSpec{}, err
	}
	if spec.WindowEnd, err = bound("window_end", end, DefaultWindowEnd); err != nil {
		return TimestampSpec{}, err
	}
	if spec.Sentinel, err = bound("sentinel", sentinel, DefaultSentinel); err != nil {
		return TimestampSpec{}, err
	}
	if spec.WindowEnd.Before(spec.WindowStart) {
		return TimestampSpec{}, fmt.Errorf("timestamp: window_end %s is before window_start %s", end, start)
	}
	return spec, nil
}

// DefaultTimestampSpec is the corpus rule: 1997..2003 in Houston time.
func DefaultTimestampSpec() TimestampSpec {
	spec, err := ParseTimestampSpec(0, "", "", "", "", "")
	if err != nil {
		panic(err)
	}
	return spec
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// TimestampStats counts normalisation outcomes.
type TimestampStats struct {
	Parsed   int64
	Sentinel int64
}

// Normalizer maps raw date headers to in-window instants. It never fails:
// missing, unparseable and out-of-window values all become the sentinel.
// Counters are atomic so one Normalizer may serve several goroutines.
type Normalizer struct {
	spec     TimestampSpec
	parsed   atomic.Int64
	sentinel atomic.Int64
}

// NewNormalizer returns a Normalizer for spec.
func NewNormalizer(spec TimestampSpec) *Normalizer { return &Normalizer{spec: spec} }

// Spec returns the compiled rule.
func (n *Normalizer) Spec() TimestampSpec { return n.spec }

// Normalize converts one header value. present is false when the header was
// absent from the message.
func (n *Normalizer) Normalize(raw string, present bool) time.Time {
	if present {
		if t, ok := n.parse(raw); ok {
			n.parsed.Add(1)
			return t
		}
	}
	n.sentinel.Add(1)
	return n.spec.Sentinel
}

// Apply sets r.Timestamp from r.Date.
func (n *Normalizer) Apply(r *record.Record) {
	r.Timestamp = n.Normalize(r.Date, r.HasDate)
}

// Stats returns a snapshot of the counters.
func (n *Normalizer) Stats() TimestampStats {
	return TimestampStats{Parsed: n.parsed.Load(), Sentinel: n.sentinel.Load()}
}

func (n *Normalizer) parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(runePrefix(raw, n.spec.PrefixLen))
	if s == "" {
		return time.Time{}, false
	}
	// The header's own zone is past the prefix and ignored; the wall clock
	// is read in the target zone.
	t, err := time.ParseInLocation(n.spec.Layout, s, n.spec.Location)
	if err != nil {
		return time.Time{}, false
	}
	if t.Before(n.spec.WindowStart) || t.After(n.spec.WindowEnd) {
		return time.Time{}, false
	}
	return t, true
}

func runePrefix(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}

// NormalizeLoop reads pooled records from in, sets their timestamp and
// forwards the same *Record to out. It returns when in is closed or ctx is
// canceled; on cancellation the record in hand is freed.
func NormalizeLoop(ctx context.Context, n *Normalizer, in <-chan *record.Record, out chan<- *record.Record) {
	for r := range in {
		select {
		case <-ctx.Done():
			r.Free()
			return
		default:
		}

		n.Apply(r)

		select {
		case out <- r:
		case <-ctx.Done():
			r.Free()
			return
		}
	}
}
