// Package metrics records operational metrics for a corpus conversion run.
//
// Callers depend only on the Backend interface and the Record* helpers. The
// global backend defaults to a no-op, so instrumentation is always safe to
// call; concrete systems (Pushgateway, DogStatsD) live in subpackages and are
// installed with SetBackend.
package metrics

import "time"

// Metric names emitted by the helpers below.
const (
	StepTotal    = "mailcorpus_step_total"
	StepDuration = "mailcorpus_step_duration_seconds"
	EntriesTotal = "mailcorpus_entries_total"
	BatchesTotal = "mailcorpus_batches_total"
	OutputBytes  = "mailcorpus_output_bytes"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/size style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a run step ("discover", "convert",
// "export") and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordEntries increments an entry-level counter. Kinds mirror the run
// summary:
//   - "leaf"
//   - "skipped"
//   - "rows"
//   - "date_parsed"
//   - "date_sentinel"
func RecordEntries(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(EntriesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the count of columnar batches written.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordOutput observes the size in bytes of a finished output file
// ("columnar" or "artifact").
func RecordOutput(job, file string, bytes int64) {
	backend.ObserveHistogram(OutputBytes, float64(bytes), Labels{
		"job":  job,
		"file": file,
	})
}
