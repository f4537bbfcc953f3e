// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A conversion is a batch job with no long-lived HTTP listener, so collected
// metrics are pushed to a Pushgateway on Flush instead of being scraped.
package prompush

import (
	"fmt"

	"mailcorpus/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // mailcorpus_step_total
	stepDuration *prometheus.SummaryVec // mailcorpus_step_duration_seconds

	entryCounter *prometheus.CounterVec // mailcorpus_entries_total
	batchCounter prometheus.Counter     // mailcorpus_batches_total
	outputBytes  *prometheus.GaugeVec   // mailcorpus_output_bytes
}

// NewBackend constructs a Prometheus Pushgateway backend. jobName is the
// Pushgateway grouping key and defaults to "mailcorpus".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "mailcorpus"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Run step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of run steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	entryCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.EntriesTotal,
			Help: "Archive entry counts per kind (leaf, skipped, rows, date_parsed, date_sentinel).",
		},
		[]string{"kind"},
	)
	batchCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Columnar batches written for this job.",
		},
	)
	outputBytes := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: metrics.OutputBytes,
			Help: "Size in bytes of the finished output files.",
		},
		[]string{"file"},
	)

	for _, c := range []struct {
		what string
		c    prometheus.Collector
	}{
		{"step counter", stepCounter},
		{"step summary", stepDuration},
		{"entry counter", entryCounter},
		{"batch counter", batchCounter},
		{"output gauge", outputBytes},
	} {
		if err := reg.Register(c.c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.what, err)
		}
	}

	return &Backend{
		gatewayURL:   gatewayURL,
		jobName:      jobName,
		reg:          reg,
		stepCounter:  stepCounter,
		stepDuration: stepDuration,
		entryCounter: entryCounter,
		batchCounter: batchCounter,
		outputBytes:  outputBytes,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.EntriesTotal:
		if b.entryCounter == nil {
			return
		}
		b.entryCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.BatchesTotal:
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case metrics.StepDuration:
		if b.stepDuration == nil {
			return
		}
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.OutputBytes:
		if b.outputBytes == nil {
			return
		}
		// One file per run; last observation wins.
		b.outputBytes.WithLabelValues(labels["file"]).Set(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
