package datadog

import (
	"reflect"
	"testing"

	"mailcorpus/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls  []call
	closed int
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Close() error {
	f.closed++
	return nil
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend(empty) error = nil, want error")
	}
}

func TestBackend_ForwardsWithSortedTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.EntriesTotal, 7, metrics.Labels{"kind": "rows", "job": "enron"})
	b.ObserveHistogram(metrics.StepDuration, 1.25, metrics.Labels{"step": "export", "status": "success", "job": "enron"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	want := []call{
		{"count", metrics.EntriesTotal, 7, []string{"job:enron", "kind:rows"}},
		{"histogram", metrics.StepDuration, 1.25, []string{"job:enron", "status:success", "step:export"}},
	}
	if !reflect.DeepEqual(fc.calls, want) {
		t.Fatalf("calls = %#v\nwant %#v", fc.calls, want)
	}
	if fc.closed != 1 {
		t.Fatalf("closed = %d, want 1", fc.closed)
	}
}

func TestBackend_NilClient(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.OutputBytes, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush on nil client: %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
	got := labelsToTags(metrics.Labels{"b": "2", "a": "1"})
	if !reflect.DeepEqual(got, []string{"a:1", "b:2"}) {
		t.Fatalf("labelsToTags = %v", got)
	}
}
