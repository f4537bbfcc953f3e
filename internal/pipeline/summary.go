package pipeline

import (
	"log"
	"sync"
	"time"
)

// thisMany caps how many individual skip reasons are kept for the summary.
const thisMany = 10

// errAgg aggregates recoverable failures: the first limit messages plus a
// total count.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) snapshot() (int, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, append([]string(nil), a.first...)
}

// batchLog tracks running totals for per-batch progress lines.
type batchLog struct {
	start   time.Time
	batches int64
	rows    int64
}

func (b *batchLog) logged(logger *log.Logger, rows int64) {
	b.batches++
	b.rows += rows
	elapsed := clockNowFn().Sub(b.start)
	var rate int64
	if s := elapsed.Seconds(); s > 0 {
		rate = int64(float64(b.rows) / s)
	}
	logger.Printf(
		"batch=%d rps=%d rows=%d total_rows=%d elapsed=%s",
		b.batches, rate, rows, b.rows, elapsed.Truncate(time.Millisecond),
	)
}

func logSkipSummary(logger *log.Logger, a *errAgg) {
	n, first := a.snapshot()
	if n == 0 {
		return
	}
	logger.Printf("skipped entries: %d (showing first %d)", n, len(first))
	for i, s := range first {
		logger.Printf("  #%03d: %s", i+1, s)
	}
}

// logGlobalSummary prints the final counts and checks the accounting
// invariant:
//
//	rows + skipped == leaf_visited
func logGlobalSummary(logger *log.Logger, s *Summary) {
	logger.Printf(
		"summary: leaf_visited=%d skipped=%d rows=%d batches=%d date_parsed=%d date_sentinel=%d",
		s.LeafVisited, s.Skipped, s.Rows, s.Batches, s.DateParsed, s.DateSentinel,
	)
	if accounted := s.Rows + s.Skipped; accounted != s.LeafVisited {
		logger.Printf(
			"WARNING: row accounting mismatch: leaf_visited=%d accounted=%d (delta=%d)",
			s.LeafVisited, accounted, s.LeafVisited-accounted,
		)
	}
}
