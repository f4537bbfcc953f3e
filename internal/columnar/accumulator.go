package columnar

import (
	"context"
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"mailcorpus/internal/record"
)

// DefaultBatchSize is the number of rows per column batch.
const DefaultBatchSize = 10_000

// Sink receives materialised batches. The batch is released after Append
// returns; a Sink that keeps it must Retain it.
type Sink interface {
	Append(ctx context.Context, rec arrow.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec arrow.Record) error

func (f SinkFunc) Append(ctx context.Context, rec arrow.Record) error { return f(ctx, rec) }

// AccumulatorStats are the running totals of an Accumulator.
type AccumulatorStats struct {
	Rows    int64
	Batches int64
}

// Accumulator buffers records in Arrow builders and emits a batch every
// batchSize rows. It owns every record pushed into it and frees it once the
// values are copied.
type Accumulator struct {
	b         *array.RecordBuilder
	schema    *arrow.Schema
	declared  int
	batchSize int
	pending   int
	sink      Sink
	stats     AccumulatorStats
}

// NewAccumulator returns an Accumulator over s. s must come from ArrowSchema.
func NewAccumulator(mem memory.Allocator, s *arrow.Schema, batchSize int, sink Sink) (*Accumulator, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("columnar: batch size must be positive, got %d", batchSize)
	}
	if sink == nil {
		return nil, fmt.Errorf("columnar: nil sink")
	}
	if len(s.Fields()) < declaredOffset+1 {
		return nil, fmt.Errorf("columnar: schema has %d fields, want at least %d", len(s.Fields()), declaredOffset+1)
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Accumulator{
		b:         array.NewRecordBuilder(mem, s),
		schema:    s,
		declared:  len(s.Fields()) - declaredOffset - 1,
		batchSize: batchSize,
		sink:      sink,
	}, nil
}

// Push appends r and emits a batch when the buffer reaches the batch size.
// r is freed before Push returns, whether or not it fails.
func (a *Accumulator) Push(ctx context.Context, r *record.Record) error {
	defer r.Free()
	if len(r.Fields) != a.declared {
		return &SchemaViolationError{
			Batch:  a.stats.Batches,
			Reason: fmt.Sprintf("record has %d declared fields, schema has %d", len(r.Fields), a.declared),
			Want:   a.schema,
		}
	}

	a.str(0).Append(r.Owner)
	a.str(1).Append(r.Folder)
	a.str(2).Append(r.Filename)
	a.str(3).Append(r.Body)
	for i := 0; i < a.declared; i++ {
		sb := a.str(declaredOffset + i)
		if v, ok := r.Field(i); ok {
			sb.Append(v)
		} else {
			sb.AppendNull()
		}
	}
	a.b.Field(declaredOffset + a.declared).(*array.TimestampBuilder).Append(arrow.Timestamp(r.Timestamp.UnixMilli()))

	a.pending++
	a.stats.Rows++
	if a.pending == a.batchSize {
		return a.emit(ctx)
	}
	return nil
}

// Flush emits the buffered partial batch, or nothing when the buffer is empty.
func (a *Accumulator) Flush(ctx context.Context) error {
	if a.pending == 0 {
		return nil
	}
	return a.emit(ctx)
}

// Stats returns rows pushed and batches emitted so far.
func (a *Accumulator) Stats() AccumulatorStats { return a.stats }

// Release frees the builders.
func (a *Accumulator) Release() { a.b.Release() }

func (a *Accumulator) str(i int) *array.StringBuilder {
	return a.b.Field(i).(*array.StringBuilder)
}

func (a *Accumulator) emit(ctx context.Context) error {
	rec := a.b.NewRecord()
	defer rec.Release()
	a.pending = 0
	a.stats.Batches++
	if err := a.sink.Append(ctx, rec); err != nil {
		return fmt.Errorf("columnar: batch %d: %w", a.stats.Batches, err)
	}
	return nil
}
