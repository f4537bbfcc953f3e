package columnar

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/ipc"
	"github.com/apache/arrow/go/v10/arrow/memory"
)

// WriterStats describe a finalised file.
type WriterStats struct {
	Rows    int64
	Batches int64
	Bytes   int64
}

// Writer appends batches to an Arrow IPC file. The file is built at
// "<path>.tmp", created exclusively so that two writers cannot target the
// same output, and renamed over path on Close. A file found at path is
// therefore always complete.
type Writer struct {
	path   string
	tmp    string
	f      *os.File
	w      *ipc.FileWriter
	schema *arrow.Schema
	stats  WriterStats
	done   bool
}

// Create opens a Writer against s.
func Create(path string, s *arrow.Schema, mem memory.Allocator) (*Writer, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("columnar: create %s: %w", tmp, err)
	}
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(s), ipc.WithAllocator(mem))
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("columnar: ipc writer: %w", err)
	}
	return &Writer{path: path, tmp: tmp, f: f, w: w, schema: s}, nil
}

// Path is the final file path.
func (w *Writer) Path() string { return w.path }

// Schema is the fixed file schema.
func (w *Writer) Schema() *arrow.Schema { return w.schema }

// Append writes one batch. A batch whose schema is not exactly the file
// schema is rejected with *SchemaViolationError.
func (w *Writer) Append(ctx context.Context, rec arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.done {
		return fmt.Errorf("columnar: append to closed writer %s", w.path)
	}
	if int(rec.NumCols()) != len(w.schema.Fields()) {
		return &SchemaViolationError{
			Path:   w.path,
			Batch:  w.stats.Batches,
			Reason: fmt.Sprintf("batch has %d columns, file has %d", rec.NumCols(), len(w.schema.Fields())),
			Want:   w.schema,
			Got:    rec.Schema(),
		}
	}
	if !rec.Schema().Equal(w.schema) {
		return &SchemaViolationError{
			Path:   w.path,
			Batch:  w.stats.Batches,
			Reason: "batch schema differs from file schema",
			Want:   w.schema,
			Got:    rec.Schema(),
		}
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("columnar: write batch %d: %w", w.stats.Batches, err)
	}
	w.stats.Batches++
	w.stats.Rows += rec.NumRows()
	return nil
}

// Close writes the footer, syncs and publishes the file.
func (w *Writer) Close() (WriterStats, error) {
	if w.done {
		return w.stats, nil
	}
	w.done = true
	if err := w.w.Close(); err != nil {
		w.discard()
		return w.stats, fmt.Errorf("columnar: finalise %s: %w", w.path, err)
	}
	if err := w.f.Sync(); err != nil && !errors.Is(err, os.ErrClosed) {
		w.discard()
		return w.stats, fmt.Errorf("columnar: sync %s: %w", w.tmp, err)
	}
	if err := w.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		os.Remove(w.tmp)
		return w.stats, fmt.Errorf("columnar: close %s: %w", w.tmp, err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		os.Remove(w.tmp)
		return w.stats, fmt.Errorf("columnar: publish %s: %w", w.path, err)
	}
	if fi, err := os.Stat(w.path); err == nil {
		w.stats.Bytes = fi.Size()
	}
	return w.stats, nil
}

// Abort drops the partial file. It is a no-op after Close.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.discard()
}

func (w *Writer) discard() {
	w.f.Close()
	os.Remove(w.tmp)
}
