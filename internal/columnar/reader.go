package columnar

import (
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/ipc"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"mailcorpus/internal/record"
)

// File is a finalised IPC file read fully into memory.
type File struct {
	Schema  *arrow.Schema
	Batches []arrow.Record
}

// Rows sums the rows of all batches.
func (f *File) Rows() int64 {
	var n int64
	for _, b := range f.Batches {
		n += b.NumRows()
	}
	return n
}

// Release frees every batch.
func (f *File) Release() {
	for _, b := range f.Batches {
		b.Release()
	}
	f.Batches = nil
}

// ReadAll reads every batch of the IPC file at path.
func ReadAll(path string, mem memory.Allocator) (*File, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("columnar: open %s: %w", path, err)
	}
	defer fh.Close()

	r, err := ipc.NewFileReader(fh, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("columnar: read %s: %w", path, err)
	}
	defer r.Close()

	out := &File{Schema: r.Schema()}
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			out.Release()
			return nil, fmt.Errorf("columnar: read %s batch %d: %w", path, i, err)
		}
		// The reader reuses the record on the next call.
		rec.Retain()
		out.Batches = append(out.Batches, rec)
	}
	return out, nil
}

// Records decodes every row back into unpooled records, in file order.
func (f *File) Records() ([]*record.Record, error) {
	n := len(f.Schema.Fields())
	if n < declaredOffset+1 {
		return nil, fmt.Errorf("columnar: schema has %d fields, want at least %d", n, declaredOffset+1)
	}
	declared := n - declaredOffset - 1
	loc := time.UTC
	if tt, ok := f.Schema.Field(n - 1).Type.(*arrow.TimestampType); ok && tt.TimeZone != "" {
		l, err := time.LoadLocation(tt.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("columnar: timestamp zone: %w", err)
		}
		loc = l
	}

	out := make([]*record.Record, 0, f.Rows())
	for bi, b := range f.Batches {
		strs := make([]*array.String, declaredOffset+declared)
		for c := range strs {
			s, ok := b.Column(c).(*array.String)
			if !ok {
				return nil, fmt.Errorf("columnar: batch %d column %d is %s, want utf8", bi, c, b.Column(c).DataType())
			}
			strs[c] = s
		}
		ts, ok := b.Column(n - 1).(*array.Timestamp)
		if !ok {
			return nil, fmt.Errorf("columnar: batch %d timestamp column is %s", bi, b.Column(n-1).DataType())
		}

		for row := 0; row < int(b.NumRows()); row++ {
			r := &record.Record{
				Owner:     strs[0].Value(row),
				Folder:    strs[1].Value(row),
				Filename:  strs[2].Value(row),
				Body:      strs[3].Value(row),
				Fields:    make([]any, declared),
				Timestamp: time.UnixMilli(int64(ts.Value(row))).In(loc),
			}
			for i := 0; i < declared; i++ {
				if col := strs[declaredOffset+i]; !col.IsNull(row) {
					r.Fields[i] = col.Value(row)
				}
			}
			out = append(out, r)
		}
	}
	return out, nil
}
