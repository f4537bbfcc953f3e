// Package record defines the pooled BoundRecord that flows from the schema
// binder through timestamp normalisation into the batch accumulator.
//
// Records are pooled to keep GC pressure flat across hundreds of thousands of
// documents. The accumulator owns a record from Push until it has copied the
// values into its column builders, then returns it with Free.
package record

import (
	"sync"
	"time"
)

// Record is one document bound to the declared schema.
//
// Contract:
//   - Fields has exactly one slot per declared field, in declared order.
//     A slot holds a string, or nil when the header was absent.
//   - After the accumulator has consumed the record it calls Free; callers
//     must not keep references to r or r.Fields beyond that point.
type Record struct {
	Owner     string
	Folder    string
	Filename  string
	Body      string
	Fields    []any
	Timestamp time.Time

	// Date is the raw value of the designated date header, read by the
	// timestamp normaliser. HasDate is false when the header was absent.
	Date    string
	HasDate bool
}

var pool sync.Pool

// Get returns a pooled Record with len(Fields) == fieldCount and every slot
// and scalar reset.
func Get(fieldCount int) *Record {
	if v := pool.Get(); v != nil {
		r := v.(*Record)
		if cap(r.Fields) < fieldCount {
			r.Fields = make([]any, fieldCount)
		}
		r.Fields = r.Fields[:fieldCount]
		for i := range r.Fields {
			r.Fields[i] = nil
		}
		r.Owner, r.Folder, r.Filename, r.Body = "", "", "", ""
		r.Timestamp = time.Time{}
		r.Date, r.HasDate = "", false
		return r
	}
	return &Record{Fields: make([]any, fieldCount)}
}

// Free returns r to the pool. The caller must not use r after Free.
func (r *Record) Free() {
	// Drop the body reference so a pooled record does not pin a large string.
	r.Body, r.Date = "", ""
	pool.Put(r)
}

// Field returns the string value of slot i and whether it was present.
func (r *Record) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.Fields) {
		return "", false
	}
	s, ok := r.Fields[i].(string)
	return s, ok
}

// Clone returns an unpooled deep copy of r, for callers that need to retain a
// record past Free (tests, debugging sinks).
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = append([]any(nil), r.Fields...)
	return &c
}
