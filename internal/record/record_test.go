package record

import (
	"testing"
	"time"
)

/*
TestGet_LengthAndZeroing verifies that Get returns a record with the requested
number of field slots, all nil, and that reuse after Free does not leak stale
values from the previous owner.
*/
func TestGet_LengthAndZeroing(t *testing.T) {
	const n = 3

	r := Get(n)
	if got := len(r.Fields); got != n {
		t.Fatalf("len(Fields)=%d; want %d", got, n)
	}
	r.Owner, r.Folder, r.Filename, r.Body = "allen-p", "inbox", "maildir/allen-p/inbox/1.", "hi"
	r.Fields[0], r.Fields[2] = "a", "c"
	r.Timestamp = time.Unix(42, 0)
	r.Date, r.HasDate = "Mon, 14 May 2001 16:39:00", true
	r.Free()

	r2 := Get(n)
	defer r2.Free()
	if got := len(r2.Fields); got != n {
		t.Fatalf("after reuse, len(Fields)=%d; want %d", got, n)
	}
	for i, v := range r2.Fields {
		if v != nil {
			t.Fatalf("after reuse, Fields[%d]=%v; want nil", i, v)
		}
	}
	if r2.Owner != "" || r2.Folder != "" || r2.Filename != "" || r2.Body != "" {
		t.Fatalf("after reuse, scalars not reset: %+v", r2)
	}
	if !r2.Timestamp.IsZero() || r2.Date != "" || r2.HasDate {
		t.Fatalf("after reuse, Timestamp=%v Date=%q HasDate=%v; want zero", r2.Timestamp, r2.Date, r2.HasDate)
	}
}

func TestGet_CapacityGrowth(t *testing.T) {
	small := Get(1)
	small.Free()

	big := Get(6)
	defer big.Free()
	if got := len(big.Fields); got != 6 {
		t.Fatalf("len(Fields)=%d; want 6", got)
	}
}

func TestField(t *testing.T) {
	r := Get(2)
	defer r.Free()
	r.Fields[0] = "x"

	if s, ok := r.Field(0); !ok || s != "x" {
		t.Fatalf("Field(0) = %q,%v; want \"x\",true", s, ok)
	}
	if _, ok := r.Field(1); ok {
		t.Fatalf("Field(1) reported present for nil slot")
	}
	if _, ok := r.Field(5); ok {
		t.Fatalf("Field(5) reported present for out-of-range slot")
	}
}

func TestClone_IsIndependent(t *testing.T) {
	r := Get(1)
	r.Fields[0] = "keep"
	c := r.Clone()
	r.Free()

	r2 := Get(1)
	defer r2.Free()
	r2.Fields[0] = "overwrite"

	if s, _ := c.Field(0); s != "keep" {
		t.Fatalf("clone mutated through pool reuse: %q", s)
	}
}
