package schema

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mailcorpus/internal/archive"
	"mailcorpus/internal/parser/mailparse"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		fields  []string
		wantErr string
	}{
		{"ok", []string{"A", "B"}, ""},
		{"empty_list", nil, "at least one"},
		{"blank_name", []string{"A", " "}, "is empty"},
		{"duplicate", []string{"A", "B", "A"}, "duplicate"},
		{"reserved_user", []string{"_user"}, "reserved"},
		{"reserved_timestamp", []string{"timestamp"}, "reserved"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(c.fields, "")
			if c.wantErr == "" {
				if err != nil {
					t.Fatalf("New: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), c.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, c.wantErr)
			}
		})
	}
}

func TestSchema_Columns(t *testing.T) {
	t.Parallel()

	s := MustNew([]string{"Subject", "Date"}, "")
	want := []string{"_user", "_folder", "_filename", "_text", "Subject", "Date", "timestamp"}
	if diff := cmp.Diff(want, s.Columns()); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if s.DateField() != "Date" {
		t.Fatalf("DateField = %q, want Date", s.DateField())
	}
	if i, ok := s.Index("Date"); !ok || i != 1 {
		t.Fatalf("Index(Date) = %d,%v", i, ok)
	}
}

func TestDefaultFields_Valid(t *testing.T) {
	t.Parallel()

	s, err := New(DefaultFields, DefaultDateField)
	if err != nil {
		t.Fatalf("DefaultFields rejected: %v", err)
	}
	if s.Len() != 17 {
		t.Fatalf("len = %d, want 17", s.Len())
	}
}

// TestBind_DeclaredSubset binds {A, B} and {B, C} against declared [A, C].
func TestBind_DeclaredSubset(t *testing.T) {
	t.Parallel()

	b := NewBinder(MustNew([]string{"A", "C"}, ""))
	cases := []struct {
		name   string
		header map[string]string
		want   []any
	}{
		{"a_and_b", map[string]string{"A": "1", "B": "2"}, []any{"1", nil}},
		{"b_and_c", map[string]string{"B": "2", "C": "3"}, []any{nil, "3"}},
		{"empty_value_kept", map[string]string{"A": ""}, []any{"", nil}},
		{"none", map[string]string{}, []any{nil, nil}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			r := b.Bind(mailparse.Message{Header: c.header})
			defer r.Free()
			if diff := cmp.Diff(c.want, r.Fields); diff != "" {
				t.Fatalf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBind_Location(t *testing.T) {
	t.Parallel()

	b := NewBinder(MustNew([]string{"Subject"}, ""))
	r := b.Bind(mailparse.Message{
		Header: map[string]string{"Subject": "s"},
		Body:   "text",
		Owner:  "allen-p",
		Path:   []string{"sent", "2001"},
		Name:   "maildir/allen-p/sent/2001/1.",
	})
	defer r.Free()
	if r.Owner != "allen-p" || r.Folder != "sent/2001" || r.Filename != "maildir/allen-p/sent/2001/1." || r.Body != "text" {
		t.Fatalf("record = %+v", r)
	}
	if r.HasDate {
		t.Fatalf("HasDate = true for a message without a Date header")
	}
}

// TestBind_DateFieldUndeclared carries the date header even when it is not a
// declared output column.
func TestBind_DateFieldUndeclared(t *testing.T) {
	t.Parallel()

	b := NewBinder(MustNew([]string{"Subject"}, "Sent"))
	r := b.Bind(mailparse.Message{Header: map[string]string{"Sent": "Mon, 14 May 2001 16:39:00"}})
	defer r.Free()
	if !r.HasDate || r.Date != "Mon, 14 May 2001 16:39:00" {
		t.Fatalf("date = %q,%v", r.Date, r.HasDate)
	}
}

// TestBind_DuplicateHeaderLastWins runs parse and bind together.
func TestBind_DuplicateHeaderLastWins(t *testing.T) {
	t.Parallel()

	p, err := mailparse.NewParser("")
	if err != nil {
		t.Fatal(err)
	}
	m := p.Parse([]byte("To: x@enron.com\nTo: y@enron.com\n\nbody"))
	r := NewBinder(MustNew([]string{"To"}, "")).Bind(m)
	defer r.Free()
	if v, ok := r.Field(0); !ok || v != "y@enron.com" {
		t.Fatalf("To = %q,%v, want y@enron.com", v, ok)
	}
}

func TestLoad_JSONAndList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "schema.json")
	c := MustNew([]string{"Message-ID", "Sent"}, "Sent").Contract("enron")
	if err := WriteContract(jsonPath, c); err != nil {
		t.Fatalf("WriteContract: %v", err)
	}
	s, err := Load(jsonPath, "")
	if err != nil {
		t.Fatalf("Load json: %v", err)
	}
	if diff := cmp.Diff([]string{"Message-ID", "Sent"}, s.Fields()); diff != "" {
		t.Fatalf("json fields (-want +got):\n%s", diff)
	}
	if s.DateField() != "Sent" {
		t.Fatalf("DateField = %q, want Sent", s.DateField())
	}

	listPath := filepath.Join(dir, "fields.txt")
	if err := os.WriteFile(listPath, []byte("# header list\nFrom\n\nTo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = Load(listPath, "")
	if err != nil {
		t.Fatalf("Load list: %v", err)
	}
	if diff := cmp.Diff([]string{"From", "To"}, s.Fields()); diff != "" {
		t.Fatalf("list fields (-want +got):\n%s", diff)
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "none.json"), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

type sliceSource struct {
	entries []archive.Entry
	i       int
	err     error
}

func (s *sliceSource) Next() (archive.Entry, error) {
	if s.i >= len(s.entries) {
		if s.err != nil {
			return archive.Entry{}, s.err
		}
		return archive.Entry{}, io.EOF
	}
	e := s.entries[s.i]
	s.i++
	return e, nil
}

func mails(payloads ...string) []archive.Entry {
	out := make([]archive.Entry, len(payloads))
	for i, p := range payloads {
		out[i] = archive.Entry{Name: "m", Payload: []byte(p)}
	}
	return out
}

func TestDiscover_RankAndFilter(t *testing.T) {
	t.Parallel()

	p, _ := mailparse.NewParser("")
	src := &sliceSource{entries: mails(
		"A: 1\nB: 1\n_user: spoof\n\n",
		"A: 1\nC: 1\n\n",
		"A: 1\nB: 1\n\n",
		"D: 1\n\n",
	)}
	d, err := Discover(context.Background(), src, p, DiscoverOptions{SampleSize: 10, MinFraction: 0.5})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if d.Scanned != 4 || d.Sampled != 4 {
		t.Fatalf("scanned=%d sampled=%d, want 4/4", d.Scanned, d.Sampled)
	}
	// A=3, B=2 pass; C=1, D=1 fall below half; _user is reserved.
	if diff := cmp.Diff([]string{"A", "B"}, d.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	if d.Fields[0].Frequency != 0.75 {
		t.Fatalf("A frequency = %v, want 0.75", d.Fields[0].Frequency)
	}
}

func TestDiscover_TieOrderAndTopK(t *testing.T) {
	t.Parallel()

	p, _ := mailparse.NewParser("")
	src := &sliceSource{entries: mails("Zed: 1\nAlpha: 1\nMid: 1\n\n")}
	d, err := Discover(context.Background(), src, p, DiscoverOptions{SampleSize: 5, TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Alpha", "Mid"}, d.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestDiscover_PrefixAndSeed(t *testing.T) {
	t.Parallel()

	p, _ := mailparse.NewParser("")
	payloads := make([]string, 200)
	for i := range payloads {
		if i%2 == 0 {
			payloads[i] = "Even: 1\n\n"
		} else {
			payloads[i] = "Odd: 1\n\n"
		}
	}
	opt := DiscoverOptions{Prefix: 150, SampleSize: 20, Seed: 7}

	first, err := Discover(context.Background(), &sliceSource{entries: mails(payloads...)}, p, opt)
	if err != nil {
		t.Fatal(err)
	}
	if first.Scanned != 150 || first.Sampled != 20 {
		t.Fatalf("scanned=%d sampled=%d, want 150/20", first.Scanned, first.Sampled)
	}
	second, err := Discover(context.Background(), &sliceSource{entries: mails(payloads...)}, p, opt)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first.Counts, second.Counts); diff != "" {
		t.Fatalf("same seed gave different samples (-first +second):\n%s", diff)
	}
	if first.Counts["Even"]+first.Counts["Odd"] != 20 {
		t.Fatalf("counts = %v, want 20 in total", first.Counts)
	}
}

func TestDiscover_SourceError(t *testing.T) {
	t.Parallel()

	p, _ := mailparse.NewParser("")
	boom := &archive.ReadError{Op: "read", Err: io.ErrUnexpectedEOF}
	src := &sliceSource{entries: mails("A: 1\n\n"), err: boom}
	_, err := Discover(context.Background(), src, p, DiscoverOptions{SampleSize: 1})
	if !errors.Is(err, archive.ErrArchiveRead) {
		t.Fatalf("err = %v, want ErrArchiveRead", err)
	}
}
