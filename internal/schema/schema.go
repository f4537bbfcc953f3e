// Package schema holds the declared output schema of a run and binds parsed
// messages onto it.
//
// A Schema is decided once per run, either from configuration or from a
// discovery pass, and is then passed by value into the binder and the
// columnar writer. It is never read from package state.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mailcorpus/internal/datasource/file"
)

// Reserved columns carried for every record, independent of headers.
const (
	ColUser      = "_user"
	ColFolder    = "_folder"
	ColFilename  = "_filename"
	ColText      = "_text"
	ColTimestamp = "timestamp"
)

// Reserved lists the leading reserved columns in output order.
var Reserved = []string{ColUser, ColFolder, ColFilename, ColText}

// DefaultDateField is the header parsed by the timestamp normaliser.
const DefaultDateField = "Date"

// DefaultFields is the declared header list observed across the corpus
// (every header present in at least a quarter of sampled messages).
var DefaultFields = []string{
	"Message-ID",
	"Date",
	"From",
	"Subject",
	"Mime-Version",
	"Content-Type",
	"Content-Transfer-Encoding",
	"X-From",
	"X-To",
	"X-cc",
	"X-bcc",
	"X-Folder",
	"X-Origin",
	"X-FileName",
	"To",
	"Cc",
	"Bcc",
}

// Field is one declared header column. Type is always "string" for header
// columns; Frequency is filled by discovery.
type Field struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Frequency float64 `json:"frequency,omitempty"`
}

// Contract is the JSON shape of a schema file.
type Contract struct {
	Name      string  `json:"name"`
	DateField string  `json:"date_field,omitempty"`
	Fields    []Field `json:"fields"`
}

// Schema is the frozen, ordered list of declared header fields.
type Schema struct {
	fields    []string
	index     map[string]int
	dateField string
}

// New validates and freezes a declared field list. Names must be non-empty,
// unique, and must not collide with a reserved column.
func New(fields []string, dateField string) (Schema, error) {
	if len(fields) == 0 {
		return Schema{}, fmt.Errorf("schema: at least one declared field is required")
	}
	if dateField == "" {
		dateField = DefaultDateField
	}
	reserved := map[string]struct{}{ColTimestamp: {}}
	for _, r := range Reserved {
		reserved[r] = struct{}{}
	}

	s := Schema{
		fields:    make([]string, len(fields)),
		index:     make(map[string]int, len(fields)),
		dateField: dateField,
	}
	for i, f := range fields {
		if strings.TrimSpace(f) == "" {
			return Schema{}, fmt.Errorf("schema: field %d is empty", i)
		}
		if _, ok := reserved[f]; ok {
			return Schema{}, fmt.Errorf("schema: field %q collides with a reserved column", f)
		}
		if _, dup := s.index[f]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate field %q", f)
		}
		s.fields[i] = f
		s.index[f] = i
	}
	return s, nil
}

// MustNew is New for fixed field lists; it panics on error.
func MustNew(fields []string, dateField string) Schema {
	s, err := New(fields, dateField)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns a copy of the declared field names.
func (s Schema) Fields() []string { return append([]string(nil), s.fields...) }

// Len is the number of declared fields.
func (s Schema) Len() int { return len(s.fields) }

// Field returns the i-th declared name.
func (s Schema) Field(i int) string { return s.fields[i] }

// Index returns the position of a declared field.
func (s Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// DateField names the header the timestamp normaliser reads.
func (s Schema) DateField() string { return s.dateField }

// Columns returns every output column in file order: the reserved columns,
// the declared fields, then the normalised timestamp.
func (s Schema) Columns() []string {
	out := make([]string, 0, len(Reserved)+len(s.fields)+1)
	out = append(out, Reserved...)
	out = append(out, s.fields...)
	return append(out, ColTimestamp)
}

// Contract renders the schema as a schema file value.
func (s Schema) Contract(name string) Contract {
	c := Contract{Name: name, DateField: s.dateField, Fields: make([]Field, len(s.fields))}
	for i, f := range s.fields {
		c.Fields[i] = Field{Name: f, Type: "string"}
	}
	return c
}

// Load reads a declared field list from path. Files ending in ".json" are
// decoded as a Contract; anything else is read as a plain list with one name
// per line.
func Load(path, dateField string) (Schema, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err := os.ReadFile(path)
		if err != nil {
			return Schema{}, fmt.Errorf("schema: read %s: %w", path, err)
		}
		var c Contract
		if err := json.Unmarshal(b, &c); err != nil {
			return Schema{}, fmt.Errorf("schema: decode %s: %w", path, err)
		}
		names := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			names[i] = f.Name
		}
		if dateField == "" {
			dateField = c.DateField
		}
		return New(names, dateField)
	}
	names, err := file.ReadList(path)
	if err != nil {
		return Schema{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return New(names, dateField)
}

// WriteContract writes c as indented JSON.
func WriteContract(path string, c Contract) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("schema: encode: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("schema: write %s: %w", path, err)
	}
	return nil
}
