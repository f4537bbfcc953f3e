package schema

import (
	"strings"

	"mailcorpus/internal/parser/mailparse"
	"mailcorpus/internal/record"
)

// Binder maps parsed messages onto a Schema.
type Binder struct {
	s Schema
}

// NewBinder returns a Binder for s.
func NewBinder(s Schema) *Binder { return &Binder{s: s} }

// Bind returns a pooled record holding exactly the declared fields of s.
// A declared header present in m is copied verbatim; one that is absent is
// left nil. Headers that are not declared are dropped. Bind never fails.
func (b *Binder) Bind(m mailparse.Message) *record.Record {
	r := record.Get(b.s.Len())
	for i, name := range b.s.fields {
		if v, ok := m.Header[name]; ok {
			r.Fields[i] = v
		}
	}
	r.Owner = m.Owner
	r.Folder = strings.Join(m.Path, "/")
	r.Filename = m.Name
	r.Body = m.Body
	r.Date, r.HasDate = m.Header[b.s.dateField]
	return r
}
