// Package columnar turns bound records into Arrow column batches and writes
// them to an Arrow IPC file whose schema is fixed at creation.
package columnar

import (
	"time"

	"github.com/apache/arrow/go/v10/arrow"

	"mailcorpus/internal/schema"
)

// ArrowSchema maps a declared schema onto the file layout: four reserved
// strings, one nullable string per declared field, and a millisecond
// timestamp stamped with loc.
func ArrowSchema(s schema.Schema, loc *time.Location) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(schema.Reserved)+s.Len()+1)
	for _, name := range schema.Reserved {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String})
	}
	for _, name := range s.Fields() {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true})
	}
	if loc == nil {
		loc = time.UTC
	}
	fields = append(fields, arrow.Field{
		Name: schema.ColTimestamp,
		Type: &arrow.TimestampType{Unit: TimestampUnit, TimeZone: loc.String()},
	})
	return arrow.NewSchema(fields, nil)
}

// TimestampUnit is the precision of the timestamp column. Parquet has no
// seconds unit, so milliseconds keep the Arrow type identical in both files.
const TimestampUnit = arrow.Millisecond

// declaredOffset is the column index of the first declared field.
const declaredOffset = 4
