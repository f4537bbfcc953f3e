package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v10/arrow"
)

// ErrSchemaViolation matches any *SchemaViolationError.
var ErrSchemaViolation = errors.New("columnar: schema violation")

// SchemaViolationError reports a batch whose shape disagrees with the schema
// the file was opened against. It is fatal: the binder guarantees a uniform
// field set, so a mismatch means an internal inconsistency.
type SchemaViolationError struct {
	Path   string
	Batch  int64
	Reason string
	Want   *arrow.Schema
	Got    *arrow.Schema
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("columnar: %s: batch %d: %s", e.Path, e.Batch, e.Reason)
}

func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }
