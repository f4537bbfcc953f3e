package export

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
)

// ReadTable loads a Parquet artifact as one Arrow table. The caller releases
// the table.
func ReadTable(ctx context.Context, path string) (arrow.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	pf, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("export: parquet %s: %w", path, err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("export: arrow reader %s: %w", path, err)
	}
	tbl, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: read %s: %w", path, err)
	}
	return tbl, nil
}
