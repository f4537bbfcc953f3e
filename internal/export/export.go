// Package export re-encodes a finalised columnar file as a compressed Parquet
// artifact.
//
// Compress is single-shot: the whole source file is loaded into one Arrow
// table before anything is written. The finalised intermediate is moderate
// in size for this corpus; a larger one would need a row-group streaming
// writer fed batch by batch from the IPC reader instead.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/zeebo/xxh3"

	"mailcorpus/internal/columnar"
)

// Defaults match the published artifact: zstd at level 9.
const (
	DefaultCodec        = "zstd"
	DefaultLevel        = 9
	DefaultRowGroupSize = 64 * 1024
)

// ErrCompression matches any *CompressionError.
var ErrCompression = errors.New("export: compression failed")

// CompressionError is fatal for the export stage. The source file is never
// modified, so a failed export can be retried.
type CompressionError struct {
	Src   string
	Dst   string
	Op    string
	Codec string
	Level int
	Err   error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("export: %s %s -> %s (codec=%s level=%d): %v", e.Op, e.Src, e.Dst, e.Codec, e.Level, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

func (e *CompressionError) Is(target error) bool { return target == ErrCompression }

type codecInfo struct {
	codec         compress.Compression
	minLvl, maxLv int
	leveled       bool
}

var codecs = map[string]codecInfo{
	"uncompressed": {codec: compress.Codecs.Uncompressed},
	"snappy":       {codec: compress.Codecs.Snappy},
	"gzip":         {codec: compress.Codecs.Gzip, minLvl: 1, maxLv: 9, leveled: true},
	"brotli":       {codec: compress.Codecs.Brotli, minLvl: 0, maxLv: 11, leveled: true},
	"zstd":         {codec: compress.Codecs.Zstd, minLvl: 1, maxLv: 22, leveled: true},
}

// Codecs lists the supported codec names.
func Codecs() []string {
	out := make([]string, 0, len(codecs))
	for k := range codecs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Options select the codec.
type Options struct {
	// Codec is one of Codecs(); empty means DefaultCodec.
	Codec string
	// Level is ignored by codecs without levels. Zero selects the codec's
	// default level, except for brotli where 0 is a valid level.
	Level int
	// RowGroupSize caps rows per Parquet row group.
	RowGroupSize int64
}

// CheckOptions validates a codec/level combination without touching files.
func CheckOptions(opt Options) error {
	_, _, err := resolve(opt)
	return err
}

func resolve(opt Options) (codecInfo, int, error) {
	name := strings.ToLower(opt.Codec)
	if name == "" {
		name = DefaultCodec
	}
	ci, ok := codecs[name]
	if !ok {
		return codecInfo{}, 0, fmt.Errorf("unsupported codec %q (want one of %s)", opt.Codec, strings.Join(Codecs(), ", "))
	}
	if !ci.leveled {
		return ci, compress.DefaultCompressionLevel, nil
	}
	lvl := opt.Level
	if lvl == 0 && ci.minLvl > 0 {
		return ci, compress.DefaultCompressionLevel, nil
	}
	if lvl < ci.minLvl || lvl > ci.maxLv {
		return codecInfo{}, 0, fmt.Errorf("level %d out of range %d..%d for %s", lvl, ci.minLvl, ci.maxLv, name)
	}
	return ci, lvl, nil
}

// Result describes a written artifact.
type Result struct {
	Path     string
	Rows     int64
	Bytes    int64
	Checksum uint64
}

// ChecksumHex renders the xxh3 checksum.
func (r Result) ChecksumHex() string { return fmt.Sprintf("%016x", r.Checksum) }

// Compress reads the IPC file at src and writes it to dst as Parquet. dst is
// written to "<dst>.tmp" and renamed only after the write succeeds.
func Compress(ctx context.Context, src, dst string, opt Options) (Result, error) {
	fail := func(op string, err error) (Result, error) {
		return Result{}, &CompressionError{Src: src, Dst: dst, Op: op, Codec: opt.Codec, Level: opt.Level, Err: err}
	}

	ci, lvl, err := resolve(opt)
	if err != nil {
		return fail("configure", err)
	}
	if err := ctx.Err(); err != nil {
		return fail("start", err)
	}
	if opt.RowGroupSize <= 0 {
		opt.RowGroupSize = DefaultRowGroupSize
	}

	mem := memory.NewGoAllocator()
	f, err := columnar.ReadAll(src, mem)
	if err != nil {
		return fail("read", err)
	}
	defer f.Release()

	tbl := array.NewTableFromRecords(f.Schema, f.Batches)
	defer tbl.Release()

	tmp := dst + ".tmp"
	if err := writeTable(tbl, tmp, ci.codec, lvl, opt.RowGroupSize, mem); err != nil {
		os.Remove(tmp)
		return fail("write", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fail("publish", err)
	}

	sum, size, err := checksum(dst)
	if err != nil {
		return fail("checksum", err)
	}
	return Result{Path: dst, Rows: tbl.NumRows(), Bytes: size, Checksum: sum}, nil
}

func writeTable(tbl arrow.Table, path string, codec compress.Compression, level int, rowGroup int64, mem memory.Allocator) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithCompressionLevel(level),
		parquet.WithAllocator(mem),
		parquet.WithCreatedBy("mailcorpus"),
	)
	// The stored Arrow schema keeps the timestamp zone, which Parquet alone
	// records only as "adjusted to UTC".
	arrProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(tbl, out, rowGroup, props, arrProps); err != nil {
		out.Close()
		return err
	}
	// The Parquet writer closes its sink on success.
	if err := out.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// checksum hashes the artifact; equal configs over equal archives must give
// equal sums.
func checksum(path string) (uint64, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	h := xxh3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, err
	}
	return h.Sum64(), n, nil
}

// Checksum hashes any file the way Compress hashes its artifact.
func Checksum(path string) (uint64, error) {
	sum, _, err := checksum(path)
	return sum, err
}
