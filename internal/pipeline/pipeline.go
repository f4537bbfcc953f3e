// Package pipeline runs one corpus conversion: walk the archive, parse and
// bind every document, normalise its date, batch rows into the columnar file,
// then export the compressed artifact.
//
// Stages are connected by channels of pooled *record.Record and supervised by
// an errgroup; the first fatal error cancels the others. The walker and the
// writer always run on a single goroutine each, so archive order is the row
// order of the output.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"golang.org/x/sync/errgroup"

	"mailcorpus/internal/archive"
	"mailcorpus/internal/columnar"
	"mailcorpus/internal/config"
	"mailcorpus/internal/datasource/file"
	"mailcorpus/internal/export"
	"mailcorpus/internal/metrics"
	"mailcorpus/internal/parser/mailparse"
	"mailcorpus/internal/record"
	"mailcorpus/internal/schema"
	"mailcorpus/internal/storage"
	"mailcorpus/internal/transformer"
)

// Test seams.
var (
	clockNowFn  = time.Now
	openWalker  = archive.Open
	appendBatch = (*columnar.Writer).Append
)

// Summary is the outcome of a successful run.
type Summary struct {
	RunID        string
	Fields       []string
	SchemaSource string

	LeafVisited  int64
	Skipped      int64
	Rows         int64
	Batches      int64
	DateParsed   int64
	DateSentinel int64

	Columnar columnar.WriterStats
	Artifact export.Result
	Elapsed  time.Duration
}

// Run executes the conversion described by p. A nil logger logs through the
// standard logger.
func Run(ctx context.Context, p config.Pipeline, logger *log.Logger) (sum Summary, err error) {
	if logger == nil {
		logger = log.Default()
	}
	start := clockNowFn()
	if p.Source.Path == "" {
		return sum, fmt.Errorf("pipeline: no source archive")
	}

	run := storage.NewRun(p.Job, p.Source.Path, start)
	sum.RunID = run.ID
	ledger, err := openLedger(ctx, p.Ledger, logger)
	if err != nil {
		return sum, err
	}
	if ledger != nil {
		defer ledger.Close()
		defer func() {
			fillRun(&run, p, sum)
			run.Finish(err, clockNowFn())
			if lerr := ledger.RecordRun(context.WithoutCancel(ctx), run); lerr != nil {
				logger.Printf("WARNING: ledger: record run %s: %v", run.ID, lerr)
			}
		}()
	}

	parser, err := mailparse.NewParser(p.Parser.Encoding)
	if err != nil {
		return sum, err
	}
	ts := p.Timestamp
	spec, err := transformer.ParseTimestampSpec(ts.PrefixLen, ts.Layout, ts.Zone, ts.WindowStart, ts.WindowEnd, ts.Sentinel)
	if err != nil {
		return sum, err
	}

	stepStart := clockNowFn()
	s, source, err := resolveSchema(ctx, p, parser, logger)
	if source == "discover" {
		metrics.RecordStep(p.Job, "discover", err, clockNowFn().Sub(stepStart))
	}
	if err != nil {
		return sum, err
	}
	sum.Fields, sum.SchemaSource = s.Fields(), source
	logger.Printf("schema: source=%s fields=%d date_field=%s", source, s.Len(), s.DateField())

	stepStart = clockNowFn()
	err = convert(ctx, p, parser, s, spec, logger, &sum)
	metrics.RecordStep(p.Job, "convert", err, clockNowFn().Sub(stepStart))
	if err != nil {
		return sum, err
	}

	stepStart = clockNowFn()
	res, err := export.Compress(ctx, p.Output.ColumnarPath(), p.Output.ArtifactPath(), export.Options{
		Codec:        p.Output.Codec,
		Level:        p.Output.Level,
		RowGroupSize: p.Output.RowGroupSize,
	})
	metrics.RecordStep(p.Job, "export", err, clockNowFn().Sub(stepStart))
	if err != nil {
		return sum, err
	}
	sum.Artifact = res
	metrics.RecordOutput(p.Job, "artifact", res.Bytes)

	sum.Elapsed = clockNowFn().Sub(start)
	logger.Printf(
		"export: artifact=%s codec=%s rows=%d bytes=%d xxh3=%s elapsed=%s",
		res.Path, p.Output.Codec, res.Rows, res.Bytes, res.ChecksumHex(), sum.Elapsed.Truncate(time.Millisecond),
	)
	return sum, nil
}

// convert streams the archive into the finalised columnar file.
func convert(
	ctx context.Context,
	p config.Pipeline,
	parser *mailparse.Parser,
	s schema.Schema,
	spec transformer.TimestampSpec,
	logger *log.Logger,
	sum *Summary,
) error {
	rt := newRuntimeConfig(p.Runtime)
	logger.Printf(
		"convert runtime: workers=%d window=%d batch=%d buffer=%d",
		rt.workers, rt.window, rt.batchSize, rt.bufferSize,
	)

	out := p.Output.ColumnarPath()
	for _, dir := range []string{filepath.Dir(out), filepath.Dir(p.Output.ArtifactPath())} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pipeline: output dir: %w", err)
		}
	}

	mem := memory.NewGoAllocator()
	as := columnar.ArrowSchema(s, spec.Location)
	w, err := columnar.Create(out, as, mem)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			w.Abort()
		}
	}()

	if n, err := file.NewLocal(p.Source.Path).Size(); err == nil {
		logger.Printf("source: path=%s bytes=%d encoding=%s", p.Source.Path, n, parser.Encoding())
	}
	skips := newErrAgg(thisMany)
	walker, err := openWalker(ctx, p.Source.Path, archive.Options{
		StripComponents: p.Runtime.StripComponents,
		MaxEntryBytes:   p.Runtime.MaxEntryBytes,
		OnSkip: func(e *archive.EntryError) {
			skips.add(e.Error())
		},
	})
	if err != nil {
		return err
	}
	defer walker.Close()

	var batches batchLog
	batches.start = clockNowFn()
	sink := columnar.SinkFunc(func(ctx context.Context, rec arrow.Record) error {
		if err := appendBatch(w, ctx, rec); err != nil {
			return err
		}
		batches.logged(logger, rec.NumRows())
		return nil
	})
	acc, err := columnar.NewAccumulator(mem, as, rt.batchSize, sink)
	if err != nil {
		return err
	}
	defer acc.Release()

	norm := transformer.NewNormalizer(spec)
	binder := schema.NewBinder(s)

	g, gctx := errgroup.WithContext(ctx)
	bound := make(chan *record.Record, rt.bufferSize)
	normalized := make(chan *record.Record, rt.bufferSize)

	// 1) Walk, parse and bind in archive order.
	g.Go(func() error {
		defer close(bound)
		if rt.workers > 1 {
			return produceWindowed(gctx, walker, parser, binder, rt.workers, rt.window, bound)
		}
		return produce(gctx, walker, parser, binder, bound)
	})

	// 2) Normalise timestamps.
	g.Go(func() error {
		defer close(normalized)
		transformer.NormalizeLoop(gctx, norm, bound, normalized)
		return nil
	})

	// 3) Accumulate and write. A failed push returns at once so gctx stops
	// the walker; records still queued are freed after Wait.
	g.Go(func() error {
		for r := range normalized {
			if err := acc.Push(gctx, r); err != nil {
				return err
			}
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		return acc.Flush(gctx)
	})

	werr := g.Wait()
	for _, ch := range []chan *record.Record{bound, normalized} {
		for r := range ch {
			r.Free()
		}
	}
	if werr != nil {
		return werr
	}

	ws, ns, st := walker.Stats(), norm.Stats(), acc.Stats()
	sum.LeafVisited, sum.Skipped = ws.LeafVisited, ws.Skipped
	sum.Rows, sum.Batches = st.Rows, st.Batches
	sum.DateParsed, sum.DateSentinel = ns.Parsed, ns.Sentinel

	cs, err := w.Close()
	if err != nil {
		return err
	}
	committed = true
	sum.Columnar = cs

	metrics.RecordEntries(p.Job, "leaf", sum.LeafVisited)
	metrics.RecordEntries(p.Job, "skipped", sum.Skipped)
	metrics.RecordEntries(p.Job, "rows", sum.Rows)
	metrics.RecordEntries(p.Job, "date_parsed", sum.DateParsed)
	metrics.RecordEntries(p.Job, "date_sentinel", sum.DateSentinel)
	metrics.RecordBatches(p.Job, sum.Batches)
	metrics.RecordOutput(p.Job, "columnar", cs.Bytes)

	logSkipSummary(logger, skips)
	logGlobalSummary(logger, sum)
	logger.Printf("columnar: path=%s rows=%d batches=%d bytes=%d", out, cs.Rows, cs.Batches, cs.Bytes)
	return nil
}

// runtimeConfig is the resolved concurrency and batching shape of a run.
type runtimeConfig struct {
	workers    int
	window     int
	batchSize  int
	bufferSize int
}

func newRuntimeConfig(r config.RuntimeConfig) runtimeConfig {
	rt := runtimeConfig{
		workers:   pickInt(r.ParseWorkers, 1),
		window:    pickInt(r.ParseWindow, 256),
		batchSize: pickInt(r.BatchSize, columnar.DefaultBatchSize),
	}
	rt.bufferSize = rt.window
	if rt.bufferSize < 64 {
		rt.bufferSize = 64
	}
	return rt
}

// pickInt returns a when positive, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// fillRun copies the run outcome into the ledger row.
func fillRun(run *storage.Run, p config.Pipeline, sum Summary) {
	run.Columnar, run.Artifact = p.Output.ColumnarPath(), p.Output.ArtifactPath()
	run.Codec, run.Level = p.Output.Codec, p.Output.Level
	run.Leaf, run.Skipped, run.Rows, run.Batches = sum.LeafVisited, sum.Skipped, sum.Rows, sum.Batches
	run.DateParsed, run.DateSentinel = sum.DateParsed, sum.DateSentinel
	run.ColumnarBytes, run.ArtifactBytes = sum.Columnar.Bytes, sum.Artifact.Bytes
	if sum.Artifact.Path != "" {
		run.Checksum = sum.Artifact.ChecksumHex()
	}
}

// openLedger opens the configured run ledger, or returns nil when disabled.
func openLedger(ctx context.Context, l config.Ledger, logger *log.Logger) (storage.Repository, error) {
	if l.Kind == "" {
		return nil, nil
	}
	repo, err := storage.New(ctx, storage.Config{Kind: l.Kind, DSN: l.DSN, Table: l.Table})
	if err != nil {
		return nil, fmt.Errorf("pipeline: ledger: %w", err)
	}
	if err := repo.EnsureTable(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("pipeline: ledger: %w", err)
	}
	logger.Printf("ledger: kind=%s table=%s", l.Kind, pickString(l.Table, storage.DefaultTable))
	return repo, nil
}

func pickString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
