package pipeline

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"mailcorpus/internal/archive"
	"mailcorpus/internal/parser/mailparse"
	"mailcorpus/internal/record"
	"mailcorpus/internal/schema"
)

// entrySource is the walker surface the producers need.
type entrySource interface {
	Next() (archive.Entry, error)
}

// produce parses and binds entries one at a time.
func produce(
	ctx context.Context,
	src entrySource,
	parser *mailparse.Parser,
	binder *schema.Binder,
	out chan<- *record.Record,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		r := binder.Bind(parser.ParseEntry(e))
		select {
		case out <- r:
		case <-ctx.Done():
			r.Free()
			return ctx.Err()
		}
	}
}

// produceWindowed reads up to window entries sequentially, parses and binds
// them on up to workers goroutines, then forwards the window in archive
// order. Parsing never fails, so the only errors are from src or ctx.
func produceWindowed(
	ctx context.Context,
	src entrySource,
	parser *mailparse.Parser,
	binder *schema.Binder,
	workers, window int,
	out chan<- *record.Record,
) error {
	entries := make([]archive.Entry, 0, window)
	bound := make([]*record.Record, window)

	for {
		entries = entries[:0]
		var srcErr error
		for len(entries) < window {
			e, err := src.Next()
			if err != nil {
				srcErr = err
				break
			}
			entries = append(entries, e)
		}
		if srcErr != nil && srcErr != io.EOF {
			return srcErr
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range entries {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				bound[i] = binder.Bind(parser.ParseEntry(entries[i]))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			freeAll(bound[:len(entries)])
			return err
		}

		for i := range entries {
			r := bound[i]
			bound[i] = nil
			select {
			case out <- r:
			case <-ctx.Done():
				r.Free()
				freeAll(bound[i+1 : len(entries)])
				return ctx.Err()
			}
		}
		if srcErr == io.EOF {
			return nil
		}
	}
}

func freeAll(rs []*record.Record) {
	for i, r := range rs {
		if r != nil {
			r.Free()
			rs[i] = nil
		}
	}
}
