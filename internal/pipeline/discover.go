package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"mailcorpus/internal/archive"
	"mailcorpus/internal/config"
	"mailcorpus/internal/parser/mailparse"
	"mailcorpus/internal/schema"
)

// Discover runs a standalone sampling pass over p.Source.Path on its own
// walker and returns the ranked header keys.
func Discover(ctx context.Context, p config.Pipeline, logger *log.Logger) (schema.Discovery, error) {
	if logger == nil {
		logger = log.Default()
	}
	if p.Source.Path == "" {
		return schema.Discovery{}, fmt.Errorf("pipeline: no source archive")
	}
	parser, err := mailparse.NewParser(p.Parser.Encoding)
	if err != nil {
		return schema.Discovery{}, err
	}
	return discover(ctx, p, parser, logger)
}

func discover(ctx context.Context, p config.Pipeline, parser *mailparse.Parser, logger *log.Logger) (schema.Discovery, error) {
	start := clockNowFn()
	w, err := archive.Open(ctx, p.Source.Path, archive.Options{
		StripComponents: p.Runtime.StripComponents,
		MaxEntryBytes:   p.Runtime.MaxEntryBytes,
	})
	if err != nil {
		return schema.Discovery{}, err
	}
	defer w.Close()

	d := p.Schema.Discover
	res, err := schema.Discover(ctx, w, parser, schema.DiscoverOptions{
		Prefix:      d.Prefix,
		SampleSize:  d.SampleSize,
		TopK:        d.TopK,
		MinFraction: d.MinFraction,
		Seed:        d.Seed,
	})
	if err != nil {
		return schema.Discovery{}, err
	}
	logger.Printf(
		"discover: scanned=%d sampled=%d distinct_keys=%d selected=%d elapsed=%s",
		res.Scanned, res.Sampled, len(res.Counts), len(res.Fields), clockNowFn().Sub(start).Truncate(time.Millisecond),
	)
	return res, nil
}

// resolveSchema picks the declared field list: explicit fields, then a
// schema file, then a discovery pass, then the built-in list. The second
// result names the source that won.
func resolveSchema(ctx context.Context, p config.Pipeline, parser *mailparse.Parser, logger *log.Logger) (schema.Schema, string, error) {
	sc := p.Schema
	switch {
	case len(sc.Fields) > 0:
		s, err := schema.New(sc.Fields, sc.DateField)
		return s, "fields", err
	case sc.File != "":
		s, err := schema.Load(sc.File, sc.DateField)
		return s, "file", err
	case sc.Discover.Enabled:
		res, err := discover(ctx, p, parser, logger)
		if err != nil {
			return schema.Schema{}, "discover", err
		}
		s, err := schema.New(res.Names(), sc.DateField)
		if err != nil {
			return schema.Schema{}, "discover", fmt.Errorf("pipeline: discovered schema: %w", err)
		}
		return s, "discover", nil
	default:
		s, err := schema.New(schema.DefaultFields, sc.DateField)
		return s, "default", err
	}
}
