package schema

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"

	"mailcorpus/internal/archive"
	"mailcorpus/internal/parser/mailparse"
)

// EntrySource yields archive entries until io.EOF. *archive.Walker satisfies it.
type EntrySource interface {
	Next() (archive.Entry, error)
}

// DiscoverOptions bound a discovery pass.
type DiscoverOptions struct {
	// Prefix caps how many entries are read from the source. Zero reads all.
	Prefix int
	// SampleSize is the reservoir size.
	SampleSize int
	// TopK keeps at most this many keys. Zero keeps all.
	TopK int
	// MinFraction drops keys seen in fewer than this share of the sample.
	MinFraction float64
	// Seed makes the sample reproducible.
	Seed int64
}

// DefaultDiscoverOptions mirror the sampling used to pick DefaultFields.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{
		Prefix:      100_000,
		SampleSize:  10_000,
		TopK:        len(DefaultFields),
		MinFraction: 0,
		Seed:        1,
	}
}

// Discovery is the outcome of a discovery pass.
type Discovery struct {
	Scanned int
	Sampled int
	Counts  map[string]int
	// Fields are the selected keys, count descending then name ascending.
	Fields []Field
}

// Names returns the selected field names in rank order.
func (d Discovery) Names() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Name
	}
	return out
}

// Discover reservoir-samples up to opt.Prefix entries from src, counts header
// keys across the sample and ranks them. Reserved column names are never
// selected. Errors from src other than io.EOF are returned unchanged.
func Discover(ctx context.Context, src EntrySource, p *mailparse.Parser, opt DiscoverOptions) (Discovery, error) {
	if opt.SampleSize <= 0 {
		return Discovery{}, fmt.Errorf("schema: discover sample_size must be positive, got %d", opt.SampleSize)
	}
	rng := rand.New(rand.NewSource(opt.Seed))
	reservoir := make([][]string, 0, opt.SampleSize)

	seen := 0
	for opt.Prefix <= 0 || seen < opt.Prefix {
		if err := ctx.Err(); err != nil {
			return Discovery{}, err
		}
		e, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Discovery{}, err
		}
		keys := headerKeys(p.Parse(e.Payload))

		// Algorithm R.
		if seen < opt.SampleSize {
			reservoir = append(reservoir, keys)
		} else if j := rng.Int63n(int64(seen + 1)); j < int64(opt.SampleSize) {
			reservoir[j] = keys
		}
		seen++
	}

	counts := make(map[string]int)
	for _, keys := range reservoir {
		for _, k := range keys {
			counts[k]++
		}
	}
	return Discovery{
		Scanned: seen,
		Sampled: len(reservoir),
		Counts:  counts,
		Fields:  rank(counts, len(reservoir), opt),
	}, nil
}

func headerKeys(m mailparse.Message) []string {
	keys := make([]string, 0, len(m.Header))
	for k := range m.Header {
		keys = append(keys, k)
	}
	return keys
}

func rank(counts map[string]int, sampled int, opt DiscoverOptions) []Field {
	reserved := map[string]struct{}{ColTimestamp: {}}
	for _, r := range Reserved {
		reserved[r] = struct{}{}
	}

	out := make([]Field, 0, len(counts))
	for k, n := range counts {
		if _, ok := reserved[k]; ok {
			continue
		}
		frac := float64(n) / float64(sampled)
		if frac < opt.MinFraction {
			continue
		}
		out = append(out, Field{Name: k, Type: "string", Frequency: frac})
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := counts[out[i].Name], counts[out[j].Name]
		if ci != cj {
			return ci > cj
		}
		return out[i].Name < out[j].Name
	})
	if opt.TopK > 0 && len(out) > opt.TopK {
		out = out[:opt.TopK]
	}
	return out
}
