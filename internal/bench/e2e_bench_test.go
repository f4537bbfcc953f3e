package bench

import (
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"mailcorpus/internal/archive"
	"mailcorpus/internal/archive/archivetest"
	"mailcorpus/internal/columnar"
	"mailcorpus/internal/parser/mailparse"
	"mailcorpus/internal/schema"
	"mailcorpus/internal/transformer"
)

// BenchmarkEndToEnd exercises the per-document hot path in memory:
// parse -> bind -> timestamp normalisation -> column accumulation, with a
// sink that drops finished batches. Archive I/O and file writes are excluded.
//
// Run with:
//
//	go test -run=^$ -bench ^BenchmarkEndToEnd$ -cpuprofile cpu.out -memprofile mem.out -count=1
func BenchmarkEndToEnd(b *testing.B) {
	ctx := context.Background()

	const docs = 512
	entries := make([]archive.Entry, docs)
	for i := range entries {
		entries[i] = archive.Entry{
			Owner: fmt.Sprintf("user-%02d", i%31),
			Path:  []string{"inbox"},
			Name:  fmt.Sprintf("maildir/user-%02d/inbox/%d.", i%31, i),
			Payload: []byte(archivetest.Mail(
				"Please review the attached curve for next month.\r\nThanks.",
				fmt.Sprintf("Message-ID: <%d.1075855687451.JavaMail.evans@thyme>", i),
				fmt.Sprintf("Date: Mon, %d May 2001 16:39:00 -0700 (PDT)", 1+i%28),
				"From: phillip.allen@enron.com",
				"To: tim.belden@enron.com",
				"Subject: Re: curve",
				"Mime-Version: 1.0",
				"Content-Type: text/plain; charset=us-ascii",
				"X-Folder: \\Phillip_Allen_Dec2000\\Notes Folders\\Inbox",
			)),
		}
	}

	s := schema.MustNew(schema.DefaultFields, "Date")
	parser, err := mailparse.NewParser("iso-8859-1")
	if err != nil {
		b.Fatal(err)
	}
	binder := schema.NewBinder(s)
	norm := transformer.NewNormalizer(transformer.DefaultTimestampSpec())

	var rows int64
	sink := columnar.SinkFunc(func(ctx context.Context, rec arrow.Record) error {
		rows += rec.NumRows()
		return nil
	})
	mem := memory.NewGoAllocator()
	acc, err := columnar.NewAccumulator(mem, columnar.ArrowSchema(s, norm.Spec().Location), 128, sink)
	if err != nil {
		b.Fatal(err)
	}
	defer acc.Release()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, e := range entries {
			r := binder.Bind(parser.ParseEntry(e))
			norm.Apply(r)
			if err := acc.Push(ctx, r); err != nil {
				b.Fatal(err)
			}
		}
	}
	if err := acc.Flush(ctx); err != nil {
		b.Fatal(err)
	}
	b.StopTimer()

	if want := int64(b.N * docs); rows != want {
		b.Fatalf("rows = %d, want %d", rows, want)
	}
	b.ReportMetric(float64(docs), "docs/op")
}
