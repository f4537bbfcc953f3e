package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mailcorpus/internal/config"
	"mailcorpus/internal/metrics"
	"mailcorpus/internal/metrics/datadog"
	"mailcorpus/internal/metrics/prompush"
	"mailcorpus/internal/pipeline"
)

// runPipeline is a test seam for the conversion itself.
var runPipeline = pipeline.Run

func newRunCommand(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run [archive]",
		Short: "Convert an archive into the columnar file and the artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, err := g.load(args)
			if err != nil {
				return err
			}
			if err := lint(p, stderr); err != nil {
				return err
			}
			logger := g.logger(stderr)

			flush := setupMetrics(p, logger, g.verbose)
			defer flush()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if g.verbose {
				logger.Printf("pipeline: job=%s source=%s encoding=%s out=%s ledger=%s",
					p.Job, p.Source.Path, p.Parser.Encoding, p.Output.Dir, p.Ledger.Kind)
			}
			sum, err := runPipeline(ctx, p, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "run_id=%s rows=%d skipped=%d columnar=%s artifact=%s xxh3=%s elapsed=%s\n",
				sum.RunID, sum.Rows, sum.Skipped, p.Output.ColumnarPath(), sum.Artifact.Path,
				sum.Artifact.ChecksumHex(), sum.Elapsed.Truncate(time.Millisecond))
			return nil
		},
	}
}

// setupMetrics installs the configured metrics backend and returns its flush
// function. Backend failures downgrade to the nop backend.
func setupMetrics(p config.Pipeline, logger *log.Logger, verbose bool) func() {
	m := p.Metrics
	var b metrics.Backend
	switch m.Backend {
	case "pushgateway":
		pb, err := prompush.NewBackend(p.Job, m.PushgatewayURL)
		if err != nil {
			logger.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		b = pb
	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       m.DatadogAddr,
			Namespace:  "mailcorpus.",
			GlobalTags: []string{"job:" + p.Job},
		})
		if err != nil {
			logger.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		b = db
	case "", "none":
		if verbose {
			logger.Printf("metrics: disabled (backend=%q)", m.Backend)
		}
		return func() {}
	default:
		logger.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
		return func() {}
	}

	logger.Printf("metrics: backend=%s job_name=%s", m.Backend, p.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Printf("metrics: flush error: %v", err)
		}
	}
}
