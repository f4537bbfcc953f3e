package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mailcorpus/internal/storage"
)

func newRunsCommand(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			p, err := g.load(nil)
			if err != nil {
				return err
			}
			if p.Ledger.Kind == "" {
				return fmt.Errorf("runs: no ledger configured (ledger.kind is empty)")
			}
			ctx := context.Background()
			repo, err := storage.New(ctx, storage.Config{Kind: p.Ledger.Kind, DSN: p.Ledger.DSN, Table: p.Ledger.Table})
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.Recent(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tJOB\tSTATUS\tROWS\tSKIPPED\tSTARTED\tDURATION\tXXH3")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					r.ID, r.Job, r.Status, r.Rows, r.Skipped,
					r.Started.Format(time.RFC3339), r.Finished.Sub(r.Started).Truncate(time.Millisecond), r.Checksum)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}
