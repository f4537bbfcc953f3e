package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mailcorpus/internal/pipeline"
	"mailcorpus/internal/schema"
)

func newDiscoverCommand(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		out  string
		name string
	)
	cmd := &cobra.Command{
		Use:   "discover [archive]",
		Short: "Sample the archive and rank header keys into a schema file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, err := g.load(args)
			if err != nil {
				return err
			}
			res, err := pipeline.Discover(context.Background(), p, g.logger(stderr))
			if err != nil {
				return err
			}

			for i, f := range res.Fields {
				fmt.Fprintf(stdout, "%2d  %-32s %6d  %.3f\n", i+1, f.Name, res.Counts[f.Name], f.Frequency)
			}
			if out == "" {
				return nil
			}
			s, err := schema.New(res.Names(), p.Schema.DateField)
			if err != nil {
				return fmt.Errorf("discover: %w", err)
			}
			if err := schema.WriteContract(out, s.Contract(name)); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s (%d fields)\n", out, s.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the selected fields as a JSON schema file")
	cmd.Flags().StringVar(&name, "name", "emails", "schema name recorded in the schema file")
	return cmd
}
