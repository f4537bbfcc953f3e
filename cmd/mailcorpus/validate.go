package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newValidateCommand(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [archive]",
		Short: "Lint the pipeline configuration and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			p, err := g.load(args)
			if err != nil {
				return err
			}
			if err := lint(p, stderr); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "configuration is valid: %s\n", pickPath(g.configPath))
			return nil
		},
	}
}

func pickPath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	return p
}
