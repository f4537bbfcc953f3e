// Command mailcorpus converts a mail-archive tarball into a columnar file and
// a compressed Parquet artifact, and offers the supporting schema discovery,
// config linting and inspection tools.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"mailcorpus/internal/config"

	// register all ledger backends with the storage factory.
	// config selects which to use but the binary carries all of them.
	_ "mailcorpus/internal/storage/all"

	// the target zone must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "mailcorpus: %v\n", err)
		return 1
	}
	return 0
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	outDir     string
	verbose    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "mailcorpus",
		Short: "Convert a mail archive into columnar and Parquet outputs",
		Long: `
mailcorpus walks a (optionally gzip or zstd compressed) tar archive of mail
folders, binds every message to a fixed header schema, normalises its date
and writes an Arrow IPC file plus a compressed Parquet artifact.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "pipeline config (JSON, or TOML by .toml extension)")
	flags.StringVarP(&g.outDir, "out-dir", "o", "", "output directory (overrides output.dir)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(
		newRunCommand(g, stdout, stderr),
		newDiscoverCommand(g, stdout, stderr),
		newValidateCommand(g, stdout, stderr),
		newInspectCommand(stdout),
		newRunsCommand(g, stdout, stderr),
	)
	return root
}

// load reads the config and applies the archive argument and flag overrides.
func (g *globalFlags) load(args []string) (config.Pipeline, error) {
	p, err := config.Load(g.configPath)
	if err != nil {
		return config.Pipeline{}, err
	}
	if len(args) > 0 {
		p.Source.Path = args[0]
	}
	if g.outDir != "" {
		p.Output.Dir = g.outDir
	}
	return p, nil
}

func (g *globalFlags) logger(stderr io.Writer) *log.Logger {
	return log.New(stderr, "", log.LstdFlags)
}

// lint prints every issue and fails when any is an error.
func lint(p config.Pipeline, stderr io.Writer) error {
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}
