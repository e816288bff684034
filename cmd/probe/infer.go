package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"typeprobe/internal/logging"
	"typeprobe/internal/probe"
	"typeprobe/internal/schema"
)

// addProbeFlags registers the sampling and dialect flags shared by every
// subcommand. Defaults shown here mirror the config defaults.
func addProbeFlags(fs *pflag.FlagSet) {
	fs.Int("sample-rows", 1000, "data rows classified from the top of each file (0 = all)")
	fs.Int("decimal-places", probe.DefaultDecimalPlaces, "decimal places a float type must preserve")
	fs.String("delimiter", ",", "field delimiter (one character)")
	fs.String("quotes", `"'`, "quote characters; empty disables quoting (use '\"' when unquoted text contains apostrophes)")
	fs.String("encoding", "utf-8", "input encoding (e.g. utf-8, iso-8859-1, windows-1252, utf-16)")
	fs.Int("workers", 0, "parallelism for scans and multi-file runs (0 = GOMAXPROCS)")
}

func (a *app) probeOptions() (probe.Options, error) {
	d, err := a.cfg.Probe.Dialect()
	if err != nil {
		return probe.Options{}, usageError{err}
	}
	return probe.Options{
		SampleRows:    a.cfg.Probe.SampleRows,
		DecimalPlaces: a.cfg.Probe.DecimalPlaces,
		Dialect:       d,
		Encoding:      a.cfg.Probe.Encoding,
		Sink:          logging.NewSink(a.log),
		Metrics:       a.metrics,
		Workers:       a.cfg.Probe.Workers,
	}, nil
}

func newInferCmd(run runWith) *cobra.Command {
	var (
		output string
		report bool
	)

	cmd := &cobra.Command{
		Use:   "infer FILE...",
		Short: "Print the schema inferred from one or more files",
		Long: `Sample each file and print the inferred schema. Several files are
merged into one schema where each column takes the widest type seen.

Both " and ' quote by default, and a quote opens anywhere in an unquoted
field. Data with apostrophes in unquoted text (O'Brien,5) fails with an
unterminated quote; pass --quotes '"' to quote with double quotes only.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			if output != "text" && output != "json" {
				return usagef("--output must be text or json, got %q", output)
			}
			opt, err := a.probeOptions()
			if err != nil {
				return err
			}
			opt.Uniqueness = report || output == "json"

			var (
				s       schema.Schema
				reports []*probe.Report
			)
			if len(args) == 1 {
				var rep *probe.Report
				s, rep, err = probe.InferFile(ctx, args[0], opt)
				reports = []*probe.Report{rep}
			} else {
				s, reports, err = probe.InferFiles(ctx, args, opt)
			}
			if err != nil {
				return err
			}

			// Report mode prints only the uniqueness report.
			if report {
				for _, rep := range reports {
					if len(reports) > 1 {
						fmt.Fprintf(a.stdout, "# %s\n", rep.Path)
					}
					fmt.Fprintln(a.stdout, probe.FormatUniquenessReport(rep.Uniqueness))
				}
				return nil
			}

			if output == "json" {
				b, err := probe.MarshalResult(s, reports)
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				_, err = a.stdout.Write(b)
				return err
			}
			_, err = a.stdout.Write(probe.RenderSummary(s, reports...))
			return err
		}),
	}

	addProbeFlags(cmd.Flags())
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&report, "report", false, "print the uniqueness report instead of the schema")
	return cmd
}

// tableName returns the configured table, or one derived from the file name.
func tableName(configured, path string) string {
	if t := strings.TrimSpace(configured); t != "" {
		return t
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if n := strings.ToLower(schema.NormalizeFieldName(stem)); n != "" {
		return n
	}
	return "data"
}
