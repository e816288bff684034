package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"typeprobe/internal/config"
	"typeprobe/internal/loader"
	"typeprobe/internal/numeric"
	"typeprobe/internal/storage"
)

// errNoDSN is returned when no DSN source is configured.
var errNoDSN = errors.New("no DSN: set --dsn, TYPEPROBE_STORAGE_DSN, DSN or DSN_* variables")

func newLoadCmd(run runWith) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Infer the schema of FILE, create the table if missing and load every row",
		Long: `Infer the schema from a sample of FILE, create the target table when it
does not exist, then stream every row of FILE into it.

Rows outside the sample may not fit the inferred types. With --policy lenient
(the default) they are skipped and counted; with --policy strict the load
stops at the first one. Batches already committed stay in the table.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			if output != "text" && output != "json" {
				return usagef("--output must be text or json, got %q", output)
			}
			kind, err := a.backendKind()
			if err != nil {
				return err
			}
			policy, err := loader.ParsePolicy(a.cfg.Storage.Policy)
			if err != nil {
				return usageError{err}
			}
			dsn, ok, err := config.ResolveDSN(kind, a.cfg.Storage.DSN)
			if err != nil {
				return usageError{err}
			}
			if !ok {
				return usageError{errNoDSN}
			}

			path := args[0]
			in, err := a.inferTable(ctx, path)
			if err != nil {
				return err
			}
			spec := in.spec
			a.log.WithFields(logrus.Fields{"path": path, "table": spec.Name, "columns": len(spec.Columns), "run_id": in.report.RunID}).
				Info("schema inferred")

			repo, err := a.deps.openRepo(ctx, storage.Config{Kind: kind, DSN: dsn})
			if err != nil {
				return fmt.Errorf("open %s: %w", kind, err)
			}
			defer repo.Close()

			d, _ := a.cfg.Probe.Dialect()
			res, err := loader.Run(ctx, loader.Options{
				Path:          path,
				Encoding:      a.cfg.Probe.Encoding,
				Dialect:       d,
				Schema:        in.schema,
				DecimalPlaces: spec.DecimalPlaces,
				Oracle:        numeric.Oracle{},
				Table:         spec.Name,
				Repo:          repo,
				BatchSize:     a.cfg.Storage.BatchSize,
				Policy:        policy,
				RowHashColumn: a.cfg.Storage.RowHash,
				Logger:        a.log,
				Metrics:       a.metrics,
			})
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			return writeLoadResult(a, output, spec.Name, res)
		}),
	}

	addProbeFlags(cmd.Flags())
	addTableFlags(cmd.Flags())
	cmd.Flags().String("dsn", "", "database DSN (overrides DSN and DSN_* environment variables)")
	cmd.Flags().Int("batch-size", 1000, "rows per insert transaction")
	cmd.Flags().String("policy", string(loader.Lenient), "rows that do not fit the schema: lenient skips, strict aborts")
	cmd.Flags().String("row-hash", "", "add a column with this name holding a SHA-256 of each row")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}

func writeLoadResult(a *app, output, table string, res loader.Result) error {
	if output == "json" {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	_, err := fmt.Fprintf(a.stdout, "table=%s read=%d inserted=%d skipped=%d malformed=%d batches=%d\n",
		table, res.Read, res.Inserted, res.Skipped, res.Malformed, res.Batches)
	for _, v := range res.Violations {
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.stdout, "skipped line=%d column=%s type=%s value=%q\n", v.Line, v.Column, v.Type, v.Value)
	}
	return err
}
