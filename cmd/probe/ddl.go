package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"typeprobe/internal/config"
	"typeprobe/internal/probe"
	"typeprobe/internal/schema"
	"typeprobe/internal/storage"
)

func addTableFlags(fs *pflag.FlagSet) {
	fs.String("backend", "postgres", "storage backend (postgres, mssql, sqlite)")
	fs.String("table", "", "target table, optionally schema-qualified (default: derived from the file name)")
}

// backendKind returns the canonical storage kind from config.
func (a *app) backendKind() (string, error) {
	kind := config.NormalizeBackend(a.cfg.Storage.Kind)
	if kind == "" {
		return "", usagef("unknown backend %q", a.cfg.Storage.Kind)
	}
	return kind, nil
}

// inferred is a probed file plus the table definition derived from it.
type inferred struct {
	schema schema.Schema
	spec   storage.TableSpec
	report *probe.Report
}

func (a *app) inferTable(ctx context.Context, path string) (inferred, error) {
	opt, err := a.probeOptions()
	if err != nil {
		return inferred{}, err
	}
	s, rep, err := probe.InferFile(ctx, path, opt)
	if err != nil {
		return inferred{}, err
	}
	spec := storage.TableSpecFromSchema(tableName(a.cfg.Storage.Table, path), s, a.cfg.Probe.DecimalPlaces)
	return inferred{schema: s, spec: spec, report: rep}, nil
}

func newDDLCmd(run runWith) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl FILE",
		Short: "Print CREATE TABLE for the schema inferred from FILE",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			kind, err := a.backendKind()
			if err != nil {
				return err
			}
			in, err := a.inferTable(ctx, args[0])
			if err != nil {
				return err
			}
			stmts, err := storage.DDL(kind, in.spec)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, strings.Join(stmts, "\n"))
			return err
		}),
	}
	addProbeFlags(cmd.Flags())
	addTableFlags(cmd.Flags())
	return cmd
}
