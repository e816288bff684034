// Command probe infers column types of delimited text files and can create
// and fill a matching database table.
//
//	probe infer FILE...            print the inferred schema (text or JSON)
//	probe ddl FILE --table T       print CREATE TABLE for the inferred schema
//	probe load FILE --table T      infer, create the table if missing, load rows
//
// Settings come from defaults, an optional --config file (yaml, json or toml),
// TYPEPROBE_* environment variables (e.g. TYPEPROBE_STORAGE_KIND) and flags,
// in increasing order of precedence.
//
// # DSN overrides
//
// load resolves the database DSN in this order:
//  1. --dsn flag (or storage.dsn from env/config)
//  2. DSN env var
//  3. DSN_HOST / DSN_PORT / DSN_USER / DSN_PASSWORD / DSN_DB
//     plus DSN_SSLMODE (postgres), DSN_ENCRYPT (mssql), DSN_SQLITE (sqlite)
//     and DSN_PARAMS for extra query parameters.
//
// Exit codes: 0 on success, 2 on usage or configuration errors, 1 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"typeprobe/internal/config"
	"typeprobe/internal/logging"
	"typeprobe/internal/metrics"
	"typeprobe/internal/metrics/datadog"
	"typeprobe/internal/storage"

	// Register every storage backend; --backend picks one at run time.
	_ "typeprobe/internal/storage/all"
)

// appDeps holds the side-effecting collaborators so tests can replace them.
type appDeps struct {
	initMetrics func(ctx context.Context, cfg config.Metrics, log logrus.FieldLogger) (metrics.Backend, func(), error)
	openRepo    func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

func defaultDeps() appDeps {
	return appDeps{initMetrics: initMetrics, openRepo: storage.New}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// usageError marks failures caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, a ...any) error { return usageError{fmt.Errorf(format, a...)} }

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(stdout, stderr, deps)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

// app is the per-invocation state shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	metrics metrics.Backend
	stdout  io.Writer
	deps    appDeps
}

func newRootCmd(stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "probe",
		Short:         "Infer column types of delimited files and load them into a database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (yaml, json or toml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("metrics-backend", "none", "metrics backend (none, datadog)")

	// withApp loads config for cmd, sets up logging and metrics, runs fn and
	// releases the metrics backend afterwards.
	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return usageError{err}
			}
			log, err := logging.New(cfg.Logging, stderr)
			if err != nil {
				return usageError{err}
			}
			m, closeMetrics, err := deps.initMetrics(cmd.Context(), cfg.Metrics, log)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}
			defer closeMetrics()

			return fn(cmd.Context(), &app{cfg: cfg, log: log, metrics: m, stdout: stdout, deps: deps}, args)
		}
	}

	root.AddCommand(
		newInferCmd(withApp),
		newDDLCmd(withApp),
		newLoadCmd(withApp),
	)
	return root
}

type runWith func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

// usageArgs turns cobra's argument validation failures into usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// initMetrics builds the configured backend. The returned cleanup flushes
// and must be called once.
func initMetrics(ctx context.Context, cfg config.Metrics, log logrus.FieldLogger) (metrics.Backend, func(), error) {
	switch cfg.Backend {
	case "", "none":
		log.Debug("metrics: disabled")
		return metrics.Nop{}, func() {}, nil
	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.Tags)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Job,
			Tags:       tags,
			FlushEvery: cfg.FlushEvery,
		})
		if err != nil {
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{"backend": cfg.Backend, "job": cfg.Job, "tags": tags}).Info("metrics: enabled")
		return b, func() {
			if err := b.Close(); err != nil {
				log.WithError(err).Warn("metrics: datadog close/flush error")
			}
		}, nil
	default:
		return nil, nil, usagef("unknown metrics backend %q", cfg.Backend)
	}
}
