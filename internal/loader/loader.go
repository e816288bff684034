// Package loader streams a delimited file into a table using an inferred
// schema.
//
// The schema comes from a partial sample, so rows outside the sample may not
// fit it. The lenient policy skips and counts such rows; the strict policy
// stops at the first one.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"typeprobe/internal/datasource/file"
	"typeprobe/internal/logging"
	"typeprobe/internal/metrics"
	"typeprobe/internal/numeric"
	"typeprobe/internal/parser/csv"
	"typeprobe/internal/record"
	"typeprobe/internal/schema"
	"typeprobe/internal/storage"
	"typeprobe/internal/transformer"
)

// Policy decides what happens to rows that do not fit the schema.
type Policy string

const (
	Lenient Policy = "lenient"
	Strict  Policy = "strict"
)

// ParsePolicy accepts "lenient" and "strict" in any case. Empty means Lenient.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Lenient, nil
	case Lenient, Strict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown load policy %q (want lenient or strict)", s)
	}
}

const (
	defaultBatchSize     = 1000
	defaultMaxExamples   = 10
	defaultChannelBuffer = 256
)

// Options configure one load.
type Options struct {
	Path     string
	Encoding string
	Dialect  csv.Dialect

	Schema        schema.Schema
	DecimalPlaces int
	Oracle        schema.Oracle

	Table     string
	Repo      storage.Repository
	BatchSize int
	Policy    Policy
	// MaxExamples caps the violations kept in Result.
	MaxExamples   int
	ChannelBuffer int

	// RowHashColumn, when set, adds a text column holding the SHA-256 of
	// each row's decoded values.
	RowHashColumn string

	Logger  logrus.FieldLogger
	Metrics metrics.Backend
}

func (o Options) withDefaults() Options {
	if o.Dialect.Delimiter == 0 {
		o.Dialect = csv.DefaultDialect
	}
	if o.DecimalPlaces < 0 {
		o.DecimalPlaces = 0
	}
	if o.Oracle == nil {
		o.Oracle = numeric.Oracle{}
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Policy == "" {
		o.Policy = Lenient
	}
	if o.MaxExamples <= 0 {
		o.MaxExamples = defaultMaxExamples
	}
	if o.ChannelBuffer <= 0 {
		o.ChannelBuffer = defaultChannelBuffer
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	o.Metrics = metrics.OrNop(o.Metrics)
	return o
}

// Result summarizes a load.
type Result struct {
	RunID string `json:"run_id"`
	// Read counts logical rows handed to the decoder.
	Read     int64 `json:"read"`
	Inserted int64 `json:"inserted"`
	// Skipped counts rows that did not fit the schema.
	Skipped int64 `json:"skipped"`
	// Malformed counts rows the tokenizer rejected as too wide.
	Malformed  int64                   `json:"malformed"`
	Batches    int                     `json:"batches"`
	Violations []record.ViolationError `json:"violations,omitempty"`
	Duration   time.Duration           `json:"duration_ns"`
}

// Run creates the table if needed and loads every row of the file.
//
// Errors:
//   - option validation and table creation failures.
//   - tokenizer failures other than too-wide rows.
//   - a *record.ViolationError or *csv.TooManyFieldsError under Strict.
//   - storage failures; rows already inserted by earlier batches stay.
func Run(ctx context.Context, opt Options) (res Result, err error) {
	opt = opt.withDefaults()
	res.RunID = uuid.NewString()
	if err := validate(opt); err != nil {
		return res, err
	}

	log := opt.Logger.WithFields(logrus.Fields{"run_id": res.RunID, "table": opt.Table, "path": opt.Path})
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	ddlStart := time.Now()
	spec := storage.TableSpecFromSchema(opt.Table, opt.Schema, opt.DecimalPlaces)
	var hasher *transformer.RowHash
	if opt.RowHashColumn != "" {
		if hasher, err = transformer.NewRowHash(opt.Schema.Names(), nil); err != nil {
			return res, err
		}
		spec.Columns = append(spec.Columns, storage.ColumnSpec{Name: opt.RowHashColumn, Type: schema.Text})
	}
	err = opt.Repo.EnsureTable(ctx, spec)
	metrics.ObserveStep(opt.Metrics, "load_ddl", ddlStart, err)
	if err != nil {
		return res, err
	}
	log.WithField("duration", durMS(ddlStart)).Info("stage=ddl ok")

	loadStart := time.Now()
	err = load(ctx, opt, spec.ColumnNames(), hasher, &res, log)
	metrics.ObserveStep(opt.Metrics, "load_rows", loadStart, err)

	for kind, n := range map[string]int64{
		"read":      res.Read,
		"inserted":  res.Inserted,
		"skipped":   res.Skipped,
		"malformed": res.Malformed,
	} {
		if n > 0 {
			opt.Metrics.IncCounter(metrics.LoadRowsTotal, float64(n), metrics.Labels{"kind": kind})
		}
	}

	fields := logrus.Fields{
		"duration":  durMS(loadStart),
		"read":      res.Read,
		"inserted":  res.Inserted,
		"skipped":   res.Skipped,
		"malformed": res.Malformed,
		"batches":   res.Batches,
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("stage=load failed")
		return res, err
	}
	log.WithFields(fields).Info("stage=load ok")
	return res, nil
}

func validate(opt Options) error {
	var errs []error
	if opt.Path == "" {
		errs = append(errs, errors.New("loader: path is required"))
	}
	if strings.TrimSpace(opt.Table) == "" {
		errs = append(errs, errors.New("loader: table is required"))
	}
	if opt.Repo == nil {
		errs = append(errs, errors.New("loader: repository is required"))
	}
	if opt.Schema.Len() == 0 {
		errs = append(errs, errors.New("loader: schema has no columns"))
	}
	if opt.Policy != Lenient && opt.Policy != Strict {
		errs = append(errs, fmt.Errorf("loader: unknown policy %q", opt.Policy))
	}
	if err := opt.Dialect.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c := opt.RowHashColumn; c != "" {
		for _, n := range opt.Schema.Names() {
			if strings.EqualFold(n, c) {
				errs = append(errs, fmt.Errorf("loader: row hash column %q collides with a data column", c))
				break
			}
		}
	}
	return errors.Join(errs...)
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

// load runs the reader and the decode/insert loop. The reader owns the
// channel and closes it; the loop owns every row it receives.
func load(ctx context.Context, opt Options, columns []string, hasher *transformer.RowHash, res *Result, log logrus.FieldLogger) error {
	src, err := file.Open(opt.Path, opt.Encoding)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		malformed  atomic.Int64
		strictOnce sync.Once
		strictErr  error
	)
	onErr := func(line int, err error) {
		if !errors.Is(err, csv.ErrTooManyFields) {
			return
		}
		malformed.Add(1)
		if opt.Policy == Strict {
			strictOnce.Do(func() {
				strictErr = err
				cancel()
			})
			return
		}
		log.WithFields(logrus.Fields{"line": line, "error": err}).Debug("row skipped")
	}

	rows := make(chan *record.Row, opt.ChannelBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)
		return csv.StreamRows(gctx, src, opt.Schema.Len(), csv.StreamOptions{Dialect: opt.Dialect, HasHeader: true}, rows, onErr)
	})

	g.Go(func() error {
		defer func() {
			// Unblock and release anything still queued after an early return.
			for r := range rows {
				r.Free()
			}
		}()
		return consume(gctx, opt, columns, hasher, rows, res, log)
	})

	err = g.Wait()
	res.Malformed = malformed.Load()
	if strictErr != nil {
		return strictErr
	}
	return err
}

func consume(ctx context.Context, opt Options, columns []string, hasher *transformer.RowHash, rows <-chan *record.Row, res *Result, log logrus.FieldLogger) error {
	dec := record.NewDecoder(opt.Schema, opt.Oracle, opt.DecimalPlaces)
	batch := make([][]any, 0, opt.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := opt.Repo.InsertRows(ctx, opt.Table, columns, batch)
		if err != nil {
			return err
		}
		res.Inserted += n
		res.Batches++
		opt.Metrics.IncCounter(metrics.LoadBatchesTotal, 1, nil)
		batch = make([][]any, 0, opt.BatchSize)
		return nil
	}

	for r := range rows {
		if err := ctx.Err(); err != nil {
			r.Free()
			return err
		}
		res.Read++
		if err := dec.DecodeRow(r); err != nil {
			r.Free()
			var v *record.ViolationError
			if !errors.As(err, &v) || opt.Policy == Strict {
				return err
			}
			res.Skipped++
			if len(res.Violations) < opt.MaxExamples {
				res.Violations = append(res.Violations, *v)
				log.WithFields(logrus.Fields{"line": v.Line, "column": v.Column, "type": v.Type.String()}).Warn("value does not fit inferred type; row skipped")
			}
			continue
		}

		vals := make([]any, len(columns))
		n := copy(vals, r.V)
		r.Free()
		if hasher != nil {
			vals[n] = hasher.Sum(vals[:n])
		}
		batch = append(batch, vals)

		if len(batch) >= opt.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return flush()
}
