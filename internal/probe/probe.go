// Package probe samples delimited files and infers their schema.
//
// For each file the probe:
//   - counts physical lines to cap the sample
//   - reads the header and normalizes it into column names
//   - classifies the first N data rows plus the final row
//   - checks, in parallel and without blocking inference, that every line
//     has as many fields as the header
//
// Sampling is deliberately partial. Values outside the sample that do not fit
// the inferred types are the loader's concern.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/uuid"

	"typeprobe/internal/datasource/file"
	"typeprobe/internal/metrics"
	"typeprobe/internal/numeric"
	"typeprobe/internal/parser/csv"
	"typeprobe/internal/schema"
)

// Unbounded as Options.SampleRows classifies every row.
const Unbounded = 0

// DefaultDecimalPlaces is the float precision the commands default to.
const DefaultDecimalPlaces = 2

// ErrNoHeader is returned for input without a header row.
var ErrNoHeader = errors.New("no header row")

// Sink receives diagnostics. Implementations must not fail.
type Sink interface {
	Start(op string, kv ...any)
	End(op string, kv ...any)
	Warn(kind, msg string, kv ...any)
}

type nopSink struct{}

func (nopSink) Start(string, ...any)        {}
func (nopSink) End(string, ...any)          {}
func (nopSink) Warn(string, string, ...any) {}

// Options control sampling and classification.
type Options struct {
	// SampleRows caps the data rows classified from the top of the file.
	// The final row is always classified as well. Unbounded reads everything.
	SampleRows int
	// DecimalPlaces is the precision a float must preserve. Zero accepts a
	// float only when it matches the value rounded to an integer.
	DecimalPlaces int
	Dialect       csv.Dialect
	// Encoding is a WHATWG or IANA label; empty means UTF-8.
	Encoding string

	Oracle  schema.Oracle
	Sink    Sink
	Metrics metrics.Backend

	// Workers bounds the rectangularity scan and InferFiles fan-out.
	// Defaults to GOMAXPROCS.
	Workers int

	// Uniqueness enables bounded distinct counting over the sample.
	Uniqueness bool
}

func (o Options) withDefaults() Options {
	if o.SampleRows < 0 {
		o.SampleRows = Unbounded
	}
	if o.DecimalPlaces < 0 {
		o.DecimalPlaces = 0
	}
	if o.Dialect.Delimiter == 0 {
		o.Dialect = csv.DefaultDialect
	}
	if o.Oracle == nil {
		o.Oracle = numeric.Oracle{}
	}
	if o.Sink == nil {
		o.Sink = nopSink{}
	}
	o.Metrics = metrics.OrNop(o.Metrics)
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// ColumnReport summarizes what the sample said about one column.
type ColumnReport struct {
	Name      string      `json:"name"`
	Header    string      `json:"header"`
	Type      schema.Rung `json:"type"`
	Observed  int         `json:"observed"`
	Widenings int         `json:"widenings"`
}

// Report describes one probe run.
type Report struct {
	RunID          string              `json:"run_id"`
	Path           string              `json:"path"`
	TotalLines     int64               `json:"total_lines"`
	SampledRows    int                 `json:"sampled_rows"`
	LastRowSampled bool                `json:"last_row_sampled"`
	FieldLength    *FieldLengthWarning `json:"field_length_warning,omitempty"`
	Columns        []ColumnReport      `json:"columns"`
	Uniqueness     *Uniqueness         `json:"uniqueness,omitempty"`
	Duration       time.Duration       `json:"duration_ns"`
}

// InferFile samples the file at path and returns its schema.
//
// Errors:
//   - open/read failures, wrapped.
//   - ErrNoHeader for empty input.
//   - csv.ErrTooManyFields and csv.ErrUnterminatedQuote from the tokenizer.
//
// No partial schema is returned on error. A field-length mismatch is not an
// error; it is logged and recorded in the report.
func InferFile(ctx context.Context, path string, opt Options) (schema.Schema, *Report, error) {
	opt = opt.withDefaults()
	rep := &Report{RunID: uuid.NewString(), Path: path}
	start := time.Now()

	opt.Sink.Start("infer", "path", path, "n", opt.SampleRows, "dp", opt.DecimalPlaces, "run_id", rep.RunID)
	s, err := inferFile(ctx, path, opt, rep)
	rep.Duration = time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	opt.Metrics.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"status": status})
	metrics.ObserveStep(opt.Metrics, "infer", start, err)
	opt.Sink.End("infer", "path", path, "status", status, "duration", rep.Duration, "run_id", rep.RunID)

	if err != nil {
		return schema.Schema{}, nil, fmt.Errorf("probe %s: %w", path, err)
	}
	return s, rep, nil
}

func inferFile(ctx context.Context, path string, opt Options, rep *Report) (schema.Schema, error) {
	if err := opt.Dialect.Validate(); err != nil {
		return schema.Schema{}, err
	}

	total, err := file.CountLines(ctx, path, opt.Encoding)
	if err != nil {
		return schema.Schema{}, err
	}
	rep.TotalLines = total

	src, err := file.Open(path, opt.Encoding)
	if err != nil {
		return schema.Schema{}, err
	}
	defer src.Close()

	tok := csv.NewTokenizer(src, opt.Dialect)
	header, err := tok.Next(-1)
	if errors.Is(err, io.EOF) {
		return schema.Schema{}, ErrNoHeader
	}
	if err != nil {
		return schema.Schema{}, err
	}
	nf := len(header)

	// The rectangularity scan reads its own handle and only ever warns. On
	// early return it is cancelled and awaited so its handle is closed too.
	scanCtx, cancelScan := context.WithCancel(ctx)
	scanDone := make(chan scanResult, 1)
	scanned := false
	go func() {
		w, err := checkRectangular(scanCtx, path, opt.Encoding, opt.Dialect, nf, opt.Workers)
		scanDone <- scanResult{w, err}
	}()
	defer func() {
		cancelScan()
		if !scanned {
			<-scanDone
		}
	}()

	b := schema.NewBuilder(header, opt.Oracle, opt.DecimalPlaces)
	var uniq *uniquenessCounter
	if opt.Uniqueness {
		uniq = newUniquenessCounter(b.Schema().Names())
	}
	observe := func(row csv.Row) {
		b.Observe(row)
		if uniq != nil {
			uniq.observe(row)
		}
	}

	limit := sampleLimit(opt.SampleRows, total)
	sampleStart := time.Now()
	sampled, last, err := sample(ctx, tok, nf, limit, observe)
	metrics.ObserveStep(opt.Metrics, "sample", sampleStart, err)
	if err != nil {
		return schema.Schema{}, err
	}
	rep.SampledRows = sampled
	if last != nil {
		observe(last)
		rep.LastRowSampled = true
	}

	res := <-scanDone
	scanned = true
	switch {
	case res.err != nil:
		opt.Sink.Warn("field_length_scan", "rectangularity scan failed", "path", path, "error", res.err)
	case res.warning != nil:
		rep.FieldLength = res.warning
		opt.Metrics.IncCounter(metrics.FieldLengthWarningsTotal, 1, nil)
		opt.Sink.Warn("field_length", "Field Length Warning", "path", path,
			"expected", res.warning.Expected, "mismatched", res.warning.Mismatched, "first_line", res.warning.FirstLine)
	}

	s := b.Schema()
	cols := b.Columns()
	rep.Columns = make([]ColumnReport, s.Len())
	for i, f := range s.Fields() {
		rep.Columns[i] = ColumnReport{
			Name:      f.Name,
			Header:    f.Header,
			Type:      f.Type,
			Observed:  cols[i].Observed,
			Widenings: cols[i].Widenings,
		}
		if cols[i].Widenings > 0 {
			opt.Metrics.IncCounter(metrics.WideningsTotal, float64(cols[i].Widenings), metrics.Labels{"rung": f.Type.String()})
		}
	}
	if uniq != nil {
		rep.Uniqueness = uniq.result()
	}
	rows := sampled
	if rep.LastRowSampled {
		rows++
	}
	opt.Metrics.IncCounter(metrics.RowsSampledTotal, float64(rows), nil)
	return s, nil
}

// sampleLimit caps n by the number of physical lines. The cap only matters
// for tiny files; the tokenizer stops at end of input anyway.
func sampleLimit(n int, totalLines int64) int64 {
	if n == Unbounded || int64(n) > totalLines {
		return totalLines
	}
	return int64(n)
}

// sample feeds up to limit rows to observe, then drains the rest of the
// input and returns its final row, or nil when the input ended within the
// limit.
func sample(ctx context.Context, tok *csv.Tokenizer, nf int, limit int64, observe func(csv.Row)) (int, csv.Row, error) {
	var n int
	for int64(n) < limit {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return n, nil, err
			}
		}
		row, err := tok.Next(nf)
		if errors.Is(err, io.EOF) {
			return n, nil, nil
		}
		if err != nil {
			return n, nil, err
		}
		observe(row)
		n++
	}

	var last csv.Row
	for i := 0; ; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return n, nil, err
			}
		}
		row, err := tok.Next(nf)
		if errors.Is(err, io.EOF) {
			return n, last, nil
		}
		if err != nil {
			return n, nil, err
		}
		last = row
	}
}
