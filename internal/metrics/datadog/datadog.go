// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered under a mutex, flushed on a ticker (once a minute by
// default) and once more on Close. Step durations are aggregated per series
// into sum, count and max; there are only a handful per run. Only the metric
// names declared in internal/metrics are forwarded.
package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"typeprobe/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "typeprobe".
	JobName string

	// Tags are extra Datadog tags, e.g. "service:ingest".
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// Defaults to 60 seconds.
	FlushEvery time.Duration

	// Test seams. Production code leaves them nil.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// kind of a forwarded metric.
type kind int

const (
	kindCount kind = iota
	kindTiming
)

type spec struct {
	ddName string
	kind   kind
	labels []string // label keys turned into tags, in this order
}

// forwarded maps internal metric names to their Datadog shape.
var forwarded = map[string]spec{
	metrics.FilesTotal:               {"typeprobe.files.total", kindCount, []string{"status"}},
	metrics.RowsSampledTotal:         {"typeprobe.rows_sampled.total", kindCount, nil},
	metrics.WideningsTotal:           {"typeprobe.widenings.total", kindCount, []string{"rung"}},
	metrics.FieldLengthWarningsTotal: {"typeprobe.field_length_warnings.total", kindCount, nil},
	metrics.StepDurationSeconds:      {"typeprobe.step.duration_seconds", kindTiming, []string{"step", "status"}},
	metrics.LoadRowsTotal:            {"typeprobe.load.rows.total", kindCount, []string{"kind"}},
	metrics.LoadBatchesTotal:         {"typeprobe.load.batches.total", kindCount, nil},
}

// seriesKey identifies one buffered series: Datadog name plus tag values
// joined with NUL.
type seriesKey struct {
	name string
	tags string
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu      sync.Mutex
	counts  map[seriesKey]float64
	timings map[seriesKey]timing
}

// timing aggregates the observations of one series between flushes.
type timing struct {
	sum, max float64
	n        int
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client. API
// credentials come from DD_API_KEY / DD_SITE as read by the client.
//
// Edge cases:
//   - If opts.FlushEvery <= 0, defaults to 60s.
//   - If opts.JobName is empty, defaults to "typeprobe".
//   - Environment tag selection uses ENV then DD_ENV, otherwise env:unknown.
//
// Network errors surface from Flush and Close, never from here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, errors.New("datadog metrics init: nil context")
	}
	job := opts.JobName
	if job == "" {
		job = "typeprobe"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counts:     make(map[seriesKey]float64),
		timings:    make(map[seriesKey]timing),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and submits whatever is still buffered.
// Calling it more than once is safe; later calls only flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// key resolves name and labels to a buffered series, or false for metrics
// that are not forwarded.
func key(name string, labels metrics.Labels, want kind) (seriesKey, bool) {
	sp, ok := forwarded[name]
	if !ok || sp.kind != want {
		return seriesKey{}, false
	}
	vals := make([]string, len(sp.labels))
	for i, l := range sp.labels {
		v := labels[l]
		if v == "" {
			v = "unknown"
		}
		vals[i] = l + ":" + v
	}
	return seriesKey{name: sp.ddName, tags: strings.Join(vals, "\x00")}, true
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k, ok := key(name, labels, kindCount)
	if !ok {
		return
	}
	b.mu.Lock()
	b.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	k, ok := key(name, labels, kindTiming)
	if !ok {
		return
	}
	b.mu.Lock()
	t := b.timings[k]
	t.sum += value
	t.max = max(t.max, value)
	t.n++
	b.timings[k] = t
	b.mu.Unlock()
}

// Flush submits buffered metrics and resets the buffers, even when the
// submission fails. It returns nil when there is nothing to send.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counts, timings := b.counts, b.timings
	b.counts = make(map[seriesKey]float64)
	b.timings = make(map[seriesKey]timing)
	b.mu.Unlock()

	if len(counts) == 0 && len(timings) == 0 {
		return nil
	}
	payload := datadogV2.MetricPayload{Series: b.buildSeries(counts, timings, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure so the naming and tagging contract can be tested.
// Output is sorted by metric name, then tags.
func (b *Backend) buildSeries(counts map[seriesKey]float64, timings map[seriesKey]timing, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counts)+3*len(timings))

	for k, v := range counts {
		if v == 0 {
			continue
		}
		series = append(series, point(k.name, datadogV2.METRICINTAKETYPE_COUNT, v, b.tagsFor(k), nowUnix))
	}
	for k, t := range timings {
		if t.n == 0 {
			continue
		}
		tags := b.tagsFor(k)
		series = append(series,
			point(k.name+".sum", datadogV2.METRICINTAKETYPE_COUNT, t.sum, tags, nowUnix),
			point(k.name+".count", datadogV2.METRICINTAKETYPE_COUNT, float64(t.n), tags, nowUnix),
			point(k.name+".max", datadogV2.METRICINTAKETYPE_GAUGE, t.max, tags, nowUnix),
		)
	}

	sort.Slice(series, func(i, j int) bool {
		if series[i].Metric != series[j].Metric {
			return series[i].Metric < series[j].Metric
		}
		return strings.Join(series[i].Tags, ",") < strings.Join(series[j].Tags, ",")
	})
	return series
}

func (b *Backend) tagsFor(k seriesKey) []string {
	if k.tags == "" {
		return withTags(b.baseTags)
	}
	return withTags(b.baseTags, strings.Split(k.tags, "\x00")...)
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:ingest".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
