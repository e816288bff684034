// Package metrics is the backend-neutral metrics surface used by the probe
// and the loader. Backends live in subpackages.
package metrics

import "time"

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives counter increments and histogram observations.
// Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names. Label keys in parentheses.
const (
	FilesTotal               = "probe_files_total" // (status)
	RowsSampledTotal         = "probe_rows_sampled_total"
	WideningsTotal           = "probe_widenings_total" // (rung)
	FieldLengthWarningsTotal = "probe_field_length_warnings_total"
	StepDurationSeconds      = "probe_step_duration_seconds" // (step, status)
	LoadRowsTotal            = "load_rows_total"             // (kind)
	LoadBatchesTotal         = "load_batches_total"
)

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

// OrNop returns b, or Nop when b is nil.
func OrNop(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}

// ObserveStep records the duration of one step since start.
func ObserveStep(b Backend, step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.ObserveHistogram(StepDurationSeconds, time.Since(start).Seconds(), Labels{"step": step, "status": status})
}
