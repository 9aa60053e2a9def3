// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the geoetl pipeline.
//
// The package is intentionally minimal:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the storage registry pattern (storage.Repository): the
//     pipeline depends only on this interface while concrete metric systems
//     live in subpackages.
//
// The primary use case is instrumentation of the per-file pipeline stages
// (load, enrich, normalize, upload, write) without coupling the
// runner to a specific metrics system such as Prometheus or Datadog.
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal       = "geoetl_step_total"
	StepDuration    = "geoetl_step_duration_seconds"
	FeaturesTotal   = "geoetl_features_total"
	FilesTotal      = "geoetl_files_total"
	statusSucceeded = "success"
	statusFailed    = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return statusFailed
	}
	return statusSucceeded
}

// RecordStep is a convenience for the common pattern:
// measure latency + success/failure per pipeline stage.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a feature-level counter for the given job and kind.
//
// Kinds used by the runner:
//   - "read"
//   - "loaded"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(FeaturesTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordFile counts one processed input file; err decides its status.
func RecordFile(job string, err error) {
	backend.IncCounter(FilesTotal, 1, Labels{
		"job":    job,
		"status": status(err),
	})
}
