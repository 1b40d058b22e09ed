// Package metrics records operational metrics from pipeline runs behind a
// small backend-agnostic interface.
//
// A global, pluggable backend defaults to a no-op, so recording is always
// safe even when nothing is configured. Concrete systems live in subpackages
// (prompush for a Prometheus Pushgateway, datadog for DogStatsD).
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal       = "genrechart_step_total"
	StepDuration    = "genrechart_step_duration_seconds"
	RowsTotal       = "genrechart_rows_total"
	DownloadsTotal  = "genrechart_downloads_total"
	DownloadedBytes = "genrechart_downloaded_bytes_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
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

// RecordStep counts one execution of a pipeline step and observes its latency.
// Failed steps also carry the error kind (schema, type_mismatch, rank, ...).
func RecordStep(job, step, errKind string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
		"kind":   errKind,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows increments a row counter for the given job and kind:
// "parsed", "skipped", "cleaned" or "groups".
func RecordRows(job, kind string, delta int) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordDownload counts a source download by result ("fetched",
// "not_modified" or "fallback") and the bytes transferred.
func RecordDownload(job, result string, bytes int64) {
	backend.IncCounter(DownloadsTotal, 1, Labels{"job": job, "result": result})
	if bytes > 0 && result == "fetched" {
		backend.IncCounter(DownloadedBytes, float64(bytes), Labels{"job": job})
	}
}
