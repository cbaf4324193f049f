// Package metrics records formatter activity as Prometheus metrics.
//
// A Recorder owns its registry so tests and multiple servers in one process
// never collide on the global default registry. All methods are safe on a
// nil *Recorder, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formatter"

// File outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Row outcomes.
const (
	OutcomeKept           = "kept"
	OutcomeDroppedCard    = "dropped_card"
	OutcomeDroppedPending = "dropped_pending"
)

// Recorder holds the formatter's collectors.
type Recorder struct {
	registry *prometheus.Registry

	files    *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates a Recorder with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files processed, by status.",
		}, []string{"status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Data rows processed, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transform_duration_seconds",
			Help:      "Time to load, clean and write one file.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	r.registry.MustRegister(
		r.files,
		r.rows,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveFile records one processed file.
func (r *Recorder) ObserveFile(success bool, elapsed time.Duration) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if !success {
		status = StatusFailure
	}
	r.files.WithLabelValues(status).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// ObserveRows adds row counts for one file.
func (r *Recorder) ObserveRows(kept, droppedCard, droppedPending int) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(OutcomeKept).Add(float64(kept))
	r.rows.WithLabelValues(OutcomeDroppedCard).Add(float64(droppedCard))
	r.rows.WithLabelValues(OutcomeDroppedPending).Add(float64(droppedPending))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
