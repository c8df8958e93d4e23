// Package metrics exposes import runs, units and geocode lookups as
// Prometheus metrics. Serve mode publishes them on /metrics; CLI runs push
// them to a Pushgateway when one is configured.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder is a Prometheus implementation of core.Recorder and
// geocode.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// Run Metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec
	runRows            *prometheus.CounterVec

	// Unit Metrics
	unitDurationSeconds *prometheus.HistogramVec
	unitStatusCounter   *prometheus.CounterVec
	unitRows            *prometheus.CounterVec

	// Geocode Metrics
	geocodeLookups         *prometheus.CounterVec
	geocodeDurationSeconds *prometheus.HistogramVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_run_duration_seconds",
			Help:    "Duration of import runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"state"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_runs_total",
			Help: "Total number of import runs by final state.",
		}, []string{"state"}),
		runRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_run_rows_total",
			Help: "Total sheet rows offered to import runs by final state.",
		}, []string{"state"}),
		unitDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_unit_duration_seconds",
			Help:    "Duration of import units.",
			Buckets: prometheus.DefBuckets,
		}, []string{"unit", "status"}),
		unitStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_unit_status_total",
			Help: "Total number of unit executions by status.",
		}, []string{"unit", "status"}),
		unitRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_unit_rows_total",
			Help: "Total rows handled by unit and result.",
		}, []string{"unit", "result"}), // result: success, failed, skipped
		geocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_geocode_lookups_total",
			Help: "Total addresses looked up by resolving stage.",
		}, []string{"stage"}), // stage: cache, geocode, poi, miss
		geocodeDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_geocode_duration_seconds",
			Help:    "Time spent resolving one uncached address.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.runRows)
	registry.MustRegister(r.unitDurationSeconds)
	registry.MustRegister(r.unitStatusCounter)
	registry.MustRegister(r.unitRows)
	registry.MustRegister(r.geocodeLookups)
	registry.MustRegister(r.geocodeDurationSeconds)

	return r
}

// Registry returns the Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveRun records a finished run.
func (r *Recorder) ObserveRun(state string, rows int, d time.Duration) {
	r.runStatusCounter.WithLabelValues(state).Inc()
	r.runRows.WithLabelValues(state).Add(float64(rows))
	r.runDurationSeconds.WithLabelValues(state).Observe(d.Seconds())
}

// ObserveUnit records a finished unit.
func (r *Recorder) ObserveUnit(unit, status string, success, failed, skipped int, d time.Duration) {
	r.unitStatusCounter.WithLabelValues(unit, status).Inc()
	r.unitRows.WithLabelValues(unit, "success").Add(float64(success))
	r.unitRows.WithLabelValues(unit, "failed").Add(float64(failed))
	r.unitRows.WithLabelValues(unit, "skipped").Add(float64(skipped))
	r.unitDurationSeconds.WithLabelValues(unit, status).Observe(d.Seconds())
}

// ObserveGeocode records one address lookup. Cache hits carry no duration.
func (r *Recorder) ObserveGeocode(stage string, d time.Duration) {
	r.geocodeLookups.WithLabelValues(stage).Inc()
	if d > 0 {
		r.geocodeDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Push sends the current values to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
