// Package metrics exposes job and provider counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements job.Metrics on a private registry.
type Collector struct {
	submitted   prometheus.Counter
	finished    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	resultChars *prometheus.CounterVec
	retries     *prometheus.CounterVec
	dropped     prometheus.Counter
	registry    *prometheus.Registry
}

// NewCollector creates a Collector with every series registered.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "openfreeai_jobs_submitted_total",
		Help: "Jobs enqueued by the dispatcher",
	})
	finished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfreeai_jobs_finished_total",
			Help: "Jobs that reached a terminal status, by status and model",
		},
		[]string{"status", "model"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openfreeai_job_duration_seconds",
			Help:    "Time from claim to terminal status",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)
	resultChars := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfreeai_result_chars_total",
			Help: "Characters returned by successful completions",
		},
		[]string{"model"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfreeai_completion_retries_total",
			Help: "Completion attempts retried after a transient failure",
		},
		[]string{"model"},
	)
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "openfreeai_events_dropped_total",
		Help: "Completion events dropped because a subscriber was full",
	})

	registry.MustRegister(submitted, finished, duration, resultChars, retries, dropped)

	return &Collector{
		submitted:   submitted,
		finished:    finished,
		duration:    duration,
		resultChars: resultChars,
		retries:     retries,
		dropped:     dropped,
		registry:    registry,
	}
}

// RecordSubmitted counts newly enqueued jobs.
func (c *Collector) RecordSubmitted(count int) {
	c.submitted.Add(float64(count))
}

// RecordFinished counts a terminal job.
func (c *Collector) RecordFinished(status, model string, elapsed time.Duration, resultChars int) {
	c.finished.WithLabelValues(status, model).Inc()
	c.duration.WithLabelValues(status).Observe(elapsed.Seconds())
	if resultChars > 0 {
		c.resultChars.WithLabelValues(model).Add(float64(resultChars))
	}
}

// RecordRetry counts one retried completion attempt.
func (c *Collector) RecordRetry(model string) {
	c.retries.WithLabelValues(model).Inc()
}

// RecordDropped counts an event the bus could not deliver.
func (c *Collector) RecordDropped(string) {
	c.dropped.Inc()
}

// Registry returns the registry for exposure or tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
