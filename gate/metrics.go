/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package gate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsLabelGate = "gate"
const metricsLabelResult = "result"

// Task results used as label values.
const (
	TaskResultOK       = "ok"
	TaskResultError    = "error"
	TaskResultCanceled = "canceled"
)

// MetricsCollector collects metrics of gate admission and task execution.
type MetricsCollector interface {
	// TaskQueued is called when a task is submitted, before it gets an admission slot.
	TaskQueued(gate string)
	// TaskAdmitted is called when the submission gets a slot.
	TaskAdmitted(gate string, waited time.Duration)
	// TaskStarted is called right before the task is invoked.
	TaskStarted(gate string, rateLimitWaited time.Duration)
	// TaskFinished is called when the submission is done (result is one of TaskResult* constants).
	// admitted reports whether the submission held a slot.
	TaskFinished(gate string, admitted bool, result string)
}

// PrometheusMetricsCollector is a Prometheus implementation of MetricsCollector.
type PrometheusMetricsCollector struct {
	Queued                *prometheus.GaugeVec
	InFlight              *prometheus.GaugeVec
	AdmissionWaitDuration *prometheus.HistogramVec
	RateLimitWaitDuration *prometheus.HistogramVec
	Tasks                 *prometheus.CounterVec
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector.
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	waitBuckets := []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	return &PrometheusMetricsCollector{
		Queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_queued_tasks",
			Help:      "Number of submitted tasks that have no admission slot yet.",
		}, []string{metricsLabelGate}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_in_flight_tasks",
			Help:      "Number of tasks holding an admission slot.",
		}, []string{metricsLabelGate}),
		AdmissionWaitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_admission_wait_seconds",
			Help:      "A histogram of time spent waiting for an admission slot.",
			Buckets:   waitBuckets,
		}, []string{metricsLabelGate}),
		RateLimitWaitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_rate_limit_wait_seconds",
			Help:      "A histogram of time spent waiting for the start spacing after admission.",
			Buckets:   waitBuckets,
		}, []string{metricsLabelGate}),
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_tasks_total",
			Help:      "Number of submitted tasks by result.",
		}, []string{metricsLabelGate, metricsLabelResult}),
	}
}

// MustRegister registers the Prometheus metrics in the default registry.
func (c *PrometheusMetricsCollector) MustRegister() {
	c.MustRegisterWith(prometheus.DefaultRegisterer)
}

// MustRegisterWith registers the Prometheus metrics in reg.
func (c *PrometheusMetricsCollector) MustRegisterWith(reg prometheus.Registerer) {
	reg.MustRegister(c.Queued, c.InFlight, c.AdmissionWaitDuration, c.RateLimitWaitDuration, c.Tasks)
}

// Unregister the Prometheus metrics.
func (c *PrometheusMetricsCollector) Unregister() {
	prometheus.Unregister(c.Queued)
	prometheus.Unregister(c.InFlight)
	prometheus.Unregister(c.AdmissionWaitDuration)
	prometheus.Unregister(c.RateLimitWaitDuration)
	prometheus.Unregister(c.Tasks)
}

// TaskQueued implements MetricsCollector.
func (c *PrometheusMetricsCollector) TaskQueued(gate string) {
	c.Queued.WithLabelValues(gate).Inc()
}

// TaskAdmitted implements MetricsCollector.
func (c *PrometheusMetricsCollector) TaskAdmitted(gate string, waited time.Duration) {
	c.Queued.WithLabelValues(gate).Dec()
	c.InFlight.WithLabelValues(gate).Inc()
	c.AdmissionWaitDuration.WithLabelValues(gate).Observe(waited.Seconds())
}

// TaskStarted implements MetricsCollector.
func (c *PrometheusMetricsCollector) TaskStarted(gate string, rateLimitWaited time.Duration) {
	c.RateLimitWaitDuration.WithLabelValues(gate).Observe(rateLimitWaited.Seconds())
}

// TaskFinished implements MetricsCollector.
func (c *PrometheusMetricsCollector) TaskFinished(gate string, admitted bool, result string) {
	if admitted {
		c.InFlight.WithLabelValues(gate).Dec()
	} else {
		c.Queued.WithLabelValues(gate).Dec()
	}
	c.Tasks.WithLabelValues(gate, result).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) TaskQueued(string)                  {}
func (disabledMetrics) TaskAdmitted(string, time.Duration) {}
func (disabledMetrics) TaskStarted(string, time.Duration)  {}
func (disabledMetrics) TaskFinished(string, bool, string)  {}
