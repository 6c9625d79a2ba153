// Package metrics collects run counters in a private Prometheus registry and
// exports them in the textfile collector format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "skyfeed"

// Metrics holds the counters of one feed run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	oracleCalls  *prometheus.CounterVec
	oracleErrors *prometheus.CounterVec
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	events       *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	taskDur      *prometheus.SummaryVec
	lastRun      prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.oracleCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_calls_total",
		Help:      "Ephemeris oracle lookups by body and quantity",
	}, []string{"body", "quantity"})
	m.oracleErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oracle_errors_total",
		Help:      "Ephemeris oracle lookups that failed",
	}, []string{"body", "quantity"})
	m.cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sample_cache_hits_total",
		Help:      "Oracle samples served from the sample cache",
	})
	m.cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sample_cache_misses_total",
		Help:      "Oracle samples not found in the sample cache",
	})
	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_detected_total",
		Help:      "Events emitted by detectors before deduplication",
	}, []string{"category"})
	m.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_rejected_total",
		Help:      "Candidate events discarded by the solver or validation",
	}, []string{"category", "reason"})
	m.taskDur = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time spent per detection task",
	}, []string{"category"})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	m.Registry.MustRegister(
		m.oracleCalls, m.oracleErrors, m.cacheHits, m.cacheMisses,
		m.events, m.rejected, m.taskDur, m.lastRun,
	)
	return m
}

func (m *Metrics) OracleCall(body, quantity string, err error) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(body, quantity).Inc()
	if err != nil {
		m.oracleErrors.WithLabelValues(body, quantity).Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// Detected adds n emitted events for category.
func (m *Metrics) Detected(category string, n int) {
	if m != nil && n > 0 {
		m.events.WithLabelValues(category).Add(float64(n))
	}
}

// Rejected counts a discarded candidate. Reason is a short slug such as
// "low_confidence".
func (m *Metrics) Rejected(category, reason string) {
	if m != nil {
		m.rejected.WithLabelValues(category, reason).Inc()
	}
}

// ObserveTask records how long one detection task took.
func (m *Metrics) ObserveTask(category string, d time.Duration) {
	if m != nil {
		m.taskDur.WithLabelValues(category).Observe(d.Seconds())
	}
}

// Finish stamps the run completion time.
func (m *Metrics) Finish(at time.Time) {
	if m != nil {
		m.lastRun.Set(float64(at.Unix()))
	}
}

// WriteTextfile writes all metrics to path for the node exporter textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
