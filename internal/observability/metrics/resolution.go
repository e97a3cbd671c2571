package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

func (m *Metrics) initResolution(service string) {
	m.extractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "results_total",
			Help:      "Extraction results by combined confidence.",
		},
		[]string{"service", "confidence", "empty"},
	)
	m.cascadeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cascade",
			Name:      "strategy_total",
			Help:      "Search cascade strategy executions by status.",
		},
		[]string{"service", "strategy", "status"},
	)
	m.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "outcomes_total",
			Help:      "Resolver outcomes by kind.",
		},
		[]string{"service", "kind", "degraded"},
	)
	m.transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Confirmation session state transitions.",
		},
		[]string{"service", "from", "to"},
	)
	m.activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of open confirmation sessions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	m.providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Outbound provider requests by status.",
		},
		[]string{"service", "source", "status"},
	)
	m.retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retries scheduled by operation.",
		},
		[]string{"service", "operation"},
	)
	m.retryBackoff = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retry_backoff_seconds",
			Help:      "Backoff waited before a retry.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"service", "operation"},
	)
}

func (m *Metrics) RecordExtraction(confidence domain.Confidence, empty bool) {
	m.extractionsTotal.WithLabelValues(m.service, confidence.String(), strconv.FormatBool(empty)).Inc()
}

func (m *Metrics) RecordCascadeStrategy(strategy, status string) {
	if status == "" {
		status = "unknown"
	}
	m.cascadeTotal.WithLabelValues(m.service, strategy, status).Inc()
}

func (m *Metrics) RecordOutcome(kind domain.OutcomeKind, degraded bool) {
	m.outcomesTotal.WithLabelValues(m.service, string(kind), strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) RecordSessionTransition(from, to string) {
	if from == "" {
		from = "none"
	}
	if to == "" {
		to = "none"
	}
	m.transitionsTotal.WithLabelValues(m.service, from, to).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordProviderCall(source, status string) {
	m.providerCallsTotal.WithLabelValues(m.service, source, status).Inc()
}

// RecordRetry matches resilience.RetryObserver.
func (m *Metrics) RecordRetry(operation string, _ int, wait time.Duration, _ error) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
	m.retryBackoff.WithLabelValues(m.service, operation).Observe(wait.Seconds())
}
