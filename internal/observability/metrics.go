// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sync metrics
	SyncCyclesTotal    *prometheus.CounterVec
	SyncCycleDuration  prometheus.Histogram
	TransactionsFetched prometheus.Counter
	EventsDecoded      *prometheus.CounterVec

	// Reconcile metrics
	ReconcileOutcomes *prometheus.CounterVec
	CurveStateRetries prometheus.Counter

	// Webhook metrics
	WebhookDeliveries *prometheus.CounterVec

	// API metrics
	ChainCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync prometheus.Gauge
	GraduatedTokens    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stackspad"
	}

	return &Metrics{
		// Sync metrics
		SyncCyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Total number of poll sync cycles by status",
		}, []string{"status"}),
		SyncCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Poll sync cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "transactions_fetched_total",
			Help:      "Total number of chain transactions fetched",
		}),
		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_decoded_total",
			Help:      "Total number of domain events decoded by type",
		}, []string{"event_type"}),

		// Reconcile metrics
		ReconcileOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "outcomes_total",
			Help:      "Total number of reconciled events by type and outcome",
		}, []string{"event_type", "outcome"}),
		CurveStateRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "curve_state_retries_total",
			Help:      "Total number of curve state writes retried after a conflict",
		}),

		// Webhook metrics
		WebhookDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total number of webhook deliveries by status",
		}, []string{"status"}),

		// API metrics
		ChainCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "call_latency_seconds",
			Help:      "Stacks API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"store", "operation"}),

		// Health metrics
		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of last successful sync cycle",
		}),
		GraduatedTokens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "graduated_tokens_total",
			Help:      "Total number of tokens observed graduating",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSyncCycle records the outcome and duration of one poll cycle.
func RecordSyncCycle(status string, d time.Duration) {
	DefaultMetrics.SyncCyclesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.SyncCycleDuration.Observe(d.Seconds())
	if status == "ok" {
		DefaultMetrics.LastSuccessfulSync.SetToCurrentTime()
	}
}

// RecordTransactionsFetched adds to the fetched transaction counter.
func RecordTransactionsFetched(n int) {
	DefaultMetrics.TransactionsFetched.Add(float64(n))
}

// RecordEventDecoded increments the decoded event counter for a type.
func RecordEventDecoded(eventType string) {
	DefaultMetrics.EventsDecoded.WithLabelValues(eventType).Inc()
}

// RecordReconcileOutcome increments the reconcile outcome counter.
func RecordReconcileOutcome(eventType, outcome string) {
	DefaultMetrics.ReconcileOutcomes.WithLabelValues(eventType, outcome).Inc()
}

// RecordCurveStateRetry increments the conflict retry counter.
func RecordCurveStateRetry() {
	DefaultMetrics.CurveStateRetries.Inc()
}

// RecordWebhookDelivery increments the webhook delivery counter.
func RecordWebhookDelivery(status string) {
	DefaultMetrics.WebhookDeliveries.WithLabelValues(status).Inc()
}

// RecordGraduation increments the graduated tokens counter.
func RecordGraduation() {
	DefaultMetrics.GraduatedTokens.Inc()
}
