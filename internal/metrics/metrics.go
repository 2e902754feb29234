// ABOUTME: Prometheus collectors for sync runs, vendor requests, and the circuit breaker.
// ABOUTME: Registered on the default registry and served by the HTTP /metrics route.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync orchestrator
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_sync_runs_total",
			Help: "Total full sync runs by result",
		},
		[]string{"result"}, // "success", "partial", "failed"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ringhealth_sync_duration_seconds",
			Help:    "Duration of full sync runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_records_synced_total",
			Help: "Total records written per stream",
		},
		[]string{"stream"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_records_skipped_total",
			Help: "Total malformed records skipped per stream",
		},
		[]string{"stream"},
	)

	StreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_stream_failures_total",
			Help: "Total stream failures by reason",
		},
		[]string{"stream", "reason"}, // "upstream", "storage", "auth", "checkpoint"
	)

	// Vendor API client
	OuraRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_oura_requests_total",
			Help: "Total vendor API requests by endpoint and status code",
		},
		[]string{"endpoint", "code"},
	)

	OuraRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ringhealth_oura_request_duration_seconds",
			Help:    "Duration of vendor API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ringhealth_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Scheduler
	ScheduledSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_scheduled_syncs_total",
			Help: "Total scheduled sync ticks by outcome",
		},
		[]string{"outcome"}, // "ran", "busy", "error"
	)

	SupervisorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_supervisor_events_total",
			Help: "Total supervisor events by type",
		},
		[]string{"event"},
	)

	// Digests
	DigestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ringhealth_digest_requests_total",
			Help: "Total digest requests by type and cache outcome",
		},
		[]string{"type", "cache"}, // cache: "hit", "miss", "bypass"
	)
)

// RecordOuraRequest tracks one vendor API call.
func RecordOuraRequest(endpoint string, code int, duration time.Duration) {
	OuraRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	OuraRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSyncRun tracks a finished full sync.
func RecordSyncRun(result string, duration time.Duration) {
	SyncRuns.WithLabelValues(result).Inc()
	SyncDuration.Observe(duration.Seconds())
}
