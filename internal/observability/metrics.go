package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	submissionsGradedTotal  *prometheus.CounterVec
	ledgerIncrementsTotal   *prometheus.CounterVec
	conflictRetriesTotal    *prometheus.CounterVec
	conflictsExhaustedTotal *prometheus.CounterVec
	battlesLaunchedTotal    *prometheus.CounterVec
	battleAssignmentsTotal  prometheus.Counter
	broadcastEventsTotal    *prometheus.CounterVec
	broadcastRelayErrors    *prometheus.CounterVec
	battleSubscribersActive prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		submissionsGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submissions_graded_total",
			Help: "Submissions graded, by outcome.",
		}, []string{"outcome"})

		ledgerIncrementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_increments_total",
			Help: "Committed score increments, by scoring dimension.",
		}, []string{"dimension"})

		conflictRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "write_conflict_retries_total",
			Help: "Retries caused by transient write conflicts.",
		}, []string{"operation"})

		conflictsExhaustedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "write_conflicts_exhausted_total",
			Help: "Operations that gave up after exhausting their conflict retry budget.",
		}, []string{"operation"})

		battlesLaunchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battles_launched_total",
			Help: "Battle launch attempts, by result.",
		}, []string{"result"})

		battleAssignmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battle_assignments_created_total",
			Help: "Assignments created by battle launches.",
		})

		broadcastEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Battle events offered to subscribers, by delivery result.",
		}, []string{"result"})

		broadcastRelayErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_relay_errors_total",
			Help: "Failures forwarding battle events to other nodes.",
		}, []string{"transport"})

		battleSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battle_subscribers_active",
			Help: "Currently connected battle stream subscribers.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			submissionsGradedTotal, ledgerIncrementsTotal,
			conflictRetriesTotal, conflictsExhaustedTotal,
			battlesLaunchedTotal, battleAssignmentsTotal,
			broadcastEventsTotal, broadcastRelayErrors, battleSubscribersActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SubmissionsGradedTotal counts graded submissions by outcome.
func SubmissionsGradedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsGradedTotal
}

// LedgerIncrementsTotal counts committed score increments.
func LedgerIncrementsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerIncrementsTotal
}

// ConflictRetriesTotal counts retried write conflicts.
func ConflictRetriesTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return conflictRetriesTotal
}

// ConflictsExhaustedTotal counts operations that ran out of retries.
func ConflictsExhaustedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return conflictsExhaustedTotal
}

// BattlesLaunchedTotal counts launch attempts by result.
func BattlesLaunchedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return battlesLaunchedTotal
}

// BattleAssignmentsTotal counts assignments created by launches.
func BattleAssignmentsTotal() prometheus.Counter {
	RegisterMetrics()
	return battleAssignmentsTotal
}

// BroadcastEventsTotal counts hub deliveries by result.
func BroadcastEventsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return broadcastEventsTotal
}

// BroadcastRelayErrors counts cross-node forwarding failures.
func BroadcastRelayErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return broadcastRelayErrors
}

// BattleSubscribersActive tracks live battle stream subscribers.
func BattleSubscribersActive() prometheus.Gauge {
	RegisterMetrics()
	return battleSubscribersActive
}
