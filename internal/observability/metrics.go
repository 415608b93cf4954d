package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DocumentOperations counts document store operations by collection, operation and result.
	DocumentOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshare_document_operations_total",
		Help: "Total number of document store operations",
	}, []string{"collection", "operation", "result"})

	// CacheLookups counts document cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshare_cache_lookups_total",
		Help: "Total number of document cache lookups",
	}, []string{"result"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshare_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActiveWebSockets is the number of open websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelshare_websocket_connections",
		Help: "Number of active websocket connections",
	})

	// OptimisticOutcomes counts how optimistic client mutations settled.
	OptimisticOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshare_optimistic_outcomes_total",
		Help: "Optimistic mutations by entity and outcome (confirmed, rolled_back, superseded)",
	}, []string{"entity", "outcome"})

	// FollowEdgeRepairs counts follow edges corrected by the repair pass.
	FollowEdgeRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelshare_follow_edge_repairs_total",
		Help: "Follow edges corrected by the repair pass, by direction",
	}, []string{"direction"})
)

// Optimistic mutation outcomes.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeRolledBack = "rolled_back"
	OutcomeSuperseded = "superseded"
)

// RecordOutcome increments the optimistic outcome counter.
func RecordOutcome(entity, outcome string) {
	OptimisticOutcomes.WithLabelValues(entity, outcome).Inc()
}
