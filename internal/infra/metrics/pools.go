package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsPurchasedTotal,
		poolOpsTotal,
		capacityRejectionsTotal,
		allocationOpsTotal,
		requestTransitionsTotal,
	)
}

var (
	sessionsPurchasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_purchased_total",
			Help: "Sessions added to institution pools by confirmed purchases.",
		},
	)

	poolOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_pool_ops_total",
			Help: "Pool ledger operations, labeled by op and result.",
		},
		[]string{"op", "result"}, // op: 'purchase', 'reserve', 'release'
	)

	capacityRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_capacity_rejections_total",
			Help: "Operations rejected for insufficient pool or allocation capacity.",
		},
		[]string{"op"},
	)

	allocationOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_allocation_ops_total",
			Help: "Allocation ledger operations, labeled by op.",
		},
		[]string{"op"}, // 'create', 'augment', 'resize', 'delete', 'consume'
	)

	requestTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_request_transitions_total",
			Help: "Session request status changes, labeled by new status.",
		},
		[]string{"status"},
	)
)

func AddSessionsPurchased(count int64) {
	sessionsPurchasedTotal.Add(float64(count))
}

func IncPoolOp(op, result string) {
	poolOpsTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func IncCapacityRejected(op string) {
	capacityRejectionsTotal.WithLabelValues(norm(op)).Inc()
}

func IncAllocationOp(op string) {
	allocationOpsTotal.WithLabelValues(norm(op)).Inc()
}

func IncRequestTransition(status string) {
	requestTransitionsTotal.WithLabelValues(norm(status)).Inc()
}
