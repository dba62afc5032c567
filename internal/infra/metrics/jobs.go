package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(scheduledChangesTotal, workerTicksTotal) }

var (
	scheduledChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_price_changes_total",
			Help: "Scheduled price change transitions, labeled by result.",
		},
		[]string{"result"}, // 'applied', 'cancelled', 'failed'
	)

	workerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_ticks_total",
			Help: "Background worker ticks, labeled by worker and outcome.",
		},
		[]string{"worker", "outcome"}, // outcome: 'ran', 'skipped_locked', 'error'
	)
)

func IncScheduledChange(result string) {
	scheduledChangesTotal.WithLabelValues(norm(result)).Inc()
}

func IncWorkerTick(worker, outcome string) {
	workerTicksTotal.WithLabelValues(norm(worker), norm(outcome)).Inc()
}

func init() { register(eventsTotal) }

var eventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "events_consumed_total",
		Help: "Inbound NATS events, labeled by subject and result.",
	},
	[]string{"subject", "result"}, // result: 'ok', 'duplicate', 'invalid', 'error'
)

func IncEventConsumed(subject, result string) {
	eventsTotal.WithLabelValues(norm(subject), norm(result)).Inc()
}
