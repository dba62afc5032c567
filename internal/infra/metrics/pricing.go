package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(priceResolutionsTotal, contentionRetriesTotal) }

var (
	priceResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_resolutions_total",
			Help: "Effective price lookups, labeled by the tier that won.",
		},
		[]string{"source"}, // 'global', 'override'
	)

	contentionRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tx_contention_retries_total",
			Help: "Transactions retried after a concurrent update conflict.",
		},
		[]string{"op"},
	)
)

func IncPriceResolution(source string) {
	priceResolutionsTotal.WithLabelValues(norm(source)).Inc()
}

func IncContentionRetry(op string) {
	contentionRetriesTotal.WithLabelValues(norm(op)).Inc()
}
