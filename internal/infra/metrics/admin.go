package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(authDecisionsTotal) }

var authDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_decisions_total",
		Help: "Authorization decisions on API routes.",
	},
	[]string{"role", "result"}, // result: 'allowed', 'denied', 'unauthenticated'
)

func IncAuthDecision(role, result string) {
	authDecisionsTotal.WithLabelValues(norm(role), norm(result)).Inc()
}
