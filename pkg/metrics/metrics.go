package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "networth", Name: "token_refreshes_total", Help: "Number of refresh-token exchanges by outcome."},
		[]string{"outcome"},
	)
	GuardDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "networth", Name: "route_guard_decisions_total", Help: "Number of route guard decisions by result."},
		[]string{"result"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "networth", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "networth", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(TokenRefreshes)
	reg.MustRegister(GuardDecisions)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
