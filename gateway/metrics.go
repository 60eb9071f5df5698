package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var invokeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_gateway_invokes",
	Help: "Number of successful backend invocations",
}, []string{"layer"})

var invokeErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_gateway_invoke_errors",
	Help: "Number of failed backend invocations",
}, []string{"layer"})

var invokeRejectedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_gateway_invoke_rejected",
	Help: "Number of invocations rejected locally before any network attempt",
}, []string{"reason"})

var invokeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "chatguard_gateway_invoke_duration_sec",
	Help: "Duration of backend invocation attempts",
})

var breakerTripCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_gateway_breaker_trips",
	Help: "Number of times the circuit breaker has opened",
})
