package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var layerRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_aggregator_layer_runs",
	Help: "Number of classifier layer invocations which produced a result",
}, []string{"layer"})

var layerErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_aggregator_layer_errors",
	Help: "Number of classifier layer invocations treated as absent (fail-open)",
}, []string{"layer"})

var earlyExitCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_aggregator_early_exits",
	Help: "Number of pipeline short-circuits, by kind (clean, severe)",
}, []string{"kind"})

var fallbackCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_aggregator_fallbacks",
	Help: "Number of messages which got the safe fallback result",
})

var resultLevelCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_aggregator_results",
	Help: "Number of fused results by threat level",
}, []string{"level"})
