package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var processCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_engine_messages_processed",
	Help: "Number of messages run through the moderation pipeline",
})

var processFailureCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_engine_process_failures",
	Help: "Number of messages where the pipeline panicked and took no action",
})

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_engine_decisions",
	Help: "Number of final decisions by action",
}, []string{"action"})

var notifyErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_engine_notify_errors",
	Help: "Number of failed decision notifications",
})

var processDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "chatguard_engine_process_duration_sec",
	Help:    "Time to process one message end to end",
	Buckets: prometheus.ExponentialBucketsRange(0.0001, 5, 12),
})
