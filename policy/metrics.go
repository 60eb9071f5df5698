package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var policiesTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_policy_triggered",
	Help: "Number of times a policy condition was met",
}, []string{"policy"})

var violationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chatguard_policy_violations_recorded",
	Help: "Number of violation events written to the event log",
}, []string{"category"})
