package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deltaAppliedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_deltas_applied",
	Help: "Number of reputation score deltas applied",
})

var guardRejectCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_guard_rejects",
	Help: "Number of raise attempts rejected by the permanent-zero guard",
})

var permanentZeroCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_permanent_zeros",
	Help: "Number of records floored at permanent zero",
})

var cacheHitCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_cache_hits",
	Help: "Number of reputation reads served from cache",
})

var cacheMissCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_cache_misses",
	Help: "Number of reputation reads which fell through to the store",
})

var redemptionGrantCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_redemptions_granted",
	Help: "Number of redemption checks which granted points",
})

var redemptionVetoCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_redemptions_vetoed",
	Help: "Number of redemption checks blocked by the scam-history veto",
})

var corePenaltyCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "chatguard_reputation_core_penalties",
	Help: "Number of penalties recorded in the global core ledger",
})

var decayPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "chatguard_reputation_decay_pass_duration_sec",
	Help: "Duration of full decay passes over the store",
})
