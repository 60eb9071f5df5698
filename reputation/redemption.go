package reputation

import (
	"context"

	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/signal"
)

// Redemption is only evaluated below this score. Exclusive boundary: a user
// sitting at exactly 60 gets nothing.
var RedemptionCeiling = 60.0

// Point tiers for redeeming signals.
var (
	PointsLowToxicity       = 2.0
	PointsHelpful           = 3.0
	PointsCleanManipulation = 1.0
)

type RedemptionResult struct {
	Granted bool    `json:"granted"`
	Points  float64 `json:"points"`
	Reason  string  `json:"reason"`
}

// CheckRedemption evaluates whether current behavior earns back trust
// points for (user, scope). It only evaluates; applying the points is the
// caller's job, through the usual delta path.
//
// Hard veto: a user with any scam-category violation on record gets zero
// points regardless of how clean their current behavior looks.
func CheckRedemption(ctx context.Context, store Store, events eventlog.EventLog, user, scope string, signals []*signal.Result) (*RedemptionResult, error) {
	rec, err := store.GetScore(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	if rec.Score >= RedemptionCeiling {
		return &RedemptionResult{Reason: "score above redemption ceiling"}, nil
	}
	if rec.PermanentZero {
		return &RedemptionResult{Reason: "permanent zero"}, nil
	}

	scammer, err := events.HasCategory(ctx, user, signal.CategoryScam)
	if err != nil {
		return nil, err
	}
	if scammer {
		redemptionVetoCount.Inc()
		return &RedemptionResult{Reason: "blocked: prior scam violation"}, nil
	}

	var points float64
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		if sig.Classification == signal.CategoryHelpful {
			points += PointsHelpful
			continue
		}
		switch sig.Layer {
		case signal.LayerPattern:
			if sig.Classification == signal.CategoryClean {
				points += PointsLowToxicity
			}
		case signal.LayerIntent:
			if sig.Intent != nil && !sig.Intent.Manipulative {
				points += PointsCleanManipulation
			}
		}
	}
	if points == 0 {
		return &RedemptionResult{Reason: "no redeeming signals"}, nil
	}
	redemptionGrantCount.Inc()
	return &RedemptionResult{
		Granted: true,
		Points:  points,
		Reason:  "positive behavior while below redemption ceiling",
	}, nil
}
