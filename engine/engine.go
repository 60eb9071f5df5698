// Top-level moderation engine, wiring the threat aggregator, reputation
// stores, core violation ledger, and per-community policy engine into one
// message-processing pipeline. The engine decides; an external actuator
// enforces.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/aggregator"
	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/policy"
	"github.com/chatguard/chatguard/reputation"
	"github.com/chatguard/chatguard/signal"
)

// Reputation deltas applied per assessed threat level.
var levelDeltas = map[aggregator.ThreatLevel]float64{
	aggregator.LevelNone:     0,
	aggregator.LevelLow:      -2,
	aggregator.LevelMedium:   -5,
	aggregator.LevelHigh:     -10,
	aggregator.LevelCritical: -15,
}

// Core-ledger penalty points for severe assessments. Lesser levels never
// touch the global ledger.
var corePenalties = map[aggregator.ThreatLevel]float64{
	aggregator.LevelHigh:     5,
	aggregator.LevelCritical: 10,
}

// ProfileSource resolves behavioral profiles for message authors. May be nil,
// in which case classification runs without profile signal.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*signal.Profile, error)
}

// One inbound chat message to moderate.
type Message struct {
	Scope     string `json:"scope"`
	ChannelID string `json:"channelId,omitempty"`
	UserID    string `json:"userId"`
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text"`
}

// Decision is the engine's final verdict for one message.
type Decision struct {
	Action   action.Type   `json:"action"`
	Duration time.Duration `json:"duration,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	// "policy" when a community policy determined the action, "threat" when
	// the aggregator's recommendation stood, "none" otherwise.
	Source string `json:"source"`

	Threat     *aggregator.Result           `json:"threat,omitempty"`
	Policy     *policy.Decision             `json:"policy,omitempty"`
	Reputation *reputation.Record           `json:"reputation,omitempty"`
	Redemption *reputation.RedemptionResult `json:"redemption,omitempty"`
}

type Engine struct {
	Logger     *slog.Logger
	Aggregator *aggregator.Aggregator
	Reputation reputation.Store
	Ledger     reputation.CoreLedger
	Policies   *policy.Engine
	Events     eventlog.EventLog

	// optional
	Profiles ProfileSource
	Notifier Notifier
}

// ProcessMessage runs the full pipeline for one message: reputation lookup,
// threat aggregation, reputation adjustment, core-ledger penalty, redemption
// check, and policy evaluation. It always returns a decision: persistence
// failures degrade to neutral defaults and a panic anywhere in the pipeline
// yields a no-action decision.
func (eng *Engine) ProcessMessage(ctx context.Context, msg Message) (dec *Decision) {
	logger := eng.Logger.With("scope", msg.Scope, "user", msg.UserID)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message processing exception, taking no action", "err", r)
			processFailureCount.Inc()
			dec = &Decision{Action: action.None, Source: "none", Reason: "processing unavailable"}
		}
		processDuration.Observe(time.Since(start).Seconds())
		decisionCount.WithLabelValues(dec.Action.String()).Inc()
	}()
	processCount.Inc()

	rec := eng.lookupReputation(ctx, logger, msg)
	repCtx := &signal.ReputationContext{Score: rec.Score, Level: string(rec.Level())}

	var profile *signal.Profile
	if eng.Profiles != nil {
		var err error
		profile, err = eng.Profiles.GetProfile(ctx, msg.UserID)
		if err != nil {
			logger.Warn("profile lookup failed, classifying without profile", "err", err)
			profile = nil
		}
	}

	threat := eng.Aggregator.Aggregate(ctx, msg.Text, profile, repCtx)

	dec = &Decision{
		Action:     threat.RecommendedAction,
		Reason:     threat.ActionReason,
		Source:     "threat",
		Threat:     threat,
		Reputation: rec,
	}
	if threat.RecommendedAction == action.None {
		dec.Source = "none"
	}

	eng.adjustReputation(ctx, logger, msg, threat, dec)

	if pd := eng.checkPolicies(ctx, logger, msg, threat); pd != nil {
		// community policy is authoritative over the aggregator's generic
		// recommendation
		dec.Policy = pd
		dec.Action = pd.Action.Type
		dec.Duration = pd.Action.Duration
		dec.Reason = pd.Reason
		dec.Source = "policy"
	}

	if eng.Notifier != nil && dec.Action.Severity() >= action.Timeout.Severity() {
		if err := eng.Notifier.SendDecision(ctx, msg, dec); err != nil {
			logger.Warn("decision notification failed", "err", err)
			notifyErrorCount.Inc()
		}
	}

	logger.Info("message processed",
		"level", threat.Level.String(),
		"score", threat.Score,
		"action", dec.Action.String(),
		"source", dec.Source,
	)
	return dec
}

// lookupReputation fetches the scoped record, degrading to a synthetic
// neutral record when the store is unavailable.
func (eng *Engine) lookupReputation(ctx context.Context, logger *slog.Logger, msg Message) *reputation.Record {
	rec, err := eng.Reputation.GetScore(ctx, msg.UserID, msg.Scope)
	if err != nil {
		logger.Warn("reputation lookup failed, assuming neutral", "err", err)
		return &reputation.Record{
			UserID: msg.UserID,
			Scope:  msg.Scope,
			Score:  reputation.DefaultScore,
		}
	}
	return rec
}

// adjustReputation applies the level-mapped score delta, records core-ledger
// penalties for severe threats, and evaluates redemption on clean messages.
// All failures here are logged and swallowed: scoring must not block the
// decision.
func (eng *Engine) adjustReputation(ctx context.Context, logger *slog.Logger, msg Message, threat *aggregator.Result, dec *Decision) {
	if delta := levelDeltas[threat.Level]; delta != 0 {
		reason := "threat level " + threat.Level.String()
		updated, err := eng.Reputation.ApplyDelta(ctx, msg.UserID, msg.Scope, delta, reason)
		if err != nil {
			logger.Warn("reputation adjustment failed", "delta", delta, "err", err)
		} else {
			dec.Reputation = updated
		}
		if points, ok := corePenalties[threat.Level]; ok && eng.Ledger != nil {
			if err := eng.Ledger.AddPenalty(ctx, msg.UserID, points, reason); err != nil {
				logger.Warn("core ledger penalty failed", "points", points, "err", err)
			}
		}
		if threat.RecommendedAction == action.Ban && hasScamThreat(threat) {
			// confirmed scam disqualifies the scoped record for good
			if err := eng.Reputation.SetPermanentZero(ctx, msg.UserID, msg.Scope, "confirmed scam content"); err != nil {
				logger.Warn("permanent zero failed", "err", err)
			} else if rec, err := eng.Reputation.GetScore(ctx, msg.UserID, msg.Scope); err == nil {
				dec.Reputation = rec
			}
		}
		return
	}

	if threat.Level != aggregator.LevelNone || eng.Events == nil {
		return
	}
	red, err := reputation.CheckRedemption(ctx, eng.Reputation, eng.Events, msg.UserID, msg.Scope, threat.Signals)
	if err != nil {
		logger.Warn("redemption check failed", "err", err)
		return
	}
	dec.Redemption = red
	if !red.Granted {
		return
	}
	updated, err := eng.Reputation.ApplyDelta(ctx, msg.UserID, msg.Scope, red.Points, "redemption: "+red.Reason)
	if err != nil {
		logger.Warn("redemption grant failed", "points", red.Points, "err", err)
		return
	}
	dec.Reputation = updated
}

// checkPolicies runs the policy engine for the message's primary threat
// category. Policy failures degrade to the aggregator's recommendation.
func (eng *Engine) checkPolicies(ctx context.Context, logger *slog.Logger, msg Message, threat *aggregator.Result) *policy.Decision {
	if eng.Policies == nil {
		return nil
	}
	category := primaryCategory(threat)
	if category == "" {
		return nil
	}
	pd, err := eng.Policies.CheckPolicies(ctx, policy.Check{
		Scope:     msg.Scope,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Category:  category,
	})
	if err != nil {
		logger.Warn("policy evaluation failed, keeping threat recommendation", "err", err)
		return nil
	}
	return pd
}

func hasScamThreat(threat *aggregator.Result) bool {
	for _, t := range threat.Threats {
		if t.Type == signal.CategoryScam || t.Type == signal.CategoryPhishing {
			return true
		}
	}
	return false
}

// primaryCategory picks the dominant threat type: the contributing threat
// with the highest severity-weighted confidence.
func primaryCategory(threat *aggregator.Result) string {
	var best string
	var bestWeight float64
	for _, t := range threat.Threats {
		if w := t.Severity * t.Confidence; w > bestWeight {
			best = t.Type
			bestWeight = w
		}
	}
	return best
}
