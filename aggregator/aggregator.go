// Threat aggregator: fuses the output of up to four classifier layers into a
// single threat score, confidence, and recommended action for one message.
//
// The pipeline is staged for cost: the cheap pattern layer always runs and
// can short-circuit the rest (clean early exit, or a high-confidence severe
// hit); the intent and deep-content layers run conditionally; the
// conversational-context layer always runs before fusion so mitigating
// context (provocation, hostile room mood) is never skipped.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/signal"
)

// Confidence gates for the pattern-layer short-circuits.
var (
	CleanExitConfidence   = 0.8
	ScamExitConfidence    = 0.8
	ToxicExitConfidence   = 0.9
	ForcedBanScamConf     = 0.75
	ForcedBanPhishingConf = 0.7
)

type Aggregator struct {
	Logger *slog.Logger

	// The four classifier layers. Fast is required; the others may be nil,
	// in which case their stage is skipped (treated as absent signal).
	Fast    signal.Classifier
	Intent  signal.Classifier
	Content signal.Classifier
	Context signal.Classifier
}

// Aggregate runs the staged pipeline for one message. It never fails:
// individual layer errors degrade to "no signal from that layer", and an
// unexpected panic mid-pipeline yields the safe none/0/none fallback.
func (a *Aggregator) Aggregate(ctx context.Context, content string, profile *signal.Profile, rep *signal.ReputationContext) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error("aggregation exception, returning fallback", "err", r)
			fallbackCount.Inc()
			res = fallbackResult()
		}
	}()

	req := &signal.Request{Content: content, Profile: profile, Reputation: rep}

	fast := a.runLayer(ctx, a.Fast, signal.LayerPattern, req)
	if fast == nil {
		// no baseline signal at all; fail open
		fallbackCount.Inc()
		return fallbackResult()
	}

	// cost-saving early exit: confidently clean, skip everything else
	if fast.Classification == signal.CategoryClean && fast.Confidence >= CleanExitConfidence {
		earlyExitCount.WithLabelValues("clean").Inc()
		return &Result{
			Level:             LevelNone,
			Score:             0,
			Confidence:        fast.Confidence,
			RecommendedAction: action.None,
			ActionReason:      "clean content",
			Signals:           []*signal.Result{fast},
		}
	}

	// high-confidence severe hit: skip the deeper layers and act now
	if severe := a.severeShortCircuit(fast); severe != nil {
		earlyExitCount.WithLabelValues("severe").Inc()
		severe.Signals = []*signal.Result{fast}
		return severe
	}

	var intent *signal.Result
	switch fast.Classification {
	case signal.CategorySuspicious, signal.CategorySpam, signal.CategoryToxic:
		intent = a.runLayer(ctx, a.Intent, signal.LayerIntent, req)
	}

	var deep *signal.Result
	manipulative := intent != nil && intent.Intent != nil && intent.Intent.Manipulative
	if manipulative || fast.Classification == signal.CategoryScam {
		deep = a.runLayer(ctx, a.Content, signal.LayerContent, req)
	}

	// fairness signal, always collected regardless of prior stages
	convo := a.runLayer(ctx, a.Context, signal.LayerContext, req)

	return a.fuse(fast, intent, deep, convo, profile, rep)
}

// runLayer invokes one classifier layer, translating absence and failure
// into a nil result (fail-open per the error handling design).
func (a *Aggregator) runLayer(ctx context.Context, c signal.Classifier, layer string, req *signal.Request) *signal.Result {
	if c == nil {
		return nil
	}
	res, err := c.Analyze(ctx, req)
	if err != nil {
		a.Logger.Warn("classifier layer unavailable, continuing without it", "layer", layer, "err", err)
		layerErrorCount.WithLabelValues(layer).Inc()
		return nil
	}
	layerRunCount.WithLabelValues(layer).Inc()
	return res
}

func (a *Aggregator) severeShortCircuit(fast *signal.Result) *Result {
	switch fast.Classification {
	case signal.CategoryScam, signal.CategoryPhishing:
		if fast.Confidence < ScamExitConfidence {
			return nil
		}
		weight := signal.WeightScam
		if fast.Classification == signal.CategoryPhishing {
			weight = signal.WeightPhishing
		}
		return &Result{
			Level:             LevelCritical,
			Score:             clampScore(weight * fast.Confidence * 10),
			Confidence:        fast.Confidence,
			RecommendedAction: action.Ban,
			ActionReason:      fmt.Sprintf("confirmed %s content", fast.Classification),
			Threats: []Threat{
				{Type: fast.Classification, Severity: weight, Source: signal.LayerPattern, Confidence: fast.Confidence},
			},
		}
	case signal.CategoryToxic, signal.CategorySevereToxic:
		if fast.Confidence < ToxicExitConfidence {
			return nil
		}
		return &Result{
			Level:             LevelCritical,
			Score:             clampScore(signal.WeightPattern * fast.Confidence * 10),
			Confidence:        fast.Confidence,
			RecommendedAction: action.Timeout,
			ActionReason:      "confirmed severe toxicity",
			Threats: []Threat{
				{Type: fast.Classification, Severity: signal.WeightPattern, Source: signal.LayerPattern, Confidence: fast.Confidence},
			},
		}
	}
	return nil
}

func (a *Aggregator) fuse(fast, intent, deep, convo *signal.Result, profile *signal.Profile, rep *signal.ReputationContext) *Result {
	var threats []Threat

	if fast != nil && !fast.IsClean() {
		threats = append(threats, Threat{
			Type:       fast.Classification,
			Severity:   signal.WeightPattern,
			Source:     signal.LayerPattern,
			Confidence: fast.Confidence,
		})
	}
	if intent != nil && intent.Intent != nil && intent.Intent.Manipulative {
		threats = append(threats, Threat{
			Type:       signal.CategoryManipulation,
			Severity:   signal.WeightManipulation,
			Source:     signal.LayerIntent,
			Confidence: intent.Confidence,
		})
	}
	if deep != nil && !deep.IsClean() {
		// carry the layer's own classification; the scam/phishing weights
		// (and forced-ban eligibility) apply only to actual scam results
		sev := signal.WeightPattern
		switch deep.Classification {
		case signal.CategoryScam:
			sev = signal.WeightScam
		case signal.CategoryPhishing:
			sev = signal.WeightPhishing
		}
		threats = append(threats, Threat{
			Type:       deep.Classification,
			Severity:   sev,
			Source:     signal.LayerContent,
			Confidence: deep.Confidence,
		})
	}

	var base float64
	if len(threats) > 0 {
		var sum float64
		for _, t := range threats {
			sum += t.Severity * t.Confidence
		}
		base = sum / float64(len(threats)) * 10
	}

	mods := computeModifiers(profile, rep, convo)
	score := clampScore(base + mods.Total)
	level := levelForScore(score)

	act, reason := a.determineAction(level, threats)

	confidence := 0.5
	if len(threats) > 0 {
		var sum float64
		for _, t := range threats {
			sum += t.Confidence
		}
		confidence = sum / float64(len(threats))
	}

	var signals []*signal.Result
	for _, sig := range []*signal.Result{fast, intent, deep, convo} {
		if sig != nil {
			signals = append(signals, sig)
		}
	}

	resultLevelCount.WithLabelValues(level.String()).Inc()
	return &Result{
		Level:             level,
		Score:             score,
		Confidence:        confidence,
		RecommendedAction: act,
		ActionReason:      reason,
		Threats:           threats,
		Modifiers:         mods,
		Signals:           signals,
	}
}

// High-confidence scam or phishing forces a ban regardless of the computed
// level; otherwise the action is a direct function of threat level.
func (a *Aggregator) determineAction(level ThreatLevel, threats []Threat) (action.Type, string) {
	for _, t := range threats {
		if t.Type == signal.CategoryScam && t.Confidence >= ForcedBanScamConf {
			return action.Ban, "scam content detected"
		}
		if t.Type == signal.CategoryPhishing && t.Confidence >= ForcedBanPhishingConf {
			return action.Ban, "phishing content detected"
		}
	}
	switch level {
	case LevelCritical, LevelHigh:
		return action.Timeout, fmt.Sprintf("threat level %s", level)
	case LevelMedium:
		return action.Warn, "threat level medium"
	case LevelLow:
		return action.Delete, "threat level low"
	default:
		return action.None, ""
	}
}
