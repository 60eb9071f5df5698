package aggregator

import (
	"github.com/chatguard/chatguard/signal"
)

// Profile risk indicator weights. Tuned so a maxed-out profile contributes
// +55 before clamping.
var (
	weightDeception    = 15.0
	weightManipulation = 12.0
	weightPredatory    = 20.0
	weightImpulsivity  = 8.0
)

// Maximum leniency from detected provocation.
var maxProvocationLeniency = 15.0

// Established good standing earns leniency; established bad standing earns
// extra scrutiny.
func trustModifier(rep *signal.ReputationContext) float64 {
	if rep == nil {
		return 0
	}
	switch {
	case rep.Score >= 80:
		return -10
	case rep.Score >= 60:
		return -5
	case rep.Score <= 20:
		return 15
	case rep.Score <= 40:
		return 10
	default:
		return 0
	}
}

func profileRiskModifier(profile *signal.Profile) float64 {
	if profile == nil {
		return 0
	}
	return profile.Deception*weightDeception +
		profile.Manipulation*weightManipulation +
		profile.Predatory*weightPredatory +
		profile.Impulsivity*weightImpulsivity
}

// Provoked users get leniency proportional to the provocation severity
// (0-10 scale), capped at maxProvocationLeniency.
func provocationModifier(ctxResult *signal.Result) float64 {
	if ctxResult == nil || ctxResult.Context == nil || !ctxResult.Context.ProvocationDetected {
		return 0
	}
	leniency := ctxResult.Context.ProvocationSeverity * maxProvocationLeniency / 10
	if leniency > maxProvocationLeniency {
		leniency = maxProvocationLeniency
	}
	return -leniency
}

func contextModifier(ctxResult *signal.Result) float64 {
	if ctxResult == nil || ctxResult.Context == nil {
		return 0
	}
	mod := 0.0
	if ctxResult.Context.Escalating {
		mod += 5
	}
	if ctxResult.Context.Mood == "hostile" {
		mod += 5
	}
	return mod
}

func computeModifiers(profile *signal.Profile, rep *signal.ReputationContext, ctxResult *signal.Result) Modifiers {
	m := Modifiers{
		TrustScore:  trustModifier(rep),
		ProfileRisk: profileRiskModifier(profile),
		Provocation: provocationModifier(ctxResult),
		Context:     contextModifier(ctxResult),
	}
	m.Total = m.TrustScore + m.ProfileRisk + m.Provocation + m.Context
	return m
}
