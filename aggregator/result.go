package aggregator

import (
	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/signal"
)

// Overall threat level for one message. Ordered: none < low < medium < high
// < critical.
type ThreatLevel int

const (
	LevelNone ThreatLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l ThreatLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Score thresholds mapping threat score to level.
var (
	ThresholdLow      = 20.0
	ThresholdMedium   = 40.0
	ThresholdHigh     = 60.0
	ThresholdCritical = 80.0
)

func levelForScore(score float64) ThreatLevel {
	switch {
	case score >= ThresholdCritical:
		return LevelCritical
	case score >= ThresholdHigh:
		return LevelHigh
	case score >= ThresholdMedium:
		return LevelMedium
	case score >= ThresholdLow:
		return LevelLow
	default:
		return LevelNone
	}
}

// One contributing threat entry from a classifier layer. Severity is on the
// canonical 0-10 scale.
type Threat struct {
	Type       string  `json:"type"`
	Severity   float64 `json:"severity"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Additive score modifiers, each computed independently by its own formula.
type Modifiers struct {
	TrustScore  float64 `json:"trustScore"`
	ProfileRisk float64 `json:"profileRisk"`
	Provocation float64 `json:"provocation"`
	Context     float64 `json:"context"`
	Total       float64 `json:"total"`
}

// Fused judgment for one analyzed message. Created once, never mutated.
type Result struct {
	Level             ThreatLevel `json:"threatLevel"`
	Score             float64     `json:"threatScore"`
	Confidence        float64     `json:"confidence"`
	RecommendedAction action.Type `json:"recommendedAction"`
	ActionReason      string      `json:"actionReason"`
	Threats           []Threat    `json:"threats,omitempty"`
	Modifiers         Modifiers   `json:"modifiers"`

	// Raw per-layer outputs that contributed to this result, for downstream
	// consumers (redemption evaluation). Not part of the wire form.
	Signals []*signal.Result `json:"-"`
}

// The safe fallback used when the pipeline fails mid-flight. Fail-open:
// a transient classifier failure must not cascade into false positives.
func fallbackResult() *Result {
	return &Result{
		Level:             LevelNone,
		Score:             0,
		Confidence:        0,
		RecommendedAction: action.None,
		ActionReason:      "analysis unavailable",
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
