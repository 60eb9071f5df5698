// Signal provider contract: typed risk judgments produced by external
// content classifiers, one per "layer".
//
// The decision core never inspects message text itself; it consumes the
// classification/confidence pairs emitted by the four classifier layers
// (pattern, intent, content, context) through the Classifier interface
// defined here. Low-confidence or ambiguous upstream responses are carried
// through as the "uncertain" category rather than being coerced into a
// stronger judgment.
package signal

import (
	"context"
)

// Classifier layer identifiers.
const (
	LayerPattern = "pattern"
	LayerIntent  = "intent"
	LayerContent = "content"
	LayerContext = "context"
)

// Classification categories. These are open-ended strings on the wire; the
// constants below are the ones the decision core reacts to.
const (
	CategoryClean        = "clean"
	CategoryUncertain    = "uncertain"
	CategorySuspicious   = "suspicious"
	CategorySpam         = "spam"
	CategoryToxic        = "toxic"
	CategorySevereToxic  = "severe-toxic"
	CategoryScam         = "scam"
	CategoryPhishing     = "phishing"
	CategoryManipulation = "manipulation"
	CategoryHelpful      = "helpful"
)

// Per-layer severity weights on the canonical 0-10 scale, used during fusion.
const (
	WeightPattern      = 8.0
	WeightManipulation = 7.0
	WeightScam         = 10.0
	WeightPhishing     = 9.0
)

// Behavioral risk indicators for a user profile, each in [0,1]. Optional
// input to the intent and content layers, and to aggregation modifiers.
type Profile struct {
	UserID       string  `json:"userId"`
	Deception    float64 `json:"deception"`
	Manipulation float64 `json:"manipulation"`
	Predatory    float64 `json:"predatory"`
	Impulsivity  float64 `json:"impulsivity"`
}

// Reputation summary passed down to classifiers for context. Kept as a
// plain value type so the signal contract does not depend on the store.
type ReputationContext struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
}

// One message to classify, plus optional context.
type Request struct {
	Content    string             `json:"content"`
	Profile    *Profile           `json:"profile,omitempty"`
	Reputation *ReputationContext `json:"reputation,omitempty"`
}

// Structured sub-result from the intent/sentiment layer.
type IntentDetails struct {
	Manipulative bool   `json:"manipulative"`
	Sentiment    string `json:"sentiment,omitempty"`
}

// Structured sub-result from the deep-content layer.
type ContentDetails struct {
	ScamType string `json:"scamType,omitempty"`
}

// Structured sub-result from the conversational-context layer. Provocation
// severity is on the canonical 0-10 scale.
type ContextDetails struct {
	ProvocationDetected bool    `json:"provocationDetected"`
	ProvocationSeverity float64 `json:"provocationSeverity"`
	Escalating          bool    `json:"escalating"`
	Mood                string  `json:"mood,omitempty"`
}

// Immutable output of a single classifier layer for one message.
type Result struct {
	Layer          string          `json:"layer"`
	Classification string          `json:"classification"`
	Confidence     float64         `json:"confidence"`
	Intent         *IntentDetails  `json:"intent,omitempty"`
	Content        *ContentDetails `json:"content,omitempty"`
	Context        *ContextDetails `json:"context,omitempty"`
}

// Reports whether the layer saw nothing actionable.
func (r *Result) IsClean() bool {
	return r.Classification == CategoryClean || r.Classification == CategoryUncertain
}

// A single classifier layer. Implementations may be backed by anything that
// can produce a typed judgment for a message; the core ships an HTTP-backed
// implementation (via the resilience gateway) and a mock for tests.
//
// Analyze returns an error when the layer could not produce a judgment at
// all (timeout, circuit open, backend failure). Callers are expected to
// treat errors as "no additional signal" (fail-open).
type Classifier interface {
	Analyze(ctx context.Context, req *Request) (*Result, error)
}
