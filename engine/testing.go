package engine

import (
	"context"
	"log/slog"

	"github.com/chatguard/chatguard/aggregator"
	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/policy"
	"github.com/chatguard/chatguard/reputation"
	"github.com/chatguard/chatguard/signal"
)

// EngineTestFixture wires a fully in-memory engine with mock classifiers and
// default policies seeded for scope "guild1". Tests reconfigure the mocks
// directly.
type TestFixture struct {
	Engine   *Engine
	Fast     *signal.MockClassifier
	Intent   *signal.MockClassifier
	Content  *signal.MockClassifier
	Context  *signal.MockClassifier
	Store    reputation.Store
	Ledger   *reputation.MemCoreLedger
	Events   *eventlog.MemEventLog
	Policies *policy.MemDefinitionStore
}

func EngineTestFixture() *TestFixture {
	logger := slog.Default()

	fast := &signal.MockClassifier{Result: signal.CleanResult(signal.LayerPattern, 0.9)}
	intent := &signal.MockClassifier{Result: &signal.Result{
		Layer: signal.LayerIntent, Classification: signal.CategoryClean, Confidence: 0.8,
		Intent: &signal.IntentDetails{Manipulative: false},
	}}
	content := &signal.MockClassifier{Result: signal.CleanResult(signal.LayerContent, 0.8)}
	convo := &signal.MockClassifier{Result: signal.CleanResult(signal.LayerContext, 0.8)}

	repStore := reputation.NewMemStore()
	ledger := reputation.NewMemCoreLedger()
	events := eventlog.NewMemEventLog()
	defStore := policy.NewMemDefinitionStore()
	if err := policy.SeedDefaults(context.Background(), defStore, "guild1"); err != nil {
		panic(err)
	}

	eng := &Engine{
		Logger: logger,
		Aggregator: &aggregator.Aggregator{
			Logger:  logger,
			Fast:    fast,
			Intent:  intent,
			Content: content,
			Context: convo,
		},
		Reputation: repStore,
		Ledger:     ledger,
		Policies:   policy.NewEngine(logger, defStore, events),
		Events:     events,
	}
	return &TestFixture{
		Engine:   eng,
		Fast:     fast,
		Intent:   intent,
		Content:  content,
		Context:  convo,
		Store:    repStore,
		Ledger:   ledger,
		Events:   events,
		Policies: defStore,
	}
}
