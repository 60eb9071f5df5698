package chatguard

import (
	"github.com/chatguard/chatguard/aggregator"
	"github.com/chatguard/chatguard/engine"
	"github.com/chatguard/chatguard/policy"
	"github.com/chatguard/chatguard/reputation"
)

type Engine = engine.Engine
type Message = engine.Message
type Decision = engine.Decision

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Aggregator = aggregator.Aggregator
type ThreatResult = aggregator.Result
type ThreatLevel = aggregator.ThreatLevel

type ReputationStore = reputation.Store
type ReputationRecord = reputation.Record
type CoreLedger = reputation.CoreLedger

type Policy = policy.Definition
type PolicyDecision = policy.Decision

var (
	LevelNone     = aggregator.LevelNone
	LevelLow      = aggregator.LevelLow
	LevelMedium   = aggregator.LevelMedium
	LevelHigh     = aggregator.LevelHigh
	LevelCritical = aggregator.LevelCritical

	ScopeGlobal = reputation.ScopeGlobal
)
