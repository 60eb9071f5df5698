package policy

import (
	"context"
	"time"

	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/signal"
)

// DefaultDefinitions returns a sensible baseline policy set for a scope:
// graduated responses to toxicity and spam, and a zero-tolerance scam rule.
// Communities are expected to tune or replace these.
func DefaultDefinitions(scope string) []*Definition {
	return []*Definition{
		{
			ID:    "anti-toxicity",
			Scope: scope,
			Name:  "Anti-Toxicity",
			Condition: Condition{
				Category:    signal.CategoryToxic,
				Occurrences: 3,
				TimeWindow:  10 * time.Minute,
			},
			InitialAction: Action{
				Type:   action.Warn,
				Reason: "repeated toxic messages",
			},
			Escalations: []Escalation{
				{
					AfterOccurrences: 5,
					Action: Action{
						Type:     action.Timeout,
						Duration: time.Hour,
						Reason:   "persistent toxicity",
					},
				},
				{
					AfterOccurrences: 10,
					Action: Action{
						Type:   action.Ban,
						Reason: "sustained toxic behavior",
					},
				},
			},
			Enabled: true,
		},
		{
			ID:    "anti-spam",
			Scope: scope,
			Name:  "Anti-Spam",
			Condition: Condition{
				Category:    signal.CategorySpam,
				Occurrences: 2,
				TimeWindow:  5 * time.Minute,
			},
			InitialAction: Action{
				Type:   action.Delete,
				Reason: "spam messages",
			},
			Escalations: []Escalation{
				{
					AfterOccurrences: 5,
					Action: Action{
						Type:     action.Timeout,
						Duration: 30 * time.Minute,
						Reason:   "repeated spam",
					},
				},
			},
			Enabled: true,
		},
		{
			ID:    "anti-scam",
			Scope: scope,
			Name:  "Anti-Scam",
			Condition: Condition{
				Category:    signal.CategoryScam,
				Occurrences: 1,
				TimeWindow:  24 * time.Hour,
			},
			InitialAction: Action{
				Type:   action.Ban,
				Reason: "scam attempt",
			},
			Enabled: true,
		},
	}
}

// SeedDefaults installs the default policy set for a scope, skipping any
// policy ID that already exists there.
func SeedDefaults(ctx context.Context, store DefinitionStore, scope string) error {
	for _, def := range DefaultDefinitions(scope) {
		if _, err := store.Get(ctx, scope, def.ID); err == nil {
			continue
		}
		if err := store.Create(ctx, def); err != nil {
			return err
		}
	}
	return nil
}
