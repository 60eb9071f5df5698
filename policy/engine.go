package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/chatguard/chatguard/eventlog"
)

// Check is one classified message being evaluated against a scope's policies.
type Check struct {
	Scope     string
	ChannelID string
	UserID    string
	Category  string
	Time      time.Time
}

// Engine evaluates checks against the scope's enabled policy definitions and
// resolves the escalation ladder of whichever policies trigger.
type Engine struct {
	Logger *slog.Logger
	Store  DefinitionStore
	Events eventlog.EventLog

	// serializes count-then-record per (scope, user) so concurrent checks for
	// the same user cannot both read a stale count
	locks *xsync.MapOf[string, *sync.Mutex]

	// can be clamped for testing
	Now func() time.Time
}

func NewEngine(logger *slog.Logger, store DefinitionStore, events eventlog.EventLog) *Engine {
	if logger == nil {
		logger = slog.Default().With("system", "policy")
	}
	return &Engine{
		Logger: logger,
		Store:  store,
		Events: events,
		locks:  xsync.NewMapOf[string, *sync.Mutex](),
		Now:    time.Now,
	}
}

func (e *Engine) lockFor(scope, user string) *sync.Mutex {
	mu, _ := e.locks.LoadOrCompute(scope+"/"+user, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return mu
}

// CheckPolicies evaluates the check against every enabled policy in its scope
// whose category and channel filter match. Occurrence counts include the
// current check. When any policy matches the category, exactly one violation
// event is recorded so the occurrence stream keeps accumulating below the
// trigger threshold. The return is the most severe resolved action among
// triggered policies, or nil when none reached its threshold.
func (e *Engine) CheckPolicies(ctx context.Context, check Check) (*Decision, error) {
	defs, err := e.Store.List(ctx, check.Scope)
	if err != nil {
		return nil, fmt.Errorf("listing policies for scope %s: %w", check.Scope, err)
	}

	var candidates []*Definition
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		if def.Condition.Category != check.Category {
			continue
		}
		if !def.Condition.matchesChannel(check.ChannelID) {
			continue
		}
		candidates = append(candidates, def)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := check.Time
	if now.IsZero() {
		now = e.Now()
	}

	mu := e.lockFor(check.Scope, check.UserID)
	mu.Lock()
	defer mu.Unlock()

	var best *Decision
	var triggering *Definition
	for _, def := range candidates {
		since := now.Add(-def.Condition.TimeWindow)
		prior, err := e.Events.CountSince(ctx, check.Scope, check.UserID, check.Category, since)
		if err != nil {
			return nil, fmt.Errorf("counting violations: %w", err)
		}
		count := prior + 1
		if count < def.Condition.Occurrences {
			continue
		}
		act := def.ResolveAction(count)
		policiesTriggered.WithLabelValues(def.ID).Inc()
		if best == nil || act.Type.Severity() > best.Action.Type.Severity() {
			best = &Decision{
				Action:         act,
				Reason:         act.Reason,
				ViolationCount: count,
				Policy:         def,
			}
			triggering = def
		}
	}
	// one event per check regardless of how many policies fired; overlapping
	// policies share the category occurrence stream
	recorded := triggering
	if recorded == nil {
		recorded = candidates[0]
	}
	ev := eventlog.ViolationEvent{
		UserID:    check.UserID,
		PolicyID:  recorded.ID,
		Category:  check.Category,
		Scope:     check.Scope,
		ChannelID: check.ChannelID,
		Time:      now,
	}
	if err := e.Events.Add(ctx, ev); err != nil {
		return nil, fmt.Errorf("recording violation: %w", err)
	}
	violationsRecorded.WithLabelValues(check.Category).Inc()

	if best == nil {
		return nil, nil
	}

	e.Logger.Info("policy triggered",
		"scope", check.Scope,
		"user", check.UserID,
		"policy", triggering.ID,
		"category", check.Category,
		"count", best.ViolationCount,
		"action", best.Action.Type.String(),
	)
	return best, nil
}
