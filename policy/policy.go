// Per-community policy definitions and escalation ladders.
//
// A policy names a violation category, how many occurrences within a rolling
// time window it takes to trigger, the initial action, and an ordered ladder
// of escalations for repeat offenders. Policies are data, managed via CRUD
// on a DefinitionStore; evaluation itself is stateless, with all state in
// the violation event log.
package policy

import (
	"context"
	"time"

	"github.com/chatguard/chatguard/action"
)

// When a policy triggers.
type Condition struct {
	Category    string        `json:"category"`
	Occurrences int           `json:"occurrences"`
	TimeWindow  time.Duration `json:"timeWindowMs"`
	// Optional channel filter; empty means the policy applies everywhere in
	// the scope.
	Channels []string `json:"channels,omitempty"`
}

func (c *Condition) matchesChannel(channel string) bool {
	if len(c.Channels) == 0 {
		return true
	}
	for _, ch := range c.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

type Action struct {
	Type     action.Type   `json:"type"`
	Duration time.Duration `json:"duration,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

type Escalation struct {
	AfterOccurrences int    `json:"afterOccurrences"`
	Action           Action `json:"action"`
}

type Definition struct {
	ID            string       `json:"id"`
	Scope         string       `json:"scope"`
	Name          string       `json:"name"`
	Condition     Condition    `json:"condition"`
	InitialAction Action       `json:"initialAction"`
	Escalations   []Escalation `json:"escalations,omitempty"`
	Enabled       bool         `json:"enabled"`
}

// ResolveAction walks the escalation ladder for the given occurrence count:
// the highest AfterOccurrences threshold that is <= count wins; below every
// threshold the initial action applies.
func (d *Definition) ResolveAction(count int) Action {
	best := d.InitialAction
	bestThreshold := -1
	for _, esc := range d.Escalations {
		if esc.AfterOccurrences <= count && esc.AfterOccurrences > bestThreshold {
			best = esc.Action
			bestThreshold = esc.AfterOccurrences
		}
	}
	return best
}

// Decision is the authoritative output handed to the external actuator.
type Decision struct {
	Action         Action      `json:"action"`
	Reason         string      `json:"reason"`
	ViolationCount int         `json:"violationCount"`
	Policy         *Definition `json:"policy,omitempty"`
}

type DefinitionStore interface {
	Create(ctx context.Context, def *Definition) error
	Update(ctx context.Context, def *Definition) error
	Delete(ctx context.Context, scope, id string) error
	Get(ctx context.Context, scope, id string) (*Definition, error)
	List(ctx context.Context, scope string) ([]*Definition, error)
}
