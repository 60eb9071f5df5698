// Append-only violation event log, used purely for windowed counting and
// history lookups by the policy engine and the redemption check.
//
// Includes an interface and implementations using redis and in-process
// memory. Events are never mutated or individually deleted; old events age
// out of storage once they can no longer fall inside any counting window.
package eventlog

import (
	"context"
	"time"
)

// Retention horizon for stored events. No policy window nor the core
// violation ledger looks back further than this.
var MaxAge = 90 * 24 * time.Hour

// One recorded policy violation.
type ViolationEvent struct {
	UserID    string    `json:"userId"`
	PolicyID  string    `json:"policyId"`
	Category  string    `json:"category"`
	Scope     string    `json:"scope"`
	ChannelID string    `json:"channelId,omitempty"`
	Time      time.Time `json:"time"`
}

type EventLog interface {
	Add(ctx context.Context, ev ViolationEvent) error
	// CountSince returns the number of events for (scope, user, category)
	// with Time >= since. The window edge is inclusive. Counting is keyed by
	// category, not policy: overlapping policies on the same category share
	// one occurrence stream, so an event is recorded once per check.
	CountSince(ctx context.Context, scope, user, category string, since time.Time) (int, error)
	// HasCategory reports whether the user has any recorded violation of the
	// given category, in any scope. Used for the redemption hard veto.
	HasCategory(ctx context.Context, user, category string) (bool, error)
}

func eventKey(scope, user, category string) string {
	return scope + "/" + user + "/" + category
}
