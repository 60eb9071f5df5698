// Persistent per-user trust scores: decaying, boundedly-redeemable, and
// occasionally permanent.
//
// Records are keyed by (user, scope), where scope is a community identifier
// or ScopeGlobal for the cross-community aggregate. All mutation goes
// through the store's ApplyDelta path, which is serialized per key, appends
// to an audit history, and notifies subscribers. Direct overwrites are not
// part of the contract; moderator overrides are expressed as deltas with an
// explicit reason tag.
package reputation

import (
	"context"
	"fmt"
	"time"
)

// Score assigned to a user on first observation.
var DefaultScore = 50.0

// Scope value for the cross-community aggregate record.
var ScopeGlobal = "global"

// Trust level bands derived from score via fixed thresholds.
type Level string

const (
	LevelUntrusted Level = "untrusted"
	LevelLow       Level = "low"
	LevelNeutral   Level = "neutral"
	LevelGood      Level = "good"
	LevelTrusted   Level = "trusted"
)

func LevelForScore(score float64) Level {
	switch {
	case score >= 80:
		return LevelTrusted
	case score >= 60:
		return LevelGood
	case score >= 40:
		return LevelNeutral
	case score >= 20:
		return LevelLow
	default:
		return LevelUntrusted
	}
}

// One signed score adjustment with its reason, for the audit trail.
type Delta struct {
	Amount float64   `json:"amount"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

type Record struct {
	UserID        string    `json:"userId"`
	Scope         string    `json:"scope"`
	Score         float64   `json:"score"`
	PermanentZero bool      `json:"permanentZero"`
	History       []Delta   `json:"history,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (r *Record) Level() Level {
	return LevelForScore(r.Score)
}

// Called after a record changes. Subscribers must not block; they run on the
// updating goroutine.
type ChangeFunc func(rec *Record, delta float64, reason string)

type Store interface {
	// GetScore returns the record for (user, scope), materializing a default
	// record (score 50) on first observation.
	GetScore(ctx context.Context, user, scope string) (*Record, error)
	// ApplyDelta applies a signed score change, clamped to [0,100], appends a
	// history entry, and notifies subscribers. Serialized per (user, scope).
	// A raise attempted on a permanent-zero record is rejected silently: the
	// guard is expected behavior, not an error.
	ApplyDelta(ctx context.Context, user, scope string, delta float64, reason string) (*Record, error)
	// SetPermanentZero floors the record at zero irreversibly.
	SetPermanentZero(ctx context.Context, user, scope, reason string) error
	// ForEach visits every record (snapshot copies); used by the decay worker.
	ForEach(ctx context.Context, fn func(rec *Record) error) error
	// Subscribe registers a change callback.
	Subscribe(fn ChangeFunc)
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

func recordKey(user, scope string) string {
	return scope + "/" + user
}

// ApplyOverride sets a moderator-chosen score through the regular delta
// path, so manual intervention shows up in the same audit history as
// automated adjustments.
func ApplyOverride(ctx context.Context, store Store, user, scope string, target float64, moderator string) (*Record, error) {
	rec, err := store.GetScore(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	delta := clampScore(target) - rec.Score
	return store.ApplyDelta(ctx, user, scope, delta, fmt.Sprintf("manual-override: set to %.0f by %s", clampScore(target), moderator))
}
