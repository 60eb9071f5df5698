// Moderation action types shared across the aggregator, policy engine, and
// decision orchestrator.
//
// The integer values define a total severity ordering (none < delete < warn <
// timeout < kick < ban) which is relied on for both aggregation math and
// policy escalation comparisons. Do not reorder.
package action

import (
	"fmt"
)

type Type int

const (
	None Type = iota
	Delete
	Warn
	Timeout
	Kick
	Ban
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Delete:
		return "delete"
	case Warn:
		return "warn"
	case Timeout:
		return "timeout"
	case Kick:
		return "kick"
	case Ban:
		return "ban"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Severity returns the position of the action in the total ordering. Exposed
// separately from the raw int so callers compare intent, not representation.
func (t Type) Severity() int {
	return int(t)
}

func ParseType(s string) (Type, error) {
	switch s {
	case "none":
		return None, nil
	case "delete":
		return Delete, nil
	case "warn":
		return Warn, nil
	case "timeout":
		return Timeout, nil
	case "kick":
		return Kick, nil
	case "ban":
		return Ban, nil
	default:
		return None, fmt.Errorf("unknown action type: %s", s)
	}
}
