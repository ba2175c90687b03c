// Package lifecycle implements the candidate state machine: the
// transition guard, the row-scoped operations (demote, unlink, manual
// promote, merge, split), and the CSV decision ingestion that drives
// them.
package lifecycle

import (
	"fmt"

	"canonry/internal/entity"
)

// Guard rules. The guard is the primary enforcement point; the storage
// CHECK constraint is defense-in-depth only, because the guard's error
// messages are part of the operator-facing contract.
const (
	RuleFreezeWhilePromoted   = 1
	RuleNoRejectSkip          = 2
	RulePromotionPrecondition = 3
)

// TransitionError reports an illegal state-machine transition. It names
// the violated rule and the offending values; it is always fatal to the
// single operation attempted.
type TransitionError struct {
	Rule int
	Msg  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition (rule %d): %s", e.Rule, e.Msg)
}

func transitionErrorf(rule int, format string, args ...any) error {
	return &TransitionError{Rule: rule, Msg: fmt.Sprintf(format, args...)}
}

// Transition is a requested candidate update.
type Transition struct {
	State       entity.State
	Promoted    bool
	CanonicalID string // required when Promoted
}

// CheckTransition validates a requested transition against the current
// candidate state. It must run before any state-affecting write.
//
// Rule 1 (freeze while promoted): a promoted candidate's
// resolution_state may not change unless the same write clears
// is_promoted (the compound demote/unlink transition).
//
// Rule 2 (no reject-skip): reject may not move directly to auto_promote;
// it must pass through review or hold first.
//
// Rule 3 (promotion precondition): is_promoted=true requires a canonical
// id in the same write.
func CheckTransition(currentState entity.State, currentlyPromoted bool, next Transition) error {
	if !entity.ValidState(next.State) {
		return fmt.Errorf("unknown resolution_state %q", next.State)
	}

	if currentlyPromoted && next.Promoted && next.State != currentState {
		return transitionErrorf(RuleFreezeWhilePromoted,
			"resolution_state may not change %q -> %q while is_promoted=true; "+
				"demote or unlink must clear the promotion in the same write",
			currentState, next.State)
	}

	if currentState == entity.StateReject && next.State == entity.StateAutoPromote {
		return transitionErrorf(RuleNoRejectSkip,
			"resolution_state may not move directly %q -> %q; it must pass through review or hold",
			entity.StateReject, entity.StateAutoPromote)
	}

	if next.Promoted && next.CanonicalID == "" {
		return transitionErrorf(RulePromotionPrecondition,
			"is_promoted=true requires promoted_canonical_id in the same write")
	}

	return nil
}
