package lifecycle

import (
	"errors"
	"testing"

	"canonry/internal/entity"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name     string
		current  entity.State
		promoted bool
		next     Transition
		wantRule int // 0 means the transition is legal
	}{
		{
			name:    "simple state change",
			current: entity.StateHold,
			next:    Transition{State: entity.StateReview},
		},
		{
			name:    "same state is a no-op",
			current: entity.StateReview,
			next:    Transition{State: entity.StateReview},
		},
		{
			name:     "promoted candidate frozen",
			current:  entity.StateAutoPromote,
			promoted: true,
			next:     Transition{State: entity.StateReject, Promoted: true, CanonicalID: "c-1"},
			wantRule: RuleFreezeWhilePromoted,
		},
		{
			name:     "promoted candidate may keep its state",
			current:  entity.StateAutoPromote,
			promoted: true,
			next:     Transition{State: entity.StateAutoPromote, Promoted: true, CanonicalID: "c-1"},
		},
		{
			name:     "compound demote clears promotion",
			current:  entity.StateAutoPromote,
			promoted: true,
			next:     Transition{State: entity.StateReview, Promoted: false},
		},
		{
			name:     "reject cannot skip to auto_promote",
			current:  entity.StateReject,
			next:     Transition{State: entity.StateAutoPromote},
			wantRule: RuleNoRejectSkip,
		},
		{
			name:    "reject to review is legal",
			current: entity.StateReject,
			next:    Transition{State: entity.StateReview},
		},
		{
			name:     "promotion requires canonical id",
			current:  entity.StateReview,
			next:     Transition{State: entity.StateAutoPromote, Promoted: true},
			wantRule: RulePromotionPrecondition,
		},
		{
			name:    "promotion with canonical id",
			current: entity.StateReview,
			next:    Transition{State: entity.StateAutoPromote, Promoted: true, CanonicalID: "c-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.current, tt.promoted, tt.next)
			if tt.wantRule == 0 {
				if err != nil {
					t.Fatalf("CheckTransition: %v", err)
				}
				return
			}
			var terr *TransitionError
			if !errors.As(err, &terr) {
				t.Fatalf("got %v, want TransitionError", err)
			}
			if terr.Rule != tt.wantRule {
				t.Errorf("rule = %d, want %d", terr.Rule, tt.wantRule)
			}
		})
	}
}

func TestCheckTransitionUnknownState(t *testing.T) {
	err := CheckTransition(entity.StateReview, false, Transition{State: entity.State("frozen")})
	if err == nil {
		t.Fatal("expected error for unknown state")
	}
	var terr *TransitionError
	if errors.As(err, &terr) {
		t.Errorf("unknown state reported as rule %d, want plain error", terr.Rule)
	}
}
