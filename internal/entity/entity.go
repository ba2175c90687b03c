// Package entity defines the entity types, resolution states, and typed
// candidate rows shared by the scoring, promotion, lifecycle, and lineage
// subsystems.
package entity

import "fmt"

// Type identifies one of the five resolvable entity kinds.
type Type string

const (
	Club         Type = "club"
	Event        Type = "event"
	Yacht        Type = "yacht"
	Participant  Type = "participant"
	Registration Type = "registration"
)

// PromotionOrder is the mandatory processing order for batch operations.
// Registrations reference canonical ids of the first four types, so they
// must always be promoted last.
var PromotionOrder = []Type{Club, Event, Yacht, Participant, Registration}

// ParseType validates a user-supplied entity type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Club, Event, Yacht, Participant, Registration:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown entity type %q (want one of club, event, yacht, participant, registration)", s)
}

// ExpandTypes resolves "all" to the full promotion-ordered list, or a
// single validated type otherwise.
func ExpandTypes(s string) ([]Type, error) {
	if s == "all" || s == "" {
		return PromotionOrder, nil
	}
	t, err := ParseType(s)
	if err != nil {
		return nil, err
	}
	return []Type{t}, nil
}

// CandidateTable returns the candidate table name for this type.
func (t Type) CandidateTable() string { return "candidate_" + string(t) }

// CanonicalTable returns the canonical table name for this type.
func (t Type) CanonicalTable() string { return "canonical_" + string(t) }

// NBATargetType is the target_entity_type convention used when a
// next_best_action row points at a candidate of this type.
func (t Type) NBATargetType() string { return "candidate_" + string(t) }

// State is a candidate's resolution state.
type State string

const (
	StateAutoPromote State = "auto_promote"
	StateReview      State = "review"
	StateHold        State = "hold"
	StateReject      State = "reject"
)

// ValidState reports whether s is one of the four resolution states.
func ValidState(s State) bool {
	switch s {
	case StateAutoPromote, StateReview, StateHold, StateReject:
		return true
	}
	return false
}
