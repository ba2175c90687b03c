package lifecycle

import (
	"errors"
	"fmt"

	"canonry/internal/entity"
	"canonry/internal/store"
)

// Outcome classifies a row-scoped lifecycle operation.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeInvalid
	OutcomeSkippedAlreadyPromoted
	OutcomeSkippedMissingDep
)

// Result is the non-error outcome of one lifecycle operation. Warning is
// set for every outcome other than Applied.
type Result struct {
	Outcome Outcome
	Warning string
}

func applied() Result { return Result{Outcome: OutcomeApplied} }

func invalid(format string, args ...any) Result {
	return Result{Outcome: OutcomeInvalid, Warning: fmt.Sprintf(format, args...)}
}

const (
	sourcePipeline    = "pipeline"
	sourceSheetImport = "sheet_import"
)

// Demote severs a promoted candidate's link and compound-resets it to
// review. When the candidate held the canonical's sole link, the orphaned
// canonical is deleted (its registration FK references cleared first).
// Demoting an unpromoted candidate is invalid, not an error.
func Demote(tx *store.Tx, et entity.Type, candidateID, reasonCode, actor string) (Result, error) {
	st, err := tx.CandidateStatus(et, candidateID)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return invalid("demote %s %s: candidate not found", et, candidateID), nil
	}
	if !st.IsPromoted {
		return invalid("demote %s %s: not promoted, skipped", et, candidateID), nil
	}
	if st.PromotedCanonicalID == "" {
		return invalid("demote %s %s: is_promoted=true but promoted_canonical_id is null", et, candidateID), nil
	}

	next := Transition{State: entity.StateReview, Promoted: false}
	if err := CheckTransition(st.ResolutionState, st.IsPromoted, next); err != nil {
		return Result{}, err
	}

	canonicalID := st.PromotedCanonicalID
	linkCount, err := tx.CountLinks(et, canonicalID)
	if err != nil {
		return Result{}, err
	}
	if err := tx.DeleteLink(et, candidateID); err != nil {
		return Result{}, err
	}
	if err := tx.ClearPromotion(et, candidateID, entity.StateReview); err != nil {
		return Result{}, err
	}

	loggedCanonicalID := canonicalID
	if linkCount == 1 {
		// Sole link: the canonical is now orphaned.
		if err := tx.MigrateCanonicalRefs(et, canonicalID, ""); err != nil {
			return Result{}, err
		}
		if err := tx.DeleteCanonical(et, canonicalID); err != nil {
			return Result{}, err
		}
		loggedCanonicalID = ""
	}

	if err := tx.DismissOpenNBAs(et, candidateID); err != nil {
		return Result{}, err
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: candidateID,
		CanonicalID: loggedCanonicalID,
		ActionType:  "demote",
		ReasonCode:  reasonCode,
		Actor:       actor,
		Source:      sourceSheetImport,
	}); err != nil {
		return Result{}, err
	}
	return applied(), nil
}

// Unlink severs a promoted candidate's link and compound-resets it to
// review. Unlike Demote it never deletes the canonical and preserves the
// candidate's open NBAs: it severs without implying a quality downgrade.
func Unlink(tx *store.Tx, et entity.Type, candidateID, reasonCode, actor string) (Result, error) {
	st, err := tx.CandidateStatus(et, candidateID)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return invalid("unlink %s %s: candidate not found", et, candidateID), nil
	}
	if !st.IsPromoted {
		return invalid("unlink %s %s: not promoted, skipped", et, candidateID), nil
	}
	if st.PromotedCanonicalID == "" {
		return invalid("unlink %s %s: is_promoted=true but promoted_canonical_id is null", et, candidateID), nil
	}

	next := Transition{State: entity.StateReview, Promoted: false}
	if err := CheckTransition(st.ResolutionState, st.IsPromoted, next); err != nil {
		return Result{}, err
	}

	if err := tx.DeleteLink(et, candidateID); err != nil {
		return Result{}, err
	}
	if err := tx.ClearPromotion(et, candidateID, entity.StateReview); err != nil {
		return Result{}, err
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: candidateID,
		CanonicalID: st.PromotedCanonicalID,
		ActionType:  "unlink",
		ReasonCode:  reasonCode,
		Actor:       actor,
		Source:      sourceSheetImport,
	}); err != nil {
		return Result{}, err
	}
	return applied(), nil
}

// ManualPromote promotes a human-reviewed candidate. Only candidates in
// review or hold qualify; an already-promoted candidate is skipped, and a
// registration whose event dependency has no canonical link yet is
// deferred, not errored. A stale link (canonical row missing) is repaired
// by re-promoting.
func ManualPromote(tx *store.Tx, et entity.Type, candidateID, reasonCode, actor string) (Result, error) {
	st, err := tx.CandidateStatus(et, candidateID)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return invalid("promote %s %s: candidate not found", et, candidateID), nil
	}
	if st.IsPromoted {
		return Result{
			Outcome: OutcomeSkippedAlreadyPromoted,
			Warning: fmt.Sprintf("promote %s %s: already promoted, skipped", et, candidateID),
		}, nil
	}
	if st.ResolutionState != entity.StateReview && st.ResolutionState != entity.StateHold {
		return invalid("promote %s %s: resolution_state=%q is not review/hold; blocked",
			et, candidateID, st.ResolutionState), nil
	}

	canonicalID := ""
	existingID, err := tx.LookupCanonicalID(et, candidateID)
	if err != nil {
		return Result{}, err
	}
	var warnings []string
	if existingID != "" {
		exists, err := tx.CanonicalExists(et, existingID)
		if err != nil {
			return Result{}, err
		}
		if exists {
			canonicalID = existingID
		} else {
			// Stale link: the canonical row is gone. Delete and re-promote.
			warnings = append(warnings, fmt.Sprintf(
				"promote %s %s: stale canonical link %s, deleting and re-promoting",
				et, candidateID, existingID))
			if err := tx.DeleteLink(et, candidateID); err != nil {
				return Result{}, err
			}
		}
	}

	if canonicalID == "" {
		if et == entity.Registration {
			eventID, yachtID, participantID, err := tx.RegistrationDeps(candidateID)
			if err != nil {
				return Result{}, err
			}
			if eventID == "" {
				return invalid("promote registration %s: missing candidate_event_id", candidateID), nil
			}
			canonicalEventID, err := tx.LookupCanonicalID(entity.Event, eventID)
			if err != nil {
				return Result{}, err
			}
			if canonicalEventID == "" {
				return Result{
					Outcome: OutcomeSkippedMissingDep,
					Warning: fmt.Sprintf("promote registration %s: event %s not yet promoted", candidateID, eventID),
				}, nil
			}
			canonicalYachtID := ""
			if yachtID != "" {
				if canonicalYachtID, err = tx.LookupCanonicalID(entity.Yacht, yachtID); err != nil {
					return Result{}, err
				}
			}
			canonicalParticipantID := ""
			if participantID != "" {
				if canonicalParticipantID, err = tx.LookupCanonicalID(entity.Participant, participantID); err != nil {
					return Result{}, err
				}
			}
			if canonicalID, err = tx.InsertCanonicalRegistration(
				candidateID, canonicalEventID, canonicalYachtID, canonicalParticipantID); err != nil {
				return Result{}, err
			}
		} else {
			if canonicalID, err = tx.InsertCanonicalFromCandidate(et, candidateID); err != nil {
				return Result{}, err
			}
		}
	}

	next := Transition{State: entity.StateAutoPromote, Promoted: true, CanonicalID: canonicalID}
	if err := CheckTransition(st.ResolutionState, st.IsPromoted, next); err != nil {
		return Result{}, err
	}

	if err := tx.UpsertLinkManual(et, candidateID, canonicalID, st.QualityScore, actor); err != nil {
		return Result{}, err
	}
	if err := tx.MarkManuallyPromoted(et, candidateID, canonicalID); err != nil {
		return Result{}, err
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: candidateID,
		CanonicalID: canonicalID,
		ActionType:  "promote",
		ScoreBefore: st.QualityScore,
		ReasonCode:  reasonCode,
		Actor:       actor,
		Source:      sourceSheetImport,
	}); err != nil {
		return Result{}, err
	}
	if err := tx.WriteProvenance(et, canonicalID, candidateID, st.QualityScore, "", "manual"); err != nil {
		return Result{}, err
	}

	res := applied()
	if len(warnings) > 0 {
		res.Warning = warnings[0]
	}
	return res, nil
}

// ManualStateChange applies a reject or hold decision. Blocked by the
// guard while the candidate is promoted.
func ManualStateChange(tx *store.Tx, et entity.Type, candidateID string, newState entity.State, reasonCode, actor string) (Result, error) {
	st, err := tx.CandidateStatus(et, candidateID)
	if err != nil {
		return Result{}, err
	}
	if st == nil {
		return invalid("%s %s %s: candidate not found", newState, et, candidateID), nil
	}
	if st.IsPromoted {
		return invalid("%s %s %s: is_promoted=true; cannot change state of promoted candidate",
			newState, et, candidateID), nil
	}

	next := Transition{State: newState, Promoted: false}
	if err := CheckTransition(st.ResolutionState, st.IsPromoted, next); err != nil {
		var terr *TransitionError
		if errors.As(err, &terr) {
			return invalid("%s %s %s: %s", newState, et, candidateID, terr.Msg), nil
		}
		return Result{}, err
	}

	if err := tx.SetResolutionState(et, candidateID, newState); err != nil {
		return Result{}, err
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: candidateID,
		ActionType:  string(newState),
		ScoreBefore: st.QualityScore,
		ReasonCode:  reasonCode,
		Actor:       actor,
		Source:      sourceSheetImport,
	}); err != nil {
		return Result{}, err
	}
	return applied(), nil
}
