// Package promote materializes auto_promote candidates as canonical
// rows. Entity types run in dependency order so a registration's event,
// yacht and participant can already have canonical links by the time the
// registration is considered.
package promote

import (
	"fmt"

	"go.uber.org/zap"

	"canonry/internal/entity"
	"canonry/internal/store"
)

// Run promotes pending candidates for the requested scope inside the
// caller's transaction. scope is an entity type name or "all". Each
// candidate runs under its own savepoint; a storage failure rolls back
// only that candidate. The caller commits, or rolls back for a dry run.
func Run(tx *store.Tx, scope string, logger *zap.Logger) (*Counters, error) {
	types, err := entity.ExpandTypes(scope)
	if err != nil {
		return nil, err
	}
	ctrs := &Counters{}
	for _, et := range types {
		if err := promoteEntityType(tx, et, ctrs, logger); err != nil {
			return ctrs, err
		}
	}
	return ctrs, nil
}

func promoteEntityType(tx *store.Tx, et entity.Type, ctrs *Counters, logger *zap.Logger) error {
	pending, err := tx.PendingPromotions(et)
	if err != nil {
		return err
	}

	for idx, cand := range pending {
		sp, err := tx.Savepoint(fmt.Sprintf("promote_%s_%d", et, idx))
		if err != nil {
			return err
		}
		promoted, err := promoteOne(tx, et, cand, ctrs)
		if err != nil {
			if rbErr := sp.Rollback(); rbErr != nil {
				return rbErr
			}
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("%s pk=%s: %v", et, cand.ID, err))
			logger.Warn("promotion failed", zap.String("entity_type", string(et)),
				zap.String("candidate_id", cand.ID), zap.Error(err))
			continue
		}
		if err := sp.Release(); err != nil {
			return err
		}
		if promoted {
			ctrs.CandidatesPromoted++
		}
	}
	return nil
}

// promoteOne promotes a single pending candidate. It reports false when
// the candidate was skipped for an unpromoted registration dependency.
func promoteOne(tx *store.Tx, et entity.Type, cand store.PendingCandidate, ctrs *Counters) (bool, error) {
	// A link left behind by a partial prior run is reused rather than
	// minting a second canonical.
	canonicalID, err := tx.LookupCanonicalID(et, cand.ID)
	if err != nil {
		return false, err
	}

	if canonicalID == "" {
		if et == entity.Registration {
			ok, id, err := insertCanonicalRegistration(tx, cand, ctrs)
			if err != nil || !ok {
				return false, err
			}
			canonicalID = id
		} else {
			if canonicalID, err = tx.InsertCanonicalFromCandidate(et, cand.ID); err != nil {
				return false, err
			}
		}
	}

	if err := tx.InsertLinkAuto(et, cand.ID, canonicalID, cand.QualityScore); err != nil {
		return false, err
	}
	if err := tx.MarkPromoted(et, cand.ID, canonicalID); err != nil {
		return false, err
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: cand.ID,
		CanonicalID: canonicalID,
		ActionType:  "promote",
		ScoreBefore: cand.QualityScore,
		Actor:       "pipeline",
		Source:      "pipeline",
	}); err != nil {
		return false, err
	}
	if err := tx.WriteProvenance(et, canonicalID, cand.ID, cand.QualityScore, "", "auto_promote"); err != nil {
		return false, err
	}
	return true, nil
}

// insertCanonicalRegistration resolves a registration's canonical FKs
// and inserts its canonical row. The event dependency is mandatory: a
// registration without a promoted event is deferred to a later run, not
// errored. Yacht and participant links resolve to null when absent.
func insertCanonicalRegistration(tx *store.Tx, cand store.PendingCandidate, ctrs *Counters) (bool, string, error) {
	if cand.CandidateEventID == "" {
		ctrs.CandidatesSkippedMissingDep++
		return false, "", nil
	}
	canonicalEventID, err := tx.LookupCanonicalID(entity.Event, cand.CandidateEventID)
	if err != nil {
		return false, "", err
	}
	if canonicalEventID == "" {
		ctrs.CandidatesSkippedMissingDep++
		ctrs.warn(fmt.Sprintf("registration %s: event %s not yet promoted", cand.ID, cand.CandidateEventID))
		return false, "", nil
	}

	canonicalYachtID := ""
	if cand.CandidateYachtID != "" {
		if canonicalYachtID, err = tx.LookupCanonicalID(entity.Yacht, cand.CandidateYachtID); err != nil {
			return false, "", err
		}
	}
	canonicalParticipantID := ""
	if cand.CandidatePrimaryParticipantID != "" {
		if canonicalParticipantID, err = tx.LookupCanonicalID(entity.Participant, cand.CandidatePrimaryParticipantID); err != nil {
			return false, "", err
		}
	}

	id, err := tx.InsertCanonicalRegistration(cand.ID, canonicalEventID, canonicalYachtID, canonicalParticipantID)
	if err != nil {
		return false, "", err
	}
	return true, id, nil
}
