package lifecycle

import (
	"fmt"

	"canonry/internal/entity"
	"canonry/internal/store"
)

// Merge folds the canonical mergeID into keepID: every candidate linked
// to mergeID is relinked to keepID, null attributes on keepID are filled
// from mergeID (with provenance decided_by merge), registration FK
// references are rerouted, and the merged canonical is deleted. A
// canonical with no linked candidates is rejected as inconsistent state
// rather than cleaned up here.
func Merge(tx *store.Tx, et entity.Type, keepID, mergeID, reasonCode, actor string) (Result, error) {
	keepExists, err := tx.CanonicalExists(et, keepID)
	if err != nil {
		return Result{}, err
	}
	if !keepExists {
		return invalid("merge %s: keep_canonical_id %s not found", et, keepID), nil
	}
	mergeExists, err := tx.CanonicalExists(et, mergeID)
	if err != nil {
		return Result{}, err
	}
	if !mergeExists {
		return invalid("merge %s: merge_canonical_id %s not found", et, mergeID), nil
	}
	if keepID == mergeID {
		return invalid("merge %s: keep_id == merge_id (%s)", et, keepID), nil
	}

	linkedIDs, err := tx.LinkedCandidateIDs(et, mergeID)
	if err != nil {
		return Result{}, err
	}
	if len(linkedIDs) == 0 {
		return invalid("merge %s: merge_canonical_id %s has no linked candidates; "+
			"merge rejected (orphan canonical, clean up separately)", et, mergeID), nil
	}
	provenanceCandidateID := linkedIDs[0]

	if err := tx.RelinkTo(et, mergeID, keepID); err != nil {
		return Result{}, err
	}

	keepAttrs, err := tx.CanonicalAttrs(et, keepID)
	if err != nil {
		return Result{}, err
	}
	mergeAttrs, err := tx.CanonicalAttrs(et, mergeID)
	if err != nil {
		return Result{}, err
	}
	var fills []store.CanonicalAttr
	for i, ka := range keepAttrs {
		if ka.Value == nil && mergeAttrs[i].Value != nil {
			fills = append(fills, store.CanonicalAttr{Name: ka.Name, Value: mergeAttrs[i].Value})
		}
	}
	if len(fills) > 0 {
		if err := tx.FillCanonicalAttrs(et, keepID, fills); err != nil {
			return Result{}, err
		}
		for _, f := range fills {
			if err := tx.UpsertProvenanceAttr(et, keepID, f.Name, f.Value,
				provenanceCandidateID, nil, "", "merge"); err != nil {
				return Result{}, err
			}
		}
	}

	if err := tx.MigrateCanonicalRefs(et, mergeID, keepID); err != nil {
		return Result{}, err
	}
	if err := tx.DeleteCanonical(et, mergeID); err != nil {
		return Result{}, err
	}
	for _, cid := range linkedIDs {
		if err := tx.DismissOpenNBAs(et, cid); err != nil {
			return Result{}, err
		}
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: provenanceCandidateID,
		CanonicalID: keepID,
		ActionType:  "merge",
		ReasonCode:  reasonCode,
		Actor:       actor,
		Source:      sourceSheetImport,
	}); err != nil {
		return Result{}, err
	}
	return applied(), nil
}

// SplitResult reports per-candidate bookkeeping for one split group.
type SplitResult struct {
	Applied  int
	Invalid  int
	Warnings []string
}

// Split clones the canonical oldCanonicalID and relinks the given subset
// of its candidates to the clone. Candidates not linked to the old
// canonical are rejected individually; the split proceeds with the rest.
func Split(tx *store.Tx, et entity.Type, oldCanonicalID string, candidateIDs []string, reasonCode, actor string) (SplitResult, error) {
	var res SplitResult

	exists, err := tx.CanonicalExists(et, oldCanonicalID)
	if err != nil {
		return res, err
	}
	if !exists {
		for _, cid := range candidateIDs {
			res.Invalid++
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"split %s: old_canonical_id %s not found (candidate %s)", et, oldCanonicalID, cid))
		}
		return res, nil
	}

	var validIDs []string
	for _, cid := range candidateIDs {
		linked, err := tx.LinkExists(et, cid, oldCanonicalID)
		if err != nil {
			return res, err
		}
		if !linked {
			res.Invalid++
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"split %s candidate %s: not linked to %s", et, cid, oldCanonicalID))
			continue
		}
		validIDs = append(validIDs, cid)
	}
	if len(validIDs) == 0 {
		return res, nil
	}

	newCanonicalID, err := tx.CloneCanonical(et, oldCanonicalID)
	if err != nil {
		return res, err
	}
	for _, cid := range validIDs {
		if err := tx.RelinkCandidate(et, cid, newCanonicalID); err != nil {
			return res, err
		}
	}
	// Clone semantics mirror merge for provenance attribution.
	if err := tx.WriteProvenance(et, newCanonicalID, validIDs[0], nil, "", "merge"); err != nil {
		return res, err
	}
	if err := tx.AppendActionLog(store.ActionLogEntry{
		EntityType:  et,
		CandidateID: validIDs[0],
		CanonicalID: oldCanonicalID,
		ActionType:  "split",
		ReasonCode:  reasonCode,
		Actor:       actor,
		Source:      sourceSheetImport,
	}); err != nil {
		return res, err
	}
	res.Applied = len(validIDs)
	return res, nil
}
