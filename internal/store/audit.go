package store

import (
	"fmt"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// ActionLogEntry is one append-only audit record for a resolution
// decision (promote, demote, unlink, merge, split, reject, hold).
type ActionLogEntry struct {
	EntityType  entity.Type
	CandidateID string
	CanonicalID string // empty when the action left no canonical reference
	ActionType  string
	ScoreBefore *float64
	ReasonCode  string
	Actor       string
	Source      string // 'pipeline' or 'sheet_import'
}

// AppendActionLog writes one audit record.
func (t *Tx) AppendActionLog(e ActionLogEntry) error {
	_, err := t.tx.Exec(`
		INSERT INTO resolution_manual_action_log
			(id, entity_type, candidate_entity_id, canonical_entity_id,
			 action_type, score_before, reason_code, actor, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(e.EntityType), e.CandidateID, nullStr(e.CanonicalID),
		e.ActionType, nullFloat(e.ScoreBefore), nullStr(e.ReasonCode),
		nullStr(e.Actor), nullStr(e.Source))
	if err != nil {
		return fmt.Errorf("append action log %s %s: %w", e.EntityType, e.CandidateID, err)
	}
	return nil
}

// CountActions counts audit records for one candidate and action type,
// used by tests and the status command.
func (t *Tx) CountActions(et entity.Type, candidateID, actionType string) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(*) FROM resolution_manual_action_log
		WHERE entity_type = ? AND candidate_entity_id = ? AND action_type = ?`,
		string(et), candidateID, actionType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count actions %s %s: %w", et, candidateID, err)
	}
	return n, nil
}
