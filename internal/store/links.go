package store

import (
	"database/sql"
	"fmt"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// The candidate_canonical_link table is the idempotency ledger: its
// UNIQUE (candidate_entity_type, candidate_entity_id) constraint is the
// single source of truth for "has this candidate already been promoted,
// and to what". The promotion pipeline never deletes or repoints a link;
// repairs reuse it.

// LookupCanonicalID returns the linked canonical id for a candidate, or
// "" when no link exists.
func (t *Tx) LookupCanonicalID(et entity.Type, candidateID string) (string, error) {
	var id string
	err := t.tx.QueryRow(`
		SELECT canonical_entity_id FROM candidate_canonical_link
		WHERE candidate_entity_type = ? AND candidate_entity_id = ?`,
		string(et), candidateID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup link %s %s: %w", et, candidateID, err)
	}
	return id, nil
}

// InsertLinkAuto records a pipeline promotion. A concurrent or duplicate
// attempt hits the unique constraint and is silently absorbed.
func (t *Tx) InsertLinkAuto(et entity.Type, candidateID, canonicalID string, score *float64) error {
	_, err := t.tx.Exec(`
		INSERT INTO candidate_canonical_link
			(id, candidate_entity_type, candidate_entity_id, canonical_entity_id,
			 promotion_score, promotion_mode, promoted_by)
		VALUES (?, ?, ?, ?, ?, 'auto', 'pipeline')
		ON CONFLICT (candidate_entity_type, candidate_entity_id) DO NOTHING`,
		uuid.NewString(), string(et), candidateID, canonicalID, nullFloat(score))
	if err != nil {
		return fmt.Errorf("insert auto link %s %s: %w", et, candidateID, err)
	}
	return nil
}

// UpsertLinkManual records a manual promotion, repointing an existing
// link to the current canonical id (manual decisions may repair stale
// links; the pipeline itself never repoints).
func (t *Tx) UpsertLinkManual(et entity.Type, candidateID, canonicalID string, score *float64, actor string) error {
	_, err := t.tx.Exec(`
		INSERT INTO candidate_canonical_link
			(id, candidate_entity_type, candidate_entity_id, canonical_entity_id,
			 promotion_score, promotion_mode, promoted_by)
		VALUES (?, ?, ?, ?, ?, 'manual', ?)
		ON CONFLICT (candidate_entity_type, candidate_entity_id) DO UPDATE SET
			canonical_entity_id = excluded.canonical_entity_id,
			promotion_score     = excluded.promotion_score,
			promoted_by         = excluded.promoted_by,
			promoted_at         = CURRENT_TIMESTAMP`,
		uuid.NewString(), string(et), candidateID, canonicalID, nullFloat(score), actor)
	if err != nil {
		return fmt.Errorf("upsert manual link %s %s: %w", et, candidateID, err)
	}
	return nil
}

// DeleteLink severs a candidate's promotion link (demote/unlink only).
func (t *Tx) DeleteLink(et entity.Type, candidateID string) error {
	_, err := t.tx.Exec(`
		DELETE FROM candidate_canonical_link
		WHERE candidate_entity_type = ? AND candidate_entity_id = ?`,
		string(et), candidateID)
	if err != nil {
		return fmt.Errorf("delete link %s %s: %w", et, candidateID, err)
	}
	return nil
}

// CountLinks counts candidates linked to a canonical.
func (t *Tx) CountLinks(et entity.Type, canonicalID string) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(*) FROM candidate_canonical_link
		WHERE candidate_entity_type = ? AND canonical_entity_id = ?`,
		string(et), canonicalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count links %s %s: %w", et, canonicalID, err)
	}
	return n, nil
}

// LinkedCandidateIDs lists candidates linked to a canonical, in link
// creation order.
func (t *Tx) LinkedCandidateIDs(et entity.Type, canonicalID string) ([]string, error) {
	rows, err := t.tx.Query(`
		SELECT candidate_entity_id FROM candidate_canonical_link
		WHERE candidate_entity_type = ? AND canonical_entity_id = ?
		ORDER BY promoted_at, id`,
		string(et), canonicalID)
	if err != nil {
		return nil, fmt.Errorf("list linked candidates %s %s: %w", et, canonicalID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LinkExists reports whether a specific candidate → canonical link exists.
func (t *Tx) LinkExists(et entity.Type, candidateID, canonicalID string) (bool, error) {
	var one int
	err := t.tx.QueryRow(`
		SELECT 1 FROM candidate_canonical_link
		WHERE candidate_entity_type = ? AND candidate_entity_id = ? AND canonical_entity_id = ?`,
		string(et), candidateID, canonicalID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check link %s %s: %w", et, candidateID, err)
	}
	return true, nil
}

// RelinkTo repoints every link of one canonical to another (merge).
func (t *Tx) RelinkTo(et entity.Type, fromCanonicalID, toCanonicalID string) error {
	if _, err := t.tx.Exec(`
		UPDATE candidate_canonical_link SET canonical_entity_id = ?
		WHERE candidate_entity_type = ? AND canonical_entity_id = ?`,
		toCanonicalID, string(et), fromCanonicalID); err != nil {
		return fmt.Errorf("relink %s %s -> %s: %w", et, fromCanonicalID, toCanonicalID, err)
	}
	if _, err := t.tx.Exec(fmt.Sprintf(`
		UPDATE %s SET promoted_canonical_id = ? WHERE promoted_canonical_id = ?`,
		et.CandidateTable()), toCanonicalID, fromCanonicalID); err != nil {
		return fmt.Errorf("repoint candidates %s %s -> %s: %w", et, fromCanonicalID, toCanonicalID, err)
	}
	return nil
}

// RelinkCandidate repoints a single candidate's link and its
// promoted_canonical_id (split).
func (t *Tx) RelinkCandidate(et entity.Type, candidateID, newCanonicalID string) error {
	if _, err := t.tx.Exec(`
		UPDATE candidate_canonical_link SET canonical_entity_id = ?
		WHERE candidate_entity_type = ? AND candidate_entity_id = ?`,
		newCanonicalID, string(et), candidateID); err != nil {
		return fmt.Errorf("relink candidate %s %s: %w", et, candidateID, err)
	}
	if _, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE %s SET promoted_canonical_id = ? WHERE id = ?`, et.CandidateTable()),
		newCanonicalID, candidateID); err != nil {
		return fmt.Errorf("repoint candidate %s %s: %w", et, candidateID, err)
	}
	return nil
}
