package store

import (
	"fmt"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// WriteProvenance upserts one provenance row per tracked attribute of a
// canonical, recording which candidate sourced its current values and
// which decision path chose it ('auto_promote', 'manual', or 'merge').
// A no-op when the canonical row does not exist.
func (t *Tx) WriteProvenance(et entity.Type, canonicalID, candidateID string, candidateScore *float64, ruleVersion, decidedBy string) error {
	attrs, err := t.CanonicalAttrs(et, canonicalID)
	if err != nil {
		return err
	}
	if attrs == nil {
		return nil
	}
	for _, attr := range attrs {
		if err := t.UpsertProvenanceAttr(et, canonicalID, attr.Name, attr.Value,
			candidateID, candidateScore, ruleVersion, decidedBy); err != nil {
			return err
		}
	}
	return nil
}

// UpsertProvenanceAttr records provenance for a single attribute,
// overwriting any prior row for the same canonical attribute.
func (t *Tx) UpsertProvenanceAttr(et entity.Type, canonicalID, attrName string, attrValue *string, candidateID string, candidateScore *float64, ruleVersion, decidedBy string) error {
	var val any
	if attrValue != nil {
		val = *attrValue
	}
	_, err := t.tx.Exec(`
		INSERT INTO canonical_attribute_provenance
			(id, canonical_entity_type, canonical_entity_id, attribute_name,
			 attribute_value, source_candidate_type, source_candidate_id,
			 source_score, rule_version, decided_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (canonical_entity_type, canonical_entity_id, attribute_name)
		DO UPDATE SET
			attribute_value       = excluded.attribute_value,
			source_candidate_type = excluded.source_candidate_type,
			source_candidate_id   = excluded.source_candidate_id,
			source_score          = excluded.source_score,
			rule_version          = excluded.rule_version,
			decided_by            = excluded.decided_by,
			decided_at            = CURRENT_TIMESTAMP`,
		uuid.NewString(), string(et), canonicalID, attrName, val,
		string(et), candidateID, nullFloat(candidateScore),
		nullStr(ruleVersion), decidedBy)
	if err != nil {
		return fmt.Errorf("upsert provenance %s %s %s: %w", et, canonicalID, attrName, err)
	}
	return nil
}

// CountProvenance counts provenance rows for a canonical, used by tests.
func (t *Tx) CountProvenance(et entity.Type, canonicalID string) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(*) FROM canonical_attribute_provenance
		WHERE canonical_entity_type = ? AND canonical_entity_id = ?`,
		string(et), canonicalID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count provenance %s %s: %w", et, canonicalID, err)
	}
	return n, nil
}
