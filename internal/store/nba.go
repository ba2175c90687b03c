package store

import (
	"fmt"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// Scorer-generated NBAs are scoped by action_type and
// recommended_channel so the scorer's delete-and-regenerate cycle never
// touches manually created recommendations.
const (
	nbaActionEnrich  = "enrich_candidate"
	nbaChannelManual = "manual_enrichment"
	nbaStatusOpen    = "open"
	nbaStatusDismiss = "dismissed"
)

// DeleteScorerNBAs removes the open, scorer-generated enrichment NBAs
// for one candidate ahead of regeneration.
func (t *Tx) DeleteScorerNBAs(et entity.Type, candidateID string) error {
	_, err := t.tx.Exec(`
		DELETE FROM next_best_action
		WHERE target_entity_type = ? AND target_entity_id = ?
		  AND status = ? AND action_type = ? AND recommended_channel = ?`,
		et.NBATargetType(), candidateID, nbaStatusOpen, nbaActionEnrich, nbaChannelManual)
	if err != nil {
		return fmt.Errorf("delete scorer NBAs %s %s: %w", et, candidateID, err)
	}
	return nil
}

// InsertEnrichmentNBA records one open enrichment recommendation. The
// priority is the missing feature's weight: the score it would add.
func (t *Tx) InsertEnrichmentNBA(et entity.Type, candidateID, featureName string, weight float64, ruleVersion string) error {
	_, err := t.tx.Exec(`
		INSERT INTO next_best_action
			(id, action_type, target_entity_type, target_entity_id,
			 priority_score, reason_code, reason_detail, recommended_channel,
			 rule_version, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), nbaActionEnrich, et.NBATargetType(), candidateID,
		weight, "missing_"+featureName,
		fmt.Sprintf("%s missing; worth +%.2f toward auto_promote", featureName, weight),
		nbaChannelManual, ruleVersion, nbaStatusOpen)
	if err != nil {
		return fmt.Errorf("insert NBA %s %s: %w", et, candidateID, err)
	}
	return nil
}

// DismissOpenNBAs marks all open NBAs targeting a candidate as
// dismissed, regardless of who created them.
func (t *Tx) DismissOpenNBAs(et entity.Type, candidateID string) error {
	_, err := t.tx.Exec(`
		UPDATE next_best_action SET status = ?
		WHERE target_entity_type = ? AND target_entity_id = ? AND status = ?`,
		nbaStatusDismiss, et.NBATargetType(), candidateID, nbaStatusOpen)
	if err != nil {
		return fmt.Errorf("dismiss NBAs %s %s: %w", et, candidateID, err)
	}
	return nil
}

// NBA is one next_best_action row.
type NBA struct {
	ActionType         string
	PriorityScore      float64
	ReasonCode         string
	RecommendedChannel string
	Status             string
}

// OpenNBAs lists a candidate's open NBAs ordered by priority, highest
// first.
func (t *Tx) OpenNBAs(et entity.Type, candidateID string) ([]NBA, error) {
	rows, err := t.tx.Query(`
		SELECT action_type, COALESCE(priority_score, 0), COALESCE(reason_code, ''),
		       COALESCE(recommended_channel, ''), status
		FROM next_best_action
		WHERE target_entity_type = ? AND target_entity_id = ? AND status = ?
		ORDER BY priority_score DESC, reason_code`,
		et.NBATargetType(), candidateID, nbaStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list NBAs %s %s: %w", et, candidateID, err)
	}
	defer rows.Close()

	var out []NBA
	for rows.Next() {
		var n NBA
		if err := rows.Scan(&n.ActionType, &n.PriorityScore, &n.ReasonCode,
			&n.RecommendedChannel, &n.Status); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
