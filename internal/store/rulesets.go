package store

import (
	"database/sql"
	"fmt"

	"canonry/internal/entity"
	"canonry/internal/rules"
	"github.com/google/uuid"
)

// RegisterRuleSet upserts a validated rule set keyed on
// (entity_type, source_system, content hash). Registering identical
// content is a no-op returning the existing active id; new content
// deactivates the prior active version and inserts a fresh one.
// Versioning is append-only.
func (t *Tx) RegisterRuleSet(rs *rules.RuleSet) (string, error) {
	var existing string
	err := t.tx.QueryRow(`
		SELECT id FROM resolution_rule_set
		WHERE entity_type = ? AND COALESCE(source_system, '') = ? AND yaml_hash = ?
		  AND is_active = 1
		LIMIT 1`,
		string(rs.EntityType), rs.SourceSystem, rs.ContentHash).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("look up rule set: %w", err)
	}

	if _, err := t.tx.Exec(`
		UPDATE resolution_rule_set SET is_active = 0
		WHERE entity_type = ? AND COALESCE(source_system, '') = ? AND is_active = 1`,
		string(rs.EntityType), rs.SourceSystem); err != nil {
		return "", fmt.Errorf("deactivate prior rule set: %w", err)
	}

	id := uuid.NewString()
	if _, err := t.tx.Exec(`
		INSERT INTO resolution_rule_set
			(id, entity_type, source_system, version, yaml_content, yaml_hash, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`,
		id, string(rs.EntityType), nullStr(rs.SourceSystem), rs.Version,
		rs.RawYAML, rs.ContentHash); err != nil {
		return "", fmt.Errorf("insert rule set: %w", err)
	}
	return id, nil
}

// OpenScoreRun inserts a resolution_score_run with status 'running'.
func (t *Tx) OpenScoreRun(et entity.Type, sourceScope, ruleSetID string) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(`
		INSERT INTO resolution_score_run (id, entity_type, source_scope, rule_set_id, status)
		VALUES (?, ?, ?, ?, 'running')`,
		id, string(et), nullStr(sourceScope), nullStr(ruleSetID))
	if err != nil {
		return "", fmt.Errorf("open score run: %w", err)
	}
	return id, nil
}

// CloseScoreRun marks a score run finished with its final counters.
func (t *Tx) CloseScoreRun(runID, status, countersJSON string) error {
	_, err := t.tx.Exec(`
		UPDATE resolution_score_run
		SET status = ?, finished_at = CURRENT_TIMESTAMP, counters = ?
		WHERE id = ?`,
		status, countersJSON, runID)
	if err != nil {
		return fmt.Errorf("close score run %s: %w", runID, err)
	}
	return nil
}

// ScoreRunStatus fetches a run's status and counters JSON.
func (t *Tx) ScoreRunStatus(runID string) (status string, countersJSON string, err error) {
	var counters sql.NullString
	err = t.tx.QueryRow(
		`SELECT status, counters FROM resolution_score_run WHERE id = ?`, runID).
		Scan(&status, &counters)
	if err != nil {
		return "", "", fmt.Errorf("fetch score run %s: %w", runID, err)
	}
	return status, strOrEmpty(counters), nil
}
