package score

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"canonry/internal/entity"
	"canonry/internal/rules"
	"canonry/internal/store"
)

// DefaultRulePath names the conventional rule file for an entity type.
func DefaultRulePath(rulesDir string, et entity.Type) string {
	return filepath.Join(rulesDir, string(et)+".yml")
}

// Run scores candidates for the requested scope inside the caller's
// transaction. scope is an entity type name or "all"; ruleFile overrides
// the conventional per-type rule path and is ignored for "all", where
// each type loads its own file. The caller commits, or rolls back for a
// dry run.
func Run(tx *store.Tx, rulesDir, scope, ruleFile string, logger *zap.Logger) (*Counters, error) {
	types, err := entity.ExpandTypes(scope)
	if err != nil {
		return nil, err
	}

	ctrs := &Counters{}
	for _, et := range types {
		path := DefaultRulePath(rulesDir, et)
		if ruleFile != "" && scope != "all" {
			path = ruleFile
		}
		rs, err := rules.LoadFile(path)
		if err != nil {
			return ctrs, fmt.Errorf("load rule set for %s: %w", et, err)
		}
		ruleSetID, err := tx.RegisterRuleSet(rs)
		if err != nil {
			return ctrs, err
		}
		runID, err := tx.OpenScoreRun(et, rs.SourceSystem, ruleSetID)
		if err != nil {
			return ctrs, err
		}

		stepFailed := false
		if err := scoreEntityType(tx, et, rs, runID, ctrs); err != nil {
			stepFailed = true
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("score run for %s failed: %v", et, err))
			logger.Warn("score run failed", zap.String("entity_type", string(et)), zap.Error(err))
		}

		// Always attempt to close the run record, without masking the
		// primary failure with a second error.
		closeStatus := "ok"
		if stepFailed {
			closeStatus = "failed"
		}
		if err := tx.CloseScoreRun(runID, closeStatus, ctrs.JSON()); err != nil {
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("close score run failed for %s (%s): %v", et, closeStatus, err))
			// A dead transaction only produces repeated noise for the
			// remaining entity types.
			if errors.Is(err, sql.ErrTxDone) || errors.Is(err, sql.ErrConnDone) {
				break
			}
		}
	}
	return ctrs, nil
}

// scoreEntityType scores every candidate of one entity type and writes
// the results back. A failure on one row is counted and skipped; the
// rest of the batch continues.
func scoreEntityType(tx *store.Tx, et entity.Type, rs *rules.RuleSet, runID string, ctrs *Counters) error {
	rows, err := tx.ScoringRows(et)
	if err != nil {
		return err
	}

	for _, row := range rows {
		sc := rules.ComputeScore(rs, row.Features, nil)
		reasonsJSON, err := sc.ReasonsJSON()
		if err != nil {
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("%s pk=%s: %v", et, row.ID, err))
			continue
		}
		// A re-score may not downgrade an already-promoted candidate's
		// persisted state back to review or hold.
		if err := tx.UpdateScore(et, row.ID, sc.Value, sc.State, reasonsJSON, runID); err != nil {
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("%s pk=%s: %v", et, row.ID, err))
			continue
		}
		ctrs.CandidatesScored++

		effective := sc.State
		if row.IsPromoted {
			effective = entity.StateAutoPromote
		}
		switch effective {
		case entity.StateAutoPromote:
			ctrs.CandidatesAutoPromote++
		case entity.StateReview:
			ctrs.CandidatesReview++
		case entity.StateHold:
			ctrs.CandidatesHold++
		default:
			ctrs.CandidatesRejected++
		}

		n, err := writeNBAs(tx, et, row, rs, sc)
		if err != nil {
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("%s pk=%s: %v", et, row.ID, err))
			continue
		}
		ctrs.NBAsWritten += n
	}
	return nil
}

// writeNBAs deletes stale scorer-generated open NBAs and inserts fresh
// ones for the candidate's missing weighted features. Promoted,
// auto_promote and hard-blocked candidates get none: enrichment advice
// is meaningless when the candidate is already linked, already ready, or
// blocked regardless of completeness.
func writeNBAs(tx *store.Tx, et entity.Type, row store.ScoringRow, rs *rules.RuleSet, sc rules.Score) (int, error) {
	if err := tx.DeleteScorerNBAs(et, row.ID); err != nil {
		return 0, err
	}
	if sc.State == entity.StateAutoPromote || row.IsPromoted || sc.HardBlocked() {
		return 0, nil
	}

	names := make([]string, 0, len(row.Features))
	for name := range row.Features {
		names = append(names, name)
	}
	sort.Strings(names)

	inserted := 0
	for _, name := range names {
		if row.Features[name] {
			continue
		}
		weight := rs.FeatureWeights[name]
		if weight <= 0 {
			continue
		}
		if err := tx.InsertEnrichmentNBA(et, row.ID, name, weight, rs.Version); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
