package store

import (
	"fmt"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// PromotionCoverage returns the total and promoted candidate counts for
// one entity type.
func (t *Tx) PromotionCoverage(et entity.Type) (total, promoted int, err error) {
	err = t.tx.QueryRow(fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(is_promoted), 0) FROM %s`,
		et.CandidateTable())).Scan(&total, &promoted)
	if err != nil {
		return 0, 0, fmt.Errorf("promotion coverage %s: %w", et, err)
	}
	return total, promoted, nil
}

// AddSourceLink records that a raw source row contributed to a
// candidate. Duplicate links are absorbed.
func (t *Tx) AddSourceLink(et entity.Type, candidateID, sourceTable, sourceRowPK string) error {
	_, err := t.tx.Exec(`
		INSERT INTO candidate_source_link
			(id, candidate_entity_type, candidate_entity_id, source_table_name, source_row_pk)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_table_name, source_row_pk, candidate_entity_type, candidate_entity_id) DO NOTHING`,
		uuid.NewString(), string(et), candidateID, sourceTable, sourceRowPK)
	if err != nil {
		return fmt.Errorf("add source link %s %s: %w", et, candidateID, err)
	}
	return nil
}

// SourceLinkCount counts distinct source rows already linked to a
// candidate of this type. Informational only: the table stores no
// unlinked-source denominator, so no coverage ratio can be derived.
func (t *Tx) SourceLinkCount(et entity.Type) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(DISTINCT source_table_name || '|' || source_row_pk)
		FROM candidate_source_link
		WHERE candidate_entity_type = ?`, string(et)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("source link count %s: %w", et, err)
	}
	return n, nil
}

// UnresolvedRegistrationDeps counts promoted registrations whose
// referenced candidate event exists but is no longer promoted. This can
// happen when an event is demoted after its registrations promoted; it
// is a detectable inconsistency, not a constraint violation.
func (t *Tx) UnresolvedRegistrationDeps() (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(*)
		FROM candidate_registration cr
		WHERE cr.is_promoted = 1
		  AND cr.candidate_event_id IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM candidate_event ce
			WHERE ce.id = cr.candidate_event_id AND ce.is_promoted = 1
		  )`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unresolved registration deps: %w", err)
	}
	return n, nil
}

// CoverageSnapshot is one append-only lineage_coverage_snapshot row.
// Snapshots are never updated in place.
type CoverageSnapshot struct {
	EntityType              entity.Type
	CandidatesTotal         int
	CandidatesPromoted      int
	PctCandidateToCanonical *float64
	SourceRowsInLinkTable   *int
	PctSourceToCandidate    *float64 // permanently nil: no raw-source denominator exists
	ThresholdCanonicalPct   float64
	ThresholdSourcePct      float64
	UnresolvedCriticalDeps  int
	ThresholdsPassed        bool
	Notes                   string
}

// InsertCoverageSnapshot appends one snapshot row.
func (t *Tx) InsertCoverageSnapshot(s CoverageSnapshot) error {
	_, err := t.tx.Exec(`
		INSERT INTO lineage_coverage_snapshot
			(id, entity_type, candidates_total, candidates_linked_to_canonical,
			 pct_candidate_to_canonical, source_rows_in_link_table,
			 source_rows_with_candidate, pct_source_to_candidate,
			 threshold_canonical_pct, threshold_source_pct,
			 unresolved_critical_deps, thresholds_passed, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(s.EntityType), s.CandidatesTotal, s.CandidatesPromoted,
		nullFloat(s.PctCandidateToCanonical), nullInt(s.SourceRowsInLinkTable),
		nullInt(s.SourceRowsInLinkTable), nullFloat(s.PctSourceToCandidate),
		s.ThresholdCanonicalPct, s.ThresholdSourcePct,
		s.UnresolvedCriticalDeps, boolInt(s.ThresholdsPassed), nullStr(s.Notes))
	if err != nil {
		return fmt.Errorf("insert coverage snapshot %s: %w", s.EntityType, err)
	}
	return nil
}

// CountSnapshots counts snapshot rows for one entity type, used by tests.
func (t *Tx) CountSnapshots(et entity.Type) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(*) FROM lineage_coverage_snapshot WHERE entity_type = ?`,
		string(et)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots %s: %w", et, err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
