// Package lineage computes coverage metrics per entity type and records
// them as append-only snapshots, plus the purge-readiness gate built on
// top of them.
package lineage

import (
	"fmt"
	"math"
	"strings"

	"canonry/internal/entity"
	"canonry/internal/store"
)

// Default thresholds: reporting is advisory at 90, purge gating is
// stricter at 95.
const (
	DefaultReportThresholdPct = 90.0
	DefaultPurgeThresholdPct  = 95.0
)

// Result is the computed coverage for one entity type.
type Result struct {
	EntityType              entity.Type
	CandidatesTotal         int
	CandidatesPromoted      int
	PctCandidateToCanonical *float64
	SourceRowsInLinkTable   *int
	PctSourceToCandidate    *float64
	UnresolvedCriticalDeps  int
	ThresholdsPassed        bool
	ThresholdCanonicalPct   float64
	ThresholdSourcePct      float64
	Notes                   []string
}

// Round2 rounds to 2 decimal places, the reported coverage precision.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Compute builds the coverage result for one entity type.
//
// The source-to-candidate ratio is structurally unmeasurable:
// candidate_source_link stores only rows that already have a candidate,
// so no unlinked-source denominator exists. The distinct linked-row
// count is reported for information and the percentage stays null, which
// also keeps the source threshold unenforced.
func Compute(tx *store.Tx, et entity.Type, canonicalThresholdPct, sourceThresholdPct float64) (Result, error) {
	res := Result{
		EntityType:            et,
		ThresholdCanonicalPct: canonicalThresholdPct,
		ThresholdSourcePct:    sourceThresholdPct,
	}

	total, promoted, err := tx.PromotionCoverage(et)
	if err != nil {
		return res, err
	}
	res.CandidatesTotal = total
	res.CandidatesPromoted = promoted
	if total > 0 {
		pct := Round2(float64(promoted) / float64(total) * 100.0)
		res.PctCandidateToCanonical = &pct
	}

	linked, err := tx.SourceLinkCount(et)
	if err != nil {
		return res, err
	}
	if linked > 0 {
		res.SourceRowsInLinkTable = &linked
	}

	if et == entity.Registration {
		deps, err := tx.UnresolvedRegistrationDeps()
		if err != nil {
			return res, err
		}
		res.UnresolvedCriticalDeps = deps
	}

	canonOK := res.PctCandidateToCanonical != nil && *res.PctCandidateToCanonical >= canonicalThresholdPct
	res.ThresholdsPassed = canonOK && res.UnresolvedCriticalDeps == 0

	if res.PctCandidateToCanonical == nil {
		res.Notes = append(res.Notes, "no candidates found; pct_candidate_to_canonical is null")
	}
	res.Notes = append(res.Notes,
		"source coverage ratio not measurable (candidate_source_link stores only linked rows)")
	if res.UnresolvedCriticalDeps > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf(
			"%d promoted registrations have un-promoted events", res.UnresolvedCriticalDeps))
	}
	return res, nil
}

func (r Result) snapshot() store.CoverageSnapshot {
	return store.CoverageSnapshot{
		EntityType:              r.EntityType,
		CandidatesTotal:         r.CandidatesTotal,
		CandidatesPromoted:      r.CandidatesPromoted,
		PctCandidateToCanonical: r.PctCandidateToCanonical,
		SourceRowsInLinkTable:   r.SourceRowsInLinkTable,
		PctSourceToCandidate:    r.PctSourceToCandidate,
		ThresholdCanonicalPct:   r.ThresholdCanonicalPct,
		ThresholdSourcePct:      r.ThresholdSourcePct,
		UnresolvedCriticalDeps:  r.UnresolvedCriticalDeps,
		ThresholdsPassed:        r.ThresholdsPassed,
		Notes:                   strings.Join(r.Notes, "\n"),
	}
}

// RunReport computes coverage for the requested scope and appends a
// snapshot row per entity type. A dry run computes without persisting.
func RunReport(tx *store.Tx, scope string, canonicalThresholdPct, sourceThresholdPct float64, dryRun bool) ([]Result, error) {
	types, err := entity.ExpandTypes(scope)
	if err != nil {
		return nil, err
	}
	var results []Result
	for _, et := range types {
		res, err := Compute(tx, et, canonicalThresholdPct, sourceThresholdPct)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if !dryRun {
			if err := tx.InsertCoverageSnapshot(res.snapshot()); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

// RunPurgeCheck computes coverage at purge thresholds, always persisting
// snapshots for audit, and reports whether every entity type passed.
func RunPurgeCheck(tx *store.Tx, scope string, canonicalThresholdPct, sourceThresholdPct float64) ([]Result, bool, error) {
	results, err := RunReport(tx, scope, canonicalThresholdPct, sourceThresholdPct, false)
	if err != nil {
		return results, false, err
	}
	allPassed := true
	for _, r := range results {
		if !r.ThresholdsPassed {
			allPassed = false
		}
	}
	return results, allPassed, nil
}

// BuildReport renders the operator-facing coverage summary.
func BuildReport(results []Result, dryRun bool) string {
	rule := strings.Repeat("=", 70)
	lines := []string{
		rule,
		"Lineage Coverage Report",
		fmt.Sprintf("  dry_run: %t", dryRun),
		rule,
	}
	allPassed := true
	for _, r := range results {
		canonPct := "n/a"
		if r.PctCandidateToCanonical != nil {
			canonPct = fmt.Sprintf("%.2f%%", *r.PctCandidateToCanonical)
		}
		srcPct := "n/a (not measurable)"
		if r.PctSourceToCandidate != nil {
			srcPct = fmt.Sprintf("%.2f%%", *r.PctSourceToCandidate)
		}
		status := "PASS"
		if !r.ThresholdsPassed {
			status = "FAIL"
			allPassed = false
		}
		lines = append(lines,
			fmt.Sprintf("\n  [%s] %s", status, r.EntityType),
			fmt.Sprintf("    candidates total/promoted: %d / %d (%s)",
				r.CandidatesTotal, r.CandidatesPromoted, canonPct),
			fmt.Sprintf("    threshold canonical: %.1f%%", r.ThresholdCanonicalPct),
			fmt.Sprintf("    source coverage:     %s", srcPct),
			fmt.Sprintf("    threshold source:    %.1f%%", r.ThresholdSourcePct),
			fmt.Sprintf("    unresolved deps:     %d", r.UnresolvedCriticalDeps),
		)
		for _, note := range r.Notes {
			lines = append(lines, "    note: "+note)
		}
	}
	overall := "PASS"
	if !allPassed {
		overall = "FAIL"
	}
	lines = append(lines, "\n"+rule, "  Overall: "+overall, rule)
	return strings.Join(lines, "\n")
}
