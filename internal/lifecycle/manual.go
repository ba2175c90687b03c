package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"canonry/internal/entity"
	"canonry/internal/store"
)

var manualRequiredCols = []string{"candidate_entity_type", "candidate_entity_id", "action", "actor"}

const defaultReasonCode = "manual_review"

// ManualCounters accumulates run statistics across one decisions CSV.
type ManualCounters struct {
	RowsRead                   int
	RowsApplied                int
	RowsSkippedAlreadyPromoted int
	RowsSkippedMissingDep      int
	RowsInvalid                int
	DBErrors                   int
	Warnings                   []string
}

func (c *ManualCounters) warn(msg string) {
	if len(c.Warnings) < maxWarnings {
		c.Warnings = append(c.Warnings, msg)
	}
}

func (c *ManualCounters) record(res Result) {
	switch res.Outcome {
	case OutcomeApplied:
		c.RowsApplied++
	case OutcomeInvalid:
		c.RowsInvalid++
	case OutcomeSkippedAlreadyPromoted:
		c.RowsSkippedAlreadyPromoted++
	case OutcomeSkippedMissingDep:
		c.RowsSkippedMissingDep++
	}
	if res.Warning != "" {
		c.warn(res.Warning)
	}
}

// JSON renders the counters for persistence alongside a run record.
func (c *ManualCounters) JSON() string {
	b, err := json.Marshal(map[string]any{
		"rows_read":                     c.RowsRead,
		"rows_applied":                  c.RowsApplied,
		"rows_skipped_already_promoted": c.RowsSkippedAlreadyPromoted,
		"rows_skipped_missing_dep":      c.RowsSkippedMissingDep,
		"rows_invalid":                  c.RowsInvalid,
		"db_errors":                     c.DBErrors,
		"warnings":                      c.Warnings,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

// manualRow is one field-validated decision. action is promote, reject
// or hold.
type manualRow struct {
	idx    int
	et     entity.Type
	id     string
	action string
	reason string
	actor  string
}

// validateManualRow field-checks one raw CSV row. A nil row with an
// empty warning means the row is valid.
func validateManualRow(idx int, row decisionRow) (*manualRow, string) {
	etRaw := strings.ToLower(row.get("candidate_entity_type"))
	id := row.get("candidate_entity_id")
	action := strings.ToLower(row.get("action"))
	actor := row.get("actor")

	if etRaw == "" || id == "" || action == "" || actor == "" {
		return nil, fmt.Sprintf(
			"row %d: missing required field(s) (entity_type=%q, pk=%q, action=%q, actor=%q)",
			idx, etRaw, id, action, actor)
	}
	et, err := entity.ParseType(etRaw)
	if err != nil {
		return nil, fmt.Sprintf("row %d: unknown candidate_entity_type=%q", idx, etRaw)
	}
	switch action {
	case "promote", "reject", "hold":
	default:
		return nil, fmt.Sprintf("row %d: unknown action=%q", idx, action)
	}

	reason := row.get("reason_code")
	if reason == "" {
		reason = defaultReasonCode
	}
	return &manualRow{idx: idx, et: et, id: id, action: action, reason: reason, actor: actor}, ""
}

// readManualDecisions loads and header-validates a decisions CSV.
func readManualDecisions(path string) ([]decisionRow, error) {
	header, rows, err := readRows(path)
	if errors.Is(err, errNoHeader) {
		return nil, fmt.Errorf("decisions CSV is empty or has no header: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if missing := missingCols(header, manualRequiredCols); len(missing) > 0 {
		return nil, fmt.Errorf("decisions CSV missing required columns: %v", missing)
	}
	return rows, nil
}

// ValidateManualDecisions parses and field-validates a decisions CSV
// without touching the database.
func ValidateManualDecisions(decisionsPath string) (*ManualCounters, error) {
	rows, err := readManualDecisions(decisionsPath)
	if err != nil {
		return nil, err
	}
	ctrs := &ManualCounters{}
	for idx, row := range rows {
		ctrs.RowsRead++
		if _, warning := validateManualRow(idx, row); warning != "" {
			ctrs.RowsInvalid++
			ctrs.warn(warning)
		}
	}
	return ctrs, nil
}

// RunManualApply applies manual review decisions from a CSV inside the
// caller's transaction, one savepoint per row. It returns the entity
// types that had at least one successful promote, sorted, so the caller
// can re-score only those. Reject and hold decisions never trigger a
// re-score, which would override the manually set states.
func RunManualApply(tx *store.Tx, decisionsPath string, logger *zap.Logger) (*ManualCounters, []entity.Type, error) {
	rows, err := readManualDecisions(decisionsPath)
	if err != nil {
		return nil, nil, err
	}

	ctrs := &ManualCounters{}
	promoted := make(map[entity.Type]bool)

	for idx, row := range rows {
		ctrs.RowsRead++
		parsed, warning := validateManualRow(idx, row)
		if warning != "" {
			ctrs.RowsInvalid++
			ctrs.warn(warning)
			continue
		}

		sp, err := tx.Savepoint(fmt.Sprintf("manual_apply_%d", idx))
		if err != nil {
			return ctrs, nil, err
		}
		var res Result
		switch parsed.action {
		case "promote":
			res, err = ManualPromote(tx, parsed.et, parsed.id, parsed.reason, parsed.actor)
		case "reject":
			res, err = ManualStateChange(tx, parsed.et, parsed.id, entity.StateReject, parsed.reason, parsed.actor)
		case "hold":
			res, err = ManualStateChange(tx, parsed.et, parsed.id, entity.StateHold, parsed.reason, parsed.actor)
		}
		if err != nil {
			if rbErr := sp.Rollback(); rbErr != nil {
				return ctrs, nil, rbErr
			}
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("row %d: %v", idx, err))
			logger.Warn("manual decision failed", zap.Int("row", idx),
				zap.String("action", parsed.action), zap.Error(err))
			continue
		}
		if err := sp.Release(); err != nil {
			return ctrs, nil, err
		}
		ctrs.record(res)
		if res.Outcome == OutcomeApplied && parsed.action == "promote" {
			promoted[parsed.et] = true
		}
	}

	types := make([]entity.Type, 0, len(promoted))
	for et := range promoted {
		types = append(types, et)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return ctrs, types, nil
}

// BuildManualReport renders the operator-facing run summary.
func BuildManualReport(c *ManualCounters, dryRun bool) string {
	rule := strings.Repeat("=", 60)
	lines := []string{
		rule,
		"Manual Review Decision Apply Report",
		fmt.Sprintf("  dry_run: %t", dryRun),
		rule,
		fmt.Sprintf("  rows read:                      %d", c.RowsRead),
		fmt.Sprintf("  rows applied:                   %d", c.RowsApplied),
		fmt.Sprintf("  skipped (already promoted):     %d", c.RowsSkippedAlreadyPromoted),
		fmt.Sprintf("  skipped (missing dep):          %d", c.RowsSkippedMissingDep),
		fmt.Sprintf("  invalid rows:                   %d", c.RowsInvalid),
		fmt.Sprintf("DB errors:                        %d", c.DBErrors),
	}
	if len(c.Warnings) > 0 {
		lines = append(lines, fmt.Sprintf("\nWarnings (%d):", len(c.Warnings)))
		for i, w := range c.Warnings {
			if i == 20 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(c.Warnings)-20))
				break
			}
			lines = append(lines, "  "+w)
		}
	}
	if !dryRun && c.RowsApplied > 0 {
		lines = append(lines, "\nNote: run the score command to refresh candidates affected by reject/hold decisions.")
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}
