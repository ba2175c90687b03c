package lifecycle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"canonry/internal/entity"
	"canonry/internal/store"
)

// Op names a lifecycle operation driven by a decisions CSV.
type Op string

const (
	OpMerge  Op = "merge"
	OpDemote Op = "demote"
	OpUnlink Op = "unlink"
	OpSplit  Op = "split"
)

// ParseOp validates an operation name from the CLI.
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpMerge, OpDemote, OpUnlink, OpSplit:
		return Op(s), nil
	}
	return "", fmt.Errorf("unknown lifecycle op %q (want merge, demote, unlink or split)", s)
}

var requiredColsByOp = map[Op][]string{
	OpMerge:  {"canonical_entity_type", "keep_canonical_id", "merge_canonical_id", "reason_code", "actor"},
	OpDemote: {"candidate_entity_type", "candidate_entity_id", "reason_code", "actor"},
	OpUnlink: {"candidate_entity_type", "candidate_entity_id", "reason_code", "actor"},
	OpSplit:  {"canonical_entity_type", "old_canonical_id", "candidate_entity_id", "reason_code", "actor"},
}

type decisionRow map[string]string

func (r decisionRow) get(col string) string {
	return strings.TrimSpace(r[col])
}

func (r decisionRow) entityType(col string) (entity.Type, bool) {
	et, err := entity.ParseType(strings.ToLower(r.get(col)))
	return et, err == nil
}

// errNoHeader marks a decisions file with no header row.
var errNoHeader = errors.New("csv has no header")

// readRows loads a header-keyed CSV. Short rows are padded with empty
// strings; extra cells are dropped.
func readRows(path string) ([]string, []decisionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []decisionRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read CSV row: %w", err)
		}
		row := make(decisionRow, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// missingCols reports required columns absent from the header, sorted.
func missingCols(header, required []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, col := range required {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return missing
}

// readDecisions loads and header-validates a lifecycle decisions CSV.
func readDecisions(path string, op Op) ([]decisionRow, error) {
	header, rows, err := readRows(path)
	if errors.Is(err, errNoHeader) {
		return nil, fmt.Errorf("lifecycle CSV is empty or has no header: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if missing := missingCols(header, requiredColsByOp[op]); len(missing) > 0 {
		return nil, fmt.Errorf("lifecycle CSV (%s) missing required columns: %v", op, missing)
	}
	return rows, nil
}

// RunLifecycle applies one lifecycle operation from a decisions CSV
// inside the caller's transaction. Each row (or split group) runs under
// its own savepoint so a storage failure poisons only that row. The
// caller commits, or rolls back for a dry run.
func RunLifecycle(tx *store.Tx, decisionsPath string, op Op, logger *zap.Logger) (*Counters, error) {
	ctrs := &Counters{}
	rows, err := readDecisions(decisionsPath, op)
	if err != nil {
		return nil, err
	}

	if op == OpSplit {
		runSplit(tx, rows, ctrs, logger)
		return ctrs, nil
	}

	for idx, row := range rows {
		ctrs.RowsRead++
		sp, err := tx.Savepoint(fmt.Sprintf("lifecycle_%s_%d", op, idx))
		if err != nil {
			return ctrs, err
		}
		res, err := dispatchRow(tx, op, idx, row, ctrs)
		if err != nil {
			if rbErr := sp.Rollback(); rbErr != nil {
				return ctrs, rbErr
			}
			ctrs.DBErrors++
			msg := fmt.Sprintf("%s row %d: %v", op, idx, err)
			ctrs.warn(msg)
			logger.Warn("lifecycle row failed", zap.String("op", string(op)), zap.Int("row", idx), zap.Error(err))
			continue
		}
		if err := sp.Release(); err != nil {
			return ctrs, err
		}
		ctrs.record(res)
	}
	return ctrs, nil
}

// dispatchRow field-validates one merge/demote/unlink row and applies it.
func dispatchRow(tx *store.Tx, op Op, idx int, row decisionRow, ctrs *Counters) (Result, error) {
	reason := row.get("reason_code")
	actor := row.get("actor")

	if op == OpMerge {
		keepID := row.get("keep_canonical_id")
		mergeID := row.get("merge_canonical_id")
		if row.get("canonical_entity_type") == "" || keepID == "" || mergeID == "" || actor == "" {
			return invalid("merge row %d: missing required field(s)", idx), nil
		}
		et, ok := row.entityType("canonical_entity_type")
		if !ok {
			return invalid("merge row %d: unknown entity_type=%q", idx, row.get("canonical_entity_type")), nil
		}
		return Merge(tx, et, keepID, mergeID, reason, actor)
	}

	candID := row.get("candidate_entity_id")
	if row.get("candidate_entity_type") == "" || candID == "" || actor == "" {
		return invalid("%s row %d: missing required field(s)", op, idx), nil
	}
	et, ok := row.entityType("candidate_entity_type")
	if !ok {
		return invalid("%s row %d: unknown entity_type=%q", op, idx, row.get("candidate_entity_type")), nil
	}
	if op == OpDemote {
		return Demote(tx, et, candID, reason, actor)
	}
	return Unlink(tx, et, candID, reason, actor)
}

type splitGroup struct {
	et           entity.Type
	oldID        string
	candidateIDs []string
	reason       string
	actor        string
}

// runSplit batches rows by (entity_type, old_canonical_id) and applies
// each group under one savepoint, preserving first-seen group order.
func runSplit(tx *store.Tx, rows []decisionRow, ctrs *Counters, logger *zap.Logger) {
	var order []string
	groups := make(map[string]*splitGroup)

	for _, row := range rows {
		ctrs.RowsRead++
		oldID := row.get("old_canonical_id")
		candID := row.get("candidate_entity_id")
		if row.get("canonical_entity_type") == "" || oldID == "" || candID == "" || row.get("actor") == "" {
			ctrs.RowsInvalid++
			ctrs.warn("split row: missing required field(s)")
			continue
		}
		et, ok := row.entityType("canonical_entity_type")
		if !ok {
			ctrs.RowsInvalid++
			ctrs.warn(fmt.Sprintf("split row: unknown entity_type=%q", row.get("canonical_entity_type")))
			continue
		}
		key := string(et) + "|" + oldID
		g, seen := groups[key]
		if !seen {
			g = &splitGroup{et: et, oldID: oldID, reason: row.get("reason_code"), actor: row.get("actor")}
			groups[key] = g
			order = append(order, key)
		}
		g.candidateIDs = append(g.candidateIDs, candID)
	}

	for gidx, key := range order {
		g := groups[key]
		sp, err := tx.Savepoint(fmt.Sprintf("split_grp_%d", gidx))
		if err != nil {
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("split %s %s: %v", g.et, g.oldID, err))
			return
		}
		res, err := Split(tx, g.et, g.oldID, g.candidateIDs, g.reason, g.actor)
		if err != nil {
			if rbErr := sp.Rollback(); rbErr != nil {
				ctrs.DBErrors++
				ctrs.warn(fmt.Sprintf("split %s %s: rollback: %v", g.et, g.oldID, rbErr))
				return
			}
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("split %s %s: %v", g.et, g.oldID, err))
			logger.Warn("split group failed", zap.String("entity_type", string(g.et)),
				zap.String("old_canonical_id", g.oldID), zap.Error(err))
			continue
		}
		if err := sp.Release(); err != nil {
			ctrs.DBErrors++
			ctrs.warn(fmt.Sprintf("split %s %s: release: %v", g.et, g.oldID, err))
			return
		}
		ctrs.RowsApplied += res.Applied
		ctrs.RowsInvalid += res.Invalid
		for _, w := range res.Warnings {
			ctrs.warn(w)
		}
	}
}
