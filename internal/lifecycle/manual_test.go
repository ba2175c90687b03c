package lifecycle

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"canonry/internal/entity"
)

func TestValidateManualDecisions(t *testing.T) {
	path := writeCSV(t, strings.Join([]string{
		"candidate_entity_type,candidate_entity_id,action,reason_code,actor",
		"participant,cand-1,promote,verified,staff",
		"participant,cand-2,reject,,staff",
		"boat,cand-3,promote,,staff",
		"participant,cand-4,archive,,staff",
		"participant,,promote,,staff",
	}, "\n"))

	ctrs, err := ValidateManualDecisions(path)
	if err != nil {
		t.Fatalf("ValidateManualDecisions: %v", err)
	}
	if ctrs.RowsRead != 5 || ctrs.RowsInvalid != 3 {
		t.Errorf("counters = %+v", ctrs)
	}
	if ctrs.RowsApplied != 0 {
		t.Error("validate-only mode applied rows")
	}
}

func TestValidateManualDecisionsMissingColumns(t *testing.T) {
	path := writeCSV(t, "candidate_entity_type,action\nparticipant,promote\n")
	if _, err := ValidateManualDecisions(path); err == nil {
		t.Fatal("expected error for missing columns")
	}
}

func TestRunManualApply(t *testing.T) {
	tx := testTx(t)
	toPromote := newParticipant(t, tx, "jane doe")
	toReject := newParticipant(t, tx, "john roe")
	toHold := newParticipant(t, tx, "jo schmo")

	path := writeCSV(t, strings.Join([]string{
		"candidate_entity_type,candidate_entity_id,action,reason_code,actor",
		"participant," + toPromote + ",promote,verified_by_phone,staff",
		"participant," + toReject + ",reject,bad_data,staff",
		"participant," + toHold + ",hold,,staff",
	}, "\n"))

	ctrs, promotedTypes, err := RunManualApply(tx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("RunManualApply: %v", err)
	}
	if ctrs.RowsRead != 3 || ctrs.RowsApplied != 3 {
		t.Fatalf("counters = %+v; warnings: %v", ctrs, ctrs.Warnings)
	}
	if len(promotedTypes) != 1 || promotedTypes[0] != entity.Participant {
		t.Errorf("promoted types = %v, want [participant]", promotedTypes)
	}

	check := func(id string, wantState entity.State, wantPromoted bool) {
		t.Helper()
		st, err := tx.CandidateStatus(entity.Participant, id)
		if err != nil {
			t.Fatalf("CandidateStatus: %v", err)
		}
		if st.ResolutionState != wantState || st.IsPromoted != wantPromoted {
			t.Errorf("%s = %q promoted=%t, want %q promoted=%t",
				id, st.ResolutionState, st.IsPromoted, wantState, wantPromoted)
		}
	}
	check(toPromote, entity.StateAutoPromote, true)
	check(toReject, entity.StateReject, false)
	check(toHold, entity.StateHold, false)
}

func TestRunManualApplyDefaultReasonCode(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	path := writeCSV(t, strings.Join([]string{
		"candidate_entity_type,candidate_entity_id,action,reason_code,actor",
		"participant," + id + ",promote,,staff",
	}, "\n"))

	if _, _, err := RunManualApply(tx, path, zap.NewNop()); err != nil {
		t.Fatalf("RunManualApply: %v", err)
	}
	// The blank reason_code falls back to manual_review in the audit row.
	n, err := tx.CountActions(entity.Participant, id, "promote")
	if err != nil {
		t.Fatalf("CountActions: %v", err)
	}
	if n != 1 {
		t.Errorf("promote audit records = %d, want 1", n)
	}
}

func TestRunManualApplySecondPassSkips(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	path := writeCSV(t, strings.Join([]string{
		"candidate_entity_type,candidate_entity_id,action,reason_code,actor",
		"participant," + id + ",promote,,staff",
	}, "\n"))

	if _, _, err := RunManualApply(tx, path, zap.NewNop()); err != nil {
		t.Fatalf("RunManualApply: %v", err)
	}
	ctrs, promotedTypes, err := RunManualApply(tx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("RunManualApply again: %v", err)
	}
	if ctrs.RowsApplied != 0 || ctrs.RowsSkippedAlreadyPromoted != 1 {
		t.Errorf("counters = %+v", ctrs)
	}
	if len(promotedTypes) != 0 {
		t.Errorf("promoted types = %v, want none on skip", promotedTypes)
	}
}

func TestRunManualApplyRejectWhilePromotedIsInvalid(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	promoteParticipant(t, tx, id)

	path := writeCSV(t, strings.Join([]string{
		"candidate_entity_type,candidate_entity_id,action,reason_code,actor",
		"participant," + id + ",reject,bad_data,staff",
	}, "\n"))

	ctrs, _, err := RunManualApply(tx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("RunManualApply: %v", err)
	}
	if ctrs.RowsInvalid != 1 {
		t.Errorf("counters = %+v, want the reject blocked", ctrs)
	}
}

func TestBuildManualReportNote(t *testing.T) {
	ctrs := &ManualCounters{RowsRead: 2, RowsApplied: 2}
	got := BuildManualReport(ctrs, false)
	if !strings.Contains(got, "Manual Review Decision Apply Report") {
		t.Errorf("report header missing:\n%s", got)
	}
	if !strings.Contains(got, "run the score command") {
		t.Error("post-apply note missing from wet run with applied rows")
	}

	got = BuildManualReport(ctrs, true)
	if strings.Contains(got, "run the score command") {
		t.Error("dry run still shows the post-apply note")
	}
}
