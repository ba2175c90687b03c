package store

import (
	"testing"

	"canonry/internal/entity"
)

func TestScoringRowsFeatures(t *testing.T) {
	tx := testTx(t)
	full := insertParticipant(t, tx, entity.ParticipantCandidate{
		NormalizedName: "jane doe",
		BestEmail:      "jane@example.com",
		BestPhone:      "555-0100",
		DateOfBirth:    "1990-01-01",
	})
	sparse := insertParticipant(t, tx, entity.ParticipantCandidate{
		NormalizedName: "john roe",
	})

	rows, err := tx.ScoringRows(entity.Participant)
	if err != nil {
		t.Fatalf("ScoringRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	byID := map[string]ScoringRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	if f := byID[full].Features; !f["email_exact"] || !f["phone_exact"] || !f["dob_exact"] || !f["normalized_name_exact"] {
		t.Errorf("full candidate features = %v", f)
	}
	if f := byID[sparse].Features; f["email_exact"] || !f["normalized_name_exact"] {
		t.Errorf("sparse candidate features = %v", f)
	}
}

func TestScoringRowsUnknownType(t *testing.T) {
	tx := testTx(t)
	if _, err := tx.ScoringRows(entity.Type("boat")); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
}

func TestUpdateScore(t *testing.T) {
	tx := testTx(t)
	id := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})

	if err := tx.UpdateScore(entity.Participant, id, 0.75, entity.StateReview, `["feature:email_exact:0.5500"]`, "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st == nil {
		t.Fatal("candidate not found")
	}
	if st.ResolutionState != entity.StateReview {
		t.Errorf("state = %q, want review", st.ResolutionState)
	}
	if st.QualityScore == nil || *st.QualityScore != 0.75 {
		t.Errorf("score = %v, want 0.75", st.QualityScore)
	}
}

func TestUpdateScorePromotedKeepsAutoPromote(t *testing.T) {
	tx := testTx(t)
	id := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})
	if err := tx.MarkPromoted(entity.Participant, id, "canon-1"); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}

	// A re-score that would drop the candidate to review must not change
	// the visible state of a promoted candidate.
	if err := tx.UpdateScore(entity.Participant, id, 0.6, entity.StateReview, "[]", "run-2"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.ResolutionState != entity.StateAutoPromote {
		t.Errorf("state = %q, want auto_promote preserved", st.ResolutionState)
	}
	if st.QualityScore == nil || *st.QualityScore != 0.6 {
		t.Errorf("score = %v, want 0.6 (score itself still updates)", st.QualityScore)
	}
}

func TestCandidateStatusMissingRow(t *testing.T) {
	tx := testTx(t)
	st, err := tx.CandidateStatus(entity.Participant, "no-such-id")
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st != nil {
		t.Errorf("got %+v, want nil for missing row", st)
	}
}

func TestClearPromotion(t *testing.T) {
	tx := testTx(t)
	id := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})
	if err := tx.MarkPromoted(entity.Participant, id, "canon-1"); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}
	if err := tx.ClearPromotion(entity.Participant, id, entity.StateReview); err != nil {
		t.Fatalf("ClearPromotion: %v", err)
	}
	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.IsPromoted {
		t.Error("is_promoted still set")
	}
	if st.PromotedCanonicalID != "" {
		t.Errorf("promoted_canonical_id = %q, want cleared", st.PromotedCanonicalID)
	}
	if st.ResolutionState != entity.StateReview {
		t.Errorf("state = %q, want review", st.ResolutionState)
	}
}

func TestPendingPromotions(t *testing.T) {
	tx := testTx(t)
	pending := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})
	if err := tx.UpdateScore(entity.Participant, pending, 0.96, entity.StateAutoPromote, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	already := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "john roe"})
	if err := tx.UpdateScore(entity.Participant, already, 0.96, entity.StateAutoPromote, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	if err := tx.MarkPromoted(entity.Participant, already, "canon-1"); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}
	held := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "jo schmo"})
	if err := tx.UpdateScore(entity.Participant, held, 0.4, entity.StateHold, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}

	got, err := tx.PendingPromotions(entity.Participant)
	if err != nil {
		t.Fatalf("PendingPromotions: %v", err)
	}
	if len(got) != 1 || got[0].ID != pending {
		t.Fatalf("pending = %+v, want just %s", got, pending)
	}
	if got[0].QualityScore == nil || *got[0].QualityScore != 0.96 {
		t.Errorf("score = %v, want 0.96", got[0].QualityScore)
	}
}

func TestPendingPromotionsRegistrationDeps(t *testing.T) {
	tx := testTx(t)
	id, err := tx.InsertRegistrationCandidate(entity.RegistrationCandidate{
		StableFingerprint:      "fp-reg-1",
		RegistrationExternalID: "RM-1001",
		CandidateEventID:       "ev-1",
		CandidateYachtID:       "y-1",
	})
	if err != nil {
		t.Fatalf("InsertRegistrationCandidate: %v", err)
	}
	if err := tx.UpdateScore(entity.Registration, id, 0.95, entity.StateAutoPromote, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}

	got, err := tx.PendingPromotions(entity.Registration)
	if err != nil {
		t.Fatalf("PendingPromotions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d pending, want 1", len(got))
	}
	p := got[0]
	if p.CandidateEventID != "ev-1" || p.CandidateYachtID != "y-1" || p.CandidatePrimaryParticipantID != "" {
		t.Errorf("deps = %q/%q/%q", p.CandidateEventID, p.CandidateYachtID, p.CandidatePrimaryParticipantID)
	}
}

func TestStateCounts(t *testing.T) {
	tx := testTx(t)
	a := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})
	if err := tx.UpdateScore(entity.Participant, a, 0.96, entity.StateAutoPromote, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	if err := tx.MarkPromoted(entity.Participant, a, "canon-1"); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}
	b := insertParticipant(t, tx, entity.ParticipantCandidate{NormalizedName: "john roe"})
	if err := tx.UpdateScore(entity.Participant, b, 0.7, entity.StateReview, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}

	counts, err := tx.StateCounts()
	if err != nil {
		t.Fatalf("StateCounts: %v", err)
	}
	var part StateCount
	for _, sc := range counts {
		if sc.EntityType == entity.Participant {
			part = sc
		}
	}
	if part.Total != 2 || part.Promoted != 1 || part.AutoPromote != 1 || part.Review != 1 {
		t.Errorf("participant counts = %+v", part)
	}
}
