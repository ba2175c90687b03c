package lifecycle

import (
	"testing"

	"canonry/internal/entity"
	"canonry/internal/store"
)

func testTx(t *testing.T) *store.Tx {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

// newParticipant inserts a candidate in review state with a quality score.
func newParticipant(t *testing.T, tx *store.Tx, name string) string {
	t.Helper()
	id, err := tx.InsertParticipantCandidate(entity.ParticipantCandidate{
		StableFingerprint: "fp-" + name,
		DisplayName:       name,
		NormalizedName:    name,
	})
	if err != nil {
		t.Fatalf("InsertParticipantCandidate: %v", err)
	}
	if err := tx.UpdateScore(entity.Participant, id, 0.8, entity.StateReview, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}
	return id
}

// promoteParticipant materializes a canonical for the candidate and links
// it, the state a pipeline promotion leaves behind.
func promoteParticipant(t *testing.T, tx *store.Tx, candidateID string) string {
	t.Helper()
	canonID, err := tx.InsertCanonicalFromCandidate(entity.Participant, candidateID)
	if err != nil {
		t.Fatalf("InsertCanonicalFromCandidate: %v", err)
	}
	if err := tx.InsertLinkAuto(entity.Participant, candidateID, canonID, nil); err != nil {
		t.Fatalf("InsertLinkAuto: %v", err)
	}
	if err := tx.MarkPromoted(entity.Participant, candidateID, canonID); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}
	return canonID
}

func TestDemoteSoleLinkDeletesCanonical(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	canonID := promoteParticipant(t, tx, id)
	if err := tx.InsertEnrichmentNBA(entity.Participant, id, "phone_exact", 0.2, "v1"); err != nil {
		t.Fatalf("InsertEnrichmentNBA: %v", err)
	}

	res, err := Demote(tx, entity.Participant, id, "wrong_person", "reviewer@club.org")
	if err != nil {
		t.Fatalf("Demote: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s), want applied", res.Outcome, res.Warning)
	}

	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.IsPromoted || st.PromotedCanonicalID != "" || st.ResolutionState != entity.StateReview {
		t.Errorf("candidate after demote = %+v", st)
	}
	exists, err := tx.CanonicalExists(entity.Participant, canonID)
	if err != nil {
		t.Fatalf("CanonicalExists: %v", err)
	}
	if exists {
		t.Error("orphaned canonical survived sole-link demote")
	}
	nbas, err := tx.OpenNBAs(entity.Participant, id)
	if err != nil {
		t.Fatalf("OpenNBAs: %v", err)
	}
	if len(nbas) != 0 {
		t.Errorf("open NBAs = %d after demote, want 0", len(nbas))
	}
	n, err := tx.CountActions(entity.Participant, id, "demote")
	if err != nil {
		t.Fatalf("CountActions: %v", err)
	}
	if n != 1 {
		t.Errorf("demote audit records = %d, want 1", n)
	}
}

func TestDemoteSharedCanonicalSurvives(t *testing.T) {
	tx := testTx(t)
	a := newParticipant(t, tx, "jane doe")
	b := newParticipant(t, tx, "jane m doe")
	canonID := promoteParticipant(t, tx, a)
	if err := tx.InsertLinkAuto(entity.Participant, b, canonID, nil); err != nil {
		t.Fatalf("InsertLinkAuto: %v", err)
	}
	if err := tx.MarkPromoted(entity.Participant, b, canonID); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}

	res, err := Demote(tx, entity.Participant, a, "duplicate", "reviewer@club.org")
	if err != nil {
		t.Fatalf("Demote: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Warning)
	}
	exists, err := tx.CanonicalExists(entity.Participant, canonID)
	if err != nil {
		t.Fatalf("CanonicalExists: %v", err)
	}
	if !exists {
		t.Error("canonical with a remaining link was deleted")
	}
}

func TestDemoteUnpromotedIsInvalid(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	res, err := Demote(tx, entity.Participant, id, "oops", "reviewer@club.org")
	if err != nil {
		t.Fatalf("Demote: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("outcome = %v, want invalid", res.Outcome)
	}

	// Demoting twice: the second call sees an unpromoted candidate.
	promoteParticipant(t, tx, id)
	if res, err = Demote(tx, entity.Participant, id, "first", "reviewer@club.org"); err != nil || res.Outcome != OutcomeApplied {
		t.Fatalf("first demote: %v %v", res, err)
	}
	if res, err = Demote(tx, entity.Participant, id, "second", "reviewer@club.org"); err != nil {
		t.Fatalf("second demote: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("second demote outcome = %v, want invalid", res.Outcome)
	}
}

func TestUnlinkPreservesCanonicalAndNBAs(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	canonID := promoteParticipant(t, tx, id)
	if err := tx.InsertEnrichmentNBA(entity.Participant, id, "phone_exact", 0.2, "v1"); err != nil {
		t.Fatalf("InsertEnrichmentNBA: %v", err)
	}

	res, err := Unlink(tx, entity.Participant, id, "needs_review", "reviewer@club.org")
	if err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Warning)
	}

	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.IsPromoted || st.ResolutionState != entity.StateReview {
		t.Errorf("candidate after unlink = %+v", st)
	}
	exists, err := tx.CanonicalExists(entity.Participant, canonID)
	if err != nil {
		t.Fatalf("CanonicalExists: %v", err)
	}
	if !exists {
		t.Error("unlink deleted the canonical; only demote does that")
	}
	nbas, err := tx.OpenNBAs(entity.Participant, id)
	if err != nil {
		t.Fatalf("OpenNBAs: %v", err)
	}
	if len(nbas) != 1 {
		t.Errorf("open NBAs = %d after unlink, want 1 preserved", len(nbas))
	}
}

func TestManualPromoteFromReview(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")

	res, err := ManualPromote(tx, entity.Participant, id, "verified_by_phone", "staff")
	if err != nil {
		t.Fatalf("ManualPromote: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Warning)
	}

	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if !st.IsPromoted || st.ResolutionState != entity.StateAutoPromote {
		t.Errorf("candidate after manual promote = %+v", st)
	}
	linked, err := tx.LookupCanonicalID(entity.Participant, id)
	if err != nil {
		t.Fatalf("LookupCanonicalID: %v", err)
	}
	if linked == "" || linked != st.PromotedCanonicalID {
		t.Errorf("link = %q, candidate canonical = %q", linked, st.PromotedCanonicalID)
	}
	prov, err := tx.CountProvenance(entity.Participant, linked)
	if err != nil {
		t.Fatalf("CountProvenance: %v", err)
	}
	if prov == 0 {
		t.Error("no provenance written")
	}
}

func TestManualPromoteAlreadyPromotedSkips(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	promoteParticipant(t, tx, id)

	res, err := ManualPromote(tx, entity.Participant, id, "", "staff")
	if err != nil {
		t.Fatalf("ManualPromote: %v", err)
	}
	if res.Outcome != OutcomeSkippedAlreadyPromoted {
		t.Errorf("outcome = %v, want skipped-already-promoted", res.Outcome)
	}
}

func TestManualPromoteBlockedOutsideReviewHold(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	if err := tx.SetResolutionState(entity.Participant, id, entity.StateReject); err != nil {
		t.Fatalf("SetResolutionState: %v", err)
	}

	res, err := ManualPromote(tx, entity.Participant, id, "", "staff")
	if err != nil {
		t.Fatalf("ManualPromote: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("outcome = %v, want invalid for reject-state candidate", res.Outcome)
	}
}

func TestManualPromoteRepairsStaleLink(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	// Link to a canonical id that does not exist.
	if err := tx.InsertLinkAuto(entity.Participant, id, "gone-canonical", nil); err != nil {
		t.Fatalf("InsertLinkAuto: %v", err)
	}

	res, err := ManualPromote(tx, entity.Participant, id, "", "staff")
	if err != nil {
		t.Fatalf("ManualPromote: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Warning)
	}
	if res.Warning == "" {
		t.Error("stale-link repair produced no warning")
	}
	linked, err := tx.LookupCanonicalID(entity.Participant, id)
	if err != nil {
		t.Fatalf("LookupCanonicalID: %v", err)
	}
	if linked == "gone-canonical" || linked == "" {
		t.Errorf("link = %q, want fresh canonical", linked)
	}
	exists, err := tx.CanonicalExists(entity.Participant, linked)
	if err != nil {
		t.Fatalf("CanonicalExists: %v", err)
	}
	if !exists {
		t.Error("repaired link points at a missing canonical")
	}
}

func TestManualPromoteRegistrationWaitsForEvent(t *testing.T) {
	tx := testTx(t)
	evID, err := tx.InsertEventCandidate(entity.EventCandidate{
		StableFingerprint:   "fp-ev",
		NormalizedEventName: "spring regatta",
	})
	if err != nil {
		t.Fatalf("InsertEventCandidate: %v", err)
	}
	regID, err := tx.InsertRegistrationCandidate(entity.RegistrationCandidate{
		StableFingerprint: "fp-reg",
		CandidateEventID:  evID,
	})
	if err != nil {
		t.Fatalf("InsertRegistrationCandidate: %v", err)
	}
	if err := tx.UpdateScore(entity.Registration, regID, 0.7, entity.StateReview, "[]", "run-1"); err != nil {
		t.Fatalf("UpdateScore: %v", err)
	}

	res, err := ManualPromote(tx, entity.Registration, regID, "", "staff")
	if err != nil {
		t.Fatalf("ManualPromote: %v", err)
	}
	if res.Outcome != OutcomeSkippedMissingDep {
		t.Errorf("outcome = %v, want skipped-missing-dep", res.Outcome)
	}
}

func TestManualStateChange(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")

	res, err := ManualStateChange(tx, entity.Participant, id, entity.StateReject, "bad_data", "staff")
	if err != nil {
		t.Fatalf("ManualStateChange: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Warning)
	}
	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.ResolutionState != entity.StateReject {
		t.Errorf("state = %q, want reject", st.ResolutionState)
	}
	n, err := tx.CountActions(entity.Participant, id, "reject")
	if err != nil {
		t.Fatalf("CountActions: %v", err)
	}
	if n != 1 {
		t.Errorf("reject audit records = %d, want 1", n)
	}
}

func TestManualStateChangeBlockedWhilePromoted(t *testing.T) {
	tx := testTx(t)
	id := newParticipant(t, tx, "jane doe")
	promoteParticipant(t, tx, id)

	res, err := ManualStateChange(tx, entity.Participant, id, entity.StateHold, "", "staff")
	if err != nil {
		t.Fatalf("ManualStateChange: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("outcome = %v, want invalid while promoted", res.Outcome)
	}
	st, err := tx.CandidateStatus(entity.Participant, id)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.ResolutionState == entity.StateHold {
		t.Error("state changed despite promotion freeze")
	}
}
