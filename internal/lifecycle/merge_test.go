package lifecycle

import (
	"testing"

	"canonry/internal/entity"
	"canonry/internal/store"
)

// promotedPair returns a promoted candidate and its canonical id.
func promotedPair(t *testing.T, tx *store.Tx, c entity.ParticipantCandidate) (candID, canonID string) {
	t.Helper()
	if c.StableFingerprint == "" {
		c.StableFingerprint = "fp-" + c.NormalizedName
	}
	candID, err := tx.InsertParticipantCandidate(c)
	if err != nil {
		t.Fatalf("InsertParticipantCandidate: %v", err)
	}
	canonID = promoteParticipant(t, tx, candID)
	return candID, canonID
}

func TestMergeRelinksAndFillsNulls(t *testing.T) {
	tx := testTx(t)
	keepCand, keepCanon := promotedPair(t, tx, entity.ParticipantCandidate{
		DisplayName:    "Jane Doe",
		NormalizedName: "jane doe",
	})
	mergeCand, mergeCanon := promotedPair(t, tx, entity.ParticipantCandidate{
		DisplayName:    "Jane M Doe",
		NormalizedName: "jane m doe",
		BestEmail:      "jane@example.com",
	})

	res, err := Merge(tx, entity.Participant, keepCanon, mergeCanon, "same_person", "reviewer@club.org")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Outcome != OutcomeApplied {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Warning)
	}

	// Both candidates now link to the kept canonical.
	for _, cid := range []string{keepCand, mergeCand} {
		linked, err := tx.LookupCanonicalID(entity.Participant, cid)
		if err != nil {
			t.Fatalf("LookupCanonicalID: %v", err)
		}
		if linked != keepCanon {
			t.Errorf("candidate %s links to %q, want %q", cid, linked, keepCanon)
		}
	}
	exists, err := tx.CanonicalExists(entity.Participant, mergeCanon)
	if err != nil {
		t.Fatalf("CanonicalExists: %v", err)
	}
	if exists {
		t.Error("merged canonical survived")
	}

	// The keep side had no email; survivorship fills it from the merged row.
	attrs, err := tx.CanonicalAttrs(entity.Participant, keepCanon)
	if err != nil {
		t.Fatalf("CanonicalAttrs: %v", err)
	}
	for _, a := range attrs {
		switch a.Name {
		case "best_email":
			if a.Value == nil || *a.Value != "jane@example.com" {
				t.Errorf("best_email = %v, want filled from merged canonical", a.Value)
			}
		case "display_name":
			if a.Value == nil || *a.Value != "Jane Doe" {
				t.Errorf("display_name = %v, want keep side untouched", a.Value)
			}
		}
	}
}

func TestMergeRejectsOrphanCanonical(t *testing.T) {
	tx := testTx(t)
	_, keepCanon := promotedPair(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})
	// An orphan canonical: row exists, nothing links to it.
	orphanCand, err := tx.InsertParticipantCandidate(entity.ParticipantCandidate{
		StableFingerprint: "fp-orphan",
		NormalizedName:    "orphan",
	})
	if err != nil {
		t.Fatalf("InsertParticipantCandidate: %v", err)
	}
	orphanCanon, err := tx.InsertCanonicalFromCandidate(entity.Participant, orphanCand)
	if err != nil {
		t.Fatalf("InsertCanonicalFromCandidate: %v", err)
	}

	res, err := Merge(tx, entity.Participant, keepCanon, orphanCanon, "", "staff")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("outcome = %v, want invalid for orphan merge source", res.Outcome)
	}
	exists, err := tx.CanonicalExists(entity.Participant, orphanCanon)
	if err != nil {
		t.Fatalf("CanonicalExists: %v", err)
	}
	if !exists {
		t.Error("rejected merge still deleted the orphan canonical")
	}
}

func TestMergeSelfAndMissing(t *testing.T) {
	tx := testTx(t)
	_, canon := promotedPair(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})

	res, err := Merge(tx, entity.Participant, canon, canon, "", "staff")
	if err != nil {
		t.Fatalf("Merge self: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("self merge outcome = %v, want invalid", res.Outcome)
	}

	res, err = Merge(tx, entity.Participant, canon, "no-such-id", "", "staff")
	if err != nil {
		t.Fatalf("Merge missing: %v", err)
	}
	if res.Outcome != OutcomeInvalid {
		t.Errorf("missing merge source outcome = %v, want invalid", res.Outcome)
	}
}

func TestSplitMovesSubsetToClone(t *testing.T) {
	tx := testTx(t)
	a, canon := promotedPair(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})
	b, err := tx.InsertParticipantCandidate(entity.ParticipantCandidate{
		StableFingerprint: "fp-b",
		NormalizedName:    "jane m doe",
	})
	if err != nil {
		t.Fatalf("InsertParticipantCandidate: %v", err)
	}
	if err := tx.InsertLinkAuto(entity.Participant, b, canon, nil); err != nil {
		t.Fatalf("InsertLinkAuto: %v", err)
	}
	if err := tx.MarkPromoted(entity.Participant, b, canon); err != nil {
		t.Fatalf("MarkPromoted: %v", err)
	}

	res, err := Split(tx, entity.Participant, canon, []string{b}, "different_person", "staff")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.Applied != 1 || res.Invalid != 0 {
		t.Fatalf("split result = %+v", res)
	}

	stayed, err := tx.LookupCanonicalID(entity.Participant, a)
	if err != nil {
		t.Fatalf("LookupCanonicalID: %v", err)
	}
	if stayed != canon {
		t.Errorf("candidate a moved to %q, want %q", stayed, canon)
	}
	moved, err := tx.LookupCanonicalID(entity.Participant, b)
	if err != nil {
		t.Fatalf("LookupCanonicalID: %v", err)
	}
	if moved == canon || moved == "" {
		t.Fatalf("candidate b links to %q, want a fresh clone", moved)
	}
	st, err := tx.CandidateStatus(entity.Participant, b)
	if err != nil {
		t.Fatalf("CandidateStatus: %v", err)
	}
	if st.PromotedCanonicalID != moved {
		t.Errorf("promoted_canonical_id = %q, want %q", st.PromotedCanonicalID, moved)
	}
	prov, err := tx.CountProvenance(entity.Participant, moved)
	if err != nil {
		t.Fatalf("CountProvenance: %v", err)
	}
	if prov == 0 {
		t.Error("no provenance on the clone")
	}
}

func TestSplitRejectsUnlinkedCandidates(t *testing.T) {
	tx := testTx(t)
	a, canon := promotedPair(t, tx, entity.ParticipantCandidate{NormalizedName: "jane doe"})

	res, err := Split(tx, entity.Participant, canon, []string{a, "stranger"}, "", "staff")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.Applied != 1 || res.Invalid != 1 {
		t.Errorf("split result = %+v, want 1 applied / 1 invalid", res)
	}
}

func TestSplitMissingCanonical(t *testing.T) {
	tx := testTx(t)
	res, err := Split(tx, entity.Participant, "no-such-id", []string{"a", "b"}, "", "staff")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if res.Applied != 0 || res.Invalid != 2 {
		t.Errorf("split result = %+v, want all rows invalid", res)
	}
}
