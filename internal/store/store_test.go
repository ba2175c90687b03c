package store

import (
	"testing"

	"canonry/internal/entity"
)

// testTx opens an in-memory store and one run transaction. The
// transaction is rolled back at cleanup, so tests never commit.
func testTx(t *testing.T) *Tx {
	t.Helper()
	s, err := Open(":memory:")
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

func insertParticipant(t *testing.T, tx *Tx, c entity.ParticipantCandidate) string {
	t.Helper()
	if c.StableFingerprint == "" {
		c.StableFingerprint = "fp-" + c.NormalizedName
	}
	id, err := tx.InsertParticipantCandidate(c)
	if err != nil {
		t.Fatalf("InsertParticipantCandidate: %v", err)
	}
	return id
}

func TestOpenCreatesSchema(t *testing.T) {
	tx := testTx(t)
	counts, err := tx.StateCounts()
	if err != nil {
		t.Fatalf("StateCounts on fresh schema: %v", err)
	}
	if len(counts) != len(entity.PromotionOrder) {
		t.Fatalf("got %d entity types, want %d", len(counts), len(entity.PromotionOrder))
	}
	for _, sc := range counts {
		if sc.Total != 0 {
			t.Errorf("%s: total = %d on empty database", sc.EntityType, sc.Total)
		}
	}
}

func TestRollbackAfterCommitIsSafe(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	tx, err := s.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback after Commit: %v", err)
	}
}
