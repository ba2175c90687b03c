package entity

import "testing"

func TestParseType(t *testing.T) {
	for _, s := range []string{"club", "event", "yacht", "participant", "registration"} {
		if _, err := ParseType(s); err != nil {
			t.Errorf("ParseType(%q): %v", s, err)
		}
	}
	if _, err := ParseType("boat"); err == nil {
		t.Error("ParseType accepted an unknown type")
	}
}

func TestExpandTypes(t *testing.T) {
	all, err := ExpandTypes("all")
	if err != nil {
		t.Fatalf("ExpandTypes: %v", err)
	}
	if len(all) != 5 || all[0] != Club || all[4] != Registration {
		t.Errorf("all = %v, want promotion order with registration last", all)
	}
	one, err := ExpandTypes("yacht")
	if err != nil {
		t.Fatalf("ExpandTypes: %v", err)
	}
	if len(one) != 1 || one[0] != Yacht {
		t.Errorf("yacht = %v", one)
	}
}

func TestFeatureExtraction(t *testing.T) {
	f := ParticipantCandidate{NormalizedName: "jane doe", BestEmail: "jane@example.com"}.Features().Set()
	if !f["normalized_name_exact"] || !f["email_exact"] || f["phone_exact"] || f["dob_exact"] {
		t.Errorf("features = %v", f)
	}

	year := 2025
	ef := EventCandidate{SeasonYear: &year, StartDate: "2025-05-01"}.Features().Set()
	if !ef["season_year_present"] || !ef["dates_present"] || ef["external_id_present"] {
		t.Errorf("event features = %v", ef)
	}
}
