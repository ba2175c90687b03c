package entity

// FeatureSet maps a rule-file feature name to its presence on a candidate.
// Feature names absent from the set are treated as false by the scorer.
type FeatureSet map[string]bool

// ParticipantFeatures is the fixed feature shape for participant candidates.
type ParticipantFeatures struct {
	EmailExact          bool
	PhoneExact          bool
	DOBExact            bool
	NormalizedNameExact bool
}

func (f ParticipantFeatures) Set() FeatureSet {
	return FeatureSet{
		"email_exact":           f.EmailExact,
		"phone_exact":           f.PhoneExact,
		"dob_exact":             f.DOBExact,
		"normalized_name_exact": f.NormalizedNameExact,
	}
}

// YachtFeatures is the fixed feature shape for yacht candidates.
type YachtFeatures struct {
	SailNumberExact   bool
	NameNormalized    bool
	YachtTypePresent  bool
	LengthFeetPresent bool
}

func (f YachtFeatures) Set() FeatureSet {
	return FeatureSet{
		"sail_number_exact":   f.SailNumberExact,
		"name_normalized":     f.NameNormalized,
		"yacht_type_present":  f.YachtTypePresent,
		"length_feet_present": f.LengthFeetPresent,
	}
}

// ClubFeatures is the fixed feature shape for club candidates.
type ClubFeatures struct {
	NameNormalized  bool
	WebsitePresent  bool
	StateUSAPresent bool
	PhonePresent    bool
}

func (f ClubFeatures) Set() FeatureSet {
	return FeatureSet{
		"name_normalized":   f.NameNormalized,
		"website_present":   f.WebsitePresent,
		"state_usa_present": f.StateUSAPresent,
		"phone_present":     f.PhonePresent,
	}
}

// EventFeatures is the fixed feature shape for event candidates.
type EventFeatures struct {
	ExternalIDPresent bool
	SeasonYearPresent bool
	NameNormalized    bool
	DatesPresent      bool
}

func (f EventFeatures) Set() FeatureSet {
	return FeatureSet{
		"external_id_present": f.ExternalIDPresent,
		"season_year_present": f.SeasonYearPresent,
		"name_normalized":     f.NameNormalized,
		"dates_present":       f.DatesPresent,
	}
}

// RegistrationFeatures is the fixed feature shape for registration candidates.
type RegistrationFeatures struct {
	ExternalIDPresent   bool
	EventResolved       bool
	YachtResolved       bool
	ParticipantResolved bool
}

func (f RegistrationFeatures) Set() FeatureSet {
	return FeatureSet{
		"external_id_present":  f.ExternalIDPresent,
		"event_resolved":       f.EventResolved,
		"yacht_resolved":       f.YachtResolved,
		"participant_resolved": f.ParticipantResolved,
	}
}
