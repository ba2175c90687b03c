package entity

// Candidate column conventions shared by all five candidate tables:
// a text UUID id, a unique stable_fingerprint, quality_score in [0,1],
// resolution_state, confidence_reasons (JSON array), is_promoted plus
// promoted_canonical_id, and last_score_run_id. The structs below carry
// only the type-specific attribute columns; bookkeeping columns are
// managed by the store.

// ParticipantCandidate holds the attribute columns of candidate_participant.
type ParticipantCandidate struct {
	StableFingerprint string
	SourceSystem      string
	DisplayName       string
	NormalizedName    string
	FirstName         string
	LastName          string
	DateOfBirth       string // ISO date, empty when unknown
	BestEmail         string
	BestPhone         string
}

// Features extracts the fixed feature shape. A feature is present iff the
// backing column is non-empty.
func (c ParticipantCandidate) Features() ParticipantFeatures {
	return ParticipantFeatures{
		EmailExact:          c.BestEmail != "",
		PhoneExact:          c.BestPhone != "",
		DOBExact:            c.DateOfBirth != "",
		NormalizedNameExact: c.NormalizedName != "",
	}
}

// YachtCandidate holds the attribute columns of candidate_yacht.
type YachtCandidate struct {
	StableFingerprint    string
	SourceSystem         string
	Name                 string
	NormalizedName       string
	SailNumber           string
	NormalizedSailNumber string
	LengthFeet           *float64
	YachtType            string
}

func (c YachtCandidate) Features() YachtFeatures {
	return YachtFeatures{
		SailNumberExact:   c.NormalizedSailNumber != "",
		NameNormalized:    c.NormalizedName != "",
		YachtTypePresent:  c.YachtType != "",
		LengthFeetPresent: c.LengthFeet != nil,
	}
}

// ClubCandidate holds the attribute columns of candidate_club.
type ClubCandidate struct {
	StableFingerprint string
	SourceSystem      string
	Name              string
	NormalizedName    string
	Website           string
	Phone             string
	AddressRaw        string
	StateUSA          string
}

func (c ClubCandidate) Features() ClubFeatures {
	return ClubFeatures{
		NameNormalized:  c.NormalizedName != "",
		WebsitePresent:  c.Website != "",
		StateUSAPresent: c.StateUSA != "",
		PhonePresent:    c.Phone != "",
	}
}

// EventCandidate holds the attribute columns of candidate_event.
type EventCandidate struct {
	StableFingerprint   string
	SourceSystem        string
	EventName           string
	NormalizedEventName string
	SeasonYear          *int // present even when 0; nil means unknown
	EventExternalID     string
	StartDate           string
	EndDate             string
	LocationRaw         string
}

func (c EventCandidate) Features() EventFeatures {
	return EventFeatures{
		ExternalIDPresent: c.EventExternalID != "",
		SeasonYearPresent: c.SeasonYear != nil,
		NameNormalized:    c.NormalizedEventName != "",
		DatesPresent:      c.StartDate != "" || c.EndDate != "",
	}
}

// RegistrationCandidate holds the attribute columns of candidate_registration.
// The candidate_* foreign keys point at other candidate rows, not canonical
// rows; the promotion pipeline resolves them to canonical ids.
type RegistrationCandidate struct {
	StableFingerprint             string
	SourceSystem                  string
	RegistrationExternalID        string
	CandidateEventID              string
	CandidateYachtID              string
	CandidatePrimaryParticipantID string
	EntryStatus                   string
	RegisteredAt                  string
}

func (c RegistrationCandidate) Features() RegistrationFeatures {
	return RegistrationFeatures{
		ExternalIDPresent:   c.RegistrationExternalID != "",
		EventResolved:       c.CandidateEventID != "",
		YachtResolved:       c.CandidateYachtID != "",
		ParticipantResolved: c.CandidatePrimaryParticipantID != "",
	}
}
