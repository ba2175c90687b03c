package store

import (
	"database/sql"
	"fmt"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// Null-aware bind helpers: empty strings and nil pointers persist as NULL.

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func strOrEmpty(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if nf.Valid {
		v := nf.Float64
		return &v
	}
	return nil
}

// InsertParticipantCandidate inserts a new candidate row and returns its id.
func (t *Tx) InsertParticipantCandidate(c entity.ParticipantCandidate) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(`
		INSERT INTO candidate_participant
			(id, stable_fingerprint, source_system, display_name, normalized_name,
			 first_name, last_name, date_of_birth, best_email, best_phone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.StableFingerprint, nullStr(c.SourceSystem), nullStr(c.DisplayName),
		nullStr(c.NormalizedName), nullStr(c.FirstName), nullStr(c.LastName),
		nullStr(c.DateOfBirth), nullStr(c.BestEmail), nullStr(c.BestPhone))
	if err != nil {
		return "", fmt.Errorf("insert candidate_participant: %w", err)
	}
	return id, nil
}

// InsertYachtCandidate inserts a new candidate row and returns its id.
func (t *Tx) InsertYachtCandidate(c entity.YachtCandidate) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(`
		INSERT INTO candidate_yacht
			(id, stable_fingerprint, source_system, name, normalized_name,
			 sail_number, normalized_sail_number, length_feet, yacht_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.StableFingerprint, nullStr(c.SourceSystem), nullStr(c.Name),
		nullStr(c.NormalizedName), nullStr(c.SailNumber),
		nullStr(c.NormalizedSailNumber), nullFloat(c.LengthFeet), nullStr(c.YachtType))
	if err != nil {
		return "", fmt.Errorf("insert candidate_yacht: %w", err)
	}
	return id, nil
}

// InsertClubCandidate inserts a new candidate row and returns its id.
func (t *Tx) InsertClubCandidate(c entity.ClubCandidate) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(`
		INSERT INTO candidate_club
			(id, stable_fingerprint, source_system, name, normalized_name,
			 website, phone, address_raw, state_usa)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.StableFingerprint, nullStr(c.SourceSystem), nullStr(c.Name),
		nullStr(c.NormalizedName), nullStr(c.Website), nullStr(c.Phone),
		nullStr(c.AddressRaw), nullStr(c.StateUSA))
	if err != nil {
		return "", fmt.Errorf("insert candidate_club: %w", err)
	}
	return id, nil
}

// InsertEventCandidate inserts a new candidate row and returns its id.
func (t *Tx) InsertEventCandidate(c entity.EventCandidate) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(`
		INSERT INTO candidate_event
			(id, stable_fingerprint, source_system, event_name, normalized_event_name,
			 season_year, event_external_id, start_date, end_date, location_raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.StableFingerprint, nullStr(c.SourceSystem), nullStr(c.EventName),
		nullStr(c.NormalizedEventName), nullInt(c.SeasonYear),
		nullStr(c.EventExternalID), nullStr(c.StartDate), nullStr(c.EndDate),
		nullStr(c.LocationRaw))
	if err != nil {
		return "", fmt.Errorf("insert candidate_event: %w", err)
	}
	return id, nil
}

// InsertRegistrationCandidate inserts a new candidate row and returns its id.
func (t *Tx) InsertRegistrationCandidate(c entity.RegistrationCandidate) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(`
		INSERT INTO candidate_registration
			(id, stable_fingerprint, source_system, registration_external_id,
			 candidate_event_id, candidate_yacht_id, candidate_primary_participant_id,
			 entry_status, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.StableFingerprint, nullStr(c.SourceSystem),
		nullStr(c.RegistrationExternalID), nullStr(c.CandidateEventID),
		nullStr(c.CandidateYachtID), nullStr(c.CandidatePrimaryParticipantID),
		nullStr(c.EntryStatus), nullStr(c.RegisteredAt))
	if err != nil {
		return "", fmt.Errorf("insert candidate_registration: %w", err)
	}
	return id, nil
}

// ScoringRow is one candidate prepared for the scoring engine.
type ScoringRow struct {
	ID         string
	IsPromoted bool
	Features   entity.FeatureSet
}

// ScoringRows loads every candidate of the given type in deterministic
// creation order and extracts its fixed-shape feature set.
func (t *Tx) ScoringRows(et entity.Type) ([]ScoringRow, error) {
	var (
		query string
		scan  func(*sql.Rows) (ScoringRow, error)
	)

	switch et {
	case entity.Participant:
		query = `SELECT id, is_promoted, normalized_name, best_email, best_phone, date_of_birth
			FROM candidate_participant ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (ScoringRow, error) {
			var r ScoringRow
			var name, email, phone, dob sql.NullString
			if err := rows.Scan(&r.ID, &r.IsPromoted, &name, &email, &phone, &dob); err != nil {
				return r, err
			}
			r.Features = entity.ParticipantCandidate{
				NormalizedName: strOrEmpty(name),
				BestEmail:      strOrEmpty(email),
				BestPhone:      strOrEmpty(phone),
				DateOfBirth:    strOrEmpty(dob),
			}.Features().Set()
			return r, nil
		}
	case entity.Yacht:
		query = `SELECT id, is_promoted, normalized_name, normalized_sail_number, yacht_type, length_feet
			FROM candidate_yacht ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (ScoringRow, error) {
			var r ScoringRow
			var name, sail, ytype sql.NullString
			var length sql.NullFloat64
			if err := rows.Scan(&r.ID, &r.IsPromoted, &name, &sail, &ytype, &length); err != nil {
				return r, err
			}
			r.Features = entity.YachtCandidate{
				NormalizedName:       strOrEmpty(name),
				NormalizedSailNumber: strOrEmpty(sail),
				YachtType:            strOrEmpty(ytype),
				LengthFeet:           floatPtr(length),
			}.Features().Set()
			return r, nil
		}
	case entity.Club:
		query = `SELECT id, is_promoted, normalized_name, website, state_usa, phone
			FROM candidate_club ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (ScoringRow, error) {
			var r ScoringRow
			var name, website, state, phone sql.NullString
			if err := rows.Scan(&r.ID, &r.IsPromoted, &name, &website, &state, &phone); err != nil {
				return r, err
			}
			r.Features = entity.ClubCandidate{
				NormalizedName: strOrEmpty(name),
				Website:        strOrEmpty(website),
				StateUSA:       strOrEmpty(state),
				Phone:          strOrEmpty(phone),
			}.Features().Set()
			return r, nil
		}
	case entity.Event:
		query = `SELECT id, is_promoted, normalized_event_name, event_external_id, season_year, start_date, end_date
			FROM candidate_event ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (ScoringRow, error) {
			var r ScoringRow
			var name, externalID, start, end sql.NullString
			var year sql.NullInt64
			if err := rows.Scan(&r.ID, &r.IsPromoted, &name, &externalID, &year, &start, &end); err != nil {
				return r, err
			}
			c := entity.EventCandidate{
				NormalizedEventName: strOrEmpty(name),
				EventExternalID:     strOrEmpty(externalID),
				StartDate:           strOrEmpty(start),
				EndDate:             strOrEmpty(end),
			}
			if year.Valid {
				y := int(year.Int64)
				c.SeasonYear = &y
			}
			r.Features = c.Features().Set()
			return r, nil
		}
	case entity.Registration:
		query = `SELECT id, is_promoted, registration_external_id, candidate_event_id,
				candidate_yacht_id, candidate_primary_participant_id
			FROM candidate_registration ORDER BY created_at, id`
		scan = func(rows *sql.Rows) (ScoringRow, error) {
			var r ScoringRow
			var externalID, eventID, yachtID, partID sql.NullString
			if err := rows.Scan(&r.ID, &r.IsPromoted, &externalID, &eventID, &yachtID, &partID); err != nil {
				return r, err
			}
			r.Features = entity.RegistrationCandidate{
				RegistrationExternalID:        strOrEmpty(externalID),
				CandidateEventID:              strOrEmpty(eventID),
				CandidateYachtID:              strOrEmpty(yachtID),
				CandidatePrimaryParticipantID: strOrEmpty(partID),
			}.Features().Set()
			return r, nil
		}
	default:
		return nil, fmt.Errorf("unknown entity type %q", et)
	}

	rows, err := t.tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list %s candidates: %w", et, err)
	}
	defer rows.Close()

	var out []ScoringRow
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s candidate: %w", et, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateScore persists a scoring result. An already-promoted candidate
// keeps resolution_state = 'auto_promote' regardless of the freshly
// computed state, so a re-score can never regress its visible state.
func (t *Tx) UpdateScore(et entity.Type, id string, score float64, state entity.State, reasonsJSON string, runID string) error {
	_, err := t.tx.Exec(fmt.Sprintf(`
		UPDATE %s
		SET quality_score      = ?,
		    resolution_state   = CASE WHEN is_promoted THEN 'auto_promote' ELSE ? END,
		    confidence_reasons = ?,
		    last_score_run_id  = ?
		WHERE id = ?`, et.CandidateTable()),
		score, string(state), reasonsJSON, runID, id)
	if err != nil {
		return fmt.Errorf("update score %s %s: %w", et, id, err)
	}
	return nil
}

// CandidateStatus is the promotion-relevant slice of a candidate row.
type CandidateStatus struct {
	ID                  string
	IsPromoted          bool
	PromotedCanonicalID string
	ResolutionState     entity.State
	QualityScore        *float64
}

// CandidateStatus fetches a candidate's lifecycle state, or nil when the
// row does not exist.
func (t *Tx) CandidateStatus(et entity.Type, id string) (*CandidateStatus, error) {
	row := t.tx.QueryRow(fmt.Sprintf(
		`SELECT is_promoted, promoted_canonical_id, resolution_state, quality_score
		 FROM %s WHERE id = ?`, et.CandidateTable()), id)
	var st CandidateStatus
	var canonicalID sql.NullString
	var score sql.NullFloat64
	var state string
	if err := row.Scan(&st.IsPromoted, &canonicalID, &state, &score); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch candidate %s %s: %w", et, id, err)
	}
	st.ID = id
	st.PromotedCanonicalID = strOrEmpty(canonicalID)
	st.ResolutionState = entity.State(state)
	st.QualityScore = floatPtr(score)
	return &st, nil
}

// MarkPromoted sets is_promoted with its canonical id in one write, the
// promotion-precondition invariant both values share.
func (t *Tx) MarkPromoted(et entity.Type, id, canonicalID string) error {
	_, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE %s SET is_promoted = 1, promoted_canonical_id = ? WHERE id = ?`,
		et.CandidateTable()), canonicalID, id)
	if err != nil {
		return fmt.Errorf("mark promoted %s %s: %w", et, id, err)
	}
	return nil
}

// MarkManuallyPromoted is MarkPromoted plus the state lock to
// auto_promote, used by human-reviewed promote decisions.
func (t *Tx) MarkManuallyPromoted(et entity.Type, id, canonicalID string) error {
	_, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE %s SET is_promoted = 1, promoted_canonical_id = ?, resolution_state = 'auto_promote'
		 WHERE id = ?`, et.CandidateTable()), canonicalID, id)
	if err != nil {
		return fmt.Errorf("mark manually promoted %s %s: %w", et, id, err)
	}
	return nil
}

// ClearPromotion is the single compound transition that clears
// is_promoted and changes resolution_state in the same write, used by
// demote and unlink.
func (t *Tx) ClearPromotion(et entity.Type, id string, newState entity.State) error {
	_, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE %s SET is_promoted = 0, promoted_canonical_id = NULL, resolution_state = ?
		 WHERE id = ?`, et.CandidateTable()), string(newState), id)
	if err != nil {
		return fmt.Errorf("clear promotion %s %s: %w", et, id, err)
	}
	return nil
}

// SetResolutionState performs a direct state update. Callers must run the
// lifecycle guard first; this write assumes the transition is legal.
func (t *Tx) SetResolutionState(et entity.Type, id string, state entity.State) error {
	_, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE %s SET resolution_state = ? WHERE id = ?`, et.CandidateTable()),
		string(state), id)
	if err != nil {
		return fmt.Errorf("set state %s %s: %w", et, id, err)
	}
	return nil
}

// PendingCandidate is a candidate eligible for promotion. The dependency
// ids are populated for registrations only.
type PendingCandidate struct {
	ID                            string
	QualityScore                  *float64
	CandidateEventID              string
	CandidateYachtID              string
	CandidatePrimaryParticipantID string
}

// PendingPromotions lists candidates with resolution_state='auto_promote'
// and is_promoted=0, oldest first.
func (t *Tx) PendingPromotions(et entity.Type) ([]PendingCandidate, error) {
	var rows *sql.Rows
	var err error
	if et == entity.Registration {
		rows, err = t.tx.Query(`
			SELECT id, quality_score, candidate_event_id, candidate_yacht_id,
			       candidate_primary_participant_id
			FROM candidate_registration
			WHERE resolution_state = 'auto_promote' AND is_promoted = 0
			ORDER BY created_at, id`)
	} else {
		rows, err = t.tx.Query(fmt.Sprintf(`
			SELECT id, quality_score FROM %s
			WHERE resolution_state = 'auto_promote' AND is_promoted = 0
			ORDER BY created_at, id`, et.CandidateTable()))
	}
	if err != nil {
		return nil, fmt.Errorf("list pending %s promotions: %w", et, err)
	}
	defer rows.Close()

	var out []PendingCandidate
	for rows.Next() {
		var p PendingCandidate
		var score sql.NullFloat64
		if et == entity.Registration {
			var eventID, yachtID, partID sql.NullString
			if err := rows.Scan(&p.ID, &score, &eventID, &yachtID, &partID); err != nil {
				return nil, fmt.Errorf("scan pending registration: %w", err)
			}
			p.CandidateEventID = strOrEmpty(eventID)
			p.CandidateYachtID = strOrEmpty(yachtID)
			p.CandidatePrimaryParticipantID = strOrEmpty(partID)
		} else {
			if err := rows.Scan(&p.ID, &score); err != nil {
				return nil, fmt.Errorf("scan pending %s: %w", et, err)
			}
		}
		p.QualityScore = floatPtr(score)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RegistrationDeps fetches a registration candidate's candidate-level
// dependency ids.
func (t *Tx) RegistrationDeps(id string) (eventID, yachtID, participantID string, err error) {
	row := t.tx.QueryRow(`
		SELECT candidate_event_id, candidate_yacht_id, candidate_primary_participant_id
		FROM candidate_registration WHERE id = ?`, id)
	var e, y, p sql.NullString
	if err := row.Scan(&e, &y, &p); err != nil {
		if err == sql.ErrNoRows {
			return "", "", "", nil
		}
		return "", "", "", fmt.Errorf("fetch registration deps %s: %w", id, err)
	}
	return strOrEmpty(e), strOrEmpty(y), strOrEmpty(p), nil
}

// StateCount summarizes one entity type for the status command.
type StateCount struct {
	EntityType  entity.Type
	Total       int
	Promoted    int
	AutoPromote int
	Review      int
	Hold        int
	Reject      int
}

// StateCounts summarizes candidate state per entity type.
func (t *Tx) StateCounts() ([]StateCount, error) {
	var out []StateCount
	for _, et := range entity.PromotionOrder {
		row := t.tx.QueryRow(fmt.Sprintf(`
			SELECT COUNT(*),
			       COALESCE(SUM(is_promoted), 0),
			       COALESCE(SUM(CASE WHEN resolution_state = 'auto_promote' THEN 1 ELSE 0 END), 0),
			       COALESCE(SUM(CASE WHEN resolution_state = 'review' THEN 1 ELSE 0 END), 0),
			       COALESCE(SUM(CASE WHEN resolution_state = 'hold' THEN 1 ELSE 0 END), 0),
			       COALESCE(SUM(CASE WHEN resolution_state = 'reject' THEN 1 ELSE 0 END), 0)
			FROM %s`, et.CandidateTable()))
		sc := StateCount{EntityType: et}
		if err := row.Scan(&sc.Total, &sc.Promoted, &sc.AutoPromote, &sc.Review, &sc.Hold, &sc.Reject); err != nil {
			return nil, fmt.Errorf("state counts %s: %w", et, err)
		}
		out = append(out, sc)
	}
	return out, nil
}
