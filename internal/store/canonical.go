package store

import (
	"database/sql"
	"fmt"
	"strings"

	"canonry/internal/entity"
	"github.com/google/uuid"
)

// Attribute columns copied candidate → canonical per type. Also the
// attribute set tracked by field-level provenance.
var provenanceAttrs = map[entity.Type][]string{
	entity.Participant:  {"display_name", "normalized_name", "date_of_birth", "best_email", "best_phone"},
	entity.Yacht:        {"name", "normalized_name", "sail_number", "normalized_sail_number", "length_feet", "yacht_type"},
	entity.Club:         {"name", "normalized_name", "website", "phone", "address_raw", "state_usa"},
	entity.Event:        {"event_name", "normalized_event_name", "season_year", "event_external_id", "start_date", "end_date", "location_raw"},
	entity.Registration: {"registration_external_id", "entry_status", "registered_at"},
}

// Column lists for cloning a canonical row (excludes id and timestamps).
var cloneCols = map[entity.Type]string{
	entity.Participant: "display_name, normalized_name, first_name, last_name, date_of_birth, " +
		"best_email, best_phone, canonical_confidence_score",
	entity.Yacht: "name, normalized_name, sail_number, normalized_sail_number, " +
		"length_feet, yacht_type, canonical_confidence_score",
	entity.Club: "name, normalized_name, website, phone, address_raw, state_usa, " +
		"canonical_confidence_score",
	entity.Event: "event_name, normalized_event_name, season_year, event_external_id, " +
		"start_date, end_date, location_raw, canonical_confidence_score",
	entity.Registration: "registration_external_id, canonical_event_id, canonical_yacht_id, " +
		"canonical_primary_participant_id, entry_status, registered_at, " +
		"canonical_confidence_score",
}

// Columns copied verbatim from a candidate row when materializing its
// canonical. quality_score lands as canonical_confidence_score.
var canonicalCopyCols = map[entity.Type]string{
	entity.Participant: "display_name, normalized_name, first_name, last_name, date_of_birth, best_email, best_phone",
	entity.Yacht:       "name, normalized_name, sail_number, normalized_sail_number, length_feet, yacht_type",
	entity.Club:        "name, normalized_name, website, phone, address_raw, state_usa",
	entity.Event:       "event_name, normalized_event_name, season_year, event_external_id, start_date, end_date, location_raw",
}

// InsertCanonicalFromCandidate materializes a canonical row from a
// non-registration candidate, copying its attributes and current quality
// score. Returns the new canonical id.
func (t *Tx) InsertCanonicalFromCandidate(et entity.Type, candidateID string) (string, error) {
	cols, ok := canonicalCopyCols[et]
	if !ok {
		return "", fmt.Errorf("no canonical copy columns for entity type %q", et)
	}
	id := uuid.NewString()
	res, err := t.tx.Exec(fmt.Sprintf(`
		INSERT INTO %s (id, %s, canonical_confidence_score)
		SELECT ?, %s, quality_score FROM %s WHERE id = ?`,
		et.CanonicalTable(), cols, cols, et.CandidateTable()),
		id, candidateID)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", et.CanonicalTable(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("candidate %s %s not found", et, candidateID)
	}
	return id, nil
}

// InsertCanonicalRegistration materializes a canonical registration with
// its candidate-level foreign keys resolved to canonical ids. The yacht
// and participant ids may be empty (stored as NULL).
func (t *Tx) InsertCanonicalRegistration(candidateID, canonicalEventID, canonicalYachtID, canonicalParticipantID string) (string, error) {
	id := uuid.NewString()
	res, err := t.tx.Exec(`
		INSERT INTO canonical_registration
			(id, registration_external_id, canonical_event_id, canonical_yacht_id,
			 canonical_primary_participant_id, entry_status, registered_at,
			 canonical_confidence_score)
		SELECT ?, registration_external_id, ?, ?, ?, entry_status, registered_at, quality_score
		FROM candidate_registration WHERE id = ?`,
		id, canonicalEventID, nullStr(canonicalYachtID), nullStr(canonicalParticipantID), candidateID)
	if err != nil {
		return "", fmt.Errorf("insert canonical_registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("candidate registration %s not found", candidateID)
	}
	return id, nil
}

// CanonicalExists reports whether the canonical row exists.
func (t *Tx) CanonicalExists(et entity.Type, id string) (bool, error) {
	var found string
	err := t.tx.QueryRow(fmt.Sprintf(
		`SELECT id FROM %s WHERE id = ?`, et.CanonicalTable()), id).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check canonical %s %s: %w", et, id, err)
	}
	return true, nil
}

// CloneCanonical copies a canonical row (attributes and confidence score
// only) into a fresh row, used by split.
func (t *Tx) CloneCanonical(et entity.Type, id string) (string, error) {
	cols := cloneCols[et]
	newID := uuid.NewString()
	res, err := t.tx.Exec(fmt.Sprintf(`
		INSERT INTO %s (id, %s)
		SELECT ?, %s FROM %s WHERE id = ?`,
		et.CanonicalTable(), cols, cols, et.CanonicalTable()),
		newID, id)
	if err != nil {
		return "", fmt.Errorf("clone %s %s: %w", et.CanonicalTable(), id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("canonical %s %s not found", et, id)
	}
	return newID, nil
}

// DeleteCanonical removes a canonical row together with its provenance.
func (t *Tx) DeleteCanonical(et entity.Type, id string) error {
	if _, err := t.tx.Exec(`
		DELETE FROM canonical_attribute_provenance
		WHERE canonical_entity_type = ? AND canonical_entity_id = ?`,
		string(et), id); err != nil {
		return fmt.Errorf("delete provenance for %s %s: %w", et, id, err)
	}
	if _, err := t.tx.Exec(fmt.Sprintf(
		`DELETE FROM %s WHERE id = ?`, et.CanonicalTable()), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", et.CanonicalTable(), id, err)
	}
	return nil
}

// MigrateCanonicalRefs reroutes (or clears, when newID is empty)
// canonical_registration foreign keys pointing at oldID. Only
// participant, event, and yacht appear as registration FKs.
func (t *Tx) MigrateCanonicalRefs(et entity.Type, oldID, newID string) error {
	var col string
	switch et {
	case entity.Participant:
		col = "canonical_primary_participant_id"
	case entity.Event:
		col = "canonical_event_id"
	case entity.Yacht:
		col = "canonical_yacht_id"
	default:
		return nil
	}
	_, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE canonical_registration SET %s = ? WHERE %s = ?`, col, col),
		nullStr(newID), oldID)
	if err != nil {
		return fmt.Errorf("migrate %s refs %s: %w", et, oldID, err)
	}
	return nil
}

// CanonicalRegistrationRefs fetches a canonical registration's resolved
// foreign keys. Nil pointers mean the reference is NULL.
func (t *Tx) CanonicalRegistrationRefs(id string) (eventID, yachtID, participantID *string, err error) {
	row := t.tx.QueryRow(`
		SELECT canonical_event_id, canonical_yacht_id, canonical_primary_participant_id
		FROM canonical_registration WHERE id = ?`, id)
	var e, y, p sql.NullString
	if err := row.Scan(&e, &y, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("fetch canonical registration %s: %w", id, err)
	}
	toPtr := func(ns sql.NullString) *string {
		if ns.Valid {
			v := ns.String
			return &v
		}
		return nil
	}
	return toPtr(e), toPtr(y), toPtr(p), nil
}

// CanonicalAttr is one tracked attribute value of a canonical row.
type CanonicalAttr struct {
	Name  string
	Value *string
}

// CanonicalAttrs reads the provenance-tracked attribute values of a
// canonical row, or nil when the row does not exist.
func (t *Tx) CanonicalAttrs(et entity.Type, id string) ([]CanonicalAttr, error) {
	attrs := provenanceAttrs[et]
	if len(attrs) == 0 {
		return nil, nil
	}
	row := t.tx.QueryRow(fmt.Sprintf(
		`SELECT %s FROM %s WHERE id = ?`,
		strings.Join(attrs, ", "), et.CanonicalTable()), id)

	vals := make([]sql.NullString, len(attrs))
	dests := make([]any, len(attrs))
	for i := range vals {
		dests[i] = &vals[i]
	}
	if err := row.Scan(dests...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch canonical attrs %s %s: %w", et, id, err)
	}

	out := make([]CanonicalAttr, len(attrs))
	for i, name := range attrs {
		out[i] = CanonicalAttr{Name: name}
		if vals[i].Valid {
			v := vals[i].String
			out[i].Value = &v
		}
	}
	return out, nil
}

// FillCanonicalAttrs sets the named attributes on a canonical row. Used
// by merge's fill-nulls-only survivorship; attribute names come from the
// fixed provenance list, never from user input.
func (t *Tx) FillCanonicalAttrs(et entity.Type, id string, fills []CanonicalAttr) error {
	if len(fills) == 0 {
		return nil
	}
	setClauses := make([]string, len(fills))
	args := make([]any, 0, len(fills)+1)
	for i, f := range fills {
		setClauses[i] = f.Name + " = ?"
		if f.Value != nil {
			args = append(args, *f.Value)
		} else {
			args = append(args, nil)
		}
	}
	args = append(args, id)
	_, err := t.tx.Exec(fmt.Sprintf(
		`UPDATE %s SET %s WHERE id = ?`,
		et.CanonicalTable(), strings.Join(setClauses, ", ")), args...)
	if err != nil {
		return fmt.Errorf("fill canonical attrs %s %s: %w", et, id, err)
	}
	return nil
}
