package store

// Schema for the resolution database. Text UUID primary keys are
// generated in Go; timestamps default to UTC via CURRENT_TIMESTAMP.
//
// The CHECK constraint on candidate tables is defense-in-depth only; the
// primary enforcement point for promotion invariants is the lifecycle
// guard, whose error messages are part of the operator-facing contract.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS candidate_participant (
	id TEXT PRIMARY KEY,
	stable_fingerprint TEXT NOT NULL UNIQUE,
	source_system TEXT,
	display_name TEXT,
	normalized_name TEXT,
	first_name TEXT,
	last_name TEXT,
	date_of_birth TEXT,
	best_email TEXT,
	best_phone TEXT,
	quality_score REAL,
	resolution_state TEXT NOT NULL DEFAULT 'hold',
	confidence_reasons TEXT,
	is_promoted INTEGER NOT NULL DEFAULT 0,
	promoted_canonical_id TEXT,
	last_score_run_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (is_promoted = 0 OR promoted_canonical_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS candidate_yacht (
	id TEXT PRIMARY KEY,
	stable_fingerprint TEXT NOT NULL UNIQUE,
	source_system TEXT,
	name TEXT,
	normalized_name TEXT,
	sail_number TEXT,
	normalized_sail_number TEXT,
	length_feet REAL,
	yacht_type TEXT,
	quality_score REAL,
	resolution_state TEXT NOT NULL DEFAULT 'hold',
	confidence_reasons TEXT,
	is_promoted INTEGER NOT NULL DEFAULT 0,
	promoted_canonical_id TEXT,
	last_score_run_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (is_promoted = 0 OR promoted_canonical_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS candidate_club (
	id TEXT PRIMARY KEY,
	stable_fingerprint TEXT NOT NULL UNIQUE,
	source_system TEXT,
	name TEXT,
	normalized_name TEXT,
	website TEXT,
	phone TEXT,
	address_raw TEXT,
	state_usa TEXT,
	quality_score REAL,
	resolution_state TEXT NOT NULL DEFAULT 'hold',
	confidence_reasons TEXT,
	is_promoted INTEGER NOT NULL DEFAULT 0,
	promoted_canonical_id TEXT,
	last_score_run_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (is_promoted = 0 OR promoted_canonical_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS candidate_event (
	id TEXT PRIMARY KEY,
	stable_fingerprint TEXT NOT NULL UNIQUE,
	source_system TEXT,
	event_name TEXT,
	normalized_event_name TEXT,
	season_year INTEGER,
	event_external_id TEXT,
	start_date TEXT,
	end_date TEXT,
	location_raw TEXT,
	quality_score REAL,
	resolution_state TEXT NOT NULL DEFAULT 'hold',
	confidence_reasons TEXT,
	is_promoted INTEGER NOT NULL DEFAULT 0,
	promoted_canonical_id TEXT,
	last_score_run_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (is_promoted = 0 OR promoted_canonical_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS candidate_registration (
	id TEXT PRIMARY KEY,
	stable_fingerprint TEXT NOT NULL UNIQUE,
	source_system TEXT,
	registration_external_id TEXT,
	candidate_event_id TEXT,
	candidate_yacht_id TEXT,
	candidate_primary_participant_id TEXT,
	entry_status TEXT,
	registered_at TEXT,
	quality_score REAL,
	resolution_state TEXT NOT NULL DEFAULT 'hold',
	confidence_reasons TEXT,
	is_promoted INTEGER NOT NULL DEFAULT 0,
	promoted_canonical_id TEXT,
	last_score_run_id TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	CHECK (is_promoted = 0 OR promoted_canonical_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS canonical_participant (
	id TEXT PRIMARY KEY,
	display_name TEXT,
	normalized_name TEXT,
	first_name TEXT,
	last_name TEXT,
	date_of_birth TEXT,
	best_email TEXT,
	best_phone TEXT,
	canonical_confidence_score REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canonical_yacht (
	id TEXT PRIMARY KEY,
	name TEXT,
	normalized_name TEXT,
	sail_number TEXT,
	normalized_sail_number TEXT,
	length_feet REAL,
	yacht_type TEXT,
	canonical_confidence_score REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canonical_club (
	id TEXT PRIMARY KEY,
	name TEXT,
	normalized_name TEXT,
	website TEXT,
	phone TEXT,
	address_raw TEXT,
	state_usa TEXT,
	canonical_confidence_score REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canonical_event (
	id TEXT PRIMARY KEY,
	event_name TEXT,
	normalized_event_name TEXT,
	season_year INTEGER,
	event_external_id TEXT,
	start_date TEXT,
	end_date TEXT,
	location_raw TEXT,
	canonical_confidence_score REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canonical_registration (
	id TEXT PRIMARY KEY,
	registration_external_id TEXT,
	canonical_event_id TEXT,
	canonical_yacht_id TEXT,
	canonical_primary_participant_id TEXT,
	entry_status TEXT,
	registered_at TEXT,
	canonical_confidence_score REAL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS candidate_canonical_link (
	id TEXT PRIMARY KEY,
	candidate_entity_type TEXT NOT NULL,
	candidate_entity_id TEXT NOT NULL,
	canonical_entity_id TEXT NOT NULL,
	promotion_score REAL,
	promotion_mode TEXT NOT NULL DEFAULT 'auto',
	promoted_by TEXT,
	promoted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (candidate_entity_type, candidate_entity_id)
);
CREATE INDEX IF NOT EXISTS idx_link_canonical
	ON candidate_canonical_link(candidate_entity_type, canonical_entity_id);

CREATE TABLE IF NOT EXISTS resolution_rule_set (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	source_system TEXT,
	version TEXT NOT NULL,
	yaml_content TEXT NOT NULL,
	yaml_hash TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	activated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_rule_set_active
	ON resolution_rule_set(entity_type, source_system, is_active);

CREATE TABLE IF NOT EXISTS resolution_score_run (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	source_scope TEXT,
	rule_set_id TEXT,
	status TEXT NOT NULL DEFAULT 'running',
	counters TEXT,
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS next_best_action (
	id TEXT PRIMARY KEY,
	action_type TEXT NOT NULL,
	target_entity_type TEXT NOT NULL,
	target_entity_id TEXT NOT NULL,
	priority_score REAL,
	reason_code TEXT,
	reason_detail TEXT,
	recommended_channel TEXT,
	rule_version TEXT,
	status TEXT NOT NULL DEFAULT 'open',
	generated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_nba_target
	ON next_best_action(target_entity_type, target_entity_id, status);

CREATE TABLE IF NOT EXISTS resolution_manual_action_log (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	candidate_entity_id TEXT NOT NULL,
	canonical_entity_id TEXT,
	action_type TEXT NOT NULL,
	score_before REAL,
	reason_code TEXT,
	actor TEXT,
	source TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canonical_attribute_provenance (
	id TEXT PRIMARY KEY,
	canonical_entity_type TEXT NOT NULL,
	canonical_entity_id TEXT NOT NULL,
	attribute_name TEXT NOT NULL,
	attribute_value TEXT,
	source_candidate_type TEXT,
	source_candidate_id TEXT,
	source_score REAL,
	rule_version TEXT,
	decided_by TEXT NOT NULL,
	decided_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (canonical_entity_type, canonical_entity_id, attribute_name)
);

CREATE TABLE IF NOT EXISTS candidate_source_link (
	id TEXT PRIMARY KEY,
	candidate_entity_type TEXT NOT NULL,
	candidate_entity_id TEXT NOT NULL,
	source_table_name TEXT NOT NULL,
	source_row_pk TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (source_table_name, source_row_pk, candidate_entity_type, candidate_entity_id)
);

CREATE TABLE IF NOT EXISTS lineage_coverage_snapshot (
	id TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	candidates_total INTEGER NOT NULL,
	candidates_linked_to_canonical INTEGER NOT NULL,
	pct_candidate_to_canonical REAL,
	source_rows_in_link_table INTEGER,
	source_rows_with_candidate INTEGER,
	pct_source_to_candidate REAL,
	threshold_canonical_pct REAL NOT NULL,
	threshold_source_pct REAL NOT NULL,
	unresolved_critical_deps INTEGER NOT NULL DEFAULT 0,
	thresholds_passed INTEGER NOT NULL,
	notes TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
