package policystore

const schemaSQL = `
CREATE TABLE IF NOT EXISTS policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_name TEXT NOT NULL,
	url_pattern TEXT,
	file_hash TEXT,
	mime_type TEXT,
	action TEXT NOT NULL,
	match_type TEXT NOT NULL,
	enforcement_action TEXT,
	created_at DATETIME NOT NULL,
	created_by TEXT,
	expires_at DATETIME,
	hit_count INTEGER NOT NULL DEFAULT 0,
	last_hit DATETIME
);
CREATE INDEX IF NOT EXISTS idx_policies_rule_name ON policies(rule_name);
CREATE INDEX IF NOT EXISTS idx_policies_file_hash ON policies(file_hash);
CREATE INDEX IF NOT EXISTS idx_policies_url_pattern ON policies(url_pattern);

CREATE TABLE IF NOT EXISTS threat_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	detected_at DATETIME NOT NULL,
	url TEXT,
	filename TEXT,
	file_hash TEXT,
	mime_type TEXT,
	file_size INTEGER,
	rule_name TEXT,
	severity TEXT,
	action_taken TEXT NOT NULL,
	policy_id INTEGER,
	alert_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_threat_history_detected_at ON threat_history(detected_at);
CREATE INDEX IF NOT EXISTS idx_threat_history_rule_name ON threat_history(rule_name);
CREATE INDEX IF NOT EXISTS idx_threat_history_file_hash ON threat_history(file_hash);

CREATE TABLE IF NOT EXISTS sandbox_verdicts (
	file_hash TEXT PRIMARY KEY,
	threat_level INTEGER NOT NULL,
	confidence INTEGER NOT NULL,
	composite_score INTEGER NOT NULL,
	yara_score INTEGER NOT NULL,
	ml_score INTEGER NOT NULL,
	behavioral_score INTEGER NOT NULL,
	verdict_explanation TEXT,
	triggered_rules TEXT,
	detected_behaviors TEXT,
	analyzed_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sandbox_verdicts_expires_at ON sandbox_verdicts(expires_at);

CREATE TABLE IF NOT EXISTS quarantine_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	original_path TEXT NOT NULL,
	quarantine_path TEXT NOT NULL,
	quarantine_reason TEXT,
	threat_score REAL,
	threat_level INTEGER,
	quarantined_at DATETIME NOT NULL,
	file_size INTEGER,
	sha256_hash TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS network_behavior_policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT NOT NULL,
	threat_type TEXT NOT NULL,
	policy TEXT NOT NULL,
	confidence INTEGER NOT NULL,
	notes TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(domain, threat_type)
);

CREATE TABLE IF NOT EXISTS policy_templates (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	category TEXT,
	is_builtin INTEGER NOT NULL DEFAULT 0,
	body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS credential_relationships (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	page_origin TEXT NOT NULL,
	form_action TEXT NOT NULL,
	relationship TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`
