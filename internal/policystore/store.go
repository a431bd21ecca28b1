package policystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sentinel/internal/breaker"
	"sentinel/internal/cache"
	"sentinel/internal/quarantine"
	"sentinel/internal/sentinelerr"
)

// matchCacheEntry is the LRU cache's value type: either "policy_id found"
// or an explicitly-cached "no match", so a miss doesn't have to re-query
// the database on every repeated lookup of a known-clean fingerprint.
type matchCacheEntry struct {
	found    bool
	policyID int64
}

// Store is PolicyStore: the sole owner of the database handle and prepared
// statements (spec.md §3 ownership rule). Writes and multi-row reads (exec,
// query) run through a CircuitBreaker so repeated failures surface as
// CircuitBlocked instead of hanging (spec.md §4.5 last paragraph).
// Single-row reads (queryRow) go to the database directly and are not seen
// by the breaker.
type Store struct {
	db       *sql.DB
	cache    *cache.LRUCache[string, matchCacheEntry]
	cb       *breaker.CircuitBreaker
	healthy  bool
	nowFunc  func() time.Time
}

// defaultMatchCacheSize is used by Open; callers that need config.go's
// PolicyStoreConfig.MatchCacheSize honored should use OpenWithCacheSize.
const defaultMatchCacheSize = 1000

// Open creates dir (owner-only permissions) if needed and opens (creating
// if absent) a SQLite database at dir/policy.db, applying the schema, with
// the default match-cache size.
func Open(dir string) (*Store, error) {
	return OpenWithCacheSize(dir, defaultMatchCacheSize)
}

// OpenWithCacheSize is Open with a caller-chosen match-cache capacity, so
// deployments can tune it via config.go's PolicyStoreConfig.MatchCacheSize.
func OpenWithCacheSize(dir string, matchCacheSize int) (*Store, error) {
	if matchCacheSize <= 0 {
		matchCacheSize = defaultMatchCacheSize
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "create policystore directory", err)
	}
	dbPath := filepath.Join(dir, "policy.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "open policy database", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "enable WAL mode", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "apply schema", err)
	}

	return &Store{
		db:      db,
		cache:   cache.NewLRUCache[string, matchCacheEntry](matchCacheSize),
		cb:      breaker.New(breaker.DefaultConfig("PolicyStore::Database")),
		healthy: true,
		nowFunc: time.Now,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	v, err := s.cb.Execute(ctx, func(ctx context.Context) (any, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return v.(sql.Result), nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	v, err := s.cb.Execute(ctx, func(ctx context.Context) (any, error) {
		return s.db.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.Rows), nil
}

// ---- Policy CRUD ----

// CreatePolicy validates and inserts a new policy, returning its assigned ID.
func (s *Store) CreatePolicy(ctx context.Context, p Policy) (int64, error) {
	if err := validatePolicy(p); err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.nowFunc()
	}
	res, err := s.exec(ctx, `INSERT INTO policies
		(rule_name, url_pattern, file_hash, mime_type, action, match_type, enforcement_action, created_at, created_by, expires_at, hit_count, last_hit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)`,
		p.RuleName, nullableText(p.URLPattern), nullableText(p.FileHash), nullableText(p.MimeType),
		string(p.Action), string(p.MatchType), p.EnforcementAction, p.CreatedAt, p.CreatedBy, nullableTime(p.ExpiresAt))
	if err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "insert policy", err)
	}
	s.cache.Invalidate()
	return res.LastInsertId()
}

// GetPolicy fetches a policy by ID.
func (s *Store) GetPolicy(ctx context.Context, id int64) (Policy, error) {
	row := s.queryRow(ctx, `SELECT id, rule_name, url_pattern, file_hash, mime_type, action, match_type,
		enforcement_action, created_at, created_by, expires_at, hit_count, last_hit
		FROM policies WHERE id = ?`, id)
	return scanPolicy(row)
}

// ListPolicies returns every policy, most-recently-created first.
func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.query(ctx, `SELECT id, rule_name, url_pattern, file_hash, mime_type, action, match_type,
		enforcement_action, created_at, created_by, expires_at, hit_count, last_hit
		FROM policies ORDER BY created_at DESC`)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "list policies", err)
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		p, err := scanPolicyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePolicy validates and overwrites the mutable fields of policy id.
func (s *Store) UpdatePolicy(ctx context.Context, id int64, p Policy) error {
	if err := validatePolicy(p); err != nil {
		return err
	}
	res, err := s.exec(ctx, `UPDATE policies SET rule_name=?, url_pattern=?, file_hash=?, mime_type=?,
		action=?, match_type=?, enforcement_action=?, expires_at=? WHERE id=?`,
		p.RuleName, nullableText(p.URLPattern), nullableText(p.FileHash), nullableText(p.MimeType),
		string(p.Action), string(p.MatchType), p.EnforcementAction, nullableTime(p.ExpiresAt), id)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "update policy", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sentinelerr.New(sentinelerr.NotFound, "policy not found")
	}
	s.cache.Invalidate()
	return nil
}

// DeletePolicy removes a policy by ID.
func (s *Store) DeletePolicy(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM policies WHERE id=?`, id)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "delete policy", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sentinelerr.New(sentinelerr.NotFound, "policy not found")
	}
	s.cache.Invalidate()
	return nil
}

// ---- Policy matching ----

// MatchPolicy implements the priority ladder from spec.md §4.5: exact
// file_hash, then url_pattern, then bare rule_name, each restricted to
// non-expired rows. Results are cached by fingerprint, including explicit
// "no match" results. On a cache hit a cached policy is re-read from the DB
// (and its hit recorded); a cached "no match" is returned without a query.
// Every policy write clears the cache.
func (s *Store) MatchPolicy(ctx context.Context, t ThreatMetadata) (*Policy, error) {
	fp := computeFingerprint(t)

	if entry, ok := s.cache.Get(fp); ok {
		if !entry.found {
			return nil, nil
		}
		p, err := s.GetPolicy(ctx, entry.policyID)
		if err != nil {
			if sentinelerr.Is(err, sentinelerr.NotFound) {
				s.cache.Invalidate()
			} else {
				return nil, err
			}
		} else {
			now := s.nowFunc()
			if err := s.recordHit(ctx, p.ID, now); err != nil {
				return nil, err
			}
			p.HitCount++
			p.LastHit = &now
			return &p, nil
		}
	}

	now := s.nowFunc()
	var p *Policy
	var err error

	if t.FileHash != "" {
		p, err = s.matchByHash(ctx, t.FileHash, now)
		if err != nil {
			return nil, err
		}
	}
	if p == nil && t.URL != "" {
		p, err = s.matchByURLPattern(ctx, t.URL, now)
		if err != nil {
			return nil, err
		}
	}
	if p == nil && t.RuleName != "" {
		p, err = s.matchByRuleName(ctx, t.RuleName, now)
		if err != nil {
			return nil, err
		}
	}

	if p == nil {
		s.cache.Put(fp, matchCacheEntry{found: false})
		return nil, nil
	}

	if err := s.recordHit(ctx, p.ID, now); err != nil {
		return nil, err
	}
	p.HitCount++
	p.LastHit = &now
	s.cache.Put(fp, matchCacheEntry{found: true, policyID: p.ID})
	return p, nil
}

func (s *Store) matchByHash(ctx context.Context, hash string, now time.Time) (*Policy, error) {
	row := s.queryRow(ctx, `SELECT id, rule_name, url_pattern, file_hash, mime_type, action, match_type,
		enforcement_action, created_at, created_by, expires_at, hit_count, last_hit
		FROM policies WHERE file_hash = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY id LIMIT 1`, hash, now)
	return scanPolicyOptional(row)
}

func (s *Store) matchByURLPattern(ctx context.Context, url string, now time.Time) (*Policy, error) {
	rows, err := s.query(ctx, `SELECT id, rule_name, url_pattern, file_hash, mime_type, action, match_type,
		enforcement_action, created_at, created_by, expires_at, hit_count, last_hit
		FROM policies WHERE url_pattern IS NOT NULL AND url_pattern != '' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY id`, now)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "match by url_pattern", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPolicyRows(rows)
		if err != nil {
			return nil, err
		}
		if globLikeMatch(p.URLPattern, url) {
			return &p, nil
		}
	}
	return nil, rows.Err()
}

func (s *Store) matchByRuleName(ctx context.Context, ruleName string, now time.Time) (*Policy, error) {
	row := s.queryRow(ctx, `SELECT id, rule_name, url_pattern, file_hash, mime_type, action, match_type,
		enforcement_action, created_at, created_by, expires_at, hit_count, last_hit
		FROM policies WHERE rule_name = ? AND (file_hash IS NULL OR file_hash = '')
		AND (url_pattern IS NULL OR url_pattern = '') AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY id LIMIT 1`, ruleName, now)
	return scanPolicyOptional(row)
}

func (s *Store) recordHit(ctx context.Context, id int64, now time.Time) error {
	_, err := s.exec(ctx, `UPDATE policies SET hit_count = hit_count + 1, last_hit = ? WHERE id = ?`, now, id)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "record policy hit", err)
	}
	return nil
}

// globLikeMatch interprets pattern's '*' and '%' as single-segment
// wildcards (SQL-LIKE-ish, matched in Go rather than delegated to the SQL
// engine's LIKE so Sentinel never depends on its ESCAPE semantics for
// safety, per SPEC_FULL.md §9).
func globLikeMatch(pattern, value string) bool {
	normalized := strings.NewReplacer("%", "*").Replace(pattern)
	ok, err := filepathMatch(normalized, value)
	return err == nil && ok
}

// ---- Verdict cache ----

// LookupSandboxVerdict returns the cached verdict for fileHash, or nil if
// absent or expired.
func (s *Store) LookupSandboxVerdict(ctx context.Context, fileHash string) (*SandboxVerdict, error) {
	row := s.queryRow(ctx, `SELECT file_hash, threat_level, confidence, composite_score, yara_score, ml_score,
		behavioral_score, verdict_explanation, triggered_rules, detected_behaviors, analyzed_at, expires_at
		FROM sandbox_verdicts WHERE file_hash = ?`, fileHash)

	v, err := scanVerdict(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if !v.ExpiresAt.After(s.nowFunc()) {
		return nil, nil
	}
	return v, nil
}

// StoreSandboxVerdict upserts the verdict cache row, computing expires_at
// from the threat level's TTL.
func (s *Store) StoreSandboxVerdict(ctx context.Context, v SandboxVerdict) error {
	if v.AnalyzedAt.IsZero() {
		v.AnalyzedAt = s.nowFunc()
	}
	v.ExpiresAt = v.AnalyzedAt.Add(TTLFor(v.ThreatLevel))

	triggered, _ := json.Marshal(v.TriggeredRules)
	behaviors, _ := json.Marshal(v.DetectedBehaviors)

	_, err := s.exec(ctx, `INSERT INTO sandbox_verdicts
		(file_hash, threat_level, confidence, composite_score, yara_score, ml_score, behavioral_score,
		 verdict_explanation, triggered_rules, detected_behaviors, analyzed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_hash) DO UPDATE SET threat_level=excluded.threat_level, confidence=excluded.confidence,
		 composite_score=excluded.composite_score, yara_score=excluded.yara_score, ml_score=excluded.ml_score,
		 behavioral_score=excluded.behavioral_score, verdict_explanation=excluded.verdict_explanation,
		 triggered_rules=excluded.triggered_rules, detected_behaviors=excluded.detected_behaviors,
		 analyzed_at=excluded.analyzed_at, expires_at=excluded.expires_at`,
		v.FileHash, int(v.ThreatLevel), v.Confidence, v.CompositeScore, v.YaraScore, v.MLScore, v.BehavioralScore,
		v.VerdictExplanation, string(triggered), string(behaviors), v.AnalyzedAt, v.ExpiresAt)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "store sandbox verdict", err)
	}
	return nil
}

// InvalidateVerdict removes a single verdict-cache row.
func (s *Store) InvalidateVerdict(ctx context.Context, fileHash string) error {
	_, err := s.exec(ctx, `DELETE FROM sandbox_verdicts WHERE file_hash = ?`, fileHash)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "invalidate verdict", err)
	}
	return nil
}

// ClearVerdictCache removes every verdict-cache row.
func (s *Store) ClearVerdictCache(ctx context.Context) error {
	_, err := s.exec(ctx, `DELETE FROM sandbox_verdicts`)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "clear verdict cache", err)
	}
	return nil
}

// ---- Threat history ----

// RecordThreat appends an audit row for an observed/acted-upon threat.
func (s *Store) RecordThreat(ctx context.Context, t ThreatMetadata, actionTaken string, policyID *int64, alertJSON string) error {
	_, err := s.exec(ctx, `INSERT INTO threat_history
		(detected_at, url, filename, file_hash, mime_type, file_size, rule_name, severity, action_taken, policy_id, alert_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.nowFunc(), t.URL, t.Filename, t.FileHash, t.MimeType, t.FileSize, t.RuleName, t.Severity, actionTaken,
		nullableInt64Ptr(policyID), alertJSON)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "record threat", err)
	}
	return nil
}

// GetThreatHistory returns threat_history rows matching opts.
func (s *Store) GetThreatHistory(ctx context.Context, opts ListThreatOptions) ([]ThreatRecord, error) {
	query := `SELECT id, detected_at, url, filename, file_hash, mime_type, file_size, rule_name, severity,
		action_taken, policy_id, alert_json FROM threat_history WHERE 1=1`
	var args []any
	if opts.Since != nil {
		query += ` AND detected_at >= ?`
		args = append(args, *opts.Since)
	}
	if opts.Until != nil {
		query += ` AND detected_at <= ?`
		args = append(args, *opts.Until)
	}
	if opts.RuleName != "" {
		query += ` AND rule_name = ?`
		args = append(args, opts.RuleName)
	}
	query += ` ORDER BY detected_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "get threat history", err)
	}
	defer rows.Close()

	var out []ThreatRecord
	for rows.Next() {
		r, err := scanThreatRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetThreatsByRule returns every history row for a given rule_name.
func (s *Store) GetThreatsByRule(ctx context.Context, ruleName string) ([]ThreatRecord, error) {
	return s.GetThreatHistory(ctx, ListThreatOptions{RuleName: ruleName})
}

// ---- Maintenance ----

// CleanupExpiredPolicies deletes policies whose expires_at has passed.
func (s *Store) CleanupExpiredPolicies(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM policies WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.nowFunc())
	if err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "cleanup expired policies", err)
	}
	s.cache.Invalidate()
	return res.RowsAffected()
}

// CleanupOldThreats deletes threat_history rows older than daysToKeep.
func (s *Store) CleanupOldThreats(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = 30
	}
	cutoff := s.nowFunc().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	res, err := s.exec(ctx, `DELETE FROM threat_history WHERE detected_at < ?`, cutoff)
	if err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "cleanup old threats", err)
	}
	return res.RowsAffected()
}

// VacuumDatabase compacts on-disk storage.
func (s *Store) VacuumDatabase(ctx context.Context) error {
	_, err := s.exec(ctx, `VACUUM`)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "vacuum database", err)
	}
	return nil
}

// VerifyDatabaseIntegrity runs the storage engine's integrity check and
// flips the store's health flag on failure.
func (s *Store) VerifyDatabaseIntegrity(ctx context.Context) error {
	row := s.queryRow(ctx, `PRAGMA integrity_check`)
	var result string
	if err := row.Scan(&result); err != nil {
		s.healthy = false
		return sentinelerr.Wrap(sentinelerr.Corruption, "integrity check failed", err)
	}
	if result != "ok" {
		s.healthy = false
		return sentinelerr.New(sentinelerr.Corruption, "integrity check reported: "+result)
	}
	s.healthy = true
	return nil
}

// IsDatabaseHealthy performs a cheap liveness probe.
func (s *Store) IsDatabaseHealthy() bool {
	if !s.healthy {
		return false
	}
	if err := s.db.Ping(); err != nil {
		return false
	}
	return true
}

// GetPolicyCount returns the number of policies.
func (s *Store) GetPolicyCount(ctx context.Context) (int64, error) {
	var n int64
	row := s.queryRow(ctx, `SELECT COUNT(*) FROM policies`)
	if err := row.Scan(&n); err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "count policies", err)
	}
	return n, nil
}

// GetThreatCount returns the number of threat_history rows.
func (s *Store) GetThreatCount(ctx context.Context) (int64, error) {
	var n int64
	row := s.queryRow(ctx, `SELECT COUNT(*) FROM threat_history`)
	if err := row.Scan(&n); err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "count threats", err)
	}
	return n, nil
}

// GetStats aggregates policy/threat counts and cache metrics.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	pc, err := s.GetPolicyCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	tc, err := s.GetThreatCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	m := s.cache.GetMetrics()
	return Stats{
		PolicyCount: pc,
		ThreatCount: tc,
		CacheMetrics: CacheMetricsSnapshot{
			Hits: m.Hits, Misses: m.Misses, Evictions: m.Evictions, Invalidations: m.Invalidations,
			CurrentSize: m.CurrentSize, MaxSize: m.MaxSize,
		},
	}, nil
}

// ResetCacheMetrics zeroes the match-cache counters.
func (s *Store) ResetCacheMetrics() { s.cache.ResetMetrics() }

// CircuitBreakerMetrics exposes the DB breaker's metrics.
func (s *Store) CircuitBreakerMetrics() breaker.Metrics { return s.cb.GetMetrics() }

// ---- Quarantine record persistence (satisfies quarantine.RecordStore) ----

// InsertQuarantineRecord persists a new quarantine record.
func (s *Store) InsertQuarantineRecord(r quarantine.Record) (int64, error) {
	ctx := context.Background()
	res, err := s.exec(ctx, `INSERT INTO quarantine_records
		(original_path, quarantine_path, quarantine_reason, threat_score, threat_level, quarantined_at, file_size, sha256_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.OriginalPath, r.QuarantinePath, r.QuarantineReason, r.ThreatScore, r.ThreatLevel, r.QuarantinedAt, r.FileSize, r.SHA256Hash)
	if err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "insert quarantine record", err)
	}
	return res.LastInsertId()
}

// GetQuarantineRecord fetches a quarantine record by ID.
func (s *Store) GetQuarantineRecord(id int64) (quarantine.Record, error) {
	row := s.queryRow(context.Background(), `SELECT id, original_path, quarantine_path, quarantine_reason,
		threat_score, threat_level, quarantined_at, file_size, sha256_hash FROM quarantine_records WHERE id = ?`, id)
	return scanQuarantineRecord(row)
}

// DeleteQuarantineRecord removes a quarantine record by ID.
func (s *Store) DeleteQuarantineRecord(id int64) error {
	res, err := s.exec(context.Background(), `DELETE FROM quarantine_records WHERE id = ?`, id)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "delete quarantine record", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sentinelerr.New(sentinelerr.NotFound, "quarantine record not found")
	}
	return nil
}

// ListQuarantineRecords returns every record, optionally filtered by threat level.
func (s *Store) ListQuarantineRecords(threatLevel *int) ([]quarantine.Record, error) {
	query := `SELECT id, original_path, quarantine_path, quarantine_reason, threat_score, threat_level,
		quarantined_at, file_size, sha256_hash FROM quarantine_records`
	var args []any
	if threatLevel != nil {
		query += ` WHERE threat_level = ?`
		args = append(args, *threatLevel)
	}
	rows, err := s.query(context.Background(), query, args...)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "list quarantine records", err)
	}
	defer rows.Close()

	var out []quarantine.Record
	for rows.Next() {
		r, err := scanQuarantineRecordRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QuarantineRecordByHash looks up a record by its sha256 hash.
func (s *Store) QuarantineRecordByHash(hash string) (quarantine.Record, bool, error) {
	row := s.queryRow(context.Background(), `SELECT id, original_path, quarantine_path, quarantine_reason,
		threat_score, threat_level, quarantined_at, file_size, sha256_hash FROM quarantine_records WHERE sha256_hash = ?`, hash)
	r, err := scanQuarantineRecord(row)
	if err != nil {
		if sentinelerr.Is(err, sentinelerr.NotFound) {
			return quarantine.Record{}, false, nil
		}
		return quarantine.Record{}, false, err
	}
	return r, true, nil
}
