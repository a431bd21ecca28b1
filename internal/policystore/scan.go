package policystore

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"time"

	"sentinel/internal/quarantine"
	"sentinel/internal/sentinelerr"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows, letting the
// scan* helpers serve both single-row lookups and result-set iteration.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (Policy, error) {
	p, err := scanPolicyRows(row)
	if err == sql.ErrNoRows {
		return Policy{}, sentinelerr.New(sentinelerr.NotFound, "policy not found")
	}
	return p, err
}

func scanPolicyOptional(row rowScanner) (*Policy, error) {
	p, err := scanPolicyRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPolicyRows(row rowScanner) (Policy, error) {
	var p Policy
	var urlPattern, fileHash, mimeType, createdBy, enforcementAction sql.NullString
	var expiresAt, lastHit sql.NullTime
	var action, matchType string

	err := row.Scan(&p.ID, &p.RuleName, &urlPattern, &fileHash, &mimeType, &action, &matchType,
		&enforcementAction, &p.CreatedAt, &createdBy, &expiresAt, &p.HitCount, &lastHit)
	if err != nil {
		if err == sql.ErrNoRows {
			return Policy{}, err
		}
		return Policy{}, sentinelerr.Wrap(sentinelerr.Internal, "scan policy row", err)
	}

	p.URLPattern = urlPattern.String
	p.FileHash = fileHash.String
	p.MimeType = mimeType.String
	p.CreatedBy = createdBy.String
	p.EnforcementAction = enforcementAction.String
	p.Action = Action(action)
	p.MatchType = MatchType(matchType)
	if expiresAt.Valid {
		t := expiresAt.Time
		p.ExpiresAt = &t
	}
	if lastHit.Valid {
		t := lastHit.Time
		p.LastHit = &t
	}
	return p, nil
}

func scanVerdict(row rowScanner) (*SandboxVerdict, error) {
	var v SandboxVerdict
	var threatLevel int
	var explanation sql.NullString
	var triggeredJSON, behaviorsJSON sql.NullString

	err := row.Scan(&v.FileHash, &threatLevel, &v.Confidence, &v.CompositeScore, &v.YaraScore, &v.MLScore,
		&v.BehavioralScore, &explanation, &triggeredJSON, &behaviorsJSON, &v.AnalyzedAt, &v.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "scan sandbox verdict row", err)
	}
	v.ThreatLevel = ThreatLevel(threatLevel)
	v.VerdictExplanation = explanation.String
	if triggeredJSON.Valid && triggeredJSON.String != "" {
		_ = json.Unmarshal([]byte(triggeredJSON.String), &v.TriggeredRules)
	}
	if behaviorsJSON.Valid && behaviorsJSON.String != "" {
		_ = json.Unmarshal([]byte(behaviorsJSON.String), &v.DetectedBehaviors)
	}
	return &v, nil
}

func scanThreatRecord(row rowScanner) (ThreatRecord, error) {
	var r ThreatRecord
	var url, filename, fileHash, mimeType, ruleName, severity, alertJSON sql.NullString
	var fileSize sql.NullInt64
	var policyID sql.NullInt64

	err := row.Scan(&r.ID, &r.DetectedAt, &url, &filename, &fileHash, &mimeType, &fileSize, &ruleName,
		&severity, &r.ActionTaken, &policyID, &alertJSON)
	if err != nil {
		return ThreatRecord{}, sentinelerr.Wrap(sentinelerr.Internal, "scan threat record row", err)
	}
	r.URL = url.String
	r.Filename = filename.String
	r.FileHash = fileHash.String
	r.MimeType = mimeType.String
	r.FileSize = fileSize.Int64
	r.RuleName = ruleName.String
	r.Severity = severity.String
	r.AlertJSON = alertJSON.String
	if policyID.Valid {
		id := policyID.Int64
		r.PolicyID = &id
	}
	return r, nil
}

func scanQuarantineRecord(row rowScanner) (quarantine.Record, error) {
	r, err := scanQuarantineRecordRows(row)
	if err == sql.ErrNoRows {
		return quarantine.Record{}, sentinelerr.New(sentinelerr.NotFound, "quarantine record not found")
	}
	return r, err
}

func scanQuarantineRecordRows(row rowScanner) (quarantine.Record, error) {
	var r quarantine.Record
	var reason sql.NullString
	var score sql.NullFloat64
	var level sql.NullInt64
	var fileSize sql.NullInt64

	err := row.Scan(&r.ID, &r.OriginalPath, &r.QuarantinePath, &reason, &score, &level, &r.QuarantinedAt,
		&fileSize, &r.SHA256Hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return quarantine.Record{}, err
		}
		return quarantine.Record{}, sentinelerr.Wrap(sentinelerr.Internal, "scan quarantine record row", err)
	}
	r.QuarantineReason = reason.String
	r.ThreatScore = score.Float64
	r.ThreatLevel = int(level.Int64)
	r.FileSize = fileSize.Int64
	return r, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt64Ptr(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// filepathMatch applies shell-glob semantics ('*' matches any run of
// characters within a single path segment) to a URL pattern. A pattern
// matching across path segments needs an explicit '*' per segment, same
// as filepath.Match.
func filepathMatch(pattern, name string) (bool, error) {
	return filepath.Match(pattern, name)
}
