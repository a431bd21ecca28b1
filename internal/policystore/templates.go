package policystore

import (
	"context"
	"encoding/json"
	"regexp"

	"sentinel/internal/sentinelerr"
)

// templatePolicy is one entry of a PolicyTemplate's Body JSON, matching
// spec.md §6's export/import shape.
type templatePolicy struct {
	RuleName     string `json:"ruleName"`
	Action       string `json:"action"`
	MatchPattern struct {
		URLPattern string `json:"url_pattern,omitempty"`
		FileHash   string `json:"file_hash,omitempty"`
		MimeType   string `json:"mime_type,omitempty"`
	} `json:"match_pattern"`
}

type templateBody struct {
	Policies []templatePolicy `json:"policies"`
}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

func substitute(s string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// CreateTemplate persists a new, non-builtin policy template.
func (s *Store) CreateTemplate(ctx context.Context, t PolicyTemplate) (int64, error) {
	res, err := s.exec(ctx, `INSERT INTO policy_templates (name, description, category, is_builtin, body)
		VALUES (?, ?, ?, 0, ?)`, t.Name, t.Description, t.Category, t.Body)
	if err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "create template", err)
	}
	return res.LastInsertId()
}

// GetTemplates returns every stored policy template.
func (s *Store) GetTemplates(ctx context.Context) ([]PolicyTemplate, error) {
	rows, err := s.query(ctx, `SELECT id, name, description, category, is_builtin, body FROM policy_templates ORDER BY id`)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "list templates", err)
	}
	defer rows.Close()

	var out []PolicyTemplate
	for rows.Next() {
		var t PolicyTemplate
		var isBuiltin int
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &isBuiltin, &t.Body); err != nil {
			return nil, sentinelerr.Wrap(sentinelerr.Internal, "scan template row", err)
		}
		t.IsBuiltin = isBuiltin != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateFromTemplate instantiates templateID's body with vars and inserts
// the resulting policies, returning their assigned IDs.
func (s *Store) CreateFromTemplate(ctx context.Context, templateID int64, vars map[string]string) ([]int64, error) {
	row := s.queryRow(ctx, `SELECT body FROM policy_templates WHERE id = ?`, templateID)
	var bodyJSON string
	if err := row.Scan(&bodyJSON); err != nil {
		return nil, sentinelerr.New(sentinelerr.NotFound, "policy template not found")
	}

	policies, err := ApplyPolicyTemplate(bodyJSON, vars)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(policies))
	for _, p := range policies {
		id, err := s.CreatePolicy(ctx, p)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ApplyPolicyTemplate substitutes ${var} placeholders in bodyJSON using
// vars and decodes the result into Policy values ready for CreatePolicy.
// Exported so callers can preview/export templates without a Store.
func ApplyPolicyTemplate(bodyJSON string, vars map[string]string) ([]Policy, error) {
	substituted := substitute(bodyJSON, vars)

	var body templateBody
	if err := json.Unmarshal([]byte(substituted), &body); err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.InvalidInput, "decode policy template body", err)
	}

	out := make([]Policy, 0, len(body.Policies))
	for _, tp := range body.Policies {
		matchType := MatchDownloadOriginFileType
		switch {
		case tp.MatchPattern.FileHash != "":
			matchType = MatchDownloadOriginFileType
		case tp.MatchPattern.URLPattern != "":
			matchType = MatchFormActionMismatch
		}
		out = append(out, Policy{
			RuleName:   tp.RuleName,
			URLPattern: tp.MatchPattern.URLPattern,
			FileHash:   tp.MatchPattern.FileHash,
			MimeType:   tp.MatchPattern.MimeType,
			Action:     Action(tp.Action),
			MatchType:  matchType,
		})
	}
	return out, nil
}

// ExportPolicyTemplates serializes every stored template to JSON for backup/sharing.
func (s *Store) ExportPolicyTemplates(ctx context.Context) ([]byte, error) {
	templates, err := s.GetTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(templates)
}

// ImportPolicyTemplates decodes a JSON array of templates (as produced by
// ExportPolicyTemplates) and inserts each as a new, non-builtin template.
func (s *Store) ImportPolicyTemplates(ctx context.Context, data []byte) (int, error) {
	var templates []PolicyTemplate
	if err := json.Unmarshal(data, &templates); err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.InvalidInput, "decode imported templates", err)
	}
	count := 0
	for _, t := range templates {
		if _, err := s.CreateTemplate(ctx, t); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ---- Network-behavior policy CRUD ----

// UpsertNetworkBehaviorPolicy inserts or updates the (domain, threat_type) row.
func (s *Store) UpsertNetworkBehaviorPolicy(ctx context.Context, p NetworkBehaviorPolicy) error {
	now := s.nowFunc()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.exec(ctx, `INSERT INTO network_behavior_policies (domain, threat_type, policy, confidence, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, threat_type) DO UPDATE SET policy=excluded.policy, confidence=excluded.confidence,
		 notes=excluded.notes, updated_at=excluded.updated_at`,
		p.Domain, p.ThreatType, p.Policy, p.Confidence, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "upsert network behavior policy", err)
	}
	return nil
}

// GetNetworkBehaviorPolicy looks up a (domain, threat_type) row.
func (s *Store) GetNetworkBehaviorPolicy(ctx context.Context, domain, threatType string) (NetworkBehaviorPolicy, error) {
	row := s.queryRow(ctx, `SELECT id, domain, threat_type, policy, confidence, notes, created_at, updated_at
		FROM network_behavior_policies WHERE domain = ? AND threat_type = ?`, domain, threatType)
	var p NetworkBehaviorPolicy
	if err := row.Scan(&p.ID, &p.Domain, &p.ThreatType, &p.Policy, &p.Confidence, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return NetworkBehaviorPolicy{}, sentinelerr.New(sentinelerr.NotFound, "network behavior policy not found")
	}
	return p, nil
}

// DeleteNetworkBehaviorPolicy removes a (domain, threat_type) row.
func (s *Store) DeleteNetworkBehaviorPolicy(ctx context.Context, domain, threatType string) error {
	res, err := s.exec(ctx, `DELETE FROM network_behavior_policies WHERE domain = ? AND threat_type = ?`, domain, threatType)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.Internal, "delete network behavior policy", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sentinelerr.New(sentinelerr.NotFound, "network behavior policy not found")
	}
	return nil
}

// ---- Credential relationship CRUD ----

// RecordCredentialRelationship appends a (page origin, form action) pairing.
func (s *Store) RecordCredentialRelationship(ctx context.Context, r CredentialRelationship) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.nowFunc()
	}
	res, err := s.exec(ctx, `INSERT INTO credential_relationships (page_origin, form_action, relationship, created_at)
		VALUES (?, ?, ?, ?)`, r.PageOrigin, r.FormAction, r.Relationship, r.CreatedAt)
	if err != nil {
		return 0, sentinelerr.Wrap(sentinelerr.Internal, "record credential relationship", err)
	}
	return res.LastInsertId()
}

// ListCredentialRelationships returns every relationship recorded for a page origin.
func (s *Store) ListCredentialRelationships(ctx context.Context, pageOrigin string) ([]CredentialRelationship, error) {
	rows, err := s.query(ctx, `SELECT id, page_origin, form_action, relationship, created_at
		FROM credential_relationships WHERE page_origin = ? ORDER BY created_at DESC`, pageOrigin)
	if err != nil {
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "list credential relationships", err)
	}
	defer rows.Close()

	var out []CredentialRelationship
	for rows.Next() {
		var r CredentialRelationship
		if err := rows.Scan(&r.ID, &r.PageOrigin, &r.FormAction, &r.Relationship, &r.CreatedAt); err != nil {
			return nil, sentinelerr.Wrap(sentinelerr.Internal, "scan credential relationship row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
