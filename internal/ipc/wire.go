package ipc

import (
	"time"

	"sentinel/internal/policystore"
)

// Wire DTOs for the JSON request fields that map onto policystore types.
// policystore's own structs carry no JSON tags (they're SQL-row shaped,
// not wire-shaped), so the IPC layer defines its own snake_case field
// names here rather than depending on encoding/json's case-insensitive
// fallback matching arbitrary Go field names.

type wirePolicy struct {
	RuleName   string  `json:"rule_name"`
	URLPattern string  `json:"url_pattern"`
	FileHash   string  `json:"file_hash"`
	MimeType   string  `json:"mime_type"`
	Action     string  `json:"action"`
	MatchType  string  `json:"match_type"`
	ExpiresAt  *int64  `json:"expires_at_ms,omitempty"` // Unix millis, -1/absent = never
	CreatedBy  string  `json:"created_by,omitempty"`
}

func (w wirePolicy) toPolicy() policystore.Policy {
	p := policystore.Policy{
		RuleName:   w.RuleName,
		URLPattern: w.URLPattern,
		FileHash:   w.FileHash,
		MimeType:   w.MimeType,
		Action:     policystore.Action(w.Action),
		MatchType:  policystore.MatchType(w.MatchType),
		CreatedBy:  w.CreatedBy,
	}
	if w.ExpiresAt != nil && *w.ExpiresAt != -1 {
		t := time.UnixMilli(*w.ExpiresAt)
		p.ExpiresAt = &t
	}
	return p
}

type wireNetworkBehaviorPolicy struct {
	Domain     string `json:"domain"`
	ThreatType string `json:"threat_type"`
	Policy     string `json:"policy"`
	Confidence int    `json:"confidence"`
	Notes      string `json:"notes,omitempty"`
}

func (w wireNetworkBehaviorPolicy) toPolicy() policystore.NetworkBehaviorPolicy {
	return policystore.NetworkBehaviorPolicy{
		Domain:     w.Domain,
		ThreatType: w.ThreatType,
		Policy:     w.Policy,
		Confidence: w.Confidence,
		Notes:      w.Notes,
	}
}

type wireCredentialRelationship struct {
	PageOrigin   string `json:"page_origin"`
	FormAction   string `json:"form_action"`
	Relationship string `json:"relationship"`
}

func (w wireCredentialRelationship) toRelationship() policystore.CredentialRelationship {
	return policystore.CredentialRelationship{
		PageOrigin:   w.PageOrigin,
		FormAction:   w.FormAction,
		Relationship: w.Relationship,
	}
}
