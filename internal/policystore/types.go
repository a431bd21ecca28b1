// Package policystore is Sentinel's persistent policy database: policy
// CRUD and priority-ordered matching, the verdict cache, threat history,
// quarantine-record bookkeeping, and maintenance operations, all behind a
// single *sql.DB guarded by a circuit breaker.
//
// Grounded on internal/storage/sqlite.go's schema/CRUD/stats idiom
// (sql.Open("sqlite", ...), WAL mode, inline migrate() string, JSON-encoded
// nested columns, List*Options query structs) and on
// original_source/Services/Sentinel/PolicyGraph.h for the exact field
// shapes and matching priority.
package policystore

import "time"

// Action is a Policy's enforcement action.
type Action string

const (
	ActionAllow         Action = "allow"
	ActionBlock         Action = "block"
	ActionQuarantine    Action = "quarantine"
	ActionBlockAutofill Action = "block_autofill"
	ActionWarnUser      Action = "warn_user"
)

// MatchType is the kind of threat scenario a Policy matches against.
type MatchType string

const (
	MatchDownloadOriginFileType MatchType = "download_origin_file_type"
	MatchFormActionMismatch     MatchType = "form_action_mismatch"
	MatchInsecureCredentialPost MatchType = "insecure_credential_post"
	MatchThirdPartyFormPost     MatchType = "third_party_form_post"
)

// Policy is a user-authored decision rule (spec.md §3).
type Policy struct {
	ID                int64
	RuleName          string
	URLPattern        string // empty means "not set"
	FileHash          string // empty means "not set"; else 64 lowercase hex chars
	MimeType          string
	Action            Action
	MatchType         MatchType
	EnforcementAction string
	CreatedAt         time.Time
	CreatedBy         string
	ExpiresAt         *time.Time
	HitCount          int64
	LastHit           *time.Time
}

// ThreatMetadata describes an observed threat event to match against
// policies and, separately, to append to history.
type ThreatMetadata struct {
	URL      string
	Filename string
	FileHash string
	MimeType string
	FileSize int64
	RuleName string
	Severity string
}

// ThreatRecord is an append-only detection audit row.
type ThreatRecord struct {
	ID           int64
	DetectedAt   time.Time
	URL          string
	Filename     string
	FileHash     string
	MimeType     string
	FileSize     int64
	RuleName     string
	Severity     string
	ActionTaken  string
	PolicyID     *int64
	AlertJSON    string
}

// ThreatLevel mirrors SandboxResult::ThreatLevel.
type ThreatLevel int

const (
	ThreatClean ThreatLevel = iota
	ThreatSuspicious
	ThreatMalicious
	ThreatCritical
)

func (t ThreatLevel) String() string {
	switch t {
	case ThreatSuspicious:
		return "suspicious"
	case ThreatMalicious:
		return "malicious"
	case ThreatCritical:
		return "critical"
	default:
		return "clean"
	}
}

// TTLFor returns the verdict-cache TTL for a threat level, per spec.md §3:
// Clean 30d, Suspicious 7d, Malicious 90d, Critical 365d.
func TTLFor(level ThreatLevel) time.Duration {
	switch level {
	case ThreatSuspicious:
		return 7 * 24 * time.Hour
	case ThreatMalicious:
		return 90 * 24 * time.Hour
	case ThreatCritical:
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// SandboxVerdict is one row of the verdict cache (spec.md §3).
type SandboxVerdict struct {
	FileHash          string
	ThreatLevel       ThreatLevel
	Confidence        int // *1000
	CompositeScore    int // *1000
	YaraScore         int // *1000
	MLScore           int // *1000
	BehavioralScore   int // *1000
	VerdictExplanation string
	TriggeredRules    []string
	DetectedBehaviors []string
	AnalyzedAt        time.Time
	ExpiresAt         time.Time
}

// NetworkBehaviorPolicy tracks domain-scoped network threat policy.
type NetworkBehaviorPolicy struct {
	ID         int64
	Domain     string
	ThreatType string
	Policy     string
	Confidence int // 0..1000
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PolicyTemplate is a parameterized policy body instantiated via ${var}
// substitution.
type PolicyTemplate struct {
	ID          int64
	Name        string
	Description string
	Category    string
	IsBuiltin   bool
	Body        string // JSON with ${var} placeholders
}

// CredentialRelationship tracks a (form action origin, page origin) pair
// flagged for credential-theft heuristics (supplemented from PolicyGraph's
// FormActionMismatch/InsecureCredentialPost/ThirdPartyFormPost match
// types, which imply a relationship table between origins).
type CredentialRelationship struct {
	ID           int64
	PageOrigin   string
	FormAction   string
	Relationship string // e.g. "third_party", "insecure_downgrade"
	CreatedAt    time.Time
}

// ListThreatOptions filters GetThreatHistory, mirroring
// internal/storage/sqlite.go's ListSessionsOptions pagination idiom.
type ListThreatOptions struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	RuleName string
}

// Stats aggregates PolicyStore counters for the health/metrics surface.
type Stats struct {
	PolicyCount int64
	ThreatCount int64
	CacheMetrics CacheMetricsSnapshot
}

// CacheMetricsSnapshot is a plain-data copy of cache.Metrics so callers
// outside this package don't need to import internal/cache.
type CacheMetricsSnapshot struct {
	Hits, Misses, Evictions, Invalidations uint64
	CurrentSize, MaxSize                   int
}
