// Package orchestrator wires WasmScorer (Tier 1), BehavioralAnalyzer
// (Tier 2), and VerdictEngine into the end-to-end scan pipeline spec.md
// §4.10 describes, with the verdict cache as the fast path that skips both
// tiers entirely.
//
// Grounded on original_source/Services/Sentinel/Sandbox/Orchestrator.h for
// SandboxResult/SandboxConfig/Statistics shape and the tier1-then-tier2-
// then-verdict pipeline; tracing spans around each stage are grounded on
// elida's internal/telemetry OpenTelemetry wiring.
package orchestrator

import (
	"time"

	"sentinel/internal/policystore"
)

// Result is SandboxResult: the full per-scan analysis output.
type Result struct {
	ThreatLevel        policystore.ThreatLevel
	Confidence         float64
	DetectedBehaviors  []string
	TriggeredRules     []string
	ExecutionTime      time.Duration
	VerdictExplanation string

	YaraScore       float64
	MLScore         float64
	BehavioralScore float64
	CompositeScore  float64

	FileOperations    uint32
	ProcessOperations uint32
	NetworkOperations uint32
	RegistryOperations uint32
	MemoryOperations  uint32

	FromCache bool
}

// IsMalicious reports threat_level >= Malicious.
func (r Result) IsMalicious() bool { return r.ThreatLevel >= policystore.ThreatMalicious }

// IsSuspicious reports threat_level >= Suspicious.
func (r Result) IsSuspicious() bool { return r.ThreatLevel >= policystore.ThreatSuspicious }

// Config controls which tiers run and when Tier 2 is gated. AllowNetwork,
// AllowFilesystem and MaxMemoryBytes are carried as configuration only;
// the orchestrator does not pass them to either tier.
type Config struct {
	Timeout          time.Duration
	EnableTier1Wasm  bool
	EnableTier2Native bool
	AllowNetwork     bool
	AllowFilesystem  bool
	MaxMemoryBytes   uint64
	// Tier1ConclusiveConfidence: Tier 2 is skipped entirely when the YARA
	// and ML scores agree (within 0.1) and both lie above this value, or
	// both below 1 minus it (spec.md §4.10 step 3).
	Tier1ConclusiveConfidence float64
	// Tier2CompositeThreshold: Tier 2 only runs if Tier 1's composite score
	// exceeds this, or Tier 1 is disabled (spec.md §4.10 step 4).
	Tier2CompositeThreshold float64
}

// DefaultConfig mirrors SandboxConfig's defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:                   5 * time.Second,
		EnableTier1Wasm:           true,
		EnableTier2Native:         true,
		AllowNetwork:              false,
		AllowFilesystem:           false,
		MaxMemoryBytes:            128 * 1024 * 1024,
		Tier1ConclusiveConfidence: 0.9,
		Tier2CompositeThreshold:   0.3,
	}
}

// Statistics aggregates pipeline-wide counters.
type Statistics struct {
	TotalFilesAnalyzed   uint64
	Tier1Executions      uint64
	Tier2Executions      uint64
	MaliciousDetected    uint64
	Timeouts             uint64
	AverageTier1Time     time.Duration
	AverageTier2Time     time.Duration
	AverageTotalTime     time.Duration
}
