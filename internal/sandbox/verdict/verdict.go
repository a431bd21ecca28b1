// Package verdict is Sentinel's VerdictEngine: it combines Tier 1's
// YARA/ML scores with Tier 2's behavioral score (and, optionally, a
// reputation score such as VirusTotal's) into one weighted composite,
// confidence, threat level, and natural-language explanation.
//
// Grounded on original_source/Services/Sentinel/Sandbox/VerdictEngine.h:
// the 3-way weight table (yara 0.40 / ml 0.35 / behavioral 0.25) is adopted
// verbatim as the resolution of SPEC_FULL.md's Open Question on composite
// scoring, since the header hard-codes it as the only implemented variant;
// the 4-way reputation-inclusive formula spec.md §4.9 also describes is
// kept as CalculateVerdictWithReputation. The threshold table
// (clean<0.3, suspicious<0.6, malicious<0.8, else critical) follows
// original_source/.../TestVerdictEngine.cpp's fixtures instead of the
// header's own ScoringThresholds defaults: the header says 0.5/0.7, but
// the test suite (and spec.md §8 scenario 4) pin the suspicious->malicious
// boundary at 0.6 and malicious->critical at 0.8 — ground truth is the
// behavior the tests assert, not the untested struct literal.
package verdict

import (
	"fmt"
	"math"
	"sync"

	"sentinel/internal/policystore"
)

// Weights are the 3-way composite weights from VerdictEngine.h.
type Weights struct {
	Yara       float64
	ML         float64
	Behavioral float64
}

// DefaultWeights is the header's 0.40/0.35/0.25 split.
func DefaultWeights() Weights {
	return Weights{Yara: 0.40, ML: 0.35, Behavioral: 0.25}
}

// ReputationWeights is the 4-way split spec.md §4.9 names for when a
// reputation score (e.g. VirusTotal) is available.
type ReputationWeights struct {
	Yara       float64
	ML         float64
	Behavioral float64
	Reputation float64
}

// DefaultReputationWeights is spec.md §4.9's 0.30/0.25/0.20/0.25 split.
func DefaultReputationWeights() ReputationWeights {
	return ReputationWeights{Yara: 0.30, ML: 0.25, Behavioral: 0.20, Reputation: 0.25}
}

// Thresholds controls threat-level boundaries, tunable per deployment.
type Thresholds struct {
	CleanThreshold      float64 // < this => Clean
	SuspiciousThreshold float64 // < this => Suspicious
	MaliciousThreshold  float64 // < this => Malicious; >= this => Critical
}

// DefaultThresholds matches TestVerdictEngine.cpp's boundary fixtures
// (0.3/0.6/0.8), not VerdictEngine.h's ScoringThresholds struct literal
// (0.3/0.5/0.7) — the test suite is ground truth here.
func DefaultThresholds() Thresholds {
	return Thresholds{CleanThreshold: 0.3, SuspiciousThreshold: 0.6, MaliciousThreshold: 0.8}
}

// Verdict is the engine's output.
type Verdict struct {
	ThreatLevel    policystore.ThreatLevel
	CompositeScore float64 // 0..1
	Confidence     float64 // 0..1
	Explanation    string
	YaraWeight     float64
	MLWeight       float64
	BehavioralWeight float64
}

// Statistics tracks verdicts issued across calls.
type Statistics struct {
	TotalVerdicts          uint64
	Clean, Suspicious, Malicious, Critical uint64
	AverageCompositeScore  float64
	AverageConfidence      float64
}

// Engine computes verdicts from component scores.
type Engine struct {
	mu         sync.Mutex
	weights    Weights
	repWeights ReputationWeights
	thresholds Thresholds
	stats      Statistics
}

// New creates an Engine with default weights and thresholds.
func New() *Engine {
	return &Engine{weights: DefaultWeights(), repWeights: DefaultReputationWeights(), thresholds: DefaultThresholds()}
}

// NewWithThresholds creates an Engine with custom thresholds (weights stay default).
func NewWithThresholds(thresholds Thresholds) *Engine {
	e := New()
	e.thresholds = thresholds
	return e
}

// NewWithWeightsAndThresholds creates an Engine with a caller-supplied
// 3-way weight table and threshold table, for deployments that tune
// config.VerdictConfig away from VerdictEngine.h's defaults.
func NewWithWeightsAndThresholds(weights Weights, thresholds Thresholds) *Engine {
	e := New()
	e.weights = weights
	e.thresholds = thresholds
	return e
}

// UpdateThresholds replaces the active threshold table.
func (e *Engine) UpdateThresholds(thresholds Thresholds) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thresholds = thresholds
}

// UpdateWeights replaces the active 3-way weight table.
func (e *Engine) UpdateWeights(weights Weights) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights = weights
}

// Thresholds returns the active threshold table.
func (e *Engine) Thresholds() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// CalculateVerdict combines the 3 tier scores using DefaultWeights.
func (e *Engine) CalculateVerdict(yara, ml, behavioral float64) Verdict {
	e.mu.Lock()
	w := e.weights
	t := e.thresholds
	e.mu.Unlock()

	composite := clamp01(w.Yara*yara + w.ML*ml + w.Behavioral*behavioral)
	confidence := calculateConfidence(yara, ml, behavioral)
	level := determineThreatLevel(composite, t)
	explanation := generateExplanation(level, composite, confidence, map[string]float64{"YARA": yara, "ML": ml, "behavioral": behavioral})

	v := Verdict{
		ThreatLevel: level, CompositeScore: composite, Confidence: confidence, Explanation: explanation,
		YaraWeight: w.Yara, MLWeight: w.ML, BehavioralWeight: w.Behavioral,
	}
	e.recordStats(v)
	return v
}

// CalculateVerdictWithReputation combines all 4 scores using
// DefaultReputationWeights when a reputation score is available.
func (e *Engine) CalculateVerdictWithReputation(yara, ml, behavioral, reputation float64) Verdict {
	e.mu.Lock()
	w := e.repWeights
	t := e.thresholds
	e.mu.Unlock()

	composite := clamp01(w.Yara*yara + w.ML*ml + w.Behavioral*behavioral + w.Reputation*reputation)
	confidence := calculateConfidence(yara, ml, behavioral, reputation)
	level := determineThreatLevel(composite, t)
	explanation := generateExplanation(level, composite, confidence,
		map[string]float64{"YARA": yara, "ML": ml, "behavioral": behavioral, "reputation": reputation})

	v := Verdict{
		ThreatLevel: level, CompositeScore: composite, Confidence: confidence, Explanation: explanation,
		YaraWeight: w.Yara, MLWeight: w.ML, BehavioralWeight: w.Behavioral,
	}
	e.recordStats(v)
	return v
}

func (e *Engine) recordStats(v Verdict) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalVerdicts++
	switch v.ThreatLevel {
	case policystore.ThreatSuspicious:
		e.stats.Suspicious++
	case policystore.ThreatMalicious:
		e.stats.Malicious++
	case policystore.ThreatCritical:
		e.stats.Critical++
	default:
		e.stats.Clean++
	}
	n := float64(e.stats.TotalVerdicts)
	e.stats.AverageCompositeScore += (v.CompositeScore - e.stats.AverageCompositeScore) / n
	e.stats.AverageConfidence += (v.Confidence - e.stats.AverageConfidence) / n
}

// GetStatistics returns a snapshot of verdict counters.
func (e *Engine) GetStatistics() Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// ResetStatistics zeroes the verdict counters.
func (e *Engine) ResetStatistics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Statistics{}
}

// calculateConfidence follows spec.md §4.9: base = 1 - clamp(2*stddev, 0, 1),
// boosted to at least 0.9 when 3+ detectors agree at an extreme (>0.8 or <0.2).
func calculateConfidence(scores ...float64) float64 {
	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	stddev := math.Sqrt(variance)

	base := 1 - clampRange(2*stddev, 0, 1)

	extremeAgreement := 0
	for _, s := range scores {
		if s > 0.8 || s < 0.2 {
			extremeAgreement++
		}
	}
	if extremeAgreement >= 3 && base < 0.9 {
		base = 0.9
	}
	return clamp01(base)
}

func determineThreatLevel(composite float64, t Thresholds) policystore.ThreatLevel {
	switch {
	case composite < t.CleanThreshold:
		return policystore.ThreatClean
	case composite < t.SuspiciousThreshold:
		return policystore.ThreatSuspicious
	case composite < t.MaliciousThreshold:
		return policystore.ThreatMalicious
	default:
		return policystore.ThreatCritical
	}
}

func generateExplanation(level policystore.ThreatLevel, composite, confidence float64, scores map[string]float64) string {
	dominant := ""
	dominantScore := -1.0
	for name, s := range scores {
		if s > dominantScore {
			dominant, dominantScore = name, s
		}
	}
	agreement := 0
	for _, s := range scores {
		if s > 0.8 || s < 0.2 {
			agreement++
		}
	}
	return fmt.Sprintf(
		"Verdict: %s (composite score %.2f, confidence %.0f%%). The dominant signal was %s at %.2f; %d of %d detectors agreed at an extreme.",
		level.String(), composite, confidence*100, dominant, dominantScore, agreement, len(scores))
}

func clamp01(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
