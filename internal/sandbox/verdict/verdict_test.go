package verdict

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sentinel/internal/policystore"
)

func TestCalculateVerdict_CleanWhenAllScoresLow(t *testing.T) {
	e := New()
	v := e.CalculateVerdict(0.05, 0.05, 0.05)
	require.Equal(t, policystore.ThreatClean, v.ThreatLevel)
	require.Less(t, v.CompositeScore, 0.3)
}

func TestCalculateVerdict_CriticalWhenAllScoresHigh(t *testing.T) {
	e := New()
	v := e.CalculateVerdict(0.95, 0.95, 0.95)
	require.Equal(t, policystore.ThreatCritical, v.ThreatLevel)
	require.GreaterOrEqual(t, v.Confidence, 0.9)
}

func TestCalculateVerdict_WeightsMatchVerdictEngineHeader(t *testing.T) {
	e := New()
	v := e.CalculateVerdict(1.0, 0.0, 0.0)
	require.InDelta(t, 0.40, v.CompositeScore, 0.001)
	require.InDelta(t, 0.40, v.YaraWeight, 0.001)
	require.InDelta(t, 0.35, v.MLWeight, 0.001)
	require.InDelta(t, 0.25, v.BehavioralWeight, 0.001)
}

func TestCalculateVerdict_SuspiciousBand(t *testing.T) {
	e := New()
	v := e.CalculateVerdict(0.4, 0.4, 0.4)
	require.Equal(t, policystore.ThreatSuspicious, v.ThreatLevel)
}

// TestCalculateVerdict_MaliciousBoundaryMatchesScenarioFour pins the
// (0.8, 0.7, 0.6) -> composite 0.715 -> Malicious fixture from spec.md §8
// scenario 4 and TestVerdictEngine.cpp's weighted-scoring test, which
// requires the suspicious->malicious boundary to sit at 0.6 and
// malicious->critical at 0.8, not VerdictEngine.h's own 0.5/0.7 struct
// literal.
func TestCalculateVerdict_MaliciousBoundaryMatchesScenarioFour(t *testing.T) {
	e := New()
	v := e.CalculateVerdict(0.8, 0.7, 0.6)
	require.InDelta(t, 0.715, v.CompositeScore, 0.001)
	require.Equal(t, policystore.ThreatMalicious, v.ThreatLevel)
}

func TestDetermineThreatLevel_BoundariesAt0_6And0_8(t *testing.T) {
	t_ := DefaultThresholds()
	require.Equal(t, policystore.ThreatSuspicious, determineThreatLevel(0.59, t_))
	require.Equal(t, policystore.ThreatMalicious, determineThreatLevel(0.6, t_))
	require.Equal(t, policystore.ThreatMalicious, determineThreatLevel(0.79, t_))
	require.Equal(t, policystore.ThreatCritical, determineThreatLevel(0.8, t_))
}

func TestCalculateVerdictWithReputation_UsesFourWayWeights(t *testing.T) {
	e := New()
	v := e.CalculateVerdictWithReputation(1.0, 0.0, 0.0, 0.0)
	require.InDelta(t, 0.30, v.CompositeScore, 0.001)
}

func TestCalculateConfidence_LowWhenDetectorsDisagree(t *testing.T) {
	c := calculateConfidence(0.9, 0.1, 0.5)
	require.Less(t, c, 0.9)
}

func TestCalculateConfidence_HighWhenDetectorsAgreeAtExtreme(t *testing.T) {
	c := calculateConfidence(0.95, 0.92, 0.90)
	require.GreaterOrEqual(t, c, 0.9)
}

func TestGetStatistics_TracksVerdictCounts(t *testing.T) {
	e := New()
	e.CalculateVerdict(0.05, 0.05, 0.05)
	e.CalculateVerdict(0.95, 0.95, 0.95)

	stats := e.GetStatistics()
	require.Equal(t, uint64(2), stats.TotalVerdicts)
	require.Equal(t, uint64(1), stats.Clean)
	require.Equal(t, uint64(1), stats.Critical)

	e.ResetStatistics()
	require.Zero(t, e.GetStatistics().TotalVerdicts)
}

func TestUpdateThresholds_ChangesClassification(t *testing.T) {
	e := New()
	e.UpdateThresholds(Thresholds{CleanThreshold: 0.8, SuspiciousThreshold: 0.85, MaliciousThreshold: 0.9})
	v := e.CalculateVerdict(0.5, 0.5, 0.5)
	require.Equal(t, policystore.ThreatClean, v.ThreatLevel)
}
