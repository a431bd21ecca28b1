package wasmscorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecute_HeuristicFallback_DetectsPEMagic(t *testing.T) {
	s := New(DefaultConfig(), nil)
	data := append([]byte("MZ"), make([]byte, 64)...)

	result, err := s.Execute(context.Background(), data, "evil.exe")
	require.NoError(t, err)
	require.Greater(t, result.YaraScore, 0.0)
	require.False(t, result.TimedOut)
	require.Contains(t, result.TriggeredRules, "pe_executable")
}

func TestExecute_HeuristicFallback_CleanTextScoresLow(t *testing.T) {
	s := New(DefaultConfig(), nil)
	data := []byte("this is a perfectly ordinary plain text document with no surprises")

	result, err := s.Execute(context.Background(), data, "notes.txt")
	require.NoError(t, err)
	require.Less(t, result.YaraScore, 0.2)
	require.Empty(t, result.TriggeredRules)
}

func TestCalculateMLHeuristic_HighEntropyScoresHigher(t *testing.T) {
	low := make([]byte, 256)
	high := make([]byte, 256)
	for i := range high {
		high[i] = byte(i)
	}

	require.Less(t, calculateMLHeuristic(low), calculateMLHeuristic(high))
}

func TestStatistics_TracksExecutionsAndAverages(t *testing.T) {
	s := New(DefaultConfig(), nil)
	_, err := s.Execute(context.Background(), []byte("hello"), "a.txt")
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), []byte("MZ\x00\x00"), "b.exe")
	require.NoError(t, err)

	stats := s.GetStatistics()
	require.Equal(t, uint64(2), stats.TotalExecutions)
	require.Zero(t, stats.Errors)

	s.ResetStatistics()
	require.Zero(t, s.GetStatistics().TotalExecutions)
}

func TestUsingGuestModule_FalseWithoutLoadedModule(t *testing.T) {
	s := New(DefaultConfig(), nil)
	require.False(t, s.UsingGuestModule())
}
