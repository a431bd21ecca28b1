package behavioral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyze_MockPath_DetectsPersistenceAndDrop(t *testing.T) {
	a := New(DefaultConfig())
	require.True(t, a.UsingMock())

	data := []byte("drops payload.exe then writes crontab entry and opens /tmp/stage file")
	m, err := a.Analyze(context.Background(), data, "payload.exe")
	require.NoError(t, err)
	require.Greater(t, m.ExecutableDrops, uint32(0))
	require.Greater(t, m.PersistenceMechanisms, uint32(0))
	require.NotEmpty(t, m.SuspiciousBehaviors)
}

func TestAnalyze_MockPath_BenignContentLowScore(t *testing.T) {
	a := New(DefaultConfig())
	m, err := a.Analyze(context.Background(), []byte("hello world, just a memo"), "memo.txt")
	require.NoError(t, err)
	require.Less(t, m.ThreatScore, 0.2)
}

func TestCalculateThreatScore_WeightsCategoriesAsSpecified(t *testing.T) {
	m := Metrics{
		TempFileCreates:    3,
		SelfModificationAttempts: 2,
		OutboundConnections: 3,
	}
	score := calculateThreatScore(m)
	require.InDelta(t, 0.75, score, 0.01)
}

func TestParseSyscallEvent_ParsesNameAndArgs(t *testing.T) {
	ev, ok := parseSyscallEvent("[SYSCALL] connect(fd=3, addr=1.2.3.4:443)")
	require.True(t, ok)
	require.Equal(t, "connect", ev.Name)
	require.Len(t, ev.Args, 2)
}

func TestParseSyscallEvent_RejectsNonMatchingLine(t *testing.T) {
	_, ok := parseSyscallEvent("not a syscall line")
	require.False(t, ok)
}

func TestDetectRansomwarePattern_RequiresFileChurnAndPersistence(t *testing.T) {
	require.True(t, detectRansomwarePattern(Metrics{FileOperations: 10, TempFileCreates: 4, PersistenceMechanisms: 1}))
	require.False(t, detectRansomwarePattern(Metrics{FileOperations: 10}))
}

func TestStatistics_TracksAnalyses(t *testing.T) {
	a := New(DefaultConfig())
	_, err := a.Analyze(context.Background(), []byte("benign"), "a.txt")
	require.NoError(t, err)

	stats := a.GetStatistics()
	require.Equal(t, uint64(1), stats.TotalAnalyses)

	a.ResetStatistics()
	require.Zero(t, a.GetStatistics().TotalAnalyses)
}
