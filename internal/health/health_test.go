package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckAll_WorstStatusWinsOverall(t *testing.T) {
	r := New("database")
	r.RegisterCheck("database", func(ctx context.Context) (ComponentHealth, error) {
		return ComponentHealth{Status: Healthy}, nil
	})
	r.RegisterCheck("yara", func(ctx context.Context) (ComponentHealth, error) {
		return ComponentHealth{Status: Unhealthy, Message: "compiler init failed"}, nil
	})

	report := r.CheckAll(context.Background())
	require.Equal(t, Unhealthy, report.OverallStatus)
	require.Len(t, report.Components, 2)
}

func TestCheckAll_FailedCheckFuncMarkedUnhealthy(t *testing.T) {
	r := New()
	r.RegisterCheck("flaky", func(ctx context.Context) (ComponentHealth, error) {
		return ComponentHealth{}, assertError{}
	})

	report := r.CheckAll(context.Background())
	require.Equal(t, Unhealthy, report.OverallStatus)
	require.Contains(t, report.Components[0].Message, "health check failed")
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestCheckReadiness_BlocksOnUnhealthyCriticalComponent(t *testing.T) {
	r := New("database", "quarantine")
	r.RegisterCheck("database", func(ctx context.Context) (ComponentHealth, error) {
		return ComponentHealth{Status: Unhealthy}, nil
	})
	r.CheckAll(context.Background())

	probe := r.CheckReadiness()
	require.False(t, probe.Ready)
	require.Contains(t, probe.BlockingComponents, "database")
}

func TestCheckReadiness_ReadyWhenCriticalComponentsHealthy(t *testing.T) {
	r := New("database")
	r.RegisterCheck("database", func(ctx context.Context) (ComponentHealth, error) {
		return ComponentHealth{Status: Healthy}, nil
	})
	r.CheckAll(context.Background())

	probe := r.CheckReadiness()
	require.True(t, probe.Ready)
	require.Empty(t, probe.BlockingComponents)
}

func TestCheckLiveness_AlwaysAlive(t *testing.T) {
	r := New()
	require.True(t, r.CheckLiveness().Alive)
}

func TestStartStopPeriodicChecks_RunsOnInterval(t *testing.T) {
	r := New()
	var n int
	r.RegisterCheck("ticker", func(ctx context.Context) (ComponentHealth, error) {
		n++
		return ComponentHealth{Status: Healthy}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartPeriodicChecks(ctx, 10*time.Millisecond)
	time.Sleep(55 * time.Millisecond)
	r.StopPeriodicChecks()

	require.GreaterOrEqual(t, n, 2)
}

func TestGetMetricsPrometheusFormat_IncludesRegisteredComponents(t *testing.T) {
	r := New()
	r.RegisterCheck("a", func(ctx context.Context) (ComponentHealth, error) { return ComponentHealth{Status: Healthy}, nil })
	out := r.GetMetricsPrometheusFormat()
	require.Contains(t, out, "sentinel_registered_components 1")
	require.Contains(t, out, "# TYPE sentinel_uptime_seconds gauge")
}

func TestUnregisterCheck_RemovesFromSubsequentRuns(t *testing.T) {
	r := New()
	r.RegisterCheck("temp", func(ctx context.Context) (ComponentHealth, error) { return ComponentHealth{Status: Healthy}, nil })
	r.UnregisterCheck("temp")

	report := r.CheckAll(context.Background())
	require.Empty(t, report.Components)
}

func TestSetChangeCallback_FiresOnlyWhenOverallStatusChanges(t *testing.T) {
	r := New()
	status := Healthy
	r.RegisterCheck("flaky", func(ctx context.Context) (ComponentHealth, error) {
		return ComponentHealth{Status: status}, nil
	})

	var fired int
	r.SetChangeCallback(func(Report) { fired++ })

	r.CheckAll(context.Background()) // Healthy -> Healthy is still a change from nil, fires once
	require.Equal(t, 1, fired)

	r.CheckAll(context.Background()) // Healthy -> Healthy, no change
	require.Equal(t, 1, fired)

	status = Unhealthy
	r.CheckAll(context.Background()) // Healthy -> Unhealthy, fires
	require.Equal(t, 2, fired)
}
