package degradation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetServiceState_NewFailureTracksCountAndLevel(t *testing.T) {
	r := New()
	r.SetServiceState(ServiceDatabase, Degraded, "connection flaky", FallbackUseCache)

	require.Equal(t, Degraded, r.GetServiceState(ServiceDatabase))
	require.Equal(t, SystemDegraded, r.GetSystemDegradationLevel())

	strategy, ok := r.GetFallbackStrategy(ServiceDatabase)
	require.True(t, ok)
	require.Equal(t, FallbackUseCache, strategy)
}

func TestSetServiceState_CriticalAnyServiceMakesSystemCritical(t *testing.T) {
	r := New()
	r.SetServiceState(ServiceDatabase, Degraded, "x", FallbackUseCache)
	r.SetServiceState(ServiceQuarantine, Critical, "y", FallbackNone)

	require.Equal(t, CriticalFailure, r.GetSystemDegradationLevel())
}

func TestMarkServiceRecovered_ResetsToHealthyAndIncrementsRecoveries(t *testing.T) {
	r := New()
	r.SetServiceState(ServiceDatabase, Degraded, "x", FallbackUseCache)
	r.MarkServiceRecovered(ServiceDatabase)

	require.Equal(t, Healthy, r.GetServiceState(ServiceDatabase))
	require.Equal(t, 1, r.GetMetrics().TotalRecoveries)
}

func TestShouldUseFallback_FalseForUnknownOrHealthyService(t *testing.T) {
	r := New()
	require.False(t, r.ShouldUseFallback("unknown"))
	r.SetServiceState(ServiceDatabase, Healthy, "ok", FallbackNone)
	require.False(t, r.ShouldUseFallback(ServiceDatabase))
}

func TestAttemptRecovery_EscalatesToCriticalAtLimit(t *testing.T) {
	r := New()
	r.SetRecoveryAttemptLimit(2)
	r.SetServiceState(ServiceDatabase, Degraded, "x", FallbackRetryWithBackoff)

	r.AttemptRecovery(ServiceDatabase)
	require.Equal(t, Degraded, r.GetServiceState(ServiceDatabase))

	r.AttemptRecovery(ServiceDatabase)
	require.Equal(t, Critical, r.GetServiceState(ServiceDatabase))
}

func TestRegisterCallback_FiresOnStateChange(t *testing.T) {
	r := New()
	var events []Event
	r.RegisterCallback(func(e Event) { events = append(events, e) })

	r.SetServiceState(ServiceDatabase, Degraded, "reason", FallbackUseCache)
	r.SetServiceState(ServiceDatabase, Degraded, "same state again", FallbackUseCache)

	require.Len(t, events, 1)
	require.Equal(t, Healthy, events[0].OldState)
	require.Equal(t, Degraded, events[0].NewState)
}

func TestGetHealthStatus_ReportsCriticalMessage(t *testing.T) {
	r := New()
	r.SetServiceState(ServiceQuarantine, Critical, "disk full", FallbackNone)

	status := r.GetHealthStatus()
	require.False(t, status.IsHealthy)
	require.Contains(t, status.CriticalMessage, ServiceQuarantine)
}

func TestExecuteWithFallback_RunsFallbackOnOperationFailure(t *testing.T) {
	r := New()
	result, err := ExecuteWithFallback(r, ServiceDatabase,
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "cached", nil },
	)
	require.NoError(t, err)
	require.Equal(t, "cached", result)
	require.Equal(t, Degraded, r.GetServiceState(ServiceDatabase))
}

func TestExecuteWithFallback_SkipsOperationWhenAlreadyDegraded(t *testing.T) {
	r := New()
	r.SetServiceState(ServiceDatabase, Degraded, "x", FallbackUseCache)

	called := false
	result, err := ExecuteWithFallback(r, ServiceDatabase,
		func() (string, error) { called = true; return "live", nil },
		func() (string, error) { return "cached", nil },
	)
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, "cached", result)
}

func TestExecuteWithTracking_EscalatesAcrossRepeatedFailures(t *testing.T) {
	r := New()
	op := func() (int, error) { return 0, errors.New("fail") }

	_, _ = ExecuteWithTracking(r, ServiceWasmScorer, op)
	require.Equal(t, Degraded, r.GetServiceState(ServiceWasmScorer))

	_, _ = ExecuteWithTracking(r, ServiceWasmScorer, op)
	require.Equal(t, Failed, r.GetServiceState(ServiceWasmScorer))
}

func TestTryWithRecovery_SucceedsBeforeExhaustingRetries(t *testing.T) {
	r := New()
	attempts := 0
	result, err := TryWithRecovery(context.Background(), r, ServiceDatabase, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, 3)

	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, Healthy, r.GetServiceState(ServiceDatabase))
}

func TestTryWithRecovery_MarksFailedAfterExhaustingRetries(t *testing.T) {
	r := New()
	_, err := TryWithRecovery(context.Background(), r, ServiceDatabase, func() (string, error) {
		return "", errors.New("permanent")
	}, 2)

	require.Error(t, err)
	require.Equal(t, Failed, r.GetServiceState(ServiceDatabase))
}
