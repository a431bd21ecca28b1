package degradation

import (
	"context"
	"fmt"
	"time"
)

// ExecuteWithFallback runs operation, falling back to fallback when
// serviceName is already marked non-healthy or when operation itself
// fails. A failing operation marks the service Degraded with
// FallbackUseCache before the fallback runs; a successful operation marks
// a previously non-healthy service recovered.
//
// Grounded on GracefulDegradationIntegration.h's execute_with_fallback,
// adapted from a template method taking two Function<ErrorOr<T>()>
// closures into a free generic function taking two func() (T, error)
// closures, Go's equivalent shape.
func ExecuteWithFallback[T any](registry *Registry, serviceName string, operation func() (T, error), fallback func() (T, error)) (T, error) {
	if registry.ShouldUseFallback(serviceName) {
		return fallback()
	}

	result, err := operation()
	if err != nil {
		registry.SetServiceState(serviceName, Degraded, fmt.Sprintf("operation failed: %v", err), FallbackUseCache)
		return fallback()
	}

	if registry.GetServiceState(serviceName) != Healthy {
		registry.MarkServiceRecovered(serviceName)
	}
	return result, nil
}

// ExecuteWithTracking runs operation with no fallback, escalating
// serviceName's state on failure (Healthy -> Degraded -> Failed ->
// Critical) and marking it recovered on success.
func ExecuteWithTracking[T any](registry *Registry, serviceName string, operation func() (T, error)) (T, error) {
	result, err := operation()
	if err != nil {
		var newState ServiceState
		switch registry.GetServiceState(serviceName) {
		case Healthy:
			newState = Degraded
		case Degraded:
			newState = Failed
		default:
			newState = Critical
		}
		registry.SetServiceState(serviceName, newState, fmt.Sprintf("operation failed: %v", err), FallbackNone)
		return result, err
	}

	if registry.GetServiceState(serviceName) != Healthy {
		registry.MarkServiceRecovered(serviceName)
	}
	return result, nil
}

// TryWithRecovery retries operation up to maxRetries times with
// exponential backoff (base 100ms, doubling per attempt), tracking
// serviceName's degradation state across attempts: Degraded on the first
// failure, recovery attempts logged on each retry, Failed on final
// exhaustion.
func TryWithRecovery[T any](ctx context.Context, registry *Registry, serviceName string, operation func() (T, error), maxRetries int) (T, error) {
	var zero T
	if maxRetries <= 0 {
		maxRetries = 3
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err := operation()
		if err == nil {
			if registry.GetServiceState(serviceName) != Healthy {
				registry.MarkServiceRecovered(serviceName)
			}
			return result, nil
		}

		switch {
		case attempt == maxRetries-1:
			registry.SetServiceState(serviceName, Failed,
				fmt.Sprintf("all %d attempts failed", maxRetries), FallbackNone)
			return zero, err
		case attempt == 0:
			registry.SetServiceState(serviceName, Degraded,
				fmt.Sprintf("attempt %d failed: %v", attempt+1, err), FallbackRetryWithBackoff)
		default:
			registry.AttemptRecovery(serviceName)
		}

		backoff := time.Duration(100*(1<<uint(attempt))) * time.Millisecond
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, fmt.Errorf("all retry attempts exhausted for service %q", serviceName)
}
