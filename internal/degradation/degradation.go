// Package degradation is Sentinel's GracefulDegradation: per-service state
// tracking (Healthy → Degraded → Failed → Critical) with fallback
// strategies, automatic recovery tracking, and subscriber notification on
// state changes, plus wrapper helpers (ExecuteWithFallback,
// ExecuteWithTracking, TryWithRecovery) that apply it around a caller's
// operation.
//
// Grounded on original_source/Services/Sentinel/GracefulDegradation.{h,cpp}
// for the Registry itself, and GracefulDegradationIntegration.h for the
// three wrapper helpers, which become free functions taking *Registry and
// a generic operation closure rather than a wrapper type holding a
// reference, matching Go's preference for functions over thin adapter
// objects.
package degradation

import (
	"fmt"
	"sync"
	"time"
)

// ServiceState is a service's current health as tracked by the registry.
type ServiceState int

const (
	Healthy ServiceState = iota
	Degraded
	Failed
	Critical
)

func (s ServiceState) String() string {
	switch s {
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	case Critical:
		return "critical"
	default:
		return "healthy"
	}
}

// FallbackStrategy names how a degraded service's callers should behave.
type FallbackStrategy int

const (
	FallbackNone FallbackStrategy = iota
	FallbackUseCache
	FallbackAllowWithWarning
	FallbackSkipWithLog
	FallbackRetryWithBackoff
	FallbackQueueForRetry
)

func (f FallbackStrategy) String() string {
	switch f {
	case FallbackUseCache:
		return "use_cache"
	case FallbackAllowWithWarning:
		return "allow_with_warning"
	case FallbackSkipWithLog:
		return "skip_with_log"
	case FallbackRetryWithBackoff:
		return "retry_with_backoff"
	case FallbackQueueForRetry:
		return "queue_for_retry"
	default:
		return "none"
	}
}

// DegradationLevel is the worst-of-all-services system-wide state.
type DegradationLevel int

const (
	Normal DegradationLevel = iota
	SystemDegraded
	CriticalFailure
)

func (l DegradationLevel) String() string {
	switch l {
	case SystemDegraded:
		return "degraded"
	case CriticalFailure:
		return "critical_failure"
	default:
		return "normal"
	}
}

// ServiceFailure is one service's tracked state.
type ServiceFailure struct {
	State             ServiceState
	ServiceName       string
	FailureReason     string
	FailedAt          time.Time
	LastCheckAt       time.Time
	FailureCount      int
	RecoveryAttempts  int
	FallbackStrategy  FallbackStrategy
	AutoRecoveryEnabled bool
}

// Event is fired on every service state transition.
type Event struct {
	ServiceName string
	OldState    ServiceState
	NewState    ServiceState
	Reason      string
	Timestamp   time.Time
}

// Callback receives degradation Events.
type Callback func(Event)

// Metrics aggregates registry-wide counters.
type Metrics struct {
	TotalServices     int
	HealthyServices   int
	DegradedServices  int
	FailedServices    int
	CriticalServices  int
	TotalFailures     int
	TotalRecoveries   int
	SystemLevel       DegradationLevel
	LastFailureTime   *time.Time
	LastRecoveryTime  *time.Time
}

// HealthStatus is a health-probe-friendly summary of the registry.
type HealthStatus struct {
	IsHealthy        bool
	Level            DegradationLevel
	DegradedServices []string
	FailedServices   []string
	CriticalMessage  string
}

// Registry tracks per-service degradation state and notifies subscribers.
type Registry struct {
	mu       sync.Mutex
	services map[string]*ServiceFailure
	callbacks []Callback

	totalFailures, totalRecoveries int
	lastFailureTime, lastRecoveryTime *time.Time

	failureThreshold     int
	recoveryAttemptLimit int
}

// DefaultFailureThreshold mirrors m_failure_threshold's default.
const DefaultFailureThreshold = 3

// DefaultRecoveryAttemptLimit mirrors m_recovery_attempt_limit's default.
const DefaultRecoveryAttemptLimit = 5

// Well-known service names, mirroring the Services:: namespace constants.
const (
	ServicePolicyStore = "policystore"
	ServiceWasmScorer  = "wasmscorer"
	ServiceIPCServer   = "ipc"
	ServiceDatabase    = "database"
	ServiceQuarantine  = "quarantine"
	ServiceRequestRouter = "request_router"
	ServiceNetworkLayer  = "network"
)

// New creates a Registry with default thresholds.
func New() *Registry {
	return &Registry{
		services:             make(map[string]*ServiceFailure),
		failureThreshold:     DefaultFailureThreshold,
		recoveryAttemptLimit: DefaultRecoveryAttemptLimit,
	}
}

// SetFailureThreshold overrides the default failure threshold.
func (r *Registry) SetFailureThreshold(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failureThreshold = n
}

// SetRecoveryAttemptLimit overrides the default recovery attempt limit.
func (r *Registry) SetRecoveryAttemptLimit(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recoveryAttemptLimit = n
}

// SetServiceState records a new state for serviceName, updating failure/
// recovery counters and notifying subscribers if the state actually changed.
func (r *Registry) SetServiceState(serviceName string, state ServiceState, reason string, fallback FallbackStrategy) {
	r.mu.Lock()
	now := time.Now()
	oldState := Healthy

	failure, exists := r.services[serviceName]
	if exists {
		oldState = failure.State
		if state < oldState && state == Healthy {
			r.totalRecoveries++
			r.lastRecoveryTime = &now
		} else if state > oldState {
			failure.FailureCount++
			r.totalFailures++
			r.lastFailureTime = &now
		}
		failure.State = state
		failure.FailureReason = reason
		failure.LastCheckAt = now
		failure.FallbackStrategy = fallback
		if state == Healthy {
			failure.FailureCount = 0
			failure.RecoveryAttempts = 0
		}
	} else {
		failureCount := 0
		if state != Healthy {
			failureCount = 1
			r.totalFailures++
			r.lastFailureTime = &now
		}
		failure = &ServiceFailure{
			State: state, ServiceName: serviceName, FailureReason: reason,
			FailedAt: now, LastCheckAt: now, FailureCount: failureCount,
			FallbackStrategy: fallback, AutoRecoveryEnabled: true,
		}
		r.services[serviceName] = failure
	}

	callbacks := append([]Callback(nil), r.callbacks...)
	r.mu.Unlock()

	if oldState != state {
		event := Event{ServiceName: serviceName, OldState: oldState, NewState: state, Reason: reason, Timestamp: now}
		for _, cb := range callbacks {
			cb(event)
		}
	}
}

// GetServiceState returns serviceName's current state, Healthy if unknown.
func (r *Registry) GetServiceState(serviceName string) ServiceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.services[serviceName]; ok {
		return f.State
	}
	return Healthy
}

// GetSystemDegradationLevel returns the worst-of-all-services level.
func (r *Registry) GetSystemDegradationLevel() DegradationLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calculateSystemLevel()
}

func (r *Registry) calculateSystemLevel() DegradationLevel {
	hasCritical, hasFailed, hasDegraded := false, false, false
	for _, f := range r.services {
		switch f.State {
		case Critical:
			hasCritical = true
		case Failed:
			hasFailed = true
		case Degraded:
			hasDegraded = true
		}
	}
	switch {
	case hasCritical:
		return CriticalFailure
	case hasFailed || hasDegraded:
		return SystemDegraded
	default:
		return Normal
	}
}

// GetDegradedServices lists services currently in the Degraded state.
func (r *Registry) GetDegradedServices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, f := range r.services {
		if f.State == Degraded {
			names = append(names, name)
		}
	}
	return names
}

// GetFailedServices lists services currently Failed or Critical.
func (r *Registry) GetFailedServices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name, f := range r.services {
		if f.State == Failed || f.State == Critical {
			names = append(names, name)
		}
	}
	return names
}

// GetAllServiceFailures returns every non-healthy service's failure record.
func (r *Registry) GetAllServiceFailures() []ServiceFailure {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ServiceFailure
	for _, f := range r.services {
		if f.State != Healthy {
			out = append(out, *f)
		}
	}
	return out
}

// ShouldUseFallback reports whether serviceName is in any non-healthy state.
func (r *Registry) ShouldUseFallback(serviceName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.services[serviceName]
	return ok && f.State != Healthy
}

// GetFallbackStrategy returns serviceName's configured fallback strategy.
func (r *Registry) GetFallbackStrategy(serviceName string) (FallbackStrategy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.services[serviceName]
	if !ok {
		return FallbackNone, false
	}
	return f.FallbackStrategy, true
}

// GetFallbackReason returns the reason serviceName is degraded, if any.
func (r *Registry) GetFallbackReason(serviceName string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.services[serviceName]
	if !ok || f.State == Healthy {
		return "", false
	}
	return f.FailureReason, true
}

// MarkServiceRecovered sets serviceName back to Healthy.
func (r *Registry) MarkServiceRecovered(serviceName string) {
	r.SetServiceState(serviceName, Healthy, "service recovered", FallbackNone)
}

// AttemptRecovery increments serviceName's recovery-attempt counter,
// escalating to Critical once the attempt limit is reached.
func (r *Registry) AttemptRecovery(serviceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.services[serviceName]
	if !ok {
		return
	}
	f.RecoveryAttempts++
	f.LastCheckAt = time.Now()
	if f.RecoveryAttempts >= r.recoveryAttemptLimit {
		f.State = Critical
	}
}

// IsRecoveryInProgress reports whether serviceName is actively retrying
// recovery (non-healthy, non-critical, with at least one attempt made but
// not yet exhausted).
func (r *Registry) IsRecoveryInProgress(serviceName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.services[serviceName]
	if !ok {
		return false
	}
	return f.State != Healthy && f.State != Critical &&
		f.RecoveryAttempts > 0 && f.RecoveryAttempts < r.recoveryAttemptLimit
}

// EnableAutoRecovery toggles serviceName's auto-recovery flag, creating a
// healthy entry for it if one doesn't exist yet.
func (r *Registry) EnableAutoRecovery(serviceName string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.services[serviceName]; ok {
		f.AutoRecoveryEnabled = enabled
		return
	}
	now := time.Now()
	r.services[serviceName] = &ServiceFailure{
		State: Healthy, ServiceName: serviceName, FailedAt: now, LastCheckAt: now,
		FallbackStrategy: FallbackNone, AutoRecoveryEnabled: enabled,
	}
}

// IsAutoRecoveryEnabled reports serviceName's auto-recovery flag,
// defaulting to true for unknown services.
func (r *Registry) IsAutoRecoveryEnabled(serviceName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.services[serviceName]
	if !ok {
		return true
	}
	return f.AutoRecoveryEnabled
}

// RegisterCallback subscribes to degradation Events.
func (r *Registry) RegisterCallback(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// ClearCallbacks removes all subscribers.
func (r *Registry) ClearCallbacks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = nil
}

// GetMetrics returns a snapshot of registry-wide counters.
func (r *Registry) GetMetrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Metrics{TotalServices: len(r.services), TotalFailures: r.totalFailures, TotalRecoveries: r.totalRecoveries,
		SystemLevel: r.calculateSystemLevel(), LastFailureTime: r.lastFailureTime, LastRecoveryTime: r.lastRecoveryTime}
	for _, f := range r.services {
		switch f.State {
		case Healthy:
			m.HealthyServices++
		case Degraded:
			m.DegradedServices++
		case Failed:
			m.FailedServices++
		case Critical:
			m.CriticalServices++
		}
	}
	return m
}

// ResetMetrics zeroes registry-wide and per-service failure/recovery counters.
func (r *Registry) ResetMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalFailures, r.totalRecoveries = 0, 0
	r.lastFailureTime, r.lastRecoveryTime = nil, nil
	for _, f := range r.services {
		f.FailureCount, f.RecoveryAttempts = 0, 0
	}
}

// GetHealthStatus renders the registry into a probe-friendly summary.
func (r *Registry) GetHealthStatus() HealthStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	level := r.calculateSystemLevel()
	status := HealthStatus{IsHealthy: level == Normal, Level: level}

	for name, f := range r.services {
		switch f.State {
		case Degraded:
			status.DegradedServices = append(status.DegradedServices, name)
		case Failed:
			status.FailedServices = append(status.FailedServices, name)
		case Critical:
			status.FailedServices = append(status.FailedServices, name)
			if status.CriticalMessage == "" {
				status.CriticalMessage = fmt.Sprintf("critical failure in service: %s", name)
			}
		}
	}
	return status
}
