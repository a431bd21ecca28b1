// Package breaker wraps github.com/sony/gobreaker in the Closed/Open/
// Half-Open vocabulary spec.md §4.4 describes, so PolicyStore's database
// access and BehavioralAnalyzer's sandbox subprocess invocation degrade
// predictably instead of hanging when a dependency misbehaves.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"sentinel/internal/sentinelerr"
)

// State mirrors gobreaker's state enum under Sentinel's own names, so
// callers never need to import gobreaker directly.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return Open
	case gobreaker.StateHalfOpen:
		return HalfOpen
	default:
		return Closed
	}
}

// Metrics is a point-in-time snapshot of a breaker's counters.
type Metrics struct {
	State              State
	Successes, Failures uint64
	LastTransition     time.Time
}

// CircuitBreaker gates calls to a fragile dependency. Closed lets calls
// through; Open short-circuits them immediately; HalfOpen allows a limited
// number of probe calls to decide whether to reclose or reopen.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker

	mu             sync.Mutex
	successes      uint64
	failures       uint64
	lastTransition time.Time
}

// Config controls the failure threshold and cooldown.
type Config struct {
	Name                  string
	FailureThreshold      uint32        // consecutive failures before opening
	HalfOpenMaxProbes     uint32        // probe calls allowed while half-open
	CooldownPeriod        time.Duration // Open -> HalfOpen delay
}

// DefaultConfig returns sensible defaults for wrapping a database or
// subprocess dependency: 5 consecutive failures, 1 probe, 30s cooldown.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		FailureThreshold:  5,
		HalfOpenMaxProbes: 1,
		CooldownPeriod:    30 * time.Second,
	}
}

// New creates a CircuitBreaker from cfg.
func New(cfg Config) *CircuitBreaker {
	b := &CircuitBreaker{name: cfg.Name, lastTransition: time.Now()}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxProbes,
		Timeout:     cfg.CooldownPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.mu.Lock()
			b.lastTransition = time.Now()
			b.mu.Unlock()
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Execute runs fn through the breaker. In Open state it returns a
// *sentinelerr.Error with Kind CircuitBlocked without calling fn. In
// Closed/HalfOpen it calls fn and feeds the result back into the state
// machine.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, sentinelerr.Wrap(sentinelerr.CircuitBlocked, b.name+" circuit open", err)
		}
		b.mu.Lock()
		b.failures++
		b.mu.Unlock()
		return nil, err
	}
	b.mu.Lock()
	b.successes++
	b.mu.Unlock()
	return result, nil
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State {
	return fromGobreaker(b.cb.State())
}

// GetMetrics returns a snapshot of success/failure counts and state.
func (b *CircuitBreaker) GetMetrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Metrics{
		State:          fromGobreaker(b.cb.State()),
		Successes:      b.successes,
		Failures:       b.failures,
		LastTransition: b.lastTransition,
	}
}

// Reset clears accumulated metrics (gobreaker itself resets its trip
// counters automatically between windows; this only resets the
// Sentinel-facing counters surfaced via GetMetrics).
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes, b.failures = 0, 0
	b.lastTransition = time.Now()
}
