package wasmscorer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scorer is Tier 1: WasmExecutor from spec.md §4.7. It runs a compiled
// guest module when one is loaded, falling back to the in-host heuristic
// scorer otherwise (the "Phase 1a stub" path in the original design).
type Scorer struct {
	mu     sync.Mutex
	cfg    Config
	guest  *guestRuntime
	log    *slog.Logger
	stats  Statistics
}

// New creates a Scorer using the heuristic fallback only; call LoadModule
// to switch to a compiled guest module.
func New(cfg Config, log *slog.Logger) *Scorer {
	if log == nil {
		log = slog.Default()
	}
	return &Scorer{cfg: cfg, log: log}
}

// LoadModule compiles wasmBytes and switches subsequent Execute calls to
// run inside the WASM sandbox.
func (s *Scorer) LoadModule(ctx context.Context, wasmBytes []byte) error {
	guest, err := loadGuestModule(ctx, wasmBytes, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.guest
	s.guest = guest
	s.mu.Unlock()
	if old != nil {
		_ = old.Close(ctx)
	}
	return nil
}

// Close releases the guest runtime, if any.
func (s *Scorer) Close(ctx context.Context) error {
	s.mu.Lock()
	guest := s.guest
	s.guest = nil
	s.mu.Unlock()
	if guest == nil {
		return nil
	}
	return guest.Close(ctx)
}

// Execute analyzes file_data, preferring the compiled guest module and
// falling back to the heuristic scorer when none is loaded.
func (s *Scorer) Execute(ctx context.Context, data []byte, filename string) (Result, error) {
	s.mu.Lock()
	guest := s.guest
	cfg := s.cfg
	s.mu.Unlock()

	var result Result
	var err error
	if guest != nil {
		result, err = guest.execute(ctx, data, cfg.Timeout)
	} else {
		result = s.executeHeuristic(data)
	}

	s.recordStats(result, err)
	return result, err
}

func (s *Scorer) executeHeuristic(data []byte) Result {
	start := time.Now()
	yara := calculateYaraHeuristic(data)
	ml := calculateMLHeuristic(data)
	patterns := detectSuspiciousPatterns(data)

	return Result{
		YaraScore:         yara,
		MLScore:           ml,
		DetectedBehaviors: patterns,
		TriggeredRules:    patterns,
		ExecutionTime:     time.Since(start),
	}
}

func (s *Scorer) recordStats(result Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalExecutions++
	if err != nil {
		s.stats.Errors++
		return
	}
	if result.TimedOut {
		s.stats.Timeouts++
	}
	if result.ExecutionTime > s.stats.MaxExecutionTime {
		s.stats.MaxExecutionTime = result.ExecutionTime
	}
	n := s.stats.TotalExecutions
	prevTotal := s.stats.AverageExecutionTime * time.Duration(n-1)
	s.stats.AverageExecutionTime = (prevTotal + result.ExecutionTime) / time.Duration(n)
}

// GetStatistics returns a snapshot of execution counters.
func (s *Scorer) GetStatistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ResetStatistics zeroes the execution counters.
func (s *Scorer) ResetStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Statistics{}
}

// UsingGuestModule reports whether Execute currently runs inside a
// compiled WASM sandbox rather than the heuristic fallback.
func (s *Scorer) UsingGuestModule() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guest != nil
}
