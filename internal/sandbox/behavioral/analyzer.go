package behavioral

import (
	"context"
	"os/exec"
	"sync"
	"time"
)

// Analyzer is Tier 2: BehavioralAnalyzer from spec.md §4.8. When
// Config.SandboxBinary names an executable found on PATH it runs the real
// path; otherwise it uses the mock heuristic path.
type Analyzer struct {
	mu     sync.Mutex
	cfg    Config
	filter Filter
	stats  Statistics
	useMock bool
}

// New creates an Analyzer, probing for the configured sandbox binary.
func New(cfg Config) *Analyzer {
	return NewWithFilter(cfg, DefaultFilter())
}

// NewWithFilter creates an Analyzer with an explicit syscall Filter.
func NewWithFilter(cfg Config, filter Filter) *Analyzer {
	useMock := true
	if cfg.SandboxBinary != "" {
		if _, err := exec.LookPath(cfg.SandboxBinary); err == nil {
			useMock = false
		}
	}
	return &Analyzer{cfg: cfg, filter: filter, useMock: useMock}
}

// Analyze runs the configured path (mock or real sandbox) and returns
// BehavioralMetrics.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, filename string) (Metrics, error) {
	a.mu.Lock()
	cfg, useMock := a.cfg, a.useMock
	a.mu.Unlock()

	var m Metrics
	var err error
	if useMock {
		m = analyzeMock(data, filename)
	} else {
		m, err = analyzeSandbox(ctx, cfg, data, filename)
	}

	a.recordStats(m, err)
	return m, err
}

func (a *Analyzer) recordStats(m Metrics, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalAnalyses++
	if err != nil {
		a.stats.Crashes++
		return
	}
	if m.TimedOut {
		a.stats.Timeouts++
	}
	if m.ExecutionTime > a.stats.MaxExecutionTime {
		a.stats.MaxExecutionTime = m.ExecutionTime
	}
	n := a.stats.TotalAnalyses
	prevTotal := a.stats.AverageExecutionTime * time.Duration(n-1)
	a.stats.AverageExecutionTime = (prevTotal + m.ExecutionTime) / time.Duration(n)
}

// GetStatistics returns a snapshot of execution counters.
func (a *Analyzer) GetStatistics() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// ResetStatistics zeroes the execution counters.
func (a *Analyzer) ResetStatistics() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = Statistics{}
}

// UpdateFilter replaces the stored syscall Filter; Analyze does not read it.
func (a *Analyzer) UpdateFilter(filter Filter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = filter
}

// UsingMock reports whether Analyze is currently running the heuristic
// mock path rather than a real OS sandbox.
func (a *Analyzer) UsingMock() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.useMock
}
