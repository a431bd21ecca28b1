// Package behavioral is Sentinel's Tier 2 analyzer: a deeper, slower pass
// that executes a candidate file inside an OS-level sandbox and scores it
// from observed syscall behavior. When no sandbox binary is configured it
// falls back to a mock path driven by keyword heuristics, so
// the rest of the pipeline works in environments without a sandbox runner
// installed.
//
// Grounded on original_source/Services/Sentinel/Sandbox/BehavioralAnalyzer.h
// (metric shape, mock-vs-real split, seccomp policy, nsjail-style syscall
// tracing via stderr lines) and spec.md §4.8's category weighting.
package behavioral

import "time"

// Metrics is BehavioralMetrics: 16 counters across 5 categories plus the
// aggregated threat score and explanation strings.
type Metrics struct {
	// File system behavior.
	FileOperations    uint32
	TempFileCreates   uint32
	HiddenFileCreates uint32
	ExecutableDrops   uint32

	// Process & execution.
	ProcessOperations        uint32
	SelfModificationAttempts uint32
	PersistenceMechanisms    uint32

	// Network behavior.
	NetworkOperations  uint32
	OutboundConnections uint32
	DNSQueries          uint32
	HTTPRequests        uint32

	// System & registry.
	RegistryOperations         uint32
	ServiceModifications       uint32
	PrivilegeEscalationAttempts uint32

	// Memory behavior.
	MemoryOperations     uint32
	CodeInjectionAttempts uint32

	ThreatScore          float64 // 0..1
	SuspiciousBehaviors  []string
	ExecutionTime        time.Duration
	TimedOut             bool
	ExitCode             int
}

// Filter names the syscall categories to monitor, mirroring SyscallFilter.
// The Analyzer stores it (NewWithFilter, UpdateFilter), but neither the
// mock nor the sandbox path consults it: every category is always counted.
type Filter struct {
	MonitorFileOps     bool
	MonitorProcessOps  bool
	MonitorNetworkOps  bool
	MonitorRegistryOps bool
	MonitorMemoryOps   bool
}

// DefaultFilter monitors every category.
func DefaultFilter() Filter {
	return Filter{true, true, true, true, true}
}

// Config controls sandbox execution limits.
type Config struct {
	Timeout         time.Duration // default 5s
	SandboxBinary   string        // path to the OS-sandbox launcher (e.g. nsjail); empty uses the mock path
	SandboxConfigPath string      // path to an external seccomp policy file; falls back to the inline policy
}

// DefaultConfig returns spec.md §4.8's defaults: mock path, 5s timeout.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// Statistics tracks Tier 2 execution counters across calls.
type Statistics struct {
	TotalAnalyses        uint64
	Timeouts             uint64
	Crashes              uint64
	BlockedOperations    uint64
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
}
