// Package wasmscorer is Sentinel's Tier 1 analyzer: a fast pre-analysis
// pass meant to run in tens of milliseconds. When a compiled guest module
// is configured it runs inside a wazero sandbox under the
// allocate/deallocate/analyze_file contract; otherwise it falls back to an
// in-host heuristic scorer (entropy, magic bytes, keyword scan) so the rest
// of the pipeline works without a WASM module on disk.
//
// Grounded on original_source/Services/Sentinel/Sandbox/WasmExecutor.h's
// stub-vs-real split, result shape, and statistics; the guest module
// contract is run atop github.com/tetratelabs/wazero (present in the
// example pack's go.mod manifests) rather than hand-rolled WASM decoding.
package wasmscorer

import "time"

// Result is Tier 1's output, equivalent to WasmExecutionResult.
type Result struct {
	YaraScore         float64 // 0..1
	MLScore           float64 // 0..1
	DetectedBehaviors []string
	TriggeredRules    []string
	TimedOut          bool
	ExecutionTime     time.Duration
}

// Config carries sandbox limits, mirroring SandboxConfig's WASM-relevant
// fields. Execute applies only Timeout; MaxMemoryBytes and FuelBudget are
// not applied to the guest runtime or the heuristic fallback.
type Config struct {
	Timeout       time.Duration // default 5s
	MaxMemoryBytes uint64       // default 128 MiB
	FuelBudget    uint64        // approx instruction ceiling
}

// DefaultConfig returns spec.md §4.7's defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        5 * time.Second,
		MaxMemoryBytes: 128 * 1024 * 1024,
		FuelBudget:     5e8,
	}
}

// Statistics tracks Tier 1 execution counters across calls.
type Statistics struct {
	TotalExecutions    uint64
	Timeouts           uint64
	Errors             uint64
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
}
