package wasmscorer

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"sentinel/internal/sentinelerr"
)

// resultStructSize is the 28-byte layout from spec.md §4.7:
// {f32 yara_score, f32 ml_score, u32 detected_patterns, u64 execution_time_us, u32 error_code, u32 pad}.
const resultStructSize = 28

// guestRuntime hosts a compiled WASM module implementing the
// allocate/deallocate/analyze_file/memory export contract.
type guestRuntime struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	log      *slog.Logger
}

// loadGuestModule compiles wasmBytes and wires the host imports
// (log, current_time_ms) the guest module expects.
func loadGuestModule(ctx context.Context, wasmBytes []byte, log *slog.Logger) (*guestRuntime, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	_, err := runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, level, ptr, length uint32) {
			buf, ok := mod.Memory().Read(ptr, length)
			if !ok {
				return
			}
			logGuestMessage(log, level, string(buf))
		}).
		Export("log").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) int64 {
			return time.Now().UnixMilli()
		}).
		Export("current_time_ms").
		Instantiate(ctx)
	if err != nil {
		runtime.Close(ctx)
		return nil, sentinelerr.Wrap(sentinelerr.Internal, "register wasm host imports", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, sentinelerr.Wrap(sentinelerr.InvalidInput, "compile wasm guest module", err)
	}

	return &guestRuntime{runtime: runtime, compiled: compiled, log: log}, nil
}

func logGuestMessage(log *slog.Logger, level uint32, msg string) {
	if log == nil {
		return
	}
	switch {
	case level >= 3:
		log.Error("wasm guest", "message", msg)
	case level == 2:
		log.Warn("wasm guest", "message", msg)
	default:
		log.Debug("wasm guest", "message", msg)
	}
}

func (g *guestRuntime) Close(ctx context.Context) error {
	return g.runtime.Close(ctx)
}

// execute runs analyze_file on the guest module within timeout and decodes
// the 28-byte result struct. A timeout manifests as wazero tearing the
// module down via context cancellation; per spec.md §4.7 this is reported
// as Result{TimedOut: true}, not an error.
func (g *guestRuntime) execute(ctx context.Context, data []byte, timeout time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	mod, err := g.runtime.InstantiateModule(ctx, g.compiled, wazero.NewModuleConfig())
	if err != nil {
		if isTimeoutTrap(err) {
			return Result{TimedOut: true, ExecutionTime: time.Since(start)}, nil
		}
		return Result{}, sentinelerr.Wrap(sentinelerr.Internal, "instantiate wasm guest module", err)
	}
	defer mod.Close(ctx)

	allocate := mod.ExportedFunction("allocate")
	deallocate := mod.ExportedFunction("deallocate")
	analyze := mod.ExportedFunction("analyze_file")
	if allocate == nil || deallocate == nil || analyze == nil {
		return Result{}, sentinelerr.New(sentinelerr.Internal, "wasm guest module missing required exports")
	}

	size := uint64(len(data))
	allocRes, err := allocate.Call(ctx, size)
	if err != nil {
		if isTimeoutTrap(err) {
			return Result{TimedOut: true, ExecutionTime: time.Since(start)}, nil
		}
		return Result{}, sentinelerr.Wrap(sentinelerr.Internal, "allocate guest buffer", err)
	}
	ptr := allocRes[0]

	mem := mod.Memory()
	if !mem.Write(uint32(ptr), data) {
		return Result{}, sentinelerr.New(sentinelerr.Internal, "write file bytes into guest memory")
	}

	analyzeRes, err := analyze.Call(ctx, ptr, size)
	if err != nil {
		if isTimeoutTrap(err) {
			return Result{TimedOut: true, ExecutionTime: time.Since(start)}, nil
		}
		return Result{}, sentinelerr.Wrap(sentinelerr.Internal, "call analyze_file", err)
	}
	resultPtr := uint32(analyzeRes[0])

	raw, ok := mem.Read(resultPtr, resultStructSize)
	if !ok {
		return Result{}, sentinelerr.New(sentinelerr.Internal, "read guest result struct out of bounds")
	}

	yaraScore := math.Float32frombits(binary.LittleEndian.Uint32(raw[0:4]))
	mlScore := math.Float32frombits(binary.LittleEndian.Uint32(raw[4:8]))
	detectedPatterns := binary.LittleEndian.Uint32(raw[8:12])
	executionTimeUs := binary.LittleEndian.Uint64(raw[12:20])
	errorCode := binary.LittleEndian.Uint32(raw[20:24])

	_, _ = deallocate.Call(ctx, ptr, size)
	_, _ = deallocate.Call(ctx, uint64(resultPtr), resultStructSize)

	if errorCode != 0 {
		return Result{}, sentinelerr.New(sentinelerr.Internal, fmt.Sprintf("guest analyze_file returned error code %d", errorCode))
	}

	return Result{
		YaraScore:      clamp01(float64(yaraScore)),
		MLScore:        clamp01(float64(mlScore)),
		TriggeredRules: patternLabels(detectedPatterns),
		ExecutionTime:  time.Duration(executionTimeUs) * time.Microsecond,
	}, nil
}

func patternLabels(count uint32) []string {
	if count == 0 {
		return nil
	}
	return []string{fmt.Sprintf("guest_detected_patterns:%d", count)}
}

// isTimeoutTrap matches spec.md §4.7's rule: traps whose message mentions
// "epoch", "interrupt", or "timeout" (or a context deadline) are treated as
// a timed-out tier rather than a hard error.
func isTimeoutTrap(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "epoch") ||
		strings.Contains(msg, "interrupt") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "context canceled")
}
