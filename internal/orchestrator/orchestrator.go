package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sentinel/internal/policystore"
	"sentinel/internal/sandbox/behavioral"
	"sentinel/internal/sandbox/verdict"
	"sentinel/internal/sandbox/wasmscorer"
	"sentinel/internal/threatfeed"
)

// Orchestrator runs spec.md §4.10's pipeline: verdict-cache fast path,
// then Tier 1, conditionally Tier 2, then VerdictEngine, then persist.
type Orchestrator struct {
	mu     sync.Mutex
	cfg    Config
	stats  Statistics
	tracer trace.Tracer

	store      *policystore.Store
	tier1      *wasmscorer.Scorer
	tier2      *behavioral.Analyzer
	verdictEng *verdict.Engine
	feed       threatfeed.Source
}

// New wires the three sandbox components and the policy store's verdict
// cache into a single Orchestrator. The threat feed defaults to
// threatfeed.NoOp; call SetThreatFeed to wire a real reputation source.
func New(cfg Config, store *policystore.Store, tier1 *wasmscorer.Scorer, tier2 *behavioral.Analyzer, verdictEng *verdict.Engine) *Orchestrator {
	return &Orchestrator{
		cfg: cfg, store: store, tier1: tier1, tier2: tier2, verdictEng: verdictEng,
		feed:   threatfeed.NoOp{},
		tracer: otel.Tracer("sentinel/orchestrator"),
	}
}

// SetThreatFeed replaces the reputation source AnalyzeFile consults before
// its final verdict. Passing nil restores the no-op default.
func (o *Orchestrator) SetThreatFeed(feed threatfeed.Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if feed == nil {
		feed = threatfeed.NoOp{}
	}
	o.feed = feed
}

// AnalyzeFile runs the end-to-end scan pipeline for fileData.
func (o *Orchestrator) AnalyzeFile(ctx context.Context, fileData []byte, filename string) (Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.analyze_file", trace.WithAttributes(
		attribute.String("filename", filename), attribute.Int("file_size", len(fileData)),
	))
	defer span.End()

	start := time.Now()
	sum := sha256.Sum256(fileData)
	fileHash := hex.EncodeToString(sum[:])

	o.mu.Lock()
	cfg := o.cfg
	feed := o.feed
	o.mu.Unlock()

	if cached, err := o.store.LookupSandboxVerdict(ctx, fileHash); err == nil && cached != nil {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		result := resultFromCachedVerdict(*cached, time.Since(start))
		o.recordStats(result, 0, 0)
		return result, nil
	}

	result := Result{ThreatLevel: policystore.ThreatClean}

	var tier1Time, tier2Time time.Duration
	if cfg.EnableTier1Wasm && o.tier1 != nil {
		t1Start := time.Now()
		tier1Result, err := o.runTier1(ctx, fileData, filename)
		tier1Time = time.Since(t1Start)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		mergeTier1(&result, tier1Result)
		if tier1Result.TimedOut {
			o.recordStats(result, tier1Time, 0)
			return o.finalize(ctx, fileHash, result, time.Since(start))
		}
	}

	conclusive := cfg.EnableTier1Wasm && tier1Conclusive(result, cfg)
	runTier2 := cfg.EnableTier2Native && o.tier2 != nil && !conclusive &&
		(result.CompositeScore > cfg.Tier2CompositeThreshold || !cfg.EnableTier1Wasm)

	if runTier2 {
		t2Start := time.Now()
		metrics, err := o.tier2.Analyze(ctx, fileData, filename)
		tier2Time = time.Since(t2Start)
		if err != nil {
			span.RecordError(err)
			return Result{}, err
		}
		mergeTier2(&result, metrics)
	}

	var v verdict.Verdict
	if malicious, reputation, err := feed.ProbablyMalicious(ctx, fileHash); err == nil && malicious {
		v = o.verdictEng.CalculateVerdictWithReputation(result.YaraScore, result.MLScore, result.BehavioralScore, reputation)
	} else {
		v = o.verdictEng.CalculateVerdict(result.YaraScore, result.MLScore, result.BehavioralScore)
	}
	result.ThreatLevel = v.ThreatLevel
	result.Confidence = v.Confidence
	result.CompositeScore = v.CompositeScore
	result.VerdictExplanation = v.Explanation

	o.recordStats(result, tier1Time, tier2Time)
	return o.finalize(ctx, fileHash, result, time.Since(start))
}

func (o *Orchestrator) runTier1(ctx context.Context, fileData []byte, filename string) (wasmscorer.Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.tier1_wasm")
	defer span.End()
	return o.tier1.Execute(ctx, fileData, filename)
}

// tier1Conclusive reports whether Tier 1 alone is decisive enough to skip
// Tier 2 (spec.md §4.10 step 3): both the YARA and ML scores agree, close to
// either extreme, past the configured confidence threshold.
func tier1Conclusive(r Result, cfg Config) bool {
	agree := math.Abs(r.YaraScore-r.MLScore) < 0.1
	extreme := (r.YaraScore > cfg.Tier1ConclusiveConfidence && r.MLScore > cfg.Tier1ConclusiveConfidence) ||
		(r.YaraScore < 1-cfg.Tier1ConclusiveConfidence && r.MLScore < 1-cfg.Tier1ConclusiveConfidence)
	return agree && extreme
}

func mergeTier1(result *Result, t1 wasmscorer.Result) {
	result.YaraScore = t1.YaraScore
	result.MLScore = t1.MLScore
	result.DetectedBehaviors = append(result.DetectedBehaviors, t1.DetectedBehaviors...)
	result.TriggeredRules = append(result.TriggeredRules, t1.TriggeredRules...)
	result.CompositeScore = verdict.DefaultWeights().Yara*t1.YaraScore + verdict.DefaultWeights().ML*t1.MLScore
}

func mergeTier2(result *Result, m behavioral.Metrics) {
	result.BehavioralScore = m.ThreatScore
	result.DetectedBehaviors = append(result.DetectedBehaviors, m.SuspiciousBehaviors...)
	result.FileOperations = m.FileOperations
	result.ProcessOperations = m.ProcessOperations
	result.NetworkOperations = m.NetworkOperations
	result.RegistryOperations = m.RegistryOperations
	result.MemoryOperations = m.MemoryOperations
	if m.TimedOut {
		result.DetectedBehaviors = append(result.DetectedBehaviors, "tier2 analysis timed out")
	}
}

func (o *Orchestrator) finalize(ctx context.Context, fileHash string, result Result, elapsed time.Duration) (Result, error) {
	result.ExecutionTime = elapsed
	err := o.store.StoreSandboxVerdict(ctx, policystore.SandboxVerdict{
		FileHash:           fileHash,
		ThreatLevel:        result.ThreatLevel,
		Confidence:         int(result.Confidence * 1000),
		CompositeScore:     int(result.CompositeScore * 1000),
		YaraScore:          int(result.YaraScore * 1000),
		MLScore:            int(result.MLScore * 1000),
		BehavioralScore:    int(result.BehavioralScore * 1000),
		VerdictExplanation: result.VerdictExplanation,
		TriggeredRules:     result.TriggeredRules,
		DetectedBehaviors:  result.DetectedBehaviors,
		AnalyzedAt:         time.Now(),
	})
	return result, err
}

func resultFromCachedVerdict(v policystore.SandboxVerdict, elapsed time.Duration) Result {
	return Result{
		ThreatLevel:        v.ThreatLevel,
		Confidence:         float64(v.Confidence) / 1000,
		CompositeScore:     float64(v.CompositeScore) / 1000,
		YaraScore:          float64(v.YaraScore) / 1000,
		MLScore:            float64(v.MLScore) / 1000,
		BehavioralScore:    float64(v.BehavioralScore) / 1000,
		VerdictExplanation: v.VerdictExplanation,
		TriggeredRules:     v.TriggeredRules,
		DetectedBehaviors:  v.DetectedBehaviors,
		ExecutionTime:      elapsed,
		FromCache:          true,
	}
}

func (o *Orchestrator) recordStats(result Result, tier1Time, tier2Time time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.TotalFilesAnalyzed++
	if tier1Time > 0 {
		o.stats.Tier1Executions++
		o.stats.AverageTier1Time = movingAverage(o.stats.AverageTier1Time, tier1Time, o.stats.Tier1Executions)
	}
	if tier2Time > 0 {
		o.stats.Tier2Executions++
		o.stats.AverageTier2Time = movingAverage(o.stats.AverageTier2Time, tier2Time, o.stats.Tier2Executions)
	}
	if result.IsMalicious() {
		o.stats.MaliciousDetected++
	}
	o.stats.AverageTotalTime = movingAverage(o.stats.AverageTotalTime, result.ExecutionTime, o.stats.TotalFilesAnalyzed)
}

func movingAverage(prevAvg, sample time.Duration, n uint64) time.Duration {
	if n == 0 {
		return sample
	}
	prevTotal := prevAvg * time.Duration(n-1)
	return (prevTotal + sample) / time.Duration(n)
}

// GetStatistics returns a snapshot of pipeline counters.
func (o *Orchestrator) GetStatistics() Statistics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// ResetStatistics zeroes the pipeline counters.
func (o *Orchestrator) ResetStatistics() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = Statistics{}
}

// UpdateConfig replaces the active Config.
func (o *Orchestrator) UpdateConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
}

// GetConfig returns the active Config.
func (o *Orchestrator) GetConfig() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}
