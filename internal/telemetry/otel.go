package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // "otlp", "stdout", or "none"
	Endpoint    string `yaml:"endpoint"` // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"` // use insecure connection for OTLP
}

// Provider bootstraps the global OpenTelemetry TracerProvider and owns its
// shutdown. Components like internal/orchestrator call otel.Tracer(...)
// directly once the provider here has been installed; the Record* helpers
// below are the only domain-specific span helpers this package offers.
type Provider struct {
	config   Config
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewProvider creates and installs the global tracer provider described by
// cfg. When cfg.Enabled is false (or no exporter is configured) it still
// returns a usable Provider backed by the otel no-op tracer, so callers
// never need to nil-check.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			config: cfg,
			tracer: otel.Tracer("sentinel"),
		}, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "sentinel"
	}

	slog.Info("creating telemetry exporter", "type", cfg.Exporter)

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "otlp":
		slog.Debug("creating OTLP exporter")
		exporter, err = createOTLPExporter(cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("OTLP exporter initialized", "endpoint", cfg.Endpoint)
	case "stdout":
		slog.Debug("creating stdout exporter")
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Error("stdout exporter creation failed", "error", err)
			return nil, err
		}
		slog.Info("stdout trace exporter initialized")
	default:
		// No exporter configured - tracing stays disabled.
		return &Provider{
			config: cfg,
			tracer: otel.Tracer("sentinel"),
		}, nil
	}

	// Simple trace provider without a resource, avoiding schema version
	// conflicts with whatever collector receives these spans.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	otel.SetTracerProvider(tp)

	return &Provider{
		config:   cfg,
		tracer:   tp.Tracer("sentinel"),
		provider: tp,
	}, nil
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(cfg Config) (sdktrace.SpanExporter, error) {
	ctx := context.Background()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}

	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	return otlptracegrpc.New(ctx, opts...)
}

// Tracer returns the process-wide tracer. Most callers should prefer
// otel.Tracer("sentinel/<package>") directly once NewProvider has run, to
// get a span name scoped to their own package.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown gracefully flushes and shuts down the trace provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}

// Enabled returns whether telemetry is actually exporting spans.
func (p *Provider) Enabled() bool {
	return p.config.Enabled && p.provider != nil
}

// Span attribute keys shared across packages that record scan/policy/
// quarantine events, so span attributes line up regardless of which
// component emits them.
const (
	AttrRequestID     = "sentinel.request.id"
	AttrClientID      = "sentinel.client.id"
	AttrFileHash      = "sentinel.file.hash"
	AttrThreatLevel   = "sentinel.threat.level"
	AttrCompositeScore = "sentinel.threat.composite_score"
	AttrPolicyID      = "sentinel.policy.id"
	AttrPolicyAction  = "sentinel.policy.action"
	AttrQuarantineID  = "sentinel.quarantine.id"
	AttrDurationMs    = "sentinel.duration.ms"
)

// RecordScanCompleted records a scan-finished event on the span already
// active in ctx, such as the orchestrator.AnalyzeFile span.
func RecordScanCompleted(ctx context.Context, requestID, fileHash, threatLevel string, compositeScore float64, durationMs int64) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("scan.completed",
		trace.WithAttributes(
			attribute.String(AttrRequestID, requestID),
			attribute.String(AttrFileHash, fileHash),
			attribute.String(AttrThreatLevel, threatLevel),
			attribute.Float64(AttrCompositeScore, compositeScore),
			attribute.Int64(AttrDurationMs, durationMs),
		),
	)
}

// RecordPolicyChanged records a policy create/update/delete event as its
// own short span.
func (p *Provider) RecordPolicyChanged(ctx context.Context, action string, policyID int64, policyAction string) {
	_, span := p.tracer.Start(ctx, "policy.changed",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sentinel.policy.change", action),
			attribute.Int64(AttrPolicyID, policyID),
			attribute.String(AttrPolicyAction, policyAction),
		),
	)
	span.End()
}

// RecordQuarantineAction records a quarantine store/restore/delete event.
func (p *Provider) RecordQuarantineAction(ctx context.Context, action, quarantineID string) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("quarantine."+action,
		trace.WithAttributes(
			attribute.String(AttrQuarantineID, quarantineID),
		),
	)
}

// DefaultConfig returns telemetry disabled, as ships out of the box.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "none",
		ServiceName: "sentinel",
	}
}

// ConfigFromEnv builds a Config from OTEL_* and SENTINEL_TELEMETRY_* env
// vars, for deployments that prefer environment-driven telemetry config
// over config.go's Telemetry YAML section.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		cfg.Enabled = true
		cfg.Exporter = "otlp"
		cfg.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		cfg.Insecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	}

	if os.Getenv("SENTINEL_TELEMETRY_ENABLED") == "true" {
		cfg.Enabled = true
	}
	if os.Getenv("SENTINEL_TELEMETRY_EXPORTER") != "" {
		cfg.Exporter = os.Getenv("SENTINEL_TELEMETRY_EXPORTER")
	}
	if os.Getenv("SENTINEL_TELEMETRY_ENDPOINT") != "" {
		cfg.Endpoint = os.Getenv("SENTINEL_TELEMETRY_ENDPOINT")
	}

	return cfg
}

// NoopProvider returns a provider that records nothing, for tests.
func NoopProvider() *Provider {
	return &Provider{
		config: Config{Enabled: false},
		tracer: otel.Tracer("sentinel-noop"),
	}
}

// SpanFromContext extracts the active span from ctx.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// ContextWithTimeout creates a context with timeout, used when calling
// Shutdown from a signal handler that must not block indefinitely.
func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
