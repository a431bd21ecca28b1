package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProvider_DisabledReturnsUsableNoopTracer(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
}

func TestNewProvider_NoneExporterStaysDisabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: "none"})
	require.NoError(t, err)
	require.False(t, p.Enabled())
}

func TestNewProvider_StdoutExporterEnablesTracing(t *testing.T) {
	p, err := NewProvider(Config{Enabled: true, Exporter: "stdout"})
	require.NoError(t, err)
	require.True(t, p.Enabled())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestDefaultConfig_ServiceNameIsSentinel(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "sentinel", cfg.ServiceName)
	require.False(t, cfg.Enabled)
	require.Equal(t, "none", cfg.Exporter)
}

func TestConfigFromEnv_OtlpEndpointEnablesOtlp(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := ConfigFromEnv()
	require.True(t, cfg.Enabled)
	require.Equal(t, "otlp", cfg.Exporter)
	require.Equal(t, "collector:4317", cfg.Endpoint)
	require.True(t, cfg.Insecure)
}

func TestConfigFromEnv_SentinelTelemetryVarsOverrideDefaults(t *testing.T) {
	t.Setenv("SENTINEL_TELEMETRY_ENABLED", "true")
	t.Setenv("SENTINEL_TELEMETRY_EXPORTER", "stdout")
	t.Setenv("SENTINEL_TELEMETRY_ENDPOINT", "localhost:4318")

	cfg := ConfigFromEnv()
	require.True(t, cfg.Enabled)
	require.Equal(t, "stdout", cfg.Exporter)
	require.Equal(t, "localhost:4318", cfg.Endpoint)
}

func TestNoopProvider_NeverEnabled(t *testing.T) {
	p := NoopProvider()
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
}

func TestRecordScanCompleted_DoesNotPanicWithoutActiveSpan(t *testing.T) {
	require.NotPanics(t, func() {
		RecordScanCompleted(context.Background(), "req-1", "deadbeef", "malicious", 0.92, 120)
	})
}

func TestRecordPolicyChanged_DoesNotPanic(t *testing.T) {
	p := NoopProvider()
	require.NotPanics(t, func() {
		p.RecordPolicyChanged(context.Background(), "created", 42, "block")
	})
}

func TestRecordQuarantineAction_DoesNotPanic(t *testing.T) {
	p := NoopProvider()
	require.NotPanics(t, func() {
		p.RecordQuarantineAction(context.Background(), "restored", "qid-123")
	})
}
