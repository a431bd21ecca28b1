package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/tmp/sentinel.sock", cfg.IPC.SocketPath)
	require.True(t, cfg.Orchestrator.EnableTier1Wasm)
	require.True(t, cfg.Orchestrator.EnableTier2Native)
}

func TestLoad_OverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	yamlContent := `
data_dir: /custom/data
ipc:
  socket_path: /custom/sentinel.sock
orchestrator:
  enable_tier2_native: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/custom/data", cfg.DataDir)
	require.Equal(t, "/custom/sentinel.sock", cfg.IPC.SocketPath)
	require.False(t, cfg.Orchestrator.EnableTier2Native)
	// Untouched sections keep their defaults.
	require.Equal(t, 1000, cfg.PolicyStore.MatchCacheSize)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	yamlContent := `
orchestrator:
  enable_tier1_wasm: false
  enable_tier2_native: false
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsOutOfRangeCacheSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy_store:\n  match_cache_size: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides_SocketPathAndTier2(t *testing.T) {
	t.Setenv("SENTINEL_IPC_SOCKET", "/env/sentinel.sock")
	t.Setenv("SENTINEL_TIER2_ENABLED", "false")

	cfg := defaults()
	cfg.applyEnvOverrides()

	require.Equal(t, "/env/sentinel.sock", cfg.IPC.SocketPath)
	require.False(t, cfg.Orchestrator.EnableTier2Native)
}

func TestOrchestratorConfig_ToOrchestratorConfig_DefaultsZeroFields(t *testing.T) {
	c := OrchestratorConfig{EnableTier1Wasm: true, EnableTier2Native: true}
	oc := c.ToOrchestratorConfig()
	require.Greater(t, oc.Timeout.Milliseconds(), int64(0))
	require.Greater(t, oc.MaxMemoryBytes, uint64(0))
}

func TestVerdictConfig_ToWeightsAndThresholds_DefaultWhenNil(t *testing.T) {
	c := VerdictConfig{}
	w := c.ToWeights()
	require.InDelta(t, 0.40, w.Yara, 0.0001)
	th := c.ToThresholds()
	require.InDelta(t, 0.3, th.CleanThreshold, 0.0001)
}

func TestVerdictConfig_ToWeightsAndThresholds_CustomValues(t *testing.T) {
	c := VerdictConfig{
		Weights:    &VerdictWeights{Yara: 0.5, ML: 0.3, Behavioral: 0.2},
		Thresholds: &VerdictThresholds{Clean: 0.2, Suspicious: 0.4, Malicious: 0.6},
	}
	w := c.ToWeights()
	require.InDelta(t, 0.5, w.Yara, 0.0001)
	th := c.ToThresholds()
	require.InDelta(t, 0.6, th.MaliciousThreshold, 0.0001)
}
