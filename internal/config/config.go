// Package config loads Sentinel's on-disk YAML configuration: where its
// SQLite-backed stores live, which sandbox tiers are enabled and with what
// timeouts, the verdict engine's weights/thresholds, the IPC socket path,
// and the telemetry/dashboard surfaces.
//
// Grounded on elida's internal/config/config.go: the Load/defaults/
// applyEnvOverrides/validate four-function shape, the "missing file falls
// back to defaults, present file overlays onto defaults" load order, and
// the SENTINEL_* environment-variable override convention (elida's
// ELIDA_* prefix, renamed) are all carried over verbatim. The proxy-shaped
// sections (Backends, Routing, Session, WebSocket/VoiceSessions, the
// OWASP policy-rule presets) don't apply to a local scanning service and
// are replaced by sections mirroring the component Config types this
// port's sandbox/orchestrator/policystore packages already define.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sentinel/internal/orchestrator"
	"sentinel/internal/sandbox/behavioral"
	"sentinel/internal/sandbox/verdict"
	"sentinel/internal/sandbox/wasmscorer"
	"sentinel/internal/telemetry"
)

// Config holds all configuration for Sentinel.
type Config struct {
	DataDir      string             `yaml:"data_dir"`
	IPC          IPCConfig          `yaml:"ipc"`
	PolicyStore  PolicyStoreConfig  `yaml:"policy_store"`
	Quarantine   QuarantineConfig   `yaml:"quarantine"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	WasmScorer   WasmScorerConfig   `yaml:"wasm_scorer"`
	Behavioral   BehavioralConfig   `yaml:"behavioral"`
	Verdict      VerdictConfig      `yaml:"verdict"`
	Health       HealthConfig       `yaml:"health"`
	Logging      LoggingConfig      `yaml:"logging"`
	Telemetry    telemetry.Config   `yaml:"telemetry"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
}

// IPCConfig controls the local request-socket surface.
type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// PolicyStoreConfig controls where the policy/threat-history database
// lives and how its in-memory match cache is sized.
type PolicyStoreConfig struct {
	Dir             string `yaml:"dir"`
	MatchCacheSize  int    `yaml:"match_cache_size"`
	ThreatRetentionDays int `yaml:"threat_retention_days"`
}

// QuarantineConfig controls where neutralized files and their encryption
// key material are stored.
type QuarantineConfig struct {
	Dir string `yaml:"dir"`
}

// OrchestratorConfig mirrors orchestrator.Config's tunables.
type OrchestratorConfig struct {
	TimeoutMS                 int64   `yaml:"timeout_ms"`
	EnableTier1Wasm           bool    `yaml:"enable_tier1_wasm"`
	EnableTier2Native         bool    `yaml:"enable_tier2_native"`
	AllowNetwork              bool    `yaml:"allow_network"`
	AllowFilesystem           bool    `yaml:"allow_filesystem"`
	MaxMemoryBytes            uint64  `yaml:"max_memory_bytes"`
	Tier1ConclusiveConfidence float64 `yaml:"tier1_conclusive_confidence"`
	Tier2CompositeThreshold   float64 `yaml:"tier2_composite_threshold"`
}

// ToOrchestratorConfig converts the YAML-shaped section into
// orchestrator.Config, falling back to orchestrator.DefaultConfig's
// values for any numeric field left at zero. The boolean fields are
// copied as given, so a false here turns the default off.
func (c OrchestratorConfig) ToOrchestratorConfig() orchestrator.Config {
	cfg := orchestrator.DefaultConfig()
	if c.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(c.TimeoutMS) * time.Millisecond
	}
	cfg.EnableTier1Wasm = c.EnableTier1Wasm
	cfg.EnableTier2Native = c.EnableTier2Native
	cfg.AllowNetwork = c.AllowNetwork
	cfg.AllowFilesystem = c.AllowFilesystem
	if c.MaxMemoryBytes > 0 {
		cfg.MaxMemoryBytes = c.MaxMemoryBytes
	}
	if c.Tier1ConclusiveConfidence > 0 {
		cfg.Tier1ConclusiveConfidence = c.Tier1ConclusiveConfidence
	}
	if c.Tier2CompositeThreshold > 0 {
		cfg.Tier2CompositeThreshold = c.Tier2CompositeThreshold
	}
	return cfg
}

// WasmScorerConfig mirrors wasmscorer.Config's tunables.
type WasmScorerConfig struct {
	TimeoutMS      int64  `yaml:"timeout_ms"`
	MaxMemoryBytes uint64 `yaml:"max_memory_bytes"`
	FuelBudget     uint64 `yaml:"fuel_budget"`
}

// ToWasmScorerConfig converts to wasmscorer.Config, defaulting anything
// left unset.
func (c WasmScorerConfig) ToWasmScorerConfig() wasmscorer.Config {
	cfg := wasmscorer.DefaultConfig()
	if c.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(c.TimeoutMS) * time.Millisecond
	}
	if c.MaxMemoryBytes > 0 {
		cfg.MaxMemoryBytes = c.MaxMemoryBytes
	}
	if c.FuelBudget > 0 {
		cfg.FuelBudget = c.FuelBudget
	}
	return cfg
}

// BehavioralConfig mirrors behavioral.Config's tunables.
type BehavioralConfig struct {
	TimeoutMS         int64  `yaml:"timeout_ms"`
	SandboxBinary     string `yaml:"sandbox_binary"`
	SandboxConfigPath string `yaml:"sandbox_config_path"`
}

// ToBehavioralConfig converts to behavioral.Config, defaulting the
// timeout if unset.
func (c BehavioralConfig) ToBehavioralConfig() behavioral.Config {
	cfg := behavioral.DefaultConfig()
	if c.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(c.TimeoutMS) * time.Millisecond
	}
	cfg.SandboxBinary = c.SandboxBinary
	cfg.SandboxConfigPath = c.SandboxConfigPath
	return cfg
}

// VerdictConfig mirrors the VerdictEngine's weight/threshold tables, left
// at their VerdictEngine.h defaults unless overridden.
type VerdictConfig struct {
	Weights    *VerdictWeights    `yaml:"weights,omitempty"`
	Thresholds *VerdictThresholds `yaml:"thresholds,omitempty"`
}

// VerdictWeights is the YAML shape of verdict.Weights.
type VerdictWeights struct {
	Yara       float64 `yaml:"yara"`
	ML         float64 `yaml:"ml"`
	Behavioral float64 `yaml:"behavioral"`
}

// VerdictThresholds is the YAML shape of verdict.Thresholds.
type VerdictThresholds struct {
	Clean      float64 `yaml:"clean"`
	Suspicious float64 `yaml:"suspicious"`
	Malicious  float64 `yaml:"malicious"`
}

// ToWeights converts to verdict.Weights, or verdict.DefaultWeights if the
// section wasn't present.
func (c VerdictConfig) ToWeights() verdict.Weights {
	if c.Weights == nil {
		return verdict.DefaultWeights()
	}
	return verdict.Weights{Yara: c.Weights.Yara, ML: c.Weights.ML, Behavioral: c.Weights.Behavioral}
}

// ToThresholds converts to verdict.Thresholds, or verdict.DefaultThresholds
// if the section wasn't present.
func (c VerdictConfig) ToThresholds() verdict.Thresholds {
	if c.Thresholds == nil {
		return verdict.DefaultThresholds()
	}
	return verdict.Thresholds{
		CleanThreshold:      c.Thresholds.Clean,
		SuspiciousThreshold: c.Thresholds.Suspicious,
		MaliciousThreshold:  c.Thresholds.Malicious,
	}
}

// HealthConfig controls the health registry's periodic recheck and which
// components gate readiness.
type HealthConfig struct {
	CheckIntervalMS    int64    `yaml:"check_interval_ms"`
	CriticalComponents []string `yaml:"critical_components"`
}

// DashboardConfig controls the HTTP control/dashboard surface.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Load reads and parses the configuration file at path. A missing file is
// not an error: Sentinel falls back to its built-in defaults, the way an
// embedded browser service expects to run with zero setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path from trusted CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config with sensible default values, mirroring each
// component package's own DefaultConfig so running with no config file at
// all produces the same behavior as explicitly writing out every default.
func defaults() *Config {
	return &Config{
		DataDir: "/var/lib/sentinel",
		IPC: IPCConfig{
			SocketPath: "/tmp/sentinel.sock",
		},
		PolicyStore: PolicyStoreConfig{
			Dir:                 "/var/lib/sentinel/policy",
			MatchCacheSize:      1000,
			ThreatRetentionDays: 90,
		},
		Quarantine: QuarantineConfig{
			Dir: "/var/lib/sentinel/quarantine",
		},
		Orchestrator: OrchestratorConfig{
			TimeoutMS:                 5000,
			EnableTier1Wasm:           true,
			EnableTier2Native:         true,
			AllowNetwork:              false,
			AllowFilesystem:           false,
			MaxMemoryBytes:            128 * 1024 * 1024,
			Tier1ConclusiveConfidence: 0.9,
			Tier2CompositeThreshold:   0.3,
		},
		WasmScorer: WasmScorerConfig{
			TimeoutMS:      5000,
			MaxMemoryBytes: 128 * 1024 * 1024,
			FuelBudget:     5e8,
		},
		Behavioral: BehavioralConfig{
			TimeoutMS: 5000,
		},
		Verdict: VerdictConfig{},
		Health: HealthConfig{
			CheckIntervalMS:    30000,
			CriticalComponents: []string{"database", "quarantine", "ipc"},
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			Exporter:    "none",
			ServiceName: "sentinel",
			Endpoint:    "localhost:4317",
			Insecure:    true,
		},
		Dashboard: DashboardConfig{
			Enabled: true,
			Listen:  ":9190",
		},
	}
}

// LoggingConfig holds structured-logging configuration.
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// applyEnvOverrides applies SENTINEL_*-prefixed environment variable
// overrides, matching elida's ELIDA_* convention.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SENTINEL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SENTINEL_IPC_SOCKET"); v != "" {
		c.IPC.SocketPath = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if os.Getenv("SENTINEL_TELEMETRY_ENABLED") == "true" {
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("SENTINEL_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := os.Getenv("SENTINEL_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = "otlp"
		c.Telemetry.Endpoint = v
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true" {
		c.Telemetry.Insecure = true
	}

	if os.Getenv("SENTINEL_TIER1_ENABLED") == "false" {
		c.Orchestrator.EnableTier1Wasm = false
	}
	if os.Getenv("SENTINEL_TIER2_ENABLED") == "false" {
		c.Orchestrator.EnableTier2Native = false
	}
	if v := os.Getenv("SENTINEL_SCAN_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			c.Orchestrator.TimeoutMS = ms
			c.WasmScorer.TimeoutMS = ms
			c.Behavioral.TimeoutMS = ms
		}
	}

	if os.Getenv("SENTINEL_DASHBOARD_ENABLED") == "false" {
		c.Dashboard.Enabled = false
	}
	if v := os.Getenv("SENTINEL_DASHBOARD_LISTEN"); v != "" {
		c.Dashboard.Listen = v
	}
}

// validate checks that the configuration is usable, matching
// InputValidator's own range checks (spec.md's validate_config_value) so
// a bad on-disk config is caught at startup instead of surfacing as an
// opaque runtime failure later.
func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.IPC.SocketPath == "" {
		return fmt.Errorf("ipc.socket_path is required")
	}
	if c.PolicyStore.MatchCacheSize < 1 || c.PolicyStore.MatchCacheSize > 100000 {
		return fmt.Errorf("policy_store.match_cache_size must be between 1 and 100000, got %d", c.PolicyStore.MatchCacheSize)
	}
	if c.PolicyStore.ThreatRetentionDays < 1 || c.PolicyStore.ThreatRetentionDays > 3650 {
		return fmt.Errorf("policy_store.threat_retention_days must be between 1 and 3650, got %d", c.PolicyStore.ThreatRetentionDays)
	}
	if c.Orchestrator.TimeoutMS < 100 || c.Orchestrator.TimeoutMS > 300000 {
		return fmt.Errorf("orchestrator.timeout_ms must be between 100 and 300000, got %d", c.Orchestrator.TimeoutMS)
	}
	if !c.Orchestrator.EnableTier1Wasm && !c.Orchestrator.EnableTier2Native {
		return fmt.Errorf("at least one of orchestrator.enable_tier1_wasm or enable_tier2_native must be true")
	}
	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
		}
	}
	return nil
}
