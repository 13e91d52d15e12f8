// Package config defines the router's runtime configuration tree and its
// env-override/default-filling rules, grounded on internal/config/config.go's
// yaml-tagged struct layout (gopkg.in/yaml.v3, KnownFields strict decode,
// env-expansion-before-parse).
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root runtime configuration for vei-router and vei-corpus.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sim     SimConfig     `yaml:"sim"`
	Trace   TraceConfig   `yaml:"trace"`
	Policy  PolicyConfig  `yaml:"policy"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the HTTP surface that exposes the uniform
// tool-call RPC (spec.md §3).
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// SimConfig configures a single router run: which scenario to load and how
// the logical clock advances.
type SimConfig struct {
	Seed             int64  `yaml:"seed"`
	ScenarioPath     string `yaml:"scenario_path"`
	TickResolutionMs int64  `yaml:"tick_resolution_ms"`
	MaxSteps         int    `yaml:"max_steps"`
}

// TraceConfig configures the append-only JSONL trace/receipt log
// (spec.md §6).
type TraceConfig struct {
	Dir         string `yaml:"dir"`
	Redact      bool   `yaml:"redact"`
	RunIDPrefix string `yaml:"run_id_prefix"`
}

// PolicyConfig points at the policy pack the connector runtime gates calls
// against (spec.md §4.3).
type PolicyConfig struct {
	PackPath               string        `yaml:"pack_path"`
	DefaultApprovalTimeout time.Duration `yaml:"default_approval_timeout"`
}

// CorpusConfig configures batch scenario/workflow generation (spec.md §4.6).
type CorpusConfig struct {
	EnvironmentCount        int      `yaml:"environment_count"`
	ScenariosPerEnvironment int      `yaml:"scenarios_per_environment"`
	RealismThreshold        float64  `yaml:"realism_threshold"`
	CRMAliasPacks           []string `yaml:"crm_alias_packs"`
}

// LoggingConfig configures the stdlib log/slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig toggles the Prometheus side-channel (internal/obs).
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Load reads and parses a config file at path, applying env overrides and
// defaults, then validating the result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault returns a Config filled entirely from defaults and env
// overrides, for callers that don't require a config file on disk.
func LoadDefault() (*Config, error) {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8808
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9808
	}

	if cfg.Sim.TickResolutionMs == 0 {
		cfg.Sim.TickResolutionMs = 1000
	}
	if cfg.Sim.MaxSteps == 0 {
		cfg.Sim.MaxSteps = 200
	}

	if cfg.Trace.Dir == "" {
		cfg.Trace.Dir = "./traces"
	}
	if cfg.Trace.RunIDPrefix == "" {
		cfg.Trace.RunIDPrefix = "vei"
	}

	if cfg.Policy.DefaultApprovalTimeout == 0 {
		cfg.Policy.DefaultApprovalTimeout = 5 * time.Minute
	}

	if cfg.Corpus.EnvironmentCount == 0 {
		cfg.Corpus.EnvironmentCount = 1
	}
	if cfg.Corpus.ScenariosPerEnvironment == 0 {
		cfg.Corpus.ScenariosPerEnvironment = 7
	}
	if cfg.Corpus.RealismThreshold == 0 {
		cfg.Corpus.RealismThreshold = 0.55
	}
	if len(cfg.Corpus.CRMAliasPacks) == 0 {
		cfg.Corpus.CRMAliasPacks = []string{"hubspot", "salesforce"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "vei"
	}
}

// applyEnvOverrides lets operators override config-file values without
// editing the file, matching the teacher's env-var precedent.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if value := strings.TrimSpace(os.Getenv("VEI_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("VEI_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("VEI_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}

	if value := strings.TrimSpace(os.Getenv("VEI_SEED")); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			cfg.Sim.Seed = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("VEI_SCENARIO_PATH")); value != "" {
		cfg.Sim.ScenarioPath = value
	}

	if value := strings.TrimSpace(os.Getenv("VEI_TRACE_DIR")); value != "" {
		cfg.Trace.Dir = value
	}

	if value := strings.TrimSpace(os.Getenv("VEI_POLICY_PACK")); value != "" {
		cfg.Policy.PackPath = value
	}

	if value := strings.TrimSpace(os.Getenv("VEI_CRM_ALIAS_PACKS")); value != "" {
		cfg.Corpus.CRMAliasPacks = strings.Split(value, ",")
	}

	if value := strings.TrimSpace(os.Getenv("VEI_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
}

// ConfigValidationError collects every validation issue found, so operators
// see the whole list instead of fixing a file one error at a time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var issues []string

	if cfg.Server.HTTPPort < 0 || cfg.Server.HTTPPort > 65535 {
		issues = append(issues, fmt.Sprintf("server.http_port out of range: %d", cfg.Server.HTTPPort))
	}
	if cfg.Sim.TickResolutionMs <= 0 {
		issues = append(issues, "sim.tick_resolution_ms must be positive")
	}
	if cfg.Corpus.RealismThreshold < 0 || cfg.Corpus.RealismThreshold > 1 {
		issues = append(issues, fmt.Sprintf("corpus.realism_threshold must be in [0,1]: %v", cfg.Corpus.RealismThreshold))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format must be json or text: %q", cfg.Logging.Format))
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// decodeRawConfig decodes a merged raw map (from LoadRaw) strictly into a
// Config, rejecting unknown fields the same way the teacher's loader does.
func decodeRawConfig(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(payload)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}
	return &cfg, nil
}
