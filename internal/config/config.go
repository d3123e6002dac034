// Package config provides YAML-based configuration for HoneybeePF.
// Supports validation, defaults, environment overrides, and structured
// per-probe/exporter configuration (spec §6).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
)

// Config is the top-level configuration for HoneybeePF.
type Config struct {
	Agent              AgentConfig             `yaml:"agent"`
	Exporter           ExporterConfig          `yaml:"exporter"`
	Probes             map[string]*ProbeConfig `yaml:"probes"`
	RingSizeBytes      int                     `yaml:"ring_size_bytes"`
	CorrelationMapSize int                     `yaml:"correlation_map_size"`
	CardinalityCap     int                     `yaml:"cardinality_cap"`
}

// AgentConfig holds global agent settings.
type AgentConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	NodeName    string `yaml:"node_name"`
	LogLevel    string `yaml:"log_level"`
}

// ExporterConfig holds the exporter adapter's settings (spec §4.6/§6).
type ExporterConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Protocol        string `yaml:"protocol"` // "otlp" | "nats"
	FlushIntervalMs int    `yaml:"flush_interval_ms"`
}

// ProviderMatchRule matches an LLM call's host/path to a provider label
// (spec §6).
type ProviderMatchRule struct {
	Provider string `yaml:"provider"`
	HostGlob string `yaml:"host_glob"`
	PathGlob string `yaml:"path_glob"`
}

// ProbeConfig holds per-probe settings. Probe-specific knobs
// (min_bytes, library_path, providers) are optional and only meaningful
// for the probe that declares them.
type ProbeConfig struct {
	Enabled bool `yaml:"enabled"`

	// block_io
	MinBytes uint64 `yaml:"min_bytes,omitempty"`

	// nccl, llm
	LibraryPath string `yaml:"library_path,omitempty"`

	// llm
	Providers []ProviderMatchRule `yaml:"providers,omitempty"`
}

// NewProbeConfig creates a ProbeConfig enabled by default.
func NewProbeConfig() *ProbeConfig {
	return &ProbeConfig{Enabled: true}
}

// Default returns a Config with sensible production defaults.
// All magic numbers are sourced from the constants package.
func Default() *Config {
	hostname, _ := os.Hostname()

	return &Config{
		Agent: AgentConfig{
			MetricsAddr: constants.DefaultMetricsAddr,
			NodeName:    hostname,
			LogLevel:    constants.DefaultLogLevel,
		},
		Exporter: ExporterConfig{
			Protocol:        constants.ExporterProtoOTLP,
			FlushIntervalMs: int(constants.DefaultFlushInterval.Milliseconds()),
		},
		Probes: map[string]*ProbeConfig{
			constants.ProbeBlockIO:        NewProbeConfig(),
			constants.ProbeNetworkLatency: NewProbeConfig(),
			constants.ProbeGpuOpen:        NewProbeConfig(),
			constants.ProbeNccl:           NewProbeConfig(),
			constants.ProbeLlm:            NewProbeConfig(),
		},
		RingSizeBytes:      constants.DefaultRingSizeBytes,
		CorrelationMapSize: constants.DefaultCorrelationMapSize,
		CardinalityCap:     constants.DefaultCardinalityCap,
	}
}

// Load reads a YAML config file and merges with defaults.
// If the file doesn't exist, returns defaults.
// Environment variables override file settings.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, errs.ConfigError(fmt.Sprintf("reading config %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.ConfigError(fmt.Sprintf("parsing config %s", path), err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, errs.ConfigError("validating config", err)
	}

	return cfg, nil
}

// applyEnvOverrides allows environment variables to override config values.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv(constants.EnvMetricsAddr); addr != "" {
		c.Agent.MetricsAddr = addr
	}
	if node := os.Getenv(constants.EnvNodeName); node != "" {
		c.Agent.NodeName = node
	}
	if level := os.Getenv(constants.EnvLogLevel); level != "" {
		c.Agent.LogLevel = level
	}
	if ep := os.Getenv(constants.EnvExporterEp); ep != "" {
		c.Exporter.Endpoint = ep
	}
}

// validProbeNames is the closed set of probe names this build supports;
// unknown names in probes.* are a config error (spec §4.2).
var validProbeNames = map[string]bool{
	constants.ProbeBlockIO:        true,
	constants.ProbeNetworkLatency: true,
	constants.ProbeGpuOpen:        true,
	constants.ProbeNccl:           true,
	constants.ProbeLlm:            true,
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	var problems []string

	if c.Agent.MetricsAddr == "" {
		problems = append(problems, "agent.metrics_addr is required")
	}
	if c.Exporter.Protocol != constants.ExporterProtoOTLP && c.Exporter.Protocol != constants.ExporterProtoNATS {
		problems = append(problems, fmt.Sprintf(
			"exporter.protocol must be %q or %q", constants.ExporterProtoOTLP, constants.ExporterProtoNATS))
	}
	if c.Exporter.FlushIntervalMs <= 0 {
		problems = append(problems, "exporter.flush_interval_ms must be > 0")
	}
	if c.RingSizeBytes < constants.MinRingSizeBytes || c.RingSizeBytes&(c.RingSizeBytes-1) != 0 {
		problems = append(problems, fmt.Sprintf(
			"ring_size_bytes must be a power of two >= %d", constants.MinRingSizeBytes))
	}
	if c.CorrelationMapSize <= 0 {
		problems = append(problems, "correlation_map_size must be > 0")
	}
	if c.CardinalityCap <= 0 {
		problems = append(problems, "cardinality_cap must be > 0")
	}
	for name := range c.Probes {
		if !validProbeNames[name] {
			problems = append(problems, fmt.Sprintf("probes.%s is not a recognized probe name", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// ProbeEnabled returns whether the named probe is enabled.
// Defaults to true if not configured.
func (c *Config) ProbeEnabled(name string) bool {
	p, ok := c.Probes[name]
	if !ok {
		return true
	}
	return p.Enabled
}

// ProbeConf returns the config for a probe, or a default if not found.
func (c *Config) ProbeConf(name string) *ProbeConfig {
	p, ok := c.Probes[name]
	if !ok {
		return NewProbeConfig()
	}
	return p
}
