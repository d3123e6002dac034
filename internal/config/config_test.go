package config

import "testing"

func validConfig() *Config {
	c := Default()
	c.Agent.MetricsAddr = ":9090"
	c.Exporter.Protocol = "otlp"
	c.Exporter.FlushIntervalMs = 1000
	c.RingSizeBytes = 4096
	c.CorrelationMapSize = 1024
	c.CardinalityCap = 1000
	return c
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v, want nil", err)
	}
}

func TestValidateMissingMetricsAddr(t *testing.T) {
	c := validConfig()
	c.Agent.MetricsAddr = ""
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for empty metrics_addr")
	}
}

func TestValidateBadProtocol(t *testing.T) {
	c := validConfig()
	c.Exporter.Protocol = "carrier-pigeon"
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unsupported protocol")
	}
}

func TestValidateNonPositiveFlushInterval(t *testing.T) {
	c := validConfig()
	c.Exporter.FlushIntervalMs = 0
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for flush_interval_ms <= 0")
	}
}

func TestValidateRingSizeNotPowerOfTwo(t *testing.T) {
	c := validConfig()
	c.RingSizeBytes = 5000
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for non-power-of-two ring size")
	}
}

func TestValidateRingSizeBelowMinimum(t *testing.T) {
	c := validConfig()
	c.RingSizeBytes = 1024
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for ring size below minimum")
	}
}

func TestValidateNonPositiveCorrelationMapSize(t *testing.T) {
	c := validConfig()
	c.CorrelationMapSize = 0
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for correlation_map_size <= 0")
	}
}

func TestValidateNonPositiveCardinalityCap(t *testing.T) {
	c := validConfig()
	c.CardinalityCap = 0
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for cardinality_cap <= 0")
	}
}

func TestValidateUnknownProbeName(t *testing.T) {
	c := validConfig()
	c.Probes["made_up_probe"] = NewProbeConfig()
	if err := c.Validate(); err == nil {
		t.Error("Validate() = nil, want error for an unrecognized probe name")
	}
}

func TestProbeEnabledDefaultsTrueWhenUnconfigured(t *testing.T) {
	c := Default()
	if !c.ProbeEnabled("block_io") {
		t.Error("ProbeEnabled(block_io) = false, want true by default")
	}
	if !c.ProbeEnabled("not_in_map") {
		t.Error("ProbeEnabled(not_in_map) = false, want true when unconfigured")
	}
}

func TestProbeConfDefaultsWhenMissing(t *testing.T) {
	c := Default()
	delete(c.Probes, "llm")
	pc := c.ProbeConf("llm")
	if pc == nil || !pc.Enabled {
		t.Errorf("ProbeConf(llm) = %+v, want a default enabled config", pc)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/honeybeepf.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for a missing file", err)
	}
	if cfg.Exporter.Protocol != "otlp" {
		t.Errorf("Exporter.Protocol = %q, want default %q", cfg.Exporter.Protocol, "otlp")
	}
}
