package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the analyzer's ambient configuration: logging, tracing and
// Prometheus knobs plus an engine tick interval, which Validate checks but
// the driver does not read (its period is a fixed constant). Trimmed from the
// teacher's sprawling Server/Signal/WebRTC/Mesh/Redis/Auth/RateLimiting
// sections down to what this program actually has a knob for.
type Config struct {
	Engine struct {
		TickInterval time.Duration `yaml:"tick_interval"`
	} `yaml:"engine"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		PrometheusAddress string `yaml:"prometheus_address"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		JaegerEndpoint string  `yaml:"jaeger_endpoint"`
		ServiceName    string  `yaml:"service_name"`
		SampleRatio    float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be > 0")
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusAddress == "" {
		return fmt.Errorf("monitoring.prometheus_address must not be empty when prometheus_enabled=true")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint must not be empty when tracing.enabled=true")
		}
		if c.Tracing.ServiceName == "" {
			return fmt.Errorf("tracing.service_name must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applying defaults and
// environment overrides. A missing file is not an error: it falls back to
// DefaultConfig.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Engine.TickInterval = time.Second

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusAddress = ":9090"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerEndpoint = "http://localhost:14268/api/traces"
	cfg.Tracing.ServiceName = "peerqual"
	cfg.Tracing.SampleRatio = 0.1

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("PEERQUAL_PROMETHEUS_ADDRESS"); addr != "" {
		c.Monitoring.PrometheusAddress = addr
	}
	if level := os.Getenv("PEERQUAL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if endpoint := os.Getenv("PEERQUAL_JAEGER_ENDPOINT"); endpoint != "" {
		c.Tracing.JaegerEndpoint = endpoint
	}
}
