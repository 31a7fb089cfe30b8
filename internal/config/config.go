// Package config decodes the runtime's ambient configuration: logging,
// metrics, tracing, the optional discovery cache, and per-adapter
// execution paths (SPEC_FULL §2, §6 expansion). It is distinct from a
// load_from_configuration document (internal/loader), which enumerates
// scripts to load rather than ambient settings.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the operational logger (internal/logging).
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MetricsConfig controls the Prometheus registry (internal/metrics).
type MetricsConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Namespace        string    `yaml:"namespace"`
	HistogramBuckets []float64 `yaml:"histogram_buckets,omitempty"`
}

// TracingConfig controls the OpenTelemetry exporter (internal/tracing).
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// CacheConfig controls the optional L2 discovery cache (internal/cache).
// Redis is left unconfigured (RedisAddr == "") when only the in-process L1
// cache should be used.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty"`
	KeyPrefix     string `yaml:"key_prefix,omitempty"`
}

// AdapterConfig is one per-language-tag block: a search path list and
// adapter-specific settings passed through to Initialize.
type AdapterConfig struct {
	Tag            string         `yaml:"tag"`
	ExecutionPaths []string       `yaml:"execution_paths,omitempty"`
	Settings       map[string]any `yaml:"settings,omitempty"`
}

// Config is the full ambient configuration tree for one process.
type Config struct {
	Logging  LoggingConfig   `yaml:"logging"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Tracing  TracingConfig   `yaml:"tracing"`
	Cache    CacheConfig     `yaml:"cache"`
	Adapters []AdapterConfig `yaml:"adapters,omitempty"`
}

// Default returns a Config with the same defaults the façade applies when
// no configuration is supplied at all: info-level text logging, metrics
// enabled under the "metacall" namespace, tracing and the L2 cache
// disabled.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "metacall"},
	}
}

// Load decodes a YAML configuration file from path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML configuration document from r over Default():
// sections and fields the document omits keep their default values, and
// values the document sets replace them.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// AdapterByTag returns the configuration block for tag, or the zero value
// if none was declared — adapters with no explicit block still get
// sensible defaults (empty search path, no extra settings).
func (c Config) AdapterByTag(tag string) AdapterConfig {
	for _, a := range c.Adapters {
		if a.Tag == tag {
			return a
		}
	}
	return AdapterConfig{Tag: tag}
}
