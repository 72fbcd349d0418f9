package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kvbench/internal/generator"
	"kvbench/internal/index"
	"kvbench/internal/workload"
)

type Config struct {
	Benchmark workload.Options `yaml:"benchmark" json:"benchmark"`
	Index     IndexConfig      `yaml:"index" json:"index"`
	Report    ReportConfig     `yaml:"report" json:"report"`
	Logging   LoggingConfig    `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig    `yaml:"tracing" json:"tracing"`
}

type IndexConfig struct {
	Name     string            `yaml:"name" json:"name"`
	Path     string            `yaml:"path" json:"path"`
	Addr     string            `yaml:"addr" json:"addr"`
	InMemory bool              `yaml:"in_memory" json:"in_memory"`
	Options  map[string]string `yaml:"options" json:"options"`
}

type ReportConfig struct {
	Format      string `yaml:"format" json:"format"` // text or json
	Output      string `yaml:"output" json:"output"` // stdout or a file path
	Environment bool   `yaml:"environment" json:"environment"`
}

type LoggingConfig struct {
	Level                string `yaml:"level" json:"level"`
	Format               string `yaml:"format" json:"format"`
	Output               string `yaml:"output" json:"output"`
	EnablePerformanceLog bool   `yaml:"enable_performance_log" json:"enable_performance_log"`
}

// MetricsConfig controls the live progress endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

type TracingConfig struct {
	Enabled        bool              `yaml:"enabled" json:"enabled"`
	ServiceName    string            `yaml:"service_name" json:"service_name"`
	ServiceVersion string            `yaml:"service_version" json:"service_version"`
	Environment    string            `yaml:"environment" json:"environment"`
	ExporterType   string            `yaml:"exporter_type" json:"exporter_type"`
	JaegerEndpoint string            `yaml:"jaeger_endpoint" json:"jaeger_endpoint"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers" json:"otlp_headers"`
	SamplingRatio  float64           `yaml:"sampling_ratio" json:"sampling_ratio"`
}

func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := loadFromEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Benchmark: workload.DefaultOptions(),
		Index: IndexConfig{
			Name:     "btreemap",
			InMemory: true,
			Options:  make(map[string]string),
		},
		Report: ReportConfig{
			Format:      "text",
			Output:      "stdout",
			Environment: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":2112",
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "kvbench",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			ExporterType:   "console",
			JaegerEndpoint: "http://localhost:14268/api/traces",
			OTLPEndpoint:   "localhost:4318",
			OTLPHeaders:    make(map[string]string),
			SamplingRatio:  1.0,
		},
	}
}

func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

// envParser collects the first parse error so every variable can be read
// without an error check per line.
type envParser struct {
	err error
}

func (p *envParser) parseUint(name string, dst *uint64) {
	if v := os.Getenv(name); v != "" && p.err == nil {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", name, err)
			return
		}
		*dst = n
	}
}

func (p *envParser) parseInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" && p.err == nil {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", name, err)
			return
		}
		*dst = n
	}
}

func (p *envParser) parseFloat(name string, dst *float64) {
	if v := os.Getenv(name); v != "" && p.err == nil {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", name, err)
			return
		}
		*dst = f
	}
}

func (p *envParser) parseBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" && p.err == nil {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", name, err)
			return
		}
		*dst = b
	}
}

func (p *envParser) parseDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" && p.err == nil {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.err = fmt.Errorf("%s: %w", name, err)
			return
		}
		*dst = d
	}
}

func (p *envParser) setString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func loadFromEnvironment(config *Config) error {
	p := &envParser{}
	b := &config.Benchmark

	// Workload
	p.parseUint("KVBENCH_RECORDS", &b.Records)
	p.parseUint("KVBENCH_OPERATIONS", &b.Operations)
	p.parseInt("KVBENCH_THREADS", &b.Threads)
	p.parseDuration("KVBENCH_DURATION", &b.Duration)
	p.parseUint("KVBENCH_SEED", &b.Seed)
	p.parseInt("KVBENCH_KEY_SIZE", &b.KeySize)
	p.parseInt("KVBENCH_VALUE_SIZE", &b.ValueSize)
	p.parseFloat("KVBENCH_SKEW", &b.Skew)
	p.parseFloat("KVBENCH_LATENCY_SAMPLING", &b.LatencySampling)
	p.parseBool("KVBENCH_PIN_THREADS", &b.PinThreads)
	if v := os.Getenv("KVBENCH_MODE"); v != "" && p.err == nil {
		if err := b.Mode.UnmarshalText([]byte(v)); err != nil {
			p.err = fmt.Errorf("KVBENCH_MODE: %w", err)
		}
	}
	if v := os.Getenv("KVBENCH_DISTRIBUTION"); v != "" && p.err == nil {
		kind, err := generator.ParseDistribution(v)
		if err != nil {
			p.err = fmt.Errorf("KVBENCH_DISTRIBUTION: %w", err)
		} else {
			b.Distribution = kind
		}
	}

	// Index
	p.setString("KVBENCH_INDEX", &config.Index.Name)
	p.setString("KVBENCH_INDEX_PATH", &config.Index.Path)
	p.setString("KVBENCH_INDEX_ADDR", &config.Index.Addr)

	// Logging
	p.setString("KVBENCH_LOG_LEVEL", &config.Logging.Level)
	p.setString("KVBENCH_LOG_FORMAT", &config.Logging.Format)

	// Metrics
	p.parseBool("KVBENCH_METRICS_ENABLED", &config.Metrics.Enabled)
	p.setString("KVBENCH_METRICS_ADDRESS", &config.Metrics.Address)

	// Tracing
	p.parseBool("KVBENCH_TRACING_ENABLED", &config.Tracing.Enabled)
	p.setString("KVBENCH_TRACING_EXPORTER", &config.Tracing.ExporterType)

	return p.err
}

func (c *Config) Validate() error {
	if err := c.Benchmark.Validate(); err != nil {
		return fmt.Errorf("invalid benchmark options: %w", err)
	}

	// Index validation
	if c.Index.Name == "" {
		return fmt.Errorf("index name cannot be empty")
	}

	// Report validation
	switch strings.ToLower(c.Report.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid report format: %s", c.Report.Format)
	}

	// Logging validation
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true, "console": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return fmt.Errorf("metrics address cannot be empty when metrics are enabled")
		}
		if c.Metrics.Path == "" || !strings.HasPrefix(c.Metrics.Path, "/") {
			return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
		}
	}

	// Tracing validation
	if c.Tracing.Enabled {
		switch c.Tracing.ExporterType {
		case "console", "otlp", "jaeger":
		default:
			return fmt.Errorf("unsupported exporter type: %s", c.Tracing.ExporterType)
		}
		if c.Tracing.SamplingRatio < 0 || c.Tracing.SamplingRatio > 1 {
			return fmt.Errorf("tracing sampling ratio must be in [0, 1]")
		}
	}

	return nil
}

// IndexConfig builds the settings handed to the index backend.
func (c *Config) IndexConfig() index.Config {
	return index.Config{
		KeySize:   c.Benchmark.KeyLength(),
		ValueSize: c.Benchmark.ValueSize,
		Threads:   c.Benchmark.Threads,
		Path:      c.Index.Path,
		Addr:      c.Index.Addr,
		InMemory:  c.Index.InMemory,
		Options:   c.Index.Options,
	}
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
