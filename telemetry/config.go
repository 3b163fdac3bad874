package telemetry

import (
	"fmt"
	"time"
)

// Config configures the process tracer and meter providers
type Config struct {
	Enabled        bool                   `mapstructure:"enabled"`
	ServiceName    string                 `mapstructure:"service_name"`
	ServiceVersion string                 `mapstructure:"service_version"`
	Exporter       ExporterConfig         `mapstructure:"exporter"`
	Sampler        SamplerConfig          `mapstructure:"sampler"`
	ResourceAttrs  map[string]interface{} `mapstructure:"resource_attributes"` // nested maps are flattened with "."
	Batch          BatchConfig            `mapstructure:"batch"`
	Metrics        MetricsConfig          `mapstructure:"metrics"`
}

// ExporterConfig selects where spans and metrics go
type ExporterConfig struct {
	Type     string            `mapstructure:"type"` // otlp, stdout or none
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Headers  map[string]string `mapstructure:"headers"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`  // always_on, always_off, trace_id_ratio, parent_based_always_on
	Ratio float64 `mapstructure:"ratio"` // trace_id_ratio only
}

type BatchConfig struct {
	Enabled            bool          `mapstructure:"enabled"` // false exports each span synchronously
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size"`
	ScheduleDelay      time.Duration `mapstructure:"schedule_delay"`
	ExportTimeout      time.Duration `mapstructure:"export_timeout"`
}

type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval"`
	ExportTimeout  time.Duration `mapstructure:"export_timeout"`
}

// DefaultConfig returns a disabled configuration pointing at a local collector
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "authd",
		ServiceVersion: "1.0.0",
		Exporter: ExporterConfig{
			Type:     "otlp",
			Endpoint: "localhost:4317",
			Insecure: true,
			Timeout:  10 * time.Second,
		},
		Sampler: SamplerConfig{
			Type:  "parent_based_always_on",
			Ratio: 1.0,
		},
		ResourceAttrs: make(map[string]interface{}),
		Batch: BatchConfig{
			Enabled:            true,
			MaxQueueSize:       2048,
			MaxExportBatchSize: 512,
			ScheduleDelay:      5 * time.Second,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:        false,
			ExportInterval: 10 * time.Second,
			ExportTimeout:  5 * time.Second,
		},
	}
}

// ApplyDefaults fills zero-valued fields in place
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = d.ServiceVersion
	}
	if c.Exporter.Type == "" {
		c.Exporter.Type = d.Exporter.Type
	}
	if c.Exporter.Timeout <= 0 {
		c.Exporter.Timeout = d.Exporter.Timeout
	}
	if c.Sampler.Type == "" {
		c.Sampler = d.Sampler
	}
	if c.Batch.MaxQueueSize <= 0 {
		c.Batch.MaxQueueSize = d.Batch.MaxQueueSize
	}
	if c.Batch.MaxExportBatchSize <= 0 {
		c.Batch.MaxExportBatchSize = d.Batch.MaxExportBatchSize
	}
	if c.Batch.ScheduleDelay <= 0 {
		c.Batch.ScheduleDelay = d.Batch.ScheduleDelay
	}
	if c.Batch.ExportTimeout <= 0 {
		c.Batch.ExportTimeout = d.Batch.ExportTimeout
	}
	if c.Metrics.ExportInterval <= 0 {
		c.Metrics.ExportInterval = d.Metrics.ExportInterval
	}
	if c.Metrics.ExportTimeout <= 0 {
		c.Metrics.ExportTimeout = d.Metrics.ExportTimeout
	}
}

// Validate checks the enabled configuration only
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}

	switch c.Exporter.Type {
	case "otlp", "stdout", "none":
	default:
		return fmt.Errorf("unsupported exporter type: %s (supported: otlp, stdout, none)", c.Exporter.Type)
	}

	if c.Exporter.Type == "otlp" && c.Exporter.Endpoint == "" {
		return fmt.Errorf("exporter endpoint is required for otlp exporter")
	}

	switch c.Sampler.Type {
	case "always_on", "always_off", "trace_id_ratio", "parent_based_always_on":
	default:
		return fmt.Errorf("unsupported sampler type: %s", c.Sampler.Type)
	}

	if c.Sampler.Type == "trace_id_ratio" && (c.Sampler.Ratio < 0 || c.Sampler.Ratio > 1) {
		return fmt.Errorf("sampler ratio must be between 0 and 1, got: %f", c.Sampler.Ratio)
	}

	return nil
}
