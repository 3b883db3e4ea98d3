package observability

import "time"

const (
	// EnvironmentDevelopment is the default deployment environment.
	EnvironmentDevelopment = "development"

	defaultMetricsInterval = time.Minute
	defaultBatchTimeout    = 5 * time.Second
)

// BoolPtr returns a pointer to v, for the optional toggles in Config.
func BoolPtr(v bool) *bool {
	return &v
}

// Config selects which signals rowkit exports. Exporters write to the
// provider's writer, so telemetry never mixes with command output.
type Config struct {
	// Enabled turns the whole subsystem on. When false NewProvider returns no-ops.
	Enabled bool `koanf:"enabled"`

	Service     ServiceConfig `koanf:"service"`
	Environment string        `koanf:"environment"`

	Trace   TraceConfig   `koanf:"trace"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// ServiceConfig identifies the process in exported resources.
type ServiceConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

// TraceConfig controls span export.
type TraceConfig struct {
	// Enabled defaults to true when nil.
	Enabled *bool `koanf:"enabled"`

	Sample SampleConfig `koanf:"sample"`
	Batch  BatchConfig  `koanf:"batch"`
}

// SampleConfig holds the ratio of traces kept, in [0, 1].
type SampleConfig struct {
	Rate *float64 `koanf:"rate"`
}

// BatchConfig holds span batching settings.
type BatchConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig controls periodic metric export.
type MetricsConfig struct {
	// Enabled defaults to true when nil.
	Enabled  *bool         `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	if c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Trace.Sample.Rate == nil {
		rate := 1.0
		c.Trace.Sample.Rate = &rate
	}
	if c.Trace.Batch.Timeout <= 0 {
		c.Trace.Batch.Timeout = defaultBatchTimeout
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = defaultMetricsInterval
	}
}

// Validate checks an enabled configuration. Disabled configurations are always valid.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}
	if r := c.Trace.Sample.Rate; r != nil && (*r < 0 || *r > 1) {
		return ErrInvalidSampleRate
	}
	return nil
}

func (c *Config) tracesEnabled() bool {
	return c.Trace.Enabled != nil && *c.Trace.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c.Metrics.Enabled != nil && *c.Metrics.Enabled
}
