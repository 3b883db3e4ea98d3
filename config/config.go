// Package config loads rowkit configuration from defaults, a YAML file,
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// DefaultConfigFile is read when present; its absence is not an error.
	DefaultConfigFile = "rowkit.yaml"
	// DefaultEnvPrefix namespaces environment overrides, e.g. ROWKIT_DATABASE_HOST.
	DefaultEnvPrefix = "ROWKIT_"
)

type loadOptions struct {
	file         string
	fileRequired bool
	envPrefix    string
	flags        *pflag.FlagSet
	flagKeys     map[string]string
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithFile reads path instead of DefaultConfigFile. The file must exist.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
			o.fileRequired = true
		}
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithFlags overlays flags that were explicitly set on the command line.
// keys maps flag names to configuration keys; unmapped flags are ignored.
func WithFlags(flags *pflag.FlagSet, keys map[string]string) LoadOption {
	return func(o *loadOptions) {
		o.flags = flags
		o.flagKeys = keys
	}
}

// Load builds a validated Config from defaults, the YAML file, the environment and flags.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{file: DefaultConfigFile, envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(file.Provider(o.file), yaml.Parser()); err != nil {
		if o.fileRequired || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", o.file, err)
		}
	}

	if err := k.Load(envprovider.Provider(o.envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, o.envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if o.flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(o.flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := o.flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(o.flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load command-line flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	connections, err := unmarshalConnections(k)
	if err != nil {
		return nil, err
	}
	cfg.Connections = connections
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// unmarshalConnections decodes every connections.<name> section on top of the database defaults.
func unmarshalConnections(k *koanf.Koanf) (map[string]DatabaseConfig, error) {
	names := k.MapKeys("connections")
	if len(names) == 0 {
		return nil, nil
	}

	connections := make(map[string]DatabaseConfig, len(names))
	for _, name := range names {
		ck := koanf.New(".")
		if err := ck.Load(confmap.Provider(databaseDefaults(), "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load defaults for connection %s: %w", name, err)
		}
		if err := ck.Merge(k.Cut("connections." + name)); err != nil {
			return nil, fmt.Errorf("failed to merge connection %s: %w", name, err)
		}

		var db DatabaseConfig
		if err := ck.Unmarshal("", &db); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connection %s: %w", name, err)
		}
		connections[name] = db
	}
	return connections, nil
}

func databaseDefaults() map[string]any {
	return map[string]any{
		"pool.max.connections":  25,
		"pool.idle.connections": 2,
		"pool.idle.time":        "5m",
		"pool.lifetime.max":     "30m",

		"query.slow.threshold": defaultSlowQueryThreshold.String(),
		"query.log.maxlength":  defaultMaxQueryLength,
		"query.log.parameters": false,

		"health.interval":   "30s",
		"postgresql.schema": "public",
	}
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name": "rowkit",
		"app.env":  EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"manager.maxsize": 100,
		"manager.idlettl": "30m",

		"observability.enabled":      false,
		"observability.service.name": "rowkit",
	}
	for key, value := range databaseDefaults() {
		defaults["database."+key] = value
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Unmarshal decodes the section at key into out, for settings owned by
// other packages such as observability.
func (c *Config) Unmarshal(key string, out any) error {
	if c.k == nil {
		return NewNotConfiguredError(key)
	}
	if err := c.k.Unmarshal(key, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// String returns the raw value at key, for settings without a typed field.
func (c *Config) String(key string) string {
	if c.k == nil {
		return ""
	}
	return c.k.String(key)
}
