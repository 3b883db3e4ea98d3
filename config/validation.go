package config

import (
	"fmt"
	"slices"
	"time"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxQueryLength     = 1000
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

var validLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal", "disabled"}

// Validate checks cfg and every named connection.
func Validate(cfg *Config) error {
	validEnvs := []string{EnvDevelopment, EnvStaging, EnvProduction}
	if !slices.Contains(validEnvs, cfg.App.Env) {
		return NewInvalidFieldError("app.env", fmt.Sprintf("unknown environment %q", cfg.App.Env), validEnvs)
	}

	if !slices.Contains(validLogLevels, cfg.Log.Level) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("unknown level %q", cfg.Log.Level), validLogLevels)
	}

	if cfg.Manager.MaxSize < 0 {
		return NewInvalidFieldError("manager.maxsize", "must not be negative", nil)
	}
	if cfg.Manager.IdleTTL < 0 {
		return NewInvalidFieldError("manager.idlettl", "must not be negative", nil)
	}

	if IsDatabaseConfigured(&cfg.Database) {
		if err := ValidateDatabase("database", &cfg.Database); err != nil {
			return err
		}
	}

	for name := range cfg.Connections {
		db := cfg.Connections[name]
		if err := ValidateDatabase("connections."+name, &db); err != nil {
			return err
		}
	}

	return nil
}

// ValidateDatabase checks a single database section; prefix names it in errors.
func ValidateDatabase(prefix string, cfg *DatabaseConfig) error {
	validTypes := []string{MySQL, PostgreSQL}
	if cfg.Type == "" {
		return NewMissingFieldError(prefix + ".type")
	}
	if !slices.Contains(validTypes, cfg.Type) {
		return NewInvalidFieldError(prefix+".type", fmt.Sprintf("unsupported database type %q", cfg.Type), validTypes)
	}

	if cfg.ConnectionString == "" {
		if cfg.Host == "" {
			return NewMissingFieldError(prefix + ".host")
		}
		if cfg.Port <= 0 || cfg.Port > 65535 {
			return NewInvalidFieldError(prefix+".port", fmt.Sprintf("invalid port %d (must be 1-65535)", cfg.Port), nil)
		}
		if cfg.Database == "" {
			return NewMissingFieldError(prefix + ".database")
		}
		if cfg.Username == "" {
			return NewMissingFieldError(prefix + ".username")
		}
	}

	if cfg.Pool.Max.Connections < 0 {
		return NewInvalidFieldError(prefix+".pool.max.connections", "must not be negative", nil)
	}

	durations := map[string]time.Duration{
		".query.slow.threshold":   cfg.Query.Slow.Threshold,
		".query.statementtimeout": cfg.Query.StatementTimeout,
		".health.interval":        cfg.Health.Interval,
		".pool.idle.time":         cfg.Pool.Idle.Time,
		".pool.lifetime.max":      cfg.Pool.Lifetime.Max,
	}
	for field, d := range durations {
		if d < 0 {
			return NewInvalidFieldError(prefix+field, "must not be negative", nil)
		}
	}

	if cfg.Query.StatementTimeout > 0 && cfg.Type != PostgreSQL {
		return NewInvalidFieldError(prefix+".query.statementtimeout", "only supported for postgresql", nil)
	}

	return nil
}
