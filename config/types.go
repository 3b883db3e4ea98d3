package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Database type constants
const (
	MySQL      = "mysql"
	PostgreSQL = "postgresql"
)

// Config is the root configuration of rowkit.
type Config struct {
	App      AppConfig      `koanf:"app" json:"app" yaml:"app" mapstructure:"app"`
	Log      LogConfig      `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Manager  ManagerConfig  `koanf:"manager" json:"manager" yaml:"manager" mapstructure:"manager"`

	// Connections holds additional named databases. Each entry starts from the
	// same defaults as Database.
	Connections map[string]DatabaseConfig `koanf:"-" json:"connections" yaml:"connections" mapstructure:"-"`

	k *koanf.Koanf
}

// AppConfig identifies the running process in logs.
type AppConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	Env  string `koanf:"env" json:"env" yaml:"env" mapstructure:"env"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// ManagerConfig bounds the set of open named connections.
type ManagerConfig struct {
	MaxSize int           `koanf:"maxsize" json:"maxsize" yaml:"maxsize" mapstructure:"maxsize"`
	IdleTTL time.Duration `koanf:"idlettl" json:"idlettl" yaml:"idlettl" mapstructure:"idlettl"`
}

// DatabaseConfig describes one database connection.
// ConnectionString, when set, takes precedence over the discrete fields.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" mapstructure:"type"`
	Host     string `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" mapstructure:"port"`
	Database string `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Username string `koanf:"username" json:"username" yaml:"username" mapstructure:"username"`
	Password string `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`

	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring" mapstructure:"connectionstring"`

	Pool   PoolConfig   `koanf:"pool" json:"pool" yaml:"pool" mapstructure:"pool"`
	Query  QueryConfig  `koanf:"query" json:"query" yaml:"query" mapstructure:"query"`
	Health HealthConfig `koanf:"health" json:"health" yaml:"health" mapstructure:"health"`

	PostgreSQL PostgreSQLConfig `koanf:"postgresql" json:"postgresql" yaml:"postgresql" mapstructure:"postgresql"`
	MySQL      MySQLConfig      `koanf:"mysql" json:"mysql" yaml:"mysql" mapstructure:"mysql"`

	// SchemaFile points at a YAML schema served instead of live introspection.
	SchemaFile string `koanf:"schemafile" json:"schemafile" yaml:"schemafile" mapstructure:"schemafile"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	Max      PoolMaxConfig  `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
	Idle     PoolIdleConfig `koanf:"idle" json:"idle" yaml:"idle" mapstructure:"idle"`
	Lifetime LifetimeConfig `koanf:"lifetime" json:"lifetime" yaml:"lifetime" mapstructure:"lifetime"`
}

// PoolMaxConfig holds maximum connections settings.
type PoolMaxConfig struct {
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" mapstructure:"connections"`
}

// PoolIdleConfig holds idle connections settings.
type PoolIdleConfig struct {
	Connections int32         `koanf:"connections" json:"connections" yaml:"connections" mapstructure:"connections"`
	Time        time.Duration `koanf:"time" json:"time" yaml:"time" mapstructure:"time"`
}

// LifetimeConfig holds maximum lifetime settings for connections.
type LifetimeConfig struct {
	Max time.Duration `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
}

// QueryConfig holds query logging, slow query detection and timeout settings.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`

	// StatementTimeout bounds row fetches on PostgreSQL. Zero disables it.
	StatementTimeout time.Duration `koanf:"statementtimeout" json:"statementtimeout" yaml:"statementtimeout" mapstructure:"statementtimeout"`
}

// SlowQueryConfig holds slow query detection settings.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// QueryLogConfig holds query logging settings.
type QueryLogConfig struct {
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters" mapstructure:"parameters"`
	MaxLength  int  `koanf:"maxlength" json:"maxlength" yaml:"maxlength" mapstructure:"maxlength"`
}

// HealthConfig controls the background connection check. A zero interval disables it.
type HealthConfig struct {
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" mapstructure:"interval"`
}

// PostgreSQLConfig holds PostgreSQL-specific settings.
type PostgreSQLConfig struct {
	Schema string `koanf:"schema" json:"schema" yaml:"schema" mapstructure:"schema"`
}

// MySQLConfig holds MySQL-specific settings.
type MySQLConfig struct {
	// Params are extra DSN parameters such as charset or tls.
	Params map[string]string `koanf:"params" json:"params" yaml:"params" mapstructure:"params"`
}

// IsDatabaseConfigured reports whether enough settings exist to attempt a connection.
func IsDatabaseConfigured(cfg *DatabaseConfig) bool {
	return cfg != nil && (cfg.Host != "" || cfg.ConnectionString != "")
}
