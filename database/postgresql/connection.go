// Package postgresql implements the rowkit driver for PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/internal/builder"
	"github.com/gaborage/go-rowkit/database/internal/crud"
	"github.com/gaborage/go-rowkit/database/internal/liveness"
	"github.com/gaborage/go-rowkit/database/internal/tracking"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

const (
	connectTimeout = 10 * time.Second
	defaultSchema  = "public"
)

var (
	openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
		return stdlib.OpenDB(*cfg)
	}
	pingPostgresDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// Driver serves the row operations over one PostgreSQL connection pool.
type Driver struct {
	db               *tracking.DB
	logger           logger.Logger
	engine           *crud.Engine
	watcher          *liveness.Watcher
	schema           string
	statementTimeout time.Duration

	closeMetrics func()
	closeOnce    sync.Once
}

var _ types.Driver = (*Driver)(nil)

// quoteDSN quotes a DSN value according to libpq rules:
// - Returns double single quotes for empty strings (empty value)
// - Escapes backslashes and single quotes
// - Wraps in single quotes when value contains non-alphanumeric/._- characters
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	needsQuoting := false
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '.' && r != '_' && r != '-' {
			needsQuoting = true
			break
		}
	}

	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "'", "\\'")

	return "'" + escaped + "'"
}

// BuildDSN renders the keyword/value DSN for cfg, or returns the configured
// connection string unchanged.
func BuildDSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	parts := []string{
		fmt.Sprintf("host=%s", quoteDSN(cfg.Host)),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("user=%s", quoteDSN(cfg.Username)),
		fmt.Sprintf("password=%s", quoteDSN(cfg.Password)),
		fmt.Sprintf("dbname=%s", quoteDSN(cfg.Database)),
	}
	return strings.Join(parts, " ")
}

// parseConfig parses the DSN and points the search path at the configured
// schema so unqualified table names resolve there.
func parseConfig(cfg *config.DatabaseConfig) (*pgx.ConnConfig, error) {
	pgxConfig, err := pgx.ParseConfig(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}
	if schema := cfg.PostgreSQL.Schema; schema != "" && schema != defaultSchema {
		if _, set := pgxConfig.RuntimeParams["search_path"]; !set {
			pgxConfig.RuntimeParams["search_path"] = schema
		}
	}
	return pgxConfig, nil
}

// Open connects to the server described by cfg and verifies the connection.
func Open(cfg *config.DatabaseConfig, log logger.Logger) (*Driver, error) {
	pgxConfig, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}

	db := openPostgresDB(pgxConfig)

	db.SetMaxOpenConns(int(cfg.Pool.Max.Connections))
	db.SetMaxIdleConns(int(cfg.Pool.Idle.Connections))
	db.SetConnMaxLifetime(cfg.Pool.Lifetime.Max)
	db.SetConnMaxIdleTime(cfg.Pool.Idle.Time)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := pingPostgresDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close PostgreSQL database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Str("schema", cfg.PostgreSQL.Schema).
		Msg("Connected to PostgreSQL database")

	return New(db, cfg, log), nil
}

// New wraps an open pool. The health check starts when cfg sets an interval.
func New(db *sql.DB, cfg *config.DatabaseConfig, log logger.Logger) *Driver {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}
	schema := cfg.PostgreSQL.Schema
	if schema == "" {
		schema = defaultSchema
	}

	d := &Driver{
		db:               tracking.NewDB(db, log, types.DialectPostgreSQL, cfg),
		logger:           log,
		schema:           schema,
		statementTimeout: cfg.Query.StatementTimeout,
	}
	d.engine = crud.New(d, builder.Postgres{})
	d.watcher = liveness.New(log, db.PingContext, isFatal, cfg.Health.Interval)
	d.closeMetrics = tracking.RegisterConnectionPoolMetrics(db, types.DialectPostgreSQL, cfg.Database)
	d.watcher.Start()
	return d
}

// Dialect returns types.DialectPostgreSQL.
func (d *Driver) Dialect() types.Dialect {
	return types.DialectPostgreSQL
}

// RegisterOnClose registers fn to run once when the connection is lost.
func (d *Driver) RegisterOnClose(fn func(error)) {
	d.watcher.RegisterOnClose(fn)
}

// Close stops the health check and closes the pool.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.logger.Info().Msg("Closing PostgreSQL database connection")
		d.watcher.Stop()
		d.closeMetrics()
		err = d.db.Close()
	})
	return err
}
