// Package mysql implements the rowkit driver for MySQL and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/internal/builder"
	"github.com/gaborage/go-rowkit/database/internal/crud"
	"github.com/gaborage/go-rowkit/database/internal/liveness"
	"github.com/gaborage/go-rowkit/database/internal/tracking"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

const connectTimeout = 10 * time.Second

var (
	openMySQLDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("mysql", dsn)
	}
	pingMySQLDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// Driver serves the row operations over one MySQL connection pool.
type Driver struct {
	db      *tracking.DB
	logger  logger.Logger
	engine  *crud.Engine
	watcher *liveness.Watcher

	closeMetrics func()
	closeOnce    sync.Once
}

var _ types.Driver = (*Driver)(nil)

// BuildDSN renders the go-sql-driver DSN for cfg. Times are always parsed
// into time.Time.
func BuildDSN(cfg *config.DatabaseConfig) (string, error) {
	var mc *mysql.Config
	if cfg.ConnectionString != "" {
		parsed, err := mysql.ParseDSN(cfg.ConnectionString)
		if err != nil {
			return "", fmt.Errorf("failed to parse MySQL connection string: %w", err)
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database
	}

	mc.ParseTime = true
	if len(cfg.MySQL.Params) > 0 {
		if mc.Params == nil {
			mc.Params = make(map[string]string, len(cfg.MySQL.Params))
		}
		maps.Copy(mc.Params, cfg.MySQL.Params)
	}
	return mc.FormatDSN(), nil
}

// Open connects to the server described by cfg and verifies the connection.
func Open(cfg *config.DatabaseConfig, log logger.Logger) (*Driver, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := openMySQLDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	db.SetMaxOpenConns(int(cfg.Pool.Max.Connections))
	db.SetMaxIdleConns(int(cfg.Pool.Idle.Connections))
	db.SetConnMaxLifetime(cfg.Pool.Lifetime.Max)
	db.SetConnMaxIdleTime(cfg.Pool.Idle.Time)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := pingMySQLDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close MySQL database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to MySQL database")

	return New(db, cfg, log), nil
}

// New wraps an open pool. The health check starts when cfg sets an interval.
func New(db *sql.DB, cfg *config.DatabaseConfig, log logger.Logger) *Driver {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}

	d := &Driver{
		db:     tracking.NewDB(db, log, types.DialectMySQL, cfg),
		logger: log,
	}
	d.engine = crud.New(d, builder.MySQL{})
	d.watcher = liveness.New(log, db.PingContext, isFatal, cfg.Health.Interval)
	d.closeMetrics = tracking.RegisterConnectionPoolMetrics(db, types.DialectMySQL, cfg.Database)
	d.watcher.Start()
	return d
}

// Dialect returns types.DialectMySQL.
func (d *Driver) Dialect() types.Dialect {
	return types.DialectMySQL
}

// RegisterOnClose registers fn to run once when the connection is lost.
func (d *Driver) RegisterOnClose(fn func(error)) {
	d.watcher.RegisterOnClose(fn)
}

// Close stops the health check and closes the pool. Close callbacks do not fire.
func (d *Driver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.logger.Info().Msg("Closing MySQL database connection")
		d.watcher.Stop()
		d.closeMetrics()
		err = d.db.Close()
	})
	return err
}
