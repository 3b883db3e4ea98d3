package database

import (
	"fmt"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/mysql"
	"github.com/gaborage/go-rowkit/database/postgresql"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

var (
	openMySQL      = func(cfg *config.DatabaseConfig, log logger.Logger) (types.Driver, error) { return mysql.Open(cfg, log) }
	openPostgreSQL = func(cfg *config.DatabaseConfig, log logger.Logger) (types.Driver, error) { return postgresql.Open(cfg, log) }
)

// NewDriver opens the driver selected by cfg.Type. When cfg.SchemaFile is set
// the schema is read from that file instead of being introspected.
func NewDriver(cfg *config.DatabaseConfig, log logger.Logger) (types.Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if err := ValidateDatabaseType(cfg.Type); err != nil {
		return nil, err
	}

	var (
		static    types.Schema
		hasStatic bool
	)
	if cfg.SchemaFile != "" {
		schema, err := config.LoadSchemaFile(cfg.SchemaFile)
		if err != nil {
			return nil, err
		}
		static, hasStatic = schema, true
	}

	var (
		drv types.Driver
		err error
	)
	switch cfg.Type {
	case MySQL:
		drv, err = openMySQL(cfg, log)
	case PostgreSQL:
		drv, err = openPostgreSQL(cfg, log)
	}
	if err != nil {
		return nil, err
	}

	if hasStatic {
		return WithStaticSchema(drv, static), nil
	}
	return drv, nil
}
