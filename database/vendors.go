package database

import (
	"fmt"
	"slices"

	"github.com/gaborage/go-rowkit/database/types"
)

// Database type names accepted in DatabaseConfig.Type.
const (
	MySQL      = string(types.DialectMySQL)
	PostgreSQL = string(types.DialectPostgreSQL)
)

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{MySQL, PostgreSQL}
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
func ValidateDatabaseType(dbType string) error {
	supported := GetSupportedDatabaseTypes()
	if !slices.Contains(supported, dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, supported)
	}
	return nil
}
