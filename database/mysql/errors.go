package mysql

import (
	"database/sql/driver"
	"errors"
	"regexp"

	"github.com/go-sql-driver/mysql"

	"github.com/gaborage/go-rowkit/database/types"
)

// Server error numbers, see the MySQL server error reference.
const (
	erRowIsReferenced    = 1217 // ER_ROW_IS_REFERENCED
	erNoReferencedRow    = 1216 // ER_NO_REFERENCED_ROW
	erRowIsReferenced2   = 1451 // ER_ROW_IS_REFERENCED_2
	erNoReferencedRow2   = 1452 // ER_NO_REFERENCED_ROW_2
	erBadNull            = 1048 // ER_BAD_NULL_ERROR
	erNoDefaultForField  = 1364 // ER_NO_DEFAULT_FOR_FIELD
	erServerShutdown     = 1053 // ER_SERVER_SHUTDOWN
	erConnectionKilled   = 1927 // ER_CONNECTION_KILLED
	erClientInteractionT = 4031 // ER_CLIENT_INTERACTION_TIMEOUT
)

var foreignKeyErrors = map[uint16]struct{}{
	erNoReferencedRow:  {},
	erRowIsReferenced:  {},
	erRowIsReferenced2: {},
	erNoReferencedRow2: {},
}

var notNullErrors = map[uint16]struct{}{
	erBadNull:           {},
	erNoDefaultForField: {},
}

var fatalErrors = map[uint16]struct{}{
	erServerShutdown:     {},
	erConnectionKilled:   {},
	erClientInteractionT: {},
}

// Messages name the column in single quotes:
// "Column 'CreatedAt' cannot be null", "Field 'CreatedAt' doesn't have a default value".
var quotedName = regexp.MustCompile(`'([^']+)'`)

// resolveError translates constraint violations into domain errors.
func resolveError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return nil
	}
	if _, ok := foreignKeyErrors[myErr.Number]; ok {
		return types.ErrForeignKeyViolation
	}
	if _, ok := notNullErrors[myErr.Number]; ok {
		column := ""
		if m := quotedName.FindStringSubmatch(myErr.Message); m != nil {
			column = m[1]
		}
		return &types.NotNullViolationError{Column: column}
	}
	return nil
}

// isFatal reports errors after which the pool cannot be trusted.
func isFatal(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := fatalErrors[myErr.Number]
		return ok
	}
	return false
}
