package postgresql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gaborage/go-rowkit/database/types"
)

// SQLSTATE codes, see Appendix A of the PostgreSQL manual.
const (
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeQueryCanceled       = "57014"
	codeAdminShutdown       = "57P01"
	codeCrashShutdown       = "57P02"
	codeCannotConnectNow    = "57P03"

	classConnectionException = "08"
)

var fatalCodes = map[string]struct{}{
	codeAdminShutdown:    {},
	codeCrashShutdown:    {},
	codeCannotConnectNow: {},
}

// resolveError translates constraint violations into domain errors.
func resolveError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case codeForeignKeyViolation:
		return types.ErrForeignKeyViolation
	case codeNotNullViolation:
		return &types.NotNullViolationError{Column: pgErr.ColumnName}
	}
	return nil
}

// translateTimeout maps a cancelled statement onto ErrStatementTimeout.
func translateTimeout(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeQueryCanceled {
		return fmt.Errorf("%w: %s", types.ErrStatementTimeout, pgErr.Message)
	}
	return err
}

func isFatal(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, classConnectionException) {
			return true
		}
		_, ok := fatalCodes[pgErr.Code]
		return ok
	}
	return false
}
