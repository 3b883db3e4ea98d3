//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every dialect driver.
// These can be used with errors.Is() for programmatic error checking.
var (
	// ErrForeignKeyViolation is returned when a write references a missing row
	// or deletes a row that is still referenced.
	ErrForeignKeyViolation = errors.New("Foreign key constraint failed") //nolint:staticcheck // message is surfaced verbatim to users

	// ErrNotNullViolation matches any NotNullViolationError.
	ErrNotNullViolation = errors.New("not-null constraint failed")

	// ErrStatementTimeout is returned when a query exceeds the configured statement timeout.
	ErrStatementTimeout = errors.New("statement timeout exceeded")

	// ErrInvalidIdentifier matches any IdentifierError.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")

	// ErrUnknownColumnType matches any UnknownColumnTypeError.
	ErrUnknownColumnType = errors.New("unknown column type")

	// ErrNoPrimaryKey is returned when an operation needs to address a single row
	// of a table that has no primary key.
	ErrNoPrimaryKey = errors.New("table has no primary key")

	// ErrEmptyRow is returned when an update names no columns to write.
	ErrEmptyRow = errors.New("row has no columns to write")

	// ErrRowNotFound is returned when a saved row cannot be read back.
	ErrRowNotFound = errors.New("row not found")

	// ErrConnectionClosed is returned by drivers whose connection was lost or closed.
	ErrConnectionClosed = errors.New("database connection closed")
)

// NotNullViolationError reports a write that left a NOT NULL column empty.
type NotNullViolationError struct {
	Column string
}

func (e *NotNullViolationError) Error() string {
	return fmt.Sprintf("Column %s is not nullable", e.Column)
}

// Is lets errors.Is match ErrNotNullViolation.
func (e *NotNullViolationError) Is(target error) bool {
	return target == ErrNotNullViolation
}

// IdentifierError reports a name that cannot be rendered inline as an identifier.
type IdentifierError struct {
	Name string
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("%s is not a valid SQL identifier", e.Name)
}

// Is lets errors.Is match ErrInvalidIdentifier.
func (e *IdentifierError) Is(target error) bool {
	return target == ErrInvalidIdentifier
}

// UnknownColumnTypeError reports a physical column type missing from a dialect's type map.
type UnknownColumnTypeError struct {
	Dialect      Dialect
	Table        string
	Column       string
	PhysicalType string
}

func (e *UnknownColumnTypeError) Error() string {
	msg := fmt.Sprintf("unsupported column type %q for %s.%s", e.PhysicalType, e.Table, e.Column)
	if e.Dialect != "" {
		return string(e.Dialect) + ": " + msg
	}
	return msg
}

// Is lets errors.Is match ErrUnknownColumnType.
func (e *UnknownColumnTypeError) Is(target error) bool {
	return target == ErrUnknownColumnType
}
