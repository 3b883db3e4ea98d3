package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gaborage/go-rowkit/database/types"
)

// parseValue converts a command-line string to the Go type of col.
// Datetimes that are not RFC 3339 are passed through for the database to parse.
func parseValue(col types.Column, raw string) (any, error) {
	switch col.Type {
	case types.ColumnTypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s expects an integer, got %q", col.Name, raw)
		}
		return n, nil
	case types.ColumnTypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("column %s expects a boolean, got %q", col.Name, raw)
		}
		return b, nil
	case types.ColumnTypeDatetime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}
