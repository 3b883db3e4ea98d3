package crud

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/gaborage/go-rowkit/database/internal/sqllex"
	"github.com/gaborage/go-rowkit/database/internal/tracking"
	"github.com/gaborage/go-rowkit/database/types"
)

// Result is the raw outcome of one statement.
type Result struct {
	// FieldNames are the result set columns in server order; empty for writes
	// without a result set.
	FieldNames []string
	// Rows hold values in FieldNames order.
	Rows [][]any
	// Queried is true when the statement was run as a query.
	Queried bool

	RowsAffected    int64
	LastInsertID    int64
	HasLastInsertID bool
}

// Maps converts Rows into column-keyed rows. It never returns nil.
func (r *Result) Maps() []types.Row {
	out := make([]types.Row, 0, len(r.Rows))
	for _, values := range r.Rows {
		row := make(types.Row, len(r.FieldNames))
		for i, name := range r.FieldNames {
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out
}

// Normalizer converts a scanned value given the column's database type name.
type Normalizer func(databaseType string, value any) any

// DefaultNormalizer turns byte slices into strings and leaves everything else alone.
func DefaultNormalizer(_ string, value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// IntegerNormalizer extends DefaultNormalizer by parsing textual values of
// the given integer database types into int64.
func IntegerNormalizer(integerTypes ...string) Normalizer {
	set := make(map[string]struct{}, len(integerTypes))
	for _, t := range integerTypes {
		set[t] = struct{}{}
	}
	return func(databaseType string, value any) any {
		b, ok := value.([]byte)
		if !ok {
			return value
		}
		if _, isInt := set[databaseType]; isInt {
			if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
				return n
			}
		}
		return string(b)
	}
}

// Run executes q on db. Statements that return rows are run as queries and
// fully scanned; everything else is executed.
func Run(ctx context.Context, db tracking.Querier, dialect types.Dialect, q types.QueryObject, normalize Normalizer) (*Result, error) {
	if normalize == nil {
		normalize = DefaultNormalizer
	}

	if !sqllex.ReturnsRows(q.SQL, dialect) {
		res, err := db.ExecContext(ctx, q.SQL, q.Params...)
		if err != nil {
			return nil, err
		}
		out := &Result{}
		if n, err := res.RowsAffected(); err == nil {
			out.RowsAffected = n
		}
		if id, err := res.LastInsertId(); err == nil {
			out.LastInsertID = id
			out.HasLastInsertID = true
		}
		return out, nil
	}

	rows, err := db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return ScanRows(rows, normalize)
}

// ScanRows reads every row of rows, normalizing each value.
func ScanRows(rows *sql.Rows, normalize Normalizer) (*Result, error) {
	if normalize == nil {
		normalize = DefaultNormalizer
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	dbTypes := make([]string, len(columns))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			if i < len(dbTypes) && ct != nil {
				dbTypes[i] = ct.DatabaseTypeName()
			}
		}
	}

	out := &Result{FieldNames: columns, Rows: [][]any{}, Queried: true}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = normalize(dbTypes[i], v)
		}
		out.Rows = append(out.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out.RowsAffected = int64(len(out.Rows))
	return out, nil
}

// toInt64 converts a scanned COUNT value.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count value %T", v)
	}
}
