package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-rowkit/database/internal/sqllex"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

const (
	// Default operation type for unidentified statements
	defaultOperation = "query"

	dbTracerName      = "go-rowkit/database"
	maxDBQueryAttrLen = 2000 // db.query.text is clamped to this many runes

	dbVendorPostgreSQL = "postgresql"
	dbVendorMySQL      = "mysql"

	attrDBSystemName     = "db.system.name"
	attrDBCollectionName = "db.collection.name"

	opBegin    = "BEGIN"
	opCommit   = "COMMIT"
	opRollback = "ROLLBACK"
)

// TrackDBOperation logs, traces and records metrics for one completed statement.
//
// It is a no-op if tc or its Logger is nil. Failures are logged at error
// level, except sql.ErrNoRows which is logged at debug level. Successful
// statements slower than the configured threshold produce a warning.
// rowsAffected is 0 for reads.
func TrackDBOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	elapsed := time.Since(start)

	logger.IncrementDBCounter(ctx)
	logger.AddDBElapsed(ctx, elapsed.Nanoseconds())

	createDBSpan(ctx, tc, query, start, err)
	recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)

	truncatedQuery := query
	if tc.Settings.MaxQueryLength() > 0 && len(query) > tc.Settings.MaxQueryLength() {
		truncatedQuery = TruncateString(query, tc.Settings.MaxQueryLength())
	}

	logEvent := tc.Logger.WithContext(ctx).WithFields(map[string]any{
		"vendor":      string(tc.Dialect),
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       truncatedQuery,
	})

	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		logEvent = logEvent.WithFields(map[string]any{
			"args": SanitizeArgs(args, tc.Settings.MaxQueryLength()),
		})
	}

	switch {
	case err != nil && errors.Is(err, sql.ErrNoRows):
		logEvent.Debug().Msg("Database operation returned no rows")
	case err != nil:
		logEvent.Error().Err(err).Msg("Database operation error")
	case elapsed > tc.Settings.SlowQueryThreshold():
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Msg("Database operation executed")
	}
}

// extractRowsAffected returns result.RowsAffected, or 0 when it is unavailable.
func extractRowsAffected(result sql.Result, err error) int64 {
	if result == nil || err != nil {
		return 0
	}

	affected, affErr := result.RowsAffected()
	if affErr != nil {
		return 0
	}

	return affected
}

// TruncateString truncates value to at most maxLen runes, ending in "..."
// when maxLen leaves room for it. maxLen <= 0 disables truncation.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args that is safe to log. Strings and
// formatted values are truncated to maxLen runes; byte slices are replaced
// by "<bytes len=N>".
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		case nil:
			sanitized[i] = nil
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// createDBSpan emits a client span covering start until now.
func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	tracer := otel.Tracer(dbTracerName)

	operation := extractDBOperation(query, tc.Dialect)

	_, span := tracer.Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystemName, normalizeDBVendor(tc.Dialect)),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table := extractTableName(query); table != unknownTable {
		attrs = append(attrs, attribute.String(attrDBCollectionName, table))
	}
	span.SetAttributes(attrs...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// extractDBOperation returns the lowercase statement verb, or "query" when
// it is not one of the tracked verbs.
func extractDBOperation(query string, dialect types.Dialect) string {
	switch keyword := sqllex.LeadingKeyword(query, dialect); keyword {
	case opBegin, "START":
		return "begin"
	case opCommit:
		return "commit"
	case opRollback:
		return "rollback"
	case "SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TRUNCATE", "SET":
		return strings.ToLower(keyword)
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps a dialect to its OpenTelemetry db.system.name value.
func normalizeDBVendor(dialect types.Dialect) string {
	switch dialect {
	case types.DialectPostgreSQL, "postgres":
		return dbVendorPostgreSQL
	case types.DialectMySQL, "mariadb":
		return dbVendorMySQL
	default:
		return strings.ToLower(string(dialect))
	}
}
