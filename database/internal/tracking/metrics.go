package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-rowkit/database/types"
)

const (
	dbMeterName = "go-rowkit/database"

	// Metric names following OpenTelemetry semantic conventions
	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"

	// Connection pool metrics
	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"

	metricDbSQLTable  = "db.sql.table"
	metricDbOperation = "db.operation.name"
	metricDbSystem    = "db.system"

	unknownTable = "unknown"
)

var (
	dbMeter     metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	dbCallsCounter        metric.Int64Counter
	dbDurationHistogram   metric.Float64Histogram
	dbRowsAffectedCounter metric.Int64Counter
)

// logMetricError reports instrument failures on stderr; metrics never break a query.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

func noOpCleanup() func() {
	return func() {}
}

// initDBMeter creates the instruments from the global meter provider.
func initDBMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if dbMeter != nil {
		return
	}

	dbMeter = otel.Meter(dbMeterName)

	var err error
	dbCallsCounter, err = dbMeter.Int64Counter(
		metricDBCalls,
		metric.WithDescription("Total number of database client calls"),
	)
	logMetricError(metricDBCalls, err)

	dbDurationHistogram, err = dbMeter.Float64Histogram(
		metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	logMetricError(metricDBDuration, err)

	dbRowsAffectedCounter, err = dbMeter.Int64Counter(
		metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"),
	)
	logMetricError(metricRowsAffected, err)
}

func getDBMeter() metric.Meter {
	meterOnce.Do(initDBMeter)
	return dbMeter
}

// recordDBMetrics records the call counter, the duration histogram and, for
// successful writes, the affected row count.
func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	meter := getDBMeter()
	if meter == nil {
		return
	}

	isError := err != nil && !errors.Is(err, sql.ErrNoRows)

	commonAttrs := []attribute.KeyValue{
		attribute.String(metricDbSystem, normalizeDBVendor(tc.Dialect)),
		attribute.String(metricDbOperation, extractDBOperation(query, tc.Dialect)),
		attribute.String(metricDbSQLTable, extractTableName(query)),
	}

	if dbCallsCounter != nil {
		counterAttrs := make([]attribute.KeyValue, 0, len(commonAttrs)+1)
		counterAttrs = append(counterAttrs, commonAttrs...)
		counterAttrs = append(counterAttrs, attribute.Bool("error", isError))
		dbCallsCounter.Add(ctx, 1, metric.WithAttributes(counterAttrs...))
	}

	if dbDurationHistogram != nil {
		durationMs := float64(duration.Nanoseconds()) / 1e6
		dbDurationHistogram.Record(ctx, durationMs, metric.WithAttributes(commonAttrs...))
	}

	if dbRowsAffectedCounter != nil && rowsAffected > 0 && !isError {
		dbRowsAffectedCounter.Add(ctx, rowsAffected, metric.WithAttributes(commonAttrs...))
	}
}

// Table name patterns accept backtick or double-quoted identifiers and an
// optional schema qualifier.
var (
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"]?\\w+[`\"]?\\.)?[`\"]?(\\w+)[`\"]?")
)

// extractTableName returns the lowercase name of the first table a DML
// statement touches, or "unknown".
func extractTableName(query string) string {
	query = strings.TrimSpace(query)
	upper := strings.ToUpper(query)

	var pattern *regexp.Regexp
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		pattern = selectTableRegex
	case strings.HasPrefix(upper, "INSERT"):
		pattern = insertTableRegex
	case strings.HasPrefix(upper, "UPDATE"):
		pattern = updateTableRegex
	case strings.HasPrefix(upper, "DELETE"):
		pattern = deleteTableRegex
	default:
		return unknownTable
	}

	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return unknownTable
}

// StatsSource is satisfied by *sql.DB.
type StatsSource interface {
	Stats() sql.DBStats
}

type poolMetricsRegistration struct {
	db          StatsSource
	activeGauge metric.Int64ObservableGauge
	idleGauge   metric.Int64ObservableGauge
	totalGauge  metric.Int64ObservableGauge
	attrs       []attribute.KeyValue
}

func (r *poolMetricsRegistration) observePoolStats(_ context.Context, observer metric.Observer) error {
	stats := r.db.Stats()
	opt := metric.WithAttributes(r.attrs...)

	if r.activeGauge != nil {
		observer.ObserveInt64(r.activeGauge, int64(stats.InUse), opt)
	}
	if r.idleGauge != nil {
		observer.ObserveInt64(r.idleGauge, int64(stats.Idle), opt)
	}
	if r.totalGauge != nil {
		observer.ObserveInt64(r.totalGauge, int64(stats.MaxOpenConnections), opt)
	}
	return nil
}

func createGauge(meter metric.Meter, name, description string) metric.Int64ObservableGauge {
	gauge, err := meter.Int64ObservableGauge(name, metric.WithDescription(description))
	logMetricError(name, err)
	return gauge
}

// RegisterConnectionPoolMetrics registers pool gauges observed from db.Stats
// on every collection. The returned function unregisters them; drivers call
// it on Close.
func RegisterConnectionPoolMetrics(db StatsSource, dialect types.Dialect, connection string) func() {
	meter := getDBMeter()
	if meter == nil || db == nil {
		return noOpCleanup()
	}

	attrs := []attribute.KeyValue{attribute.String(metricDbSystem, normalizeDBVendor(dialect))}
	if connection != "" {
		attrs = append(attrs, attribute.String("db.connection.name", connection))
	}

	reg := &poolMetricsRegistration{
		db:    db,
		attrs: attrs,
	}
	reg.activeGauge = createGauge(meter, metricPoolActive, "Number of active database connections")
	reg.idleGauge = createGauge(meter, metricPoolIdle, "Number of idle database connections")
	reg.totalGauge = createGauge(meter, metricPoolTotal, "Maximum number of database connections configured")

	var instruments []metric.Observable
	for _, g := range []metric.Int64ObservableGauge{reg.activeGauge, reg.idleGauge, reg.totalGauge} {
		if g != nil {
			instruments = append(instruments, g)
		}
	}
	if len(instruments) == 0 {
		return noOpCleanup()
	}

	registration, err := meter.RegisterCallback(reg.observePoolStats, instruments...)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return noOpCleanup()
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}
