package tracking

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gaborage/go-rowkit/database/internal/mocks"
	"github.com/gaborage/go-rowkit/database/types"
)

func setupTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	original := otel.GetTracerProvider()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(original)
	})
	return exporter
}

func resetMeter() {
	meterOnce = sync.Once{}
	dbMeter = nil
	dbCallsCounter = nil
	dbDurationHistogram = nil
	dbRowsAffectedCounter = nil
}

func setupTestMeterProvider(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	original := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	resetMeter()

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		otel.SetMeterProvider(original)
		resetMeter()
	})
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func spanAttributes(span tracetest.SpanStub) map[string]any {
	attrs := make(map[string]any, len(span.Attributes))
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	return attrs
}

func TestCreateDBSpanAttributes(t *testing.T) {
	exporter := setupTestTracerProvider(t)
	tc := &Context{Logger: &mocks.Logger{}, Dialect: types.DialectPostgreSQL, Settings: NewSettings(nil)}

	query := `INSERT INTO "public"."Users" ("Name") VALUES ($1)`
	createDBSpan(context.Background(), tc, query, time.Now().Add(-10*time.Millisecond), nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.insert", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	attrs := spanAttributes(spans[0])
	assert.Equal(t, "postgresql", attrs["db.system.name"])
	assert.Equal(t, query, attrs["db.query.text"])
	assert.Equal(t, "insert", attrs["db.operation.name"])
	assert.Equal(t, "users", attrs["db.collection.name"])
}

func TestCreateDBSpanErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status codes.Code
	}{
		{"failure", errors.New("connection reset"), codes.Error},
		{"no rows", sql.ErrNoRows, codes.Unset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTestTracerProvider(t)
			tc := &Context{Logger: &mocks.Logger{}, Dialect: types.DialectMySQL, Settings: NewSettings(nil)}

			createDBSpan(context.Background(), tc, "SELECT 1", time.Now(), tt.err)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.status, spans[0].Status.Code)
			_, hasTable := spanAttributes(spans[0])["db.collection.name"]
			assert.False(t, hasTable)
		})
	}
}

func TestTrackDBOperationRecordsMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	tc := &Context{Logger: &mocks.Logger{}, Dialect: types.DialectMySQL, Settings: NewSettings(nil)}
	ctx := context.Background()

	TrackDBOperation(ctx, tc, "UPDATE `Users` SET `Name` = ? WHERE `Id` = ?", nil, time.Now().Add(-5*time.Millisecond), 3, nil)
	TrackDBOperation(ctx, tc, "SELECT * FROM `Users`", nil, time.Now(), 0, errors.New("boom"))

	metrics := collect(t, reader)

	calls, ok := metrics[metricDBCalls].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, calls.DataPoints, 2)
	var total int64
	for _, dp := range calls.DataPoints {
		total += dp.Value
		system, _ := dp.Attributes.Value(metricDbSystem)
		assert.Equal(t, "mysql", system.AsString())
		table, _ := dp.Attributes.Value(metricDbSQLTable)
		assert.Equal(t, "users", table.AsString())
	}
	assert.Equal(t, int64(2), total)

	duration, ok := metrics[metricDBDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, duration.DataPoints, 2)

	rows, ok := metrics[metricRowsAffected].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, rows.DataPoints, 1)
	assert.Equal(t, int64(3), rows.DataPoints[0].Value)
}

type fakeStats struct{ stats sql.DBStats }

func (f fakeStats) Stats() sql.DBStats { return f.stats }

func TestRegisterConnectionPoolMetrics(t *testing.T) {
	reader := setupTestMeterProvider(t)
	source := fakeStats{stats: sql.DBStats{InUse: 2, Idle: 3, MaxOpenConnections: 10}}

	cleanup := RegisterConnectionPoolMetrics(source, types.DialectPostgreSQL, "reports")
	defer cleanup()

	metrics := collect(t, reader)
	expected := map[string]int64{
		metricPoolActive: 2,
		metricPoolIdle:   3,
		metricPoolTotal:  10,
	}
	for name, want := range expected {
		gauge, ok := metrics[name].Data.(metricdata.Gauge[int64])
		require.True(t, ok, name)
		require.Len(t, gauge.DataPoints, 1, name)
		assert.Equal(t, want, gauge.DataPoints[0].Value, name)
		conn, _ := gauge.DataPoints[0].Attributes.Value("db.connection.name")
		assert.Equal(t, "reports", conn.AsString())
	}
}

func TestRegisterConnectionPoolMetricsNilSource(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterConnectionPoolMetrics(nil, types.DialectMySQL, "")()
	})
}
