package tracking

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/internal/mocks"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

const (
	levelDebug = "debug"
	levelError = "error"
	levelWarn  = "warn"

	querySelectUsers = "SELECT * FROM users WHERE id = ?"
	queryUpdateUsers = "UPDATE users SET name = ? WHERE id = ?"
)

func newMockDB(t *testing.T, cfg *config.DatabaseConfig) (*DB, sqlmock.Sqlmock, *mocks.Logger) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	log := &mocks.Logger{}
	return NewDB(sqlDB, log, types.DialectMySQL, cfg), mock, log
}

func TestDBQueryContextLogsSuccess(t *testing.T) {
	db, mock, log := newMockDB(t, nil)
	mock.ExpectQuery(querySelectUsers).WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	rows, err := db.QueryContext(context.Background(), querySelectUsers, 1)
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	assert.Equal(t, []string{"Database operation executed"}, log.Messages(levelDebug))
	entry := log.Entries()[0]
	assert.Equal(t, "mysql", entry.Fields["vendor"])
	assert.Equal(t, querySelectUsers, entry.Fields["query"])
	assert.NotContains(t, entry.Fields, "args")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBQueryContextLogsErrors(t *testing.T) {
	db, mock, log := newMockDB(t, nil)
	boom := errors.New("boom")
	mock.ExpectQuery(querySelectUsers).WillReturnError(boom)

	_, err := db.QueryContext(context.Background(), querySelectUsers, 1)
	require.ErrorIs(t, err, boom)

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, levelError, entries[0].Level)
	assert.Equal(t, "Database operation error", entries[0].Message)
	assert.ErrorIs(t, entries[0].Err, boom)
}

func TestDBExecContextLogsParameters(t *testing.T) {
	cfg := &config.DatabaseConfig{}
	cfg.Query.Log.Parameters = true
	cfg.Query.Log.MaxLength = 8

	db, mock, log := newMockDB(t, cfg)
	mock.ExpectExec(queryUpdateUsers).WithArgs("a very long name", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := db.ExecContext(context.Background(), queryUpdateUsers, "a very long name", 7)
	require.NoError(t, err)
	affected, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	entry := log.Entries()[0]
	assert.Equal(t, []any{"a ver...", "7"}, entry.Fields["args"])
	assert.Equal(t, "UPDAT...", entry.Fields["query"])
}

func TestSlowOperationWarning(t *testing.T) {
	log := &mocks.Logger{}
	cfg := &config.DatabaseConfig{}
	cfg.Query.Slow.Threshold = time.Millisecond
	tc := &Context{Logger: log, Dialect: types.DialectPostgreSQL, Settings: NewSettings(cfg)}

	TrackDBOperation(context.Background(), tc, "SELECT 1", nil, time.Now().Add(-50*time.Millisecond), 0, nil)

	warnings := log.Messages(levelWarn)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Slow database operation detected")
}

func TestNoRowsLoggedAtDebug(t *testing.T) {
	log := &mocks.Logger{}
	tc := &Context{Logger: log, Dialect: types.DialectPostgreSQL, Settings: NewSettings(nil)}

	TrackDBOperation(context.Background(), tc, "SELECT 1", nil, time.Now(), 0, sql.ErrNoRows)

	assert.Equal(t, []string{"Database operation returned no rows"}, log.Messages(levelDebug))
	assert.Empty(t, log.Messages(levelError))
}

func TestTrackDBOperationNilContext(t *testing.T) {
	assert.NotPanics(t, func() {
		TrackDBOperation(context.Background(), nil, "SELECT 1", nil, time.Now(), 0, nil)
		TrackDBOperation(context.Background(), &Context{}, "SELECT 1", nil, time.Now(), 0, nil)
	})
}

func TestTrackDBOperationCountsRequestOperations(t *testing.T) {
	log := &mocks.Logger{}
	tc := &Context{Logger: log, Dialect: types.DialectMySQL, Settings: NewSettings(nil)}
	ctx := logger.WithDBCounter(context.Background())

	TrackDBOperation(ctx, tc, "SELECT 1", nil, time.Now().Add(-time.Millisecond), 0, nil)
	TrackDBOperation(ctx, tc, "SELECT 2", nil, time.Now().Add(-time.Millisecond), 0, nil)

	assert.Equal(t, int64(2), logger.GetDBCounter(ctx))
	assert.Positive(t, logger.GetDBElapsed(ctx))
}

func TestTransactionCommit(t *testing.T) {
	db, mock, log := newMockDB(t, nil)
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL statement_timeout = 1000").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = tx.ExecContext(ctx, "SET LOCAL statement_timeout = 1000")
	require.NoError(t, err)
	rows, err := tx.QueryContext(ctx, "SELECT 1")
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Commit())

	assert.ErrorIs(t, tx.Rollback(), sql.ErrTxDone)
	assert.Len(t, log.Messages(levelDebug), 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollback(t *testing.T) {
	db, mock, log := newMockDB(t, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Len(t, log.Messages(levelDebug), 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailure(t *testing.T) {
	db, mock, log := newMockDB(t, nil)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	tx, err := db.BeginTx(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, tx)
	assert.Len(t, log.Messages(levelError), 1)
}
