package tracking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
)

// Querier is the statement surface shared by DB and Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DB wraps sql.DB so every statement is logged, traced and measured.
// Methods not overridden here (PingContext, Stats, Close) pass through untracked.
type DB struct {
	*sql.DB
	tc *Context
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Tx)(nil)
)

// NewDB returns a tracked wrapper around db. Settings are derived from cfg,
// which may be nil.
func NewDB(db *sql.DB, log logger.Logger, dialect types.Dialect, cfg *config.DatabaseConfig) *DB {
	return &DB{
		DB: db,
		tc: &Context{
			Logger:   log,
			Dialect:  dialect,
			Settings: NewSettings(cfg),
		},
	}
}

// QueryContext executes a query with context and tracks performance
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	TrackDBOperation(ctx, db.tc, query, args, start, 0, err)
	return rows, err
}

// ExecContext executes a statement without returning rows and tracks performance
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, query, args...)
	TrackDBOperation(ctx, db.tc, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// BeginTx starts a tracked transaction.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	start := time.Now()
	tx, err := db.DB.BeginTx(ctx, opts)
	TrackDBOperation(ctx, db.tc, opBegin, nil, start, 0, err)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, tc: db.tc}, nil
}

// Tx is a tracked transaction.
type Tx struct {
	tx *sql.Tx
	tc *Context
}

// QueryContext executes a query within the transaction.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := tx.tx.QueryContext(ctx, query, args...)
	TrackDBOperation(ctx, tx.tc, query, args, start, 0, err)
	return rows, err
}

// ExecContext executes a statement within the transaction.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := tx.tx.ExecContext(ctx, query, args...)
	TrackDBOperation(ctx, tx.tc, query, args, start, extractRowsAffected(result, err), err)
	return result, err
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	start := time.Now()
	err := tx.tx.Commit()
	TrackDBOperation(context.Background(), tx.tc, opCommit, nil, start, 0, err)
	return err
}

// Rollback aborts the transaction. Rolling back a finished transaction
// returns sql.ErrTxDone and is not logged as a failure.
func (tx *Tx) Rollback() error {
	start := time.Now()
	err := tx.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return err
	}
	TrackDBOperation(context.Background(), tx.tc, opRollback, nil, start, 0, err)
	return err
}
