package postgresql

import (
	"context"
	"fmt"
	"slices"

	"github.com/gaborage/go-rowkit/database/internal/crud"
	"github.com/gaborage/go-rowkit/database/internal/sqllex"
	"github.com/gaborage/go-rowkit/database/internal/tracking"
	"github.com/gaborage/go-rowkit/database/types"
)

func (d *Driver) GetRows(ctx context.Context, table types.Table, opts types.BrowseOptions, rowsOpts types.GetRowsOptions) (types.RowsResult, error) {
	return d.engine.GetRows(ctx, table, opts, rowsOpts)
}

func (d *Driver) SaveRow(ctx context.Context, table types.Table, rowID any, row types.Row) (types.Row, error) {
	return d.engine.SaveRow(ctx, table, rowID, row)
}

func (d *Driver) DeleteRow(ctx context.Context, table types.Table, rowID any) error {
	return d.engine.DeleteRow(ctx, table, rowID)
}

func (d *Driver) ExecuteRawSQLQuery(ctx context.Context, sql string) types.RawQueryResult {
	return d.engine.ExecuteRawSQLQuery(ctx, sql)
}

// ExecuteRaw runs q on the pool. Row-returning statements are bounded by the
// configured statement timeout.
func (d *Driver) ExecuteRaw(ctx context.Context, q types.QueryObject) (*crud.Result, error) {
	if lost := d.watcher.Err(); lost != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConnectionClosed, lost)
	}

	var (
		res *crud.Result
		err error
	)
	if d.statementTimeout > 0 && sqllex.ReturnsRows(q.SQL, types.DialectPostgreSQL) {
		err = d.WithStatementTimeout(ctx, d.statementTimeout, func(tx tracking.Querier) error {
			var runErr error
			res, runErr = crud.Run(ctx, tx, types.DialectPostgreSQL, q, crud.DefaultNormalizer)
			return runErr
		})
	} else {
		res, err = crud.Run(ctx, d.db, types.DialectPostgreSQL, q, crud.DefaultNormalizer)
		err = translateTimeout(err)
	}
	if err != nil {
		d.watcher.Report(err)
		return nil, err
	}
	return res, nil
}

// AffectedRows counts returned rows for queries and affected rows otherwise.
func (d *Driver) AffectedRows(res *crud.Result) int64 {
	if res.Queried {
		return int64(len(res.Rows))
	}
	return res.RowsAffected
}

// LastInsertedID reads the primary key from the RETURNING row.
func (d *Driver) LastInsertedID(res *crud.Result, table types.Table) (any, error) {
	idx := slices.Index(res.FieldNames, table.PrimaryKey)
	if idx < 0 || len(res.Rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no %s: %w", table.Name, table.PrimaryKey, types.ErrRowNotFound)
	}
	return res.Rows[0][idx], nil
}

// ResolveInsertError translates foreign key and not-null violations.
func (d *Driver) ResolveInsertError(err error) error {
	return resolveError(err)
}
