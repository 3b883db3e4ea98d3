package mysql

import (
	"context"
	"fmt"

	"github.com/gaborage/go-rowkit/database/internal/crud"
	"github.com/gaborage/go-rowkit/database/types"
)

// Integer database type names as reported by the driver's column metadata.
// Values of these columns arrive as text over the plain query protocol.
var normalize = crud.IntegerNormalizer(
	"TINYINT", "SMALLINT", "MEDIUMINT", "INT", "BIGINT", "YEAR",
	"UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT",
)

// GetRows returns one page of table rows.
func (d *Driver) GetRows(ctx context.Context, table types.Table, opts types.BrowseOptions, rowsOpts types.GetRowsOptions) (types.RowsResult, error) {
	return d.engine.GetRows(ctx, table, opts, rowsOpts)
}

// SaveRow inserts or updates a row and returns it as stored.
func (d *Driver) SaveRow(ctx context.Context, table types.Table, rowID any, row types.Row) (types.Row, error) {
	return d.engine.SaveRow(ctx, table, rowID, row)
}

// DeleteRow deletes a row by primary key.
func (d *Driver) DeleteRow(ctx context.Context, table types.Table, rowID any) error {
	return d.engine.DeleteRow(ctx, table, rowID)
}

// ExecuteRawSQLQuery runs sql verbatim and reports failures in the result.
func (d *Driver) ExecuteRawSQLQuery(ctx context.Context, sql string) types.RawQueryResult {
	return d.engine.ExecuteRawSQLQuery(ctx, sql)
}

// ExecuteRaw runs q on the pool. Fatal failures mark the connection lost.
func (d *Driver) ExecuteRaw(ctx context.Context, q types.QueryObject) (*crud.Result, error) {
	if lost := d.watcher.Err(); lost != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConnectionClosed, lost)
	}
	res, err := crud.Run(ctx, d.db, types.DialectMySQL, q, normalize)
	if err != nil {
		d.watcher.Report(err)
		return nil, err
	}
	return res, nil
}

// AffectedRows is the server's affected row count; queries affect nothing.
func (d *Driver) AffectedRows(res *crud.Result) int64 {
	if res.Queried {
		return 0
	}
	return res.RowsAffected
}

// LastInsertedID returns the auto-increment value generated by the insert.
func (d *Driver) LastInsertedID(res *crud.Result, table types.Table) (any, error) {
	if !res.HasLastInsertID || res.LastInsertID == 0 {
		return nil, fmt.Errorf("insert into %s reported no generated id: %w", table.Name, types.ErrRowNotFound)
	}
	return res.LastInsertID, nil
}

// ResolveInsertError translates foreign key and not-null violations.
func (d *Driver) ResolveInsertError(err error) error {
	return resolveError(err)
}
