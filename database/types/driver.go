//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "context"

// Driver is the dialect-independent contract consumed by upper layers.
//
// A nil rowID passed to SaveRow inserts a new row; any other value updates the
// row whose primary key equals rowID. SaveRow returns the row as stored by the
// database, re-read after the write. Rows inserted into a table without a
// primary key are re-read by matching every inserted column; if nothing was
// inserted or no stored row matches, the inserted values are returned instead.
//
// ExecuteRawSQLQuery never fails: errors are reported through RawQueryResult.ErrorMessage.
type Driver interface {
	GetSchema(ctx context.Context) (Schema, error)
	GetRows(ctx context.Context, table Table, opts BrowseOptions, rowsOpts GetRowsOptions) (RowsResult, error)
	SaveRow(ctx context.Context, table Table, rowID any, row Row) (Row, error)
	DeleteRow(ctx context.Context, table Table, rowID any) error
	ExecuteRawSQLQuery(ctx context.Context, sql string) RawQueryResult

	// RegisterOnClose adds a callback fired once when the connection is lost.
	// Callbacks registered after the loss fire immediately.
	RegisterOnClose(fn func(error))

	Dialect() Dialect
	Close() error
}
