// Package crud implements the dialect-independent row operations shared by
// every SQL driver. A driver supplies the four Hooks and a formatter; the
// Engine builds the statements, runs them through the hooks and shapes the
// results.
package crud

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-rowkit/database/internal/builder"
	"github.com/gaborage/go-rowkit/database/types"
)

// Hooks are the dialect-specific parts of the row operations.
type Hooks interface {
	// ExecuteRaw runs a rendered statement.
	ExecuteRaw(ctx context.Context, q types.QueryObject) (*Result, error)
	// AffectedRows reports the row count of a raw statement as the dialect defines it.
	AffectedRows(res *Result) int64
	// LastInsertedID extracts the primary key of a row inserted into table.
	LastInsertedID(res *Result, table types.Table) (any, error)
	// ResolveInsertError returns the domain error for a recognised constraint
	// violation, or nil to let err propagate unchanged.
	ResolveInsertError(err error) error
}

// Engine implements GetRows, SaveRow, DeleteRow and ExecuteRawSQLQuery.
type Engine struct {
	hooks     Hooks
	formatter builder.Formatter
}

// New returns an Engine rendering statements with f and running them through hooks.
func New(hooks Hooks, f builder.Formatter) *Engine {
	return &Engine{hooks: hooks, formatter: f}
}

// GetRows returns one page of table rows together with the total match count.
// The page and count queries run concurrently.
func (e *Engine) GetRows(ctx context.Context, table types.Table, opts types.BrowseOptions, rowsOpts types.GetRowsOptions) (types.RowsResult, error) {
	wildcard := rowsOpts.WildcardColumns(table)

	selectQ, err := builder.SelectRows(e.formatter, table.Name, table.ColumnNames(), wildcard, opts)
	if err != nil {
		return types.RowsResult{}, err
	}
	countQ, err := builder.CountRows(e.formatter, table.Name, wildcard, opts)
	if err != nil {
		return types.RowsResult{}, err
	}

	var (
		page  *Result
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := e.hooks.ExecuteRaw(gctx, selectQ)
		if err != nil {
			return err
		}
		page = res
		return nil
	})
	g.Go(func() error {
		res, err := e.hooks.ExecuteRaw(gctx, countQ)
		if err != nil {
			return err
		}
		if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
			return fmt.Errorf("count of %s returned no rows", table.Name)
		}
		total, err = toInt64(res.Rows[0][0])
		return err
	})
	if err := g.Wait(); err != nil {
		return types.RowsResult{}, err
	}

	return types.RowsResult{
		Rows:         page.Maps(),
		TotalPages:   totalPages(total, opts.PerPage),
		TotalResults: total,
	}, nil
}

func totalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// SaveRow updates the row addressed by rowID, or inserts row when rowID is nil,
// and returns the row as stored. Keys of row that are not columns of table
// are ignored.
func (e *Engine) SaveRow(ctx context.Context, table types.Table, rowID any, row types.Row) (types.Row, error) {
	restricted := make(types.Row, len(row))
	var (
		columns []string
		values  []any
	)
	for _, col := range table.Columns {
		if v, ok := row[col.Name]; ok {
			restricted[col.Name] = v
			columns = append(columns, col.Name)
			values = append(values, v)
		}
	}

	if rowID != nil {
		return e.updateRow(ctx, table, rowID, restricted, columns, values)
	}
	return e.insertRow(ctx, table, restricted, columns, values)
}

func (e *Engine) updateRow(ctx context.Context, table types.Table, rowID any, restricted types.Row, columns []string, values []any) (types.Row, error) {
	if !table.HasPrimaryKey() {
		return nil, fmt.Errorf("update of %s: %w", table.Name, types.ErrNoPrimaryKey)
	}

	if len(columns) > 0 {
		q, err := builder.UpdateRow(e.formatter, table.Name, table.PrimaryKey, rowID, columns, values)
		if err != nil {
			return nil, err
		}
		if _, err := e.hooks.ExecuteRaw(ctx, q); err != nil {
			return nil, e.resolve(err)
		}
	}

	key := rowID
	if v, ok := restricted[table.PrimaryKey]; ok && v != nil {
		key = v
	}
	return e.fetchRow(ctx, table, key)
}

func (e *Engine) insertRow(ctx context.Context, table types.Table, restricted types.Row, columns []string, values []any) (types.Row, error) {
	q, err := builder.InsertRow(e.formatter, table.Name, columns, values, table.PrimaryKey)
	if err != nil {
		return nil, err
	}
	res, err := e.hooks.ExecuteRaw(ctx, q)
	if err != nil {
		return nil, e.resolve(err)
	}

	if !table.HasPrimaryKey() {
		return e.fetchInserted(ctx, table, restricted, columns)
	}

	key, ok := restricted[table.PrimaryKey]
	if !ok || key == nil {
		if key, err = e.hooks.LastInsertedID(res, table); err != nil {
			return nil, err
		}
	}
	return e.fetchRow(ctx, table, key)
}

// fetchRow reads a single row back by primary key.
func (e *Engine) fetchRow(ctx context.Context, table types.Table, key any) (types.Row, error) {
	opts := types.BrowseOptions{
		PerPage:          1,
		CurrentPage:      1,
		OrderByDirection: types.OrderAsc,
		Filters: []types.BrowseFilter{{
			Type:       types.FilterEquals,
			ColumnName: table.PrimaryKey,
			Value:      key,
		}},
	}
	res, err := e.GetRows(ctx, table, opts, types.DefaultGetRowsOptions())
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%s with %s = %v: %w", table.Name, table.PrimaryKey, key, types.ErrRowNotFound)
	}
	return res.Rows[0], nil
}

// fetchInserted reads back a row of a table without a primary key by matching
// every inserted column. When nothing was inserted, or the database stored a
// value that no longer compares equal, the inserted values are returned as is.
func (e *Engine) fetchInserted(ctx context.Context, table types.Table, restricted types.Row, columns []string) (types.Row, error) {
	if len(columns) == 0 {
		return restricted, nil
	}

	opts := types.BrowseOptions{PerPage: 1, CurrentPage: 1, OrderByDirection: types.OrderAsc}
	for _, col := range columns {
		v := restricted[col]
		if v == nil {
			opts.Filters = append(opts.Filters, types.BrowseFilter{Type: types.FilterNull, ColumnName: col})
			continue
		}
		opts.Filters = append(opts.Filters, types.BrowseFilter{Type: types.FilterEquals, ColumnName: col, Value: v})
	}

	res, err := e.GetRows(ctx, table, opts, types.DefaultGetRowsOptions())
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return restricted, nil
	}
	return res.Rows[0], nil
}

// DeleteRow deletes the row addressed by rowID. Tables without a primary key
// are left untouched.
func (e *Engine) DeleteRow(ctx context.Context, table types.Table, rowID any) error {
	if !table.HasPrimaryKey() {
		return nil
	}

	q, err := builder.DeleteRow(e.formatter, table.Name, table.PrimaryKey, rowID)
	if err != nil {
		return err
	}
	if _, err := e.hooks.ExecuteRaw(ctx, q); err != nil {
		return e.resolve(err)
	}
	return nil
}

// ExecuteRawSQLQuery runs an arbitrary statement without parameters.
// Failures are reported in the result, never returned.
func (e *Engine) ExecuteRawSQLQuery(ctx context.Context, sql string) types.RawQueryResult {
	res, err := e.hooks.ExecuteRaw(ctx, types.QueryObject{SQL: sql})
	if err != nil {
		return types.RawQueryFailure(err)
	}

	columns := res.FieldNames
	if columns == nil {
		columns = []string{}
	}
	rows := res.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return types.RawQueryResult{
		AffectedRowsAmount: e.hooks.AffectedRows(res),
		ReturnedRowsAmount: len(rows),
		ColumnNames:        columns,
		Rows:               rows,
	}
}

func (e *Engine) resolve(err error) error {
	if translated := e.hooks.ResolveInsertError(err); translated != nil {
		return translated
	}
	return err
}
