package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gaborage/go-rowkit/database/types"
)

var catalog = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var typeMap = map[string]types.ColumnType{
	"tinyint":    types.ColumnTypeInteger,
	"smallint":   types.ColumnTypeInteger,
	"mediumint":  types.ColumnTypeInteger,
	"int":        types.ColumnTypeInteger,
	"integer":    types.ColumnTypeInteger,
	"bigint":     types.ColumnTypeInteger,
	"year":       types.ColumnTypeInteger,
	"char":       types.ColumnTypeString,
	"varchar":    types.ColumnTypeString,
	"decimal":    types.ColumnTypeString,
	"numeric":    types.ColumnTypeString,
	"float":      types.ColumnTypeString,
	"double":     types.ColumnTypeString,
	"enum":       types.ColumnTypeString,
	"set":        types.ColumnTypeString,
	"time":       types.ColumnTypeString,
	"tinytext":   types.ColumnTypeText,
	"text":       types.ColumnTypeText,
	"mediumtext": types.ColumnTypeText,
	"longtext":   types.ColumnTypeText,
	"json":       types.ColumnTypeText,
	"date":       types.ColumnTypeDate,
	"datetime":   types.ColumnTypeDatetime,
	"timestamp":  types.ColumnTypeDatetime,
	"boolean":    types.ColumnTypeBoolean,
	"bool":       types.ColumnTypeBoolean,
}

// mapColumnType resolves the canonical type of a column from its DATA_TYPE
// and full COLUMN_TYPE. tinyint(1) and bit(1) are booleans.
func mapColumnType(table, column, dataType, columnType string) (types.ColumnType, error) {
	dt := strings.ToLower(dataType)
	ct := strings.ToLower(columnType)
	if strings.HasPrefix(ct, "tinyint(1)") || ct == "bit(1)" {
		return types.ColumnTypeBoolean, nil
	}
	if t, ok := typeMap[dt]; ok {
		return t, nil
	}
	return "", &types.UnknownColumnTypeError{
		Dialect:      types.DialectMySQL,
		Table:        table,
		Column:       column,
		PhysicalType: dataType,
	}
}

type foreignKey struct {
	table  string
	column string
}

// GetSchema introspects the tables of the connected database.
func (d *Driver) GetSchema(ctx context.Context) (types.Schema, error) {
	names, err := d.tableNames(ctx)
	if err != nil {
		return types.Schema{}, err
	}
	fks, err := d.foreignKeys(ctx)
	if err != nil {
		return types.Schema{}, err
	}
	columns, err := d.columns(ctx, fks)
	if err != nil {
		return types.Schema{}, err
	}
	pks, err := d.primaryKeys(ctx)
	if err != nil {
		return types.Schema{}, err
	}

	schema := types.Schema{Tables: make([]types.Table, 0, len(names))}
	for _, name := range names {
		cols := columns[name]
		if cols == nil {
			cols = []types.Column{}
		}
		schema.Tables = append(schema.Tables, types.Table{
			Name:       name,
			PrimaryKey: pks[name],
			Columns:    cols,
		})
	}
	return schema, nil
}

func (d *Driver) query(ctx context.Context, b sq.SelectBuilder, scan func(*sql.Rows) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build catalog query: %w", err)
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		d.watcher.Report(err)
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (d *Driver) tableNames(ctx context.Context) ([]string, error) {
	b := catalog.Select("TABLE_NAME").
		From("information_schema.tables").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.Eq{"TABLE_TYPE": "BASE TABLE"}).
		OrderBy("TABLE_NAME")

	var names []string
	err := d.query(ctx, b, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
		return nil
	})
	return names, err
}

func (d *Driver) columns(ctx context.Context, fks map[string]map[string]foreignKey) (map[string][]types.Column, error) {
	b := catalog.Select(
		"TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE",
		"IS_NULLABLE", "EXTRA", "CHARACTER_MAXIMUM_LENGTH", "COLUMN_COMMENT",
	).
		From("information_schema.columns").
		Where("TABLE_SCHEMA = DATABASE()").
		OrderBy("TABLE_NAME", "ORDINAL_POSITION")

	out := make(map[string][]types.Column)
	err := d.query(ctx, b, func(rows *sql.Rows) error {
		var (
			table, name, dataType, columnType, nullable, extra string
			maxLength                                          sql.NullInt64
			comment                                            sql.NullString
		)
		if err := rows.Scan(&table, &name, &dataType, &columnType, &nullable, &extra, &maxLength, &comment); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		colType, err := mapColumnType(table, name, dataType, columnType)
		if err != nil {
			return err
		}
		col := types.Column{
			Name:           name,
			Type:           colType,
			Nullable:       strings.EqualFold(nullable, "YES"),
			AutoIncrements: strings.Contains(strings.ToLower(extra), "auto_increment"),
			Comment:        comment.String,
		}
		if colType == types.ColumnTypeString && maxLength.Valid {
			n := int(maxLength.Int64)
			col.MaxLength = &n
		}
		if ref, ok := fks[table][name]; ok {
			col.ReferencesTable = ref.table
			col.ReferencesColumn = ref.column
		}
		out[table] = append(out[table], col)
		return nil
	})
	return out, err
}

func (d *Driver) foreignKeys(ctx context.Context) (map[string]map[string]foreignKey, error) {
	b := catalog.Select("TABLE_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME").
		From("information_schema.key_column_usage").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.NotEq{"REFERENCED_TABLE_NAME": nil})

	out := make(map[string]map[string]foreignKey)
	err := d.query(ctx, b, func(rows *sql.Rows) error {
		var table, column, refTable, refColumn string
		if err := rows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if out[table] == nil {
			out[table] = make(map[string]foreignKey)
		}
		out[table][column] = foreignKey{table: refTable, column: refColumn}
		return nil
	})
	return out, err
}

// primaryKeys returns single-column primary keys; composite keys are dropped.
func (d *Driver) primaryKeys(ctx context.Context) (map[string]string, error) {
	b := catalog.Select("TABLE_NAME", "COLUMN_NAME").
		From("information_schema.statistics").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.Eq{"INDEX_NAME": "PRIMARY"}).
		OrderBy("TABLE_NAME", "SEQ_IN_INDEX")

	columns := make(map[string][]string)
	err := d.query(ctx, b, func(rows *sql.Rows) error {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return fmt.Errorf("failed to scan primary key: %w", err)
		}
		columns[table] = append(columns[table], column)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(columns))
	for table, cols := range columns {
		if len(cols) == 1 {
			out[table] = cols[0]
		}
	}
	return out, nil
}
