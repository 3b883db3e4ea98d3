package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gaborage/go-rowkit/database/types"
)

var catalog = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var typeMap = map[string]types.ColumnType{
	"smallint":                    types.ColumnTypeInteger,
	"integer":                     types.ColumnTypeInteger,
	"bigint":                      types.ColumnTypeInteger,
	"character varying":           types.ColumnTypeString,
	"character":                   types.ColumnTypeString,
	"numeric":                     types.ColumnTypeString,
	"real":                        types.ColumnTypeString,
	"double precision":            types.ColumnTypeString,
	"money":                       types.ColumnTypeString,
	"uuid":                        types.ColumnTypeString,
	"inet":                        types.ColumnTypeString,
	"cidr":                        types.ColumnTypeString,
	"interval":                    types.ColumnTypeString,
	"time without time zone":      types.ColumnTypeString,
	"time with time zone":         types.ColumnTypeString,
	"USER-DEFINED":                types.ColumnTypeString,
	"text":                        types.ColumnTypeText,
	"json":                        types.ColumnTypeText,
	"jsonb":                       types.ColumnTypeText,
	"xml":                         types.ColumnTypeText,
	"date":                        types.ColumnTypeDate,
	"timestamp without time zone": types.ColumnTypeDatetime,
	"timestamp with time zone":    types.ColumnTypeDatetime,
	"boolean":                     types.ColumnTypeBoolean,
}

func mapColumnType(table, column, dataType string) (types.ColumnType, error) {
	if t, ok := typeMap[dataType]; ok {
		return t, nil
	}
	return "", &types.UnknownColumnTypeError{
		Dialect:      types.DialectPostgreSQL,
		Table:        table,
		Column:       column,
		PhysicalType: dataType,
	}
}

type foreignKey struct {
	table  string
	column string
}

// GetSchema introspects the base tables of the configured schema.
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
	b := catalog.Select("table_name").
		From("information_schema.tables").
		Where(sq.Eq{"table_schema": d.schema}).
		Where(sq.Eq{"table_type": "BASE TABLE"}).
		OrderBy("table_name")

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
		"c.table_name", "c.column_name", "c.data_type", "c.is_nullable",
		"c.column_default", "c.is_identity", "c.character_maximum_length",
		"col_description((quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass, c.ordinal_position) AS column_comment",
	).
		From("information_schema.columns c").
		Where(sq.Eq{"c.table_schema": d.schema}).
		OrderBy("c.table_name", "c.ordinal_position")

	out := make(map[string][]types.Column)
	err := d.query(ctx, b, func(rows *sql.Rows) error {
		var (
			table, name, dataType, nullable string
			columnDefault, identity         sql.NullString
			maxLength                       sql.NullInt64
			comment                         sql.NullString
		)
		if err := rows.Scan(&table, &name, &dataType, &nullable, &columnDefault, &identity, &maxLength, &comment); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}

		colType, err := mapColumnType(table, name, dataType)
		if err != nil {
			return err
		}
		// serial columns default to nextval(...), identity columns report is_identity
		autoIncrements := identity.String == "YES" || strings.HasPrefix(columnDefault.String, "nextval(")
		col := types.Column{
			Name:           name,
			Type:           colType,
			Nullable:       nullable == "YES",
			AutoIncrements: autoIncrements,
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
	b := catalog.Select("kcu.table_name", "kcu.column_name", "ccu.table_name", "ccu.column_name").
		From("information_schema.table_constraints tc").
		Join("information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema").
		Join("information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema").
		Where(sq.Eq{"tc.constraint_type": "FOREIGN KEY"}).
		Where(sq.Eq{"tc.table_schema": d.schema})

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
	b := catalog.Select("c.relname", "a.attname").
		From("pg_index i").
		Join("pg_class c ON c.oid = i.indrelid").
		Join("pg_namespace n ON n.oid = c.relnamespace").
		Join("pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)").
		Where("i.indisprimary").
		Where(sq.Eq{"n.nspname": d.schema}).
		OrderBy("c.relname", "a.attnum")

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
