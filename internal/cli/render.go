package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gaborage/go-rowkit/database/types"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	row := make(table.Row, len(header))
	for i, h := range header {
		row[i] = h
	}
	t.AppendHeader(row)
	return t
}

func renderSchema(w io.Writer, schema types.Schema) {
	if len(schema.Tables) == 0 {
		fmt.Fprintln(w, "(no tables)")
		return
	}

	t := newTable(w, "Table", "Column", "Type", "Nullable", "Key", "References", "Comment")
	for _, tbl := range schema.Tables {
		for _, col := range tbl.Columns {
			var key []string
			if col.Name == tbl.PrimaryKey {
				key = append(key, "PK")
			}
			if col.AutoIncrements {
				key = append(key, "auto")
			}
			typ := string(col.Type)
			if col.MaxLength != nil {
				typ = fmt.Sprintf("%s(%d)", col.Type, *col.MaxLength)
			}
			var ref string
			if col.ReferencesTable != "" {
				ref = col.ReferencesTable + "." + col.ReferencesColumn
			}
			t.AppendRow(table.Row{tbl.Name, col.Name, typ, yesNo(col.Nullable), strings.Join(key, ","), ref, col.Comment})
		}
		t.AppendSeparator()
	}
	t.Render()
}

func renderRows(w io.Writer, columns []string, rows []types.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := newTable(w, columns...)
	for _, r := range rows {
		row := make(table.Row, len(columns))
		for i, col := range columns {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}
	t.Render()
}

func renderRawResult(w io.Writer, res types.RawQueryResult) {
	if len(res.ColumnNames) > 0 {
		t := newTable(w, res.ColumnNames...)
		for _, values := range res.Rows {
			row := make(table.Row, len(values))
			for i, v := range values {
				row[i] = formatValue(v)
			}
			t.AppendRow(row)
		}
		t.Render()
	}
	fmt.Fprintf(w, "(%d rows returned, %d affected)\n", res.ReturnedRowsAmount, res.AffectedRowsAmount)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
