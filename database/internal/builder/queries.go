package builder

import (
	"fmt"

	"github.com/gaborage/go-rowkit/database/types"
)

var filterOperators = map[types.FilterType]string{
	types.FilterEquals:      " = ",
	types.FilterNotEquals:   " != ",
	types.FilterContains:    " LIKE ",
	types.FilterNotContains: " NOT LIKE ",
	types.FilterNull:        " IS NULL",
	types.FilterNotNull:     " IS NOT NULL",
	types.FilterGT:          " > ",
	types.FilterGTE:         " >= ",
	types.FilterLT:          " < ",
	types.FilterLTE:         " <= ",
}

// SelectRows builds the paginated row query of a browse request.
func SelectRows(f Formatter, table string, columns, wildcardColumns []string, opts types.BrowseOptions) (types.QueryObject, error) {
	segs := []Segment{SQL("SELECT "), Ident(columns...), SQL(" FROM "), Ident(table)}

	where, err := whereClause(opts.Filters, wildcardColumns, opts.WildcardSearch)
	if err != nil {
		return types.QueryObject{}, err
	}
	segs = append(segs, where...)

	if opts.OrderByColumn != nil && *opts.OrderByColumn != "" {
		direction := " ASC"
		if opts.OrderByDirection == types.OrderDesc {
			direction = " DESC"
		}
		segs = append(segs, SQL(" ORDER BY "), Ident(*opts.OrderByColumn), SQL(direction))
	}

	segs = append(segs, SQL(" LIMIT "), P(opts.PerPage), SQL(" OFFSET "), P(opts.Offset()))

	return f.Format(types.QueryObject{}, segs)
}

// CountRows builds the total-count query matching the same WHERE clause as SelectRows.
func CountRows(f Formatter, table string, wildcardColumns []string, opts types.BrowseOptions) (types.QueryObject, error) {
	segs := []Segment{SQL("SELECT COUNT(*) AS amount FROM "), Ident(table)}

	where, err := whereClause(opts.Filters, wildcardColumns, opts.WildcardSearch)
	if err != nil {
		return types.QueryObject{}, err
	}
	segs = append(segs, where...)

	return f.Format(types.QueryObject{}, segs)
}

// UpdateRow builds an UPDATE of a single row addressed by its primary key.
// columns and values must have the same length and at least one entry.
func UpdateRow(f Formatter, table, primaryKey string, primaryKeyValue any, columns []string, values []any) (types.QueryObject, error) {
	if len(columns) == 0 {
		return types.QueryObject{}, fmt.Errorf("update of %s: %w", table, types.ErrEmptyRow)
	}
	if len(columns) != len(values) {
		return types.QueryObject{}, fmt.Errorf("update of %s needs matching columns and values, got %d and %d", table, len(columns), len(values))
	}

	segs := []Segment{SQL("UPDATE "), Ident(table), SQL(" SET ")}
	for i, col := range columns {
		if i > 0 {
			segs = append(segs, SQL(", "))
		}
		segs = append(segs, Ident(col), SQL(" = "), P(values[i]))
	}
	segs = append(segs, SQL(" WHERE "), Ident(primaryKey), SQL(" = "), P(primaryKeyValue))

	return f.Format(types.QueryObject{}, segs)
}

// InsertRow builds an INSERT of one row. With no columns the row is made of defaults.
// A non-empty primaryKey appends RETURNING for dialects that support it.
func InsertRow(f Formatter, table string, columns []string, values []any, primaryKey string) (types.QueryObject, error) {
	if len(columns) != len(values) {
		return types.QueryObject{}, fmt.Errorf("insert into %s needs matching columns and values, got %d and %d", table, len(columns), len(values))
	}

	segs := []Segment{SQL("INSERT INTO "), Ident(table)}
	if len(columns) == 0 {
		segs = append(segs, SQL(" "), DefaultValues{})
	} else {
		segs = append(segs, SQL(" ("), Ident(columns...), SQL(") VALUES ("))
		segs = append(segs, paramList(values)...)
		segs = append(segs, SQL(")"))
	}

	q, err := f.Format(types.QueryObject{}, segs)
	if err != nil || primaryKey == "" {
		return q, err
	}

	return f.Format(q, []Segment{SQL(" RETURNING "), Ident(primaryKey)}, Trailing())
}

// DeleteRow builds a DELETE of a single row addressed by its primary key.
func DeleteRow(f Formatter, table, primaryKey string, primaryKeyValue any) (types.QueryObject, error) {
	return f.Format(types.QueryObject{}, []Segment{
		SQL("DELETE FROM "), Ident(table),
		SQL(" WHERE "), Ident(primaryKey), SQL(" = "), P(primaryKeyValue),
	})
}

// whereClause ANDs the filters and, when a search term is given, an OR-group of
// LIKE predicates over the wildcard columns. Without wildcard columns the group
// becomes an always-false predicate.
func whereClause(filters []types.BrowseFilter, wildcardColumns []string, search string) ([]Segment, error) {
	var conditions [][]Segment
	for _, filter := range filters {
		cond, err := filterCondition(filter)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}

	if search != "" {
		conditions = append(conditions, wildcardCondition(wildcardColumns, search, len(filters) > 0))
	}

	if len(conditions) == 0 {
		return nil, nil
	}

	segs := []Segment{SQL(" WHERE ")}
	for i, cond := range conditions {
		if i > 0 {
			segs = append(segs, SQL(" AND "))
		}
		segs = append(segs, cond...)
	}
	return segs, nil
}

func filterCondition(filter types.BrowseFilter) ([]Segment, error) {
	op, ok := filterOperators[filter.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported filter type %q", filter.Type)
	}

	switch filter.Type {
	case types.FilterNull, types.FilterNotNull:
		return []Segment{Ident(filter.ColumnName), SQL(op)}, nil
	case types.FilterContains, types.FilterNotContains:
		return []Segment{AsText(filter.ColumnName), SQL(op), P(likePattern(filter.Value))}, nil
	default:
		return []Segment{Ident(filter.ColumnName), SQL(op), P(filter.Value)}, nil
	}
}

func wildcardCondition(columns []string, search string, grouped bool) []Segment {
	if len(columns) == 0 {
		return []Segment{SQL("1 = 0")}
	}

	pattern := likePattern(search)
	var segs []Segment
	if grouped {
		segs = append(segs, SQL("("))
	}
	for i, col := range columns {
		if i > 0 {
			segs = append(segs, SQL(" OR "))
		}
		segs = append(segs, AsText(col), SQL(" LIKE "), P(pattern))
	}
	if grouped {
		segs = append(segs, SQL(")"))
	}
	return segs
}

func likePattern(value any) string {
	if s, ok := value.(string); ok {
		return "%" + s + "%"
	}
	return fmt.Sprintf("%%%v%%", value)
}
