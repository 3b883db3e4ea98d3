//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "slices"

// FilterType is the comparison applied by a BrowseFilter.
type FilterType string

const (
	FilterEquals      FilterType = "equals"
	FilterNotEquals   FilterType = "notEquals"
	FilterContains    FilterType = "contains"
	FilterNotContains FilterType = "notContains"
	FilterNull        FilterType = "null"
	FilterNotNull     FilterType = "notNull"
	FilterGT          FilterType = "gt"
	FilterGTE         FilterType = "gte"
	FilterLT          FilterType = "lt"
	FilterLTE         FilterType = "lte"
)

// AllFilterTypes lists every filter kind understood by the query builder.
var AllFilterTypes = []FilterType{
	FilterEquals, FilterNotEquals,
	FilterContains, FilterNotContains,
	FilterNull, FilterNotNull,
	FilterGT, FilterGTE, FilterLT, FilterLTE,
}

// OrderDirection is the sort direction of a browse request.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// BrowseFilter restricts a browse request to rows where ColumnName matches Value under Type.
// Value is ignored for the null and notNull filters.
type BrowseFilter struct {
	Type       FilterType `json:"type" validate:"required"`
	ColumnName string     `json:"columnName" validate:"required"`
	Value      any        `json:"value,omitempty"`
}

// BrowseOptions controls filtering, ordering and pagination of GetRows.
// PerPage 0 returns no rows but still reports the total match count.
type BrowseOptions struct {
	PerPage          int            `json:"perPage" validate:"gte=0"`
	CurrentPage      int            `json:"currentPage" validate:"gte=1"`
	Filters          []BrowseFilter `json:"filters" validate:"dive"`
	OrderByColumn    *string        `json:"orderByColumn"`
	OrderByDirection OrderDirection `json:"orderByDirection" validate:"oneof=asc desc"`
	WildcardSearch   string         `json:"wildcardSearch"`
}

// DefaultBrowseOptions returns the first page of 50 rows, ascending, unfiltered.
func DefaultBrowseOptions() BrowseOptions {
	return BrowseOptions{
		PerPage:          50,
		CurrentPage:      1,
		OrderByDirection: OrderAsc,
	}
}

// Offset returns the number of rows skipped before the current page.
func (o BrowseOptions) Offset() int {
	return (o.CurrentPage - 1) * o.PerPage
}

// GetRowsOptions carries the per-table filter allow-list: which column types each
// filter kind may be applied to. The contains entry also decides which columns
// take part in wildcard search.
type GetRowsOptions struct {
	FilterTypes map[FilterType][]ColumnType
}

// DefaultGetRowsOptions wraps DefaultFilterTypes.
func DefaultGetRowsOptions() GetRowsOptions {
	return GetRowsOptions{FilterTypes: DefaultFilterTypes()}
}

// DefaultFilterTypes returns the filter kinds supported for each canonical column type.
func DefaultFilterTypes() map[FilterType][]ColumnType {
	ordered := []ColumnType{ColumnTypeInteger, ColumnTypeDate, ColumnTypeDatetime}
	textual := []ColumnType{ColumnTypeString, ColumnTypeText}

	return map[FilterType][]ColumnType{
		FilterEquals:      slices.Clone(AllColumnTypes),
		FilterNotEquals:   slices.Clone(AllColumnTypes),
		FilterNull:        slices.Clone(AllColumnTypes),
		FilterNotNull:     slices.Clone(AllColumnTypes),
		FilterContains:    slices.Clone(textual),
		FilterNotContains: slices.Clone(textual),
		FilterGT:          slices.Clone(ordered),
		FilterGTE:         slices.Clone(ordered),
		FilterLT:          slices.Clone(ordered),
		FilterLTE:         slices.Clone(ordered),
	}
}

// Supports reports whether filter kind ft may be applied to a column of type ct.
// A nil FilterTypes map falls back to DefaultFilterTypes.
func (o GetRowsOptions) Supports(ft FilterType, ct ColumnType) bool {
	filterTypes := o.FilterTypes
	if filterTypes == nil {
		filterTypes = DefaultFilterTypes()
	}
	return slices.Contains(filterTypes[ft], ct)
}

// AllowedFilterTypes returns the filter kinds enabled for at least one column type.
func (o GetRowsOptions) AllowedFilterTypes() []FilterType {
	filterTypes := o.FilterTypes
	if filterTypes == nil {
		filterTypes = DefaultFilterTypes()
	}
	allowed := make([]FilterType, 0, len(filterTypes))
	for _, ft := range AllFilterTypes {
		if len(filterTypes[ft]) > 0 {
			allowed = append(allowed, ft)
		}
	}
	return allowed
}

// WildcardColumns returns the non-secret columns whose type supports the contains filter.
func (o GetRowsOptions) WildcardColumns(table Table) []string {
	var cols []string
	for _, c := range table.Columns {
		if c.Secret {
			continue
		}
		if o.Supports(FilterContains, c.Type) {
			cols = append(cols, c.Name)
		}
	}
	return cols
}
