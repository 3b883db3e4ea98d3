// Package validation guards browse requests before they reach SQL assembly.
// Struct-level rules come from the validate tags on types.BrowseOptions and are
// enforced with go-playground/validator; caller allow-lists restrict which filter
// kinds and column names a request may use.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/gaborage/go-rowkit/database/types"
)

// ErrInvalidBrowseOptions matches every BrowseOptionsError.
var ErrInvalidBrowseOptions = errors.New("invalid browse options")

// BrowseOptionsError reports the first rule a browse request violates.
// Field is the JSON path of the offending value, e.g. "filters[1].columnName".
type BrowseOptionsError struct {
	Field   string
	Message string
}

func (e *BrowseOptionsError) Error() string {
	return e.Message
}

// Is lets errors.Is match ErrInvalidBrowseOptions.
func (e *BrowseOptionsError) Is(target error) bool {
	return target == ErrInvalidBrowseOptions
}

func invalid(field, format string, args ...any) *BrowseOptionsError {
	return &BrowseOptionsError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AllowList names the filter kinds and columns a browse request may reference.
type AllowList struct {
	FilterTypes []types.FilterType
	ColumnNames []string
}

// AllowListFor derives the allow-list of table under rowsOpts.
func AllowListFor(table types.Table, rowsOpts types.GetRowsOptions) AllowList {
	return AllowList{
		FilterTypes: rowsOpts.AllowedFilterTypes(),
		ColumnNames: table.ColumnNames(),
	}
}

// Validator checks BrowseOptions against their struct tags and an AllowList.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return &Validator{validate: v}
}

var defaultValidator = sync.OnceValue(NewValidator)

// ValidateBrowseOptions validates opts with a shared Validator.
func ValidateBrowseOptions(opts types.BrowseOptions, allow AllowList) error {
	return defaultValidator().Validate(opts, allow)
}

// ValidateForTable validates opts against table with a shared Validator.
func ValidateForTable(opts types.BrowseOptions, table types.Table, rowsOpts types.GetRowsOptions) error {
	return defaultValidator().ValidateForTable(opts, table, rowsOpts)
}

// Validate returns a *BrowseOptionsError for the first violation found, or nil.
func (v *Validator) Validate(opts types.BrowseOptions, allow AllowList) error {
	if err := v.validate.Struct(opts); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return err
	}

	for i, f := range opts.Filters {
		if !slices.Contains(allow.FilterTypes, f.Type) {
			return invalid(fmt.Sprintf("filters[%d].type", i),
				"filters[%d].type must be one of: %s", i, joinFilterTypes(allow.FilterTypes))
		}
		if !slices.Contains(allow.ColumnNames, f.ColumnName) {
			return invalid(fmt.Sprintf("filters[%d].columnName", i),
				"filters[%d].columnName must be one of: %s", i, strings.Join(allow.ColumnNames, ", "))
		}
	}

	if opts.OrderByColumn != nil && !slices.Contains(allow.ColumnNames, *opts.OrderByColumn) {
		return invalid("orderByColumn",
			"orderByColumn must be null or one of: %s", strings.Join(allow.ColumnNames, ", "))
	}
	return nil
}

// ValidateForTable applies the allow-list of table and additionally rejects
// filters whose kind does not support the filtered column's type.
func (v *Validator) ValidateForTable(opts types.BrowseOptions, table types.Table, rowsOpts types.GetRowsOptions) error {
	if err := v.Validate(opts, AllowListFor(table, rowsOpts)); err != nil {
		return err
	}
	for i, f := range opts.Filters {
		col, _ := table.Column(f.ColumnName)
		if !rowsOpts.Supports(f.Type, col.Type) {
			return invalid(fmt.Sprintf("filters[%d].type", i),
				"filters[%d].type %s is not supported for %s column %s", i, f.Type, col.Type, col.Name)
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) *BrowseOptionsError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return invalid(field, "%s is required", field)
	case "gte":
		switch fe.Param() {
		case "0":
			return invalid(field, "%s must be a non-negative integer", field)
		case "1":
			return invalid(field, "%s must be a positive integer", field)
		}
		return invalid(field, "%s must be at least %s", field, fe.Param())
	case "oneof":
		options := strings.Fields(fe.Param())
		return invalid(field, "%s must be one of: %s", field, strings.Join(options, ", "))
	default:
		return invalid(field, "%s is invalid", field)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func joinFilterTypes(fts []types.FilterType) string {
	names := make([]string, len(fts))
	for i, ft := range fts {
		names[i] = string(ft)
	}
	return strings.Join(names, ", ")
}
