package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gaborage/go-rowkit/database/types"
)

// DecodeBrowseOptions parses a JSON browse request, checking the JSON type of
// every known field. Missing fields keep the values of types.DefaultBrowseOptions.
// Value constraints and allow-lists are left to Validate.
func DecodeBrowseOptions(data []byte) (types.BrowseOptions, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return types.BrowseOptions{}, fmt.Errorf("%w: %v", ErrInvalidBrowseOptions, err)
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return types.BrowseOptions{}, invalid("", "browse options must be a JSON object")
	}

	opts := types.DefaultBrowseOptions()
	var err error

	if v, ok := fields["perPage"]; ok {
		if opts.PerPage, err = integer("perPage", v); err != nil {
			return types.BrowseOptions{}, err
		}
	}
	if v, ok := fields["currentPage"]; ok {
		if opts.CurrentPage, err = integer("currentPage", v); err != nil {
			return types.BrowseOptions{}, err
		}
	}
	if v, ok := fields["filters"]; ok {
		if opts.Filters, err = filters(v); err != nil {
			return types.BrowseOptions{}, err
		}
	}
	if v, ok := fields["orderByColumn"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return types.BrowseOptions{}, invalid("orderByColumn", "orderByColumn must be null or a string")
		}
		opts.OrderByColumn = &s
	}
	if v, ok := fields["orderByDirection"]; ok {
		s, isString := v.(string)
		if !isString {
			return types.BrowseOptions{}, invalid("orderByDirection", "orderByDirection must be a string")
		}
		opts.OrderByDirection = types.OrderDirection(s)
	}
	if v, ok := fields["wildcardSearch"]; ok {
		s, isString := v.(string)
		if !isString {
			return types.BrowseOptions{}, invalid("wildcardSearch", "wildcardSearch must be a string")
		}
		opts.WildcardSearch = s
	}
	return opts, nil
}

func integer(field string, v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, invalid(field, "%s must be an integer", field)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, invalid(field, "%s must be an integer", field)
	}
	return int(i), nil
}

func filters(v any) ([]types.BrowseFilter, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, invalid("filters", "filters must be an array")
	}

	out := make([]types.BrowseFilter, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("filters[%d]", i)
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalid(path, "%s must be an object", path)
		}
		ft, ok := obj["type"].(string)
		if !ok {
			return nil, invalid(path+".type", "%s.type must be a string", path)
		}
		column, ok := obj["columnName"].(string)
		if !ok {
			return nil, invalid(path+".columnName", "%s.columnName must be a string", path)
		}
		out = append(out, types.BrowseFilter{
			Type:       types.FilterType(ft),
			ColumnName: column,
			Value:      scalar(obj["value"]),
		})
	}
	return out, nil
}

// scalar turns JSON numbers into int64 when integral and float64 otherwise.
func scalar(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
