package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-rowkit/database/types"
)

func TestDecodeBrowseOptions(t *testing.T) {
	opts, err := DecodeBrowseOptions([]byte(`{
		"perPage": 25,
		"currentPage": 2,
		"filters": [
			{"type": "gt", "columnName": "Id", "value": 10},
			{"type": "equals", "columnName": "Score", "value": 1.5},
			{"type": "contains", "columnName": "Name", "value": "Team"},
			{"type": "null", "columnName": "CreatedAt"}
		],
		"orderByColumn": "Name",
		"orderByDirection": "desc",
		"wildcardSearch": "a"
	}`))
	require.NoError(t, err)

	assert.Equal(t, 25, opts.PerPage)
	assert.Equal(t, 2, opts.CurrentPage)
	assert.Equal(t, 25, opts.Offset())
	require.Len(t, opts.Filters, 4)
	assert.Equal(t, types.BrowseFilter{Type: types.FilterGT, ColumnName: "Id", Value: int64(10)}, opts.Filters[0])
	assert.Equal(t, 1.5, opts.Filters[1].Value)
	assert.Equal(t, "Team", opts.Filters[2].Value)
	assert.Nil(t, opts.Filters[3].Value)
	require.NotNil(t, opts.OrderByColumn)
	assert.Equal(t, "Name", *opts.OrderByColumn)
	assert.Equal(t, types.OrderDesc, opts.OrderByDirection)
	assert.Equal(t, "a", opts.WildcardSearch)
}

func TestDecodeBrowseOptionsDefaults(t *testing.T) {
	opts, err := DecodeBrowseOptions([]byte(`{"orderByColumn": null}`))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultBrowseOptions(), opts)
}

func TestDecodeBrowseOptionsTypeErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"not an object", `[1, 2]`, "browse options must be a JSON object"},
		{"string page size", `{"perPage": "10"}`, "perPage must be an integer"},
		{"fractional page", `{"currentPage": 1.5}`, "currentPage must be an integer"},
		{"filters object", `{"filters": {"type": "equals"}}`, "filters must be an array"},
		{"filter scalar", `{"filters": ["equals"]}`, "filters[0] must be an object"},
		{"filter type number", `{"filters": [{"type": 1, "columnName": "Id"}]}`, "filters[0].type must be a string"},
		{"filter column missing", `{"filters": [{"type": "null"}]}`, "filters[0].columnName must be a string"},
		{"order column number", `{"orderByColumn": 3}`, "orderByColumn must be null or a string"},
		{"direction bool", `{"orderByDirection": true}`, "orderByDirection must be a string"},
		{"wildcard number", `{"wildcardSearch": 7}`, "wildcardSearch must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBrowseOptions([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidBrowseOptions))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestDecodeBrowseOptionsMalformedJSON(t *testing.T) {
	_, err := DecodeBrowseOptions([]byte(`{"perPage":`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBrowseOptions)
}

func TestDecodeThenValidate(t *testing.T) {
	opts, err := DecodeBrowseOptions([]byte(`{"perPage": 10, "orderByDirection": "sideways"}`))
	require.NoError(t, err)

	err = ValidateForTable(opts, teams, types.DefaultGetRowsOptions())
	require.Error(t, err)
	assert.Equal(t, "orderByDirection must be one of: asc, desc", err.Error())
}
