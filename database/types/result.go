//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import "encoding/json"

// Row maps column names to scalar values: string, int64, float64, bool, time.Time or nil.
type Row map[string]any

// QueryObject is an SQL text plus its ordered positional parameters.
// Formatters never mutate a QueryObject; extending one returns a new value.
type QueryObject struct {
	SQL    string
	Params []any
}

// RowsResult is one page of rows together with pagination totals.
type RowsResult struct {
	Rows         []Row `json:"rows"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
}

// RawQueryResult is the outcome of an ad-hoc SQL statement.
// A non-empty ErrorMessage means the statement failed and every other field is zero.
type RawQueryResult struct {
	AffectedRowsAmount int64    `json:"affectedRowsAmount"`
	ReturnedRowsAmount int      `json:"returnedRowsAmount"`
	ColumnNames        []string `json:"columnNames"`
	Rows               [][]any  `json:"rows"`
	ErrorMessage       string   `json:"errorMessage,omitempty"`
}

// RawQueryFailure builds the failed form of a RawQueryResult from err.
func RawQueryFailure(err error) RawQueryResult {
	return RawQueryResult{ErrorMessage: err.Error()}
}

// Failed reports whether the statement returned an error.
func (r RawQueryResult) Failed() bool {
	return r.ErrorMessage != ""
}

// MarshalJSON emits either {"errorMessage": ...} or the success shape, never both.
func (r RawQueryResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			ErrorMessage string `json:"errorMessage"`
		}{r.ErrorMessage})
	}

	columns := r.ColumnNames
	if columns == nil {
		columns = []string{}
	}
	rows := r.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return json.Marshal(struct {
		AffectedRowsAmount int64    `json:"affectedRowsAmount"`
		ReturnedRowsAmount int      `json:"returnedRowsAmount"`
		ColumnNames        []string `json:"columnNames"`
		Rows               [][]any  `json:"rows"`
	}{r.AffectedRowsAmount, r.ReturnedRowsAmount, columns, rows})
}
