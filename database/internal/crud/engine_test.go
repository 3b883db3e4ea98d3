package crud

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-rowkit/database/internal/builder"
	"github.com/gaborage/go-rowkit/database/types"
)

var errFKCode = errors.New("error 1452: cannot add or update a child row")

// sqlHooks mirrors what the MySQL driver does on top of a plain *sql.DB.
type sqlHooks struct {
	db *sql.DB
}

func (h sqlHooks) ExecuteRaw(ctx context.Context, q types.QueryObject) (*Result, error) {
	return Run(ctx, h.db, types.DialectMySQL, q, IntegerNormalizer("INT"))
}

func (h sqlHooks) AffectedRows(res *Result) int64 {
	if res.Queried {
		return 0
	}
	return res.RowsAffected
}

func (h sqlHooks) LastInsertedID(res *Result, table types.Table) (any, error) {
	if !res.HasLastInsertID || res.LastInsertID == 0 {
		return nil, types.ErrRowNotFound
	}
	return res.LastInsertID, nil
}

func (h sqlHooks) ResolveInsertError(err error) error {
	if errors.Is(err, errFKCode) {
		return types.ErrForeignKeyViolation
	}
	return nil
}

var teams = types.Table{
	Name:       "Teams",
	PrimaryKey: "Id",
	Columns: []types.Column{
		{Name: "Id", Type: types.ColumnTypeInteger, AutoIncrements: true},
		{Name: "Name", Type: types.ColumnTypeString},
		{Name: "Secret", Type: types.ColumnTypeString, Secret: true},
	},
}

const (
	selectByID = "SELECT `Id`, `Name`, `Secret` FROM `Teams` WHERE `Id` = ? LIMIT ? OFFSET ?"
	countByID  = "SELECT COUNT(*) AS amount FROM `Teams` WHERE `Id` = ?"
)

func newEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mock.MatchExpectationsInOrder(false)
	return New(sqlHooks{db: db}, builder.MySQL{}), mock
}

func expectFetch(mock sqlmock.Sqlmock, id int64, name string) {
	mock.ExpectQuery(selectByID).WithArgs(id, 1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Secret"}).AddRow(id, name, "x"))
	mock.ExpectQuery(countByID).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(1))
}

func TestGetRowsPagination(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectQuery("SELECT `Id`, `Name`, `Secret` FROM `Teams` LIMIT ? OFFSET ?").WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Secret"}).
			AddRow(int64(3), []byte("C"), nil).
			AddRow(int64(4), "D", nil))
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Teams`").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(int64(5)))

	res, err := engine.GetRows(context.Background(), teams,
		types.BrowseOptions{PerPage: 2, CurrentPage: 2, OrderByDirection: types.OrderAsc},
		types.DefaultGetRowsOptions())
	require.NoError(t, err)

	assert.Equal(t, int64(5), res.TotalResults)
	assert.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, types.Row{"Id": int64(3), "Name": "C", "Secret": nil}, res.Rows[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRowsZeroPerPage(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectQuery("SELECT `Id`, `Name`, `Secret` FROM `Teams` LIMIT ? OFFSET ?").WithArgs(0, 0).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Secret"}))
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Teams`").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("7"))

	res, err := engine.GetRows(context.Background(), teams,
		types.BrowseOptions{PerPage: 0, CurrentPage: 1, OrderByDirection: types.OrderAsc},
		types.DefaultGetRowsOptions())
	require.NoError(t, err)

	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
	assert.Equal(t, 0, res.TotalPages)
	assert.Equal(t, int64(7), res.TotalResults)
}

func TestGetRowsWildcardSkipsSecretColumns(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectQuery("SELECT `Id`, `Name`, `Secret` FROM `Teams` WHERE `Name` LIKE ? LIMIT ? OFFSET ?").
		WithArgs("%bo%", 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Secret"}))
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Teams` WHERE `Name` LIKE ?").
		WithArgs("%bo%").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(0))

	opts := types.BrowseOptions{PerPage: 10, CurrentPage: 1, OrderByDirection: types.OrderAsc, WildcardSearch: "bo"}
	res, err := engine.GetRows(context.Background(), teams, opts, types.DefaultGetRowsOptions())
	require.NoError(t, err)
	assert.Zero(t, res.TotalResults)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRowsWildcardWithoutSearchableColumns(t *testing.T) {
	engine, mock := newEngine(t)
	numbers := types.Table{Name: "Numbers", Columns: []types.Column{{Name: "N", Type: types.ColumnTypeInteger}}}

	mock.ExpectQuery("SELECT `N` FROM `Numbers` WHERE 1 = 0 LIMIT ? OFFSET ?").
		WillReturnRows(sqlmock.NewRows([]string{"N"}))
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Numbers` WHERE 1 = 0").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(0))

	opts := types.BrowseOptions{PerPage: 10, CurrentPage: 1, OrderByDirection: types.OrderAsc, WildcardSearch: "x"}
	res, err := engine.GetRows(context.Background(), numbers, opts, types.DefaultGetRowsOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.TotalResults)
}

func TestGetRowsQueryFailure(t *testing.T) {
	engine, mock := newEngine(t)
	boom := errors.New("boom")
	mock.ExpectQuery("SELECT `Id`, `Name`, `Secret` FROM `Teams` LIMIT ? OFFSET ?").WillReturnError(boom)
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Teams`").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(0))

	_, err := engine.GetRows(context.Background(), teams, types.DefaultBrowseOptions(), types.DefaultGetRowsOptions())
	assert.ErrorIs(t, err, boom)
}

func TestSaveRowInsertRefetches(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("INSERT INTO `Teams` (`Name`) VALUES (?)").WithArgs("Team A").
		WillReturnResult(sqlmock.NewResult(42, 1))
	expectFetch(mock, 42, "Team A (stored)")

	row, err := engine.SaveRow(context.Background(), teams, nil, types.Row{"Name": "Team A", "Unknown": 1})
	require.NoError(t, err)
	assert.Equal(t, types.Row{"Id": int64(42), "Name": "Team A (stored)", "Secret": "x"}, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRowInsertDefaults(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("INSERT INTO `Teams` () VALUES ()").WillReturnResult(sqlmock.NewResult(7, 1))
	expectFetch(mock, 7, "")

	row, err := engine.SaveRow(context.Background(), teams, nil, types.Row{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), row["Id"])
}

func TestSaveRowInsertWithoutPrimaryKey(t *testing.T) {
	engine, mock := newEngine(t)
	logTable := types.Table{Name: "Log", Columns: []types.Column{
		{Name: "Line", Type: types.ColumnTypeText},
		{Name: "Level", Type: types.ColumnTypeString, Nullable: true},
		{Name: "At", Type: types.ColumnTypeDatetime},
	}}
	mock.ExpectExec("INSERT INTO `Log` (`Line`, `Level`) VALUES (?, ?)").WithArgs("hello", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT `Line`, `Level`, `At` FROM `Log` WHERE `Line` = ? AND `Level` IS NULL LIMIT ? OFFSET ?").
		WithArgs("hello", 1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"Line", "Level", "At"}).AddRow("hello", nil, "2024-03-01 12:30:00"))
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Log` WHERE `Line` = ? AND `Level` IS NULL").WithArgs("hello").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(1))

	row, err := engine.SaveRow(context.Background(), logTable, nil, types.Row{"Line": "hello", "Level": nil})
	require.NoError(t, err)
	assert.Equal(t, types.Row{"Line": "hello", "Level": nil, "At": "2024-03-01 12:30:00"}, row, "the stored row, defaults included")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRowInsertWithoutPrimaryKeyUnmatched(t *testing.T) {
	engine, mock := newEngine(t)
	logTable := types.Table{Name: "Log", Columns: []types.Column{{Name: "Line", Type: types.ColumnTypeText}}}
	mock.ExpectExec("INSERT INTO `Log` (`Line`) VALUES (?)").WithArgs("hello").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT `Line` FROM `Log` WHERE `Line` = ? LIMIT ? OFFSET ?").WithArgs("hello", 1, 0).
		WillReturnRows(sqlmock.NewRows([]string{"Line"}))
	mock.ExpectQuery("SELECT COUNT(*) AS amount FROM `Log` WHERE `Line` = ?").WithArgs("hello").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(0))

	row, err := engine.SaveRow(context.Background(), logTable, nil, types.Row{"Line": "hello"})
	require.NoError(t, err)
	assert.Equal(t, types.Row{"Line": "hello"}, row)
}

func TestSaveRowTranslatesConstraintErrors(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("INSERT INTO `Teams` (`Name`) VALUES (?)").WillReturnError(errFKCode)

	_, err := engine.SaveRow(context.Background(), teams, nil, types.Row{"Name": "x"})
	require.ErrorIs(t, err, types.ErrForeignKeyViolation)
	assert.Equal(t, "Foreign key constraint failed", err.Error())
}

func TestSaveRowUntranslatedErrorPropagates(t *testing.T) {
	engine, mock := newEngine(t)
	boom := errors.New("duplicate entry")
	mock.ExpectExec("INSERT INTO `Teams` (`Name`) VALUES (?)").WillReturnError(boom)

	_, err := engine.SaveRow(context.Background(), teams, nil, types.Row{"Name": "x"})
	assert.ErrorIs(t, err, boom)
}

func TestSaveRowUpdate(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("UPDATE `Teams` SET `Name` = ? WHERE `Id` = ?").WithArgs("Renamed", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectFetch(mock, 5, "Renamed")

	row, err := engine.SaveRow(context.Background(), teams, int64(5), types.Row{"Name": "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", row["Name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRowUpdateChangingPrimaryKey(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("UPDATE `Teams` SET `Id` = ? WHERE `Id` = ?").WithArgs(9, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectFetch(mock, 9, "Moved")

	row, err := engine.SaveRow(context.Background(), teams, int64(5), types.Row{"Id": int64(9)})
	require.NoError(t, err)
	assert.Equal(t, int64(9), row["Id"])
}

func TestSaveRowUpdateWithoutColumnsOnlyRefetches(t *testing.T) {
	engine, mock := newEngine(t)
	expectFetch(mock, 5, "Same")

	row, err := engine.SaveRow(context.Background(), teams, int64(5), types.Row{"Bogus": true})
	require.NoError(t, err)
	assert.Equal(t, "Same", row["Name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRowUpdateNeedsPrimaryKey(t *testing.T) {
	engine, _ := newEngine(t)
	noKey := types.Table{Name: "Log", Columns: []types.Column{{Name: "Line", Type: types.ColumnTypeText}}}

	_, err := engine.SaveRow(context.Background(), noKey, 1, types.Row{"Line": "x"})
	assert.ErrorIs(t, err, types.ErrNoPrimaryKey)
}

func TestSaveRowMissingAfterWrite(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("UPDATE `Teams` SET `Name` = ? WHERE `Id` = ?").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectByID).WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "Secret"}))
	mock.ExpectQuery(countByID).WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(0))

	_, err := engine.SaveRow(context.Background(), teams, int64(404), types.Row{"Name": "ghost"})
	assert.ErrorIs(t, err, types.ErrRowNotFound)
}

func TestDeleteRow(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("DELETE FROM `Teams` WHERE `Id` = ?").WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, engine.DeleteRow(context.Background(), teams, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRowWithoutPrimaryKeyIsNoop(t *testing.T) {
	engine, mock := newEngine(t)
	noKey := types.Table{Name: "Log", Columns: []types.Column{{Name: "Line", Type: types.ColumnTypeText}}}

	require.NoError(t, engine.DeleteRow(context.Background(), noKey, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRowTranslatesErrors(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("DELETE FROM `Teams` WHERE `Id` = ?").WillReturnError(errFKCode)

	err := engine.DeleteRow(context.Background(), teams, 3)
	assert.ErrorIs(t, err, types.ErrForeignKeyViolation)
}

func TestExecuteRawSQLQuerySelect(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectQuery("SELECT Name, Size FROM Teams").
		WillReturnRows(sqlmock.NewRows([]string{"Name", "Size"}).AddRow("A", int64(3)).AddRow("B", nil))

	res := engine.ExecuteRawSQLQuery(context.Background(), "SELECT Name, Size FROM Teams")
	require.False(t, res.Failed())
	assert.Equal(t, []string{"Name", "Size"}, res.ColumnNames)
	assert.Equal(t, [][]any{{"A", int64(3)}, {"B", nil}}, res.Rows)
	assert.Equal(t, 2, res.ReturnedRowsAmount)
	assert.Zero(t, res.AffectedRowsAmount)
}

func TestExecuteRawSQLQueryWrite(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec("UPDATE Teams SET Size = 0").WillReturnResult(sqlmock.NewResult(0, 4))

	res := engine.ExecuteRawSQLQuery(context.Background(), "UPDATE Teams SET Size = 0")
	require.False(t, res.Failed())
	assert.Equal(t, int64(4), res.AffectedRowsAmount)
	assert.Equal(t, []string{}, res.ColumnNames)
	assert.Equal(t, [][]any{}, res.Rows)
}

func TestExecuteRawSQLQueryNeverFails(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectQuery("SELECT * FROM Missing").WillReturnError(errors.New("Table 'app.Missing' doesn't exist"))

	res := engine.ExecuteRawSQLQuery(context.Background(), "SELECT * FROM Missing")
	assert.True(t, res.Failed())
	assert.Equal(t, "Table 'app.Missing' doesn't exist", res.ErrorMessage)
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "abc", DefaultNormalizer("VARCHAR", []byte("abc")))
	assert.Equal(t, int64(1), DefaultNormalizer("INT", int64(1)))

	n := IntegerNormalizer("INT", "BIGINT")
	assert.Equal(t, int64(12), n("INT", []byte("12")))
	assert.Equal(t, "12", n("VARCHAR", []byte("12")))
	assert.Equal(t, "x", n("BIGINT", []byte("x")))
	assert.Nil(t, n("INT", nil))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(10, 0))
	assert.Equal(t, 0, totalPages(0, 5))
	assert.Equal(t, 1, totalPages(5, 5))
	assert.Equal(t, 2, totalPages(6, 5))
}
