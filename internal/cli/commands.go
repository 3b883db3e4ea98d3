package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/validation"
)

func newSchemaCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := s.driver.GetSchema(cmd.Context())
			if err != nil {
				return err
			}
			if s.output == outputJSON {
				return renderJSON(cmd.OutOrStdout(), schema)
			}
			renderSchema(cmd.OutOrStdout(), schema)
			return nil
		},
	}
}

type rowsFlags struct {
	page    int
	perPage int
	filters []string
	orderBy string
	desc    bool
	search  string
	options string
}

func newRowsCommand(s *session) *cobra.Command {
	f := &rowsFlags{}

	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "Page through the rows of a table",
		Example: `  rowkit rows Teams --per-page 20 --page 2
  rowkit rows Users --filter TeamId:equals:3 --order-by Name --desc
  rowkit rows Users --search ann
  rowkit rows Users --options '{"perPage": 5, "filters": [{"type": "null", "columnName": "TeamId"}]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := s.table(ctx, args[0])
			if err != nil {
				return err
			}

			opts, err := f.browseOptions(table)
			if err != nil {
				return err
			}
			rowsOpts := types.DefaultGetRowsOptions()
			if err := validation.ValidateForTable(opts, table, rowsOpts); err != nil {
				return err
			}

			res, err := s.driver.GetRows(ctx, table, opts, rowsOpts)
			if err != nil {
				return err
			}
			if s.output == outputJSON {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			renderRows(cmd.OutOrStdout(), table.ColumnNames(), res.Rows)
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d rows total)\n", opts.CurrentPage, res.TotalPages, res.TotalResults)
			return nil
		},
	}

	cmd.Flags().IntVar(&f.page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&f.perPage, "per-page", 50, "rows per page; 0 only counts")
	cmd.Flags().StringArrayVar(&f.filters, "filter", nil, "filter as column:type[:value], repeatable")
	cmd.Flags().StringVar(&f.orderBy, "order-by", "", "column to sort by")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().StringVar(&f.search, "search", "", "wildcard search over text columns")
	cmd.Flags().StringVar(&f.options, "options", "", "browse options as JSON; replaces the other browse flags")
	return cmd
}

func (f *rowsFlags) browseOptions(table types.Table) (types.BrowseOptions, error) {
	if f.options != "" {
		return validation.DecodeBrowseOptions([]byte(f.options))
	}

	opts := types.BrowseOptions{
		PerPage:          f.perPage,
		CurrentPage:      f.page,
		OrderByDirection: types.OrderAsc,
		WildcardSearch:   f.search,
	}
	if f.desc {
		opts.OrderByDirection = types.OrderDesc
	}
	if f.orderBy != "" {
		opts.OrderByColumn = &f.orderBy
	}

	for _, raw := range f.filters {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) < 2 {
			return types.BrowseOptions{}, fmt.Errorf("invalid --filter %q, expected column:type[:value]", raw)
		}
		filter := types.BrowseFilter{ColumnName: parts[0], Type: types.FilterType(parts[1])}
		if len(parts) == 3 {
			value, err := filterValue(table, filter, parts[2])
			if err != nil {
				return types.BrowseOptions{}, err
			}
			filter.Value = value
		}
		opts.Filters = append(opts.Filters, filter)
	}
	return opts, nil
}

// filterValue converts raw for comparison against the filtered column.
// contains and notContains always match text.
func filterValue(table types.Table, f types.BrowseFilter, raw string) (any, error) {
	col, ok := table.Column(f.ColumnName)
	if !ok || f.Type == types.FilterContains || f.Type == types.FilterNotContains {
		return raw, nil
	}
	return parseValue(col, raw)
}

func newSaveCommand(s *session) *cobra.Command {
	var (
		id    string
		sets  []string
		nulls []string
	)

	cmd := &cobra.Command{
		Use:   "save <table>",
		Short: "Insert a row, or update it when --id is given",
		Example: `  rowkit save Teams --set Name="Team A" --set CreatedAt=2024-03-01T12:30:00Z
  rowkit save Users --id 7 --set Name=Ann --null TeamId`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := s.table(ctx, args[0])
			if err != nil {
				return err
			}

			row := make(types.Row, len(sets)+len(nulls))
			for _, assignment := range sets {
				name, raw, ok := strings.Cut(assignment, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, expected column=value", assignment)
				}
				col, found := table.Column(name)
				if !found {
					return fmt.Errorf("table %s has no column %q", table.Name, name)
				}
				if row[name], err = parseValue(col, raw); err != nil {
					return err
				}
			}
			for _, name := range nulls {
				if _, found := table.Column(name); !found {
					return fmt.Errorf("table %s has no column %q", table.Name, name)
				}
				row[name] = nil
			}

			var rowID any
			if cmd.Flags().Changed("id") {
				if rowID, err = primaryKeyValue(table, id); err != nil {
					return err
				}
			}

			saved, err := s.driver.SaveRow(ctx, table, rowID, row)
			if err != nil {
				return err
			}
			if s.output == outputJSON {
				return renderJSON(cmd.OutOrStdout(), saved)
			}
			renderRows(cmd.OutOrStdout(), table.ColumnNames(), []types.Row{saved})
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "primary key of the row to update")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "column=value, repeatable")
	cmd.Flags().StringArrayVar(&nulls, "null", nil, "column to set to NULL, repeatable")
	return cmd
}

func newDeleteCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>",
		Short: "Delete the row with the given primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := s.table(ctx, args[0])
			if err != nil {
				return err
			}
			rowID, err := primaryKeyValue(table, args[1])
			if err != nil {
				return err
			}
			if err := s.driver.DeleteRow(ctx, table, rowID); err != nil {
				return err
			}
			if s.output == outputJSON {
				return renderJSON(cmd.OutOrStdout(), map[string]any{"table": table.Name, "deleted": rowID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s row %s = %v\n", table.Name, table.PrimaryKey, rowID)
			return nil
		},
	}
}

func newExecCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run an SQL statement as is",
		Example: `  rowkit exec "SELECT COUNT(*) FROM Users"
  rowkit exec "UPDATE Teams SET Active = false WHERE Id > 10" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.driver.ExecuteRawSQLQuery(cmd.Context(), strings.Join(args, " "))
			if s.output == outputJSON {
				if err := renderJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else if !res.Failed() {
				renderRawResult(cmd.OutOrStdout(), res)
			}
			if res.Failed() {
				return errors.New(res.ErrorMessage)
			}
			return nil
		},
	}
}

func primaryKeyValue(table types.Table, raw string) (any, error) {
	if !table.HasPrimaryKey() {
		return nil, fmt.Errorf("%s: %w", table.Name, types.ErrNoPrimaryKey)
	}
	col, _ := table.Column(table.PrimaryKey)
	return parseValue(col, raw)
}
