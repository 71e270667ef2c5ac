package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
)

func newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta <file>",
		Short: "List the sheets of a workbook with their columns and row counts",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			meta, err := engine.WorkbookMeta(a[0])
			if err != nil {
				return err
			}
			return emit(cmd, meta)
		},
	}
}

func newReadCmd() *cobra.Command {
	var (
		opts    exgrid.ReadOptions
		columns map[string]string
		sortCol string
		desc    bool
	)
	cmd := &cobra.Command{
		Use:   "read <file> <sheet>",
		Short: "Read one page of a sheet's rows",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			opts.ColumnFilters = columns
			switch {
			case sortCol != "":
				opts.Sort = &exgrid.SortSpec{Column: sortCol, Desc: desc}
			default:
				if saved, ok := engine.SortState(a[0], a[1]); ok {
					opts.Sort = &saved
				}
			}
			page, err := engine.ReadSheet(a[0], a[1], opts)
			if err != nil {
				return err
			}
			return emit(cmd, page)
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "Rows per page (default: config defaultPageSize)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Keep rows where any value contains this text")
	cmd.Flags().StringToStringVar(&columns, "column", nil, "Keep rows where column contains value (col=value, repeatable)")
	cmd.Flags().StringVar(&sortCol, "sort", "", "Sort by column (default: saved sort state)")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	return cmd
}

func newHeaderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header <file> <sheet>",
		Short: "Resolve and report the header row of a sheet",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			info, err := engine.ResolveHeaderRow(a[0], a[1])
			if err != nil {
				return err
			}
			return emit(cmd, info)
		},
	}
}

func newCreateCmd() *cobra.Command {
	var (
		data  string
		index int
	)
	cmd := &cobra.Command{
		Use:   "create <file> <sheet>",
		Short: "Append or insert a row",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			row, err := parseRow(data)
			if err != nil {
				return err
			}
			opts := exgrid.CreateOptions{MutationOptions: exgrid.MutationOptions{User: user}}
			if cmd.Flags().Changed("index") {
				opts.Index = &index
			}
			res, err := engine.CreateRow(cmd.Context(), a[0], a[1], row, opts)
			if err != nil {
				return err
			}
			return emit(cmd, res)
		},
	}
	cmd.Flags().StringVar(&data, "data", "{}", "Row as a JSON object")
	cmd.Flags().IntVar(&index, "index", 0, "Insert before the row at this 0-based position instead of appending")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var (
		pk       string
		row      int
		data     string
		expected int
	)
	cmd := &cobra.Command{
		Use:   "update <file> <sheet>",
		Short: "Update fields of one row",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			ref, err := rowRef(pk, row)
			if err != nil {
				return err
			}
			updates, err := parseRow(data)
			if err != nil {
				return err
			}
			res, err := engine.UpdateRow(cmd.Context(), a[0], a[1], ref, updates,
				expectedVersion(cmd, expected), exgrid.MutationOptions{User: user})
			if err != nil {
				return err
			}
			return emit(cmd, res)
		},
	}
	addRowRefFlags(cmd, &pk, &row, &expected)
	cmd.Flags().StringVar(&data, "data", "{}", "Fields to set as a JSON object")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		pk       string
		row      int
		expected int
	)
	cmd := &cobra.Command{
		Use:   "delete <file> <sheet>",
		Short: "Blank the cells of one row",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			ref, err := rowRef(pk, row)
			if err != nil {
				return err
			}
			res, err := engine.DeleteRow(cmd.Context(), a[0], a[1], ref,
				expectedVersion(cmd, expected), exgrid.MutationOptions{User: user})
			if err != nil {
				return err
			}
			return emit(cmd, res)
		},
	}
	addRowRefFlags(cmd, &pk, &row, &expected)
	return cmd
}

func newPatchCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "patch <file> <sheet>",
		Short: "Write raw cell values",
		Long: `Write raw cell values given as a JSON array of {"addr", "value", "replace_formula"}.
Formula cells are skipped unless replace_formula is set.`,
		Args: args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			var patches []models.CellPatch
			if err := json.Unmarshal([]byte(data), &patches); err != nil {
				return fmt.Errorf("%w: --data: %v", exgrid.ErrInvalidArgument, err)
			}
			res, err := engine.PatchCells(cmd.Context(), a[0], a[1], patches, exgrid.MutationOptions{User: user})
			if err != nil {
				return err
			}
			return emit(cmd, res)
		},
	}
	cmd.Flags().StringVar(&data, "data", "[]", "Cell patches as a JSON array")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write a timestamped copy of a workbook next to it",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			path, err := engine.ExportWorkbook(cmd.Context(), a[0])
			if err != nil {
				return err
			}
			return emit(cmd, map[string]string{"path": path})
		},
	}
}

func newInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <file>",
		Short: "Drop cached reads of a file",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			return emit(cmd, map[string]int{"entries": engine.InvalidateCache(a[0])})
		},
	}
}

func newSortCmd() *cobra.Command {
	sortCmd := &cobra.Command{
		Use:   "sort",
		Short: "Show or save the sort state of a sheet",
	}

	getCmd := &cobra.Command{
		Use:  "get <file> <sheet>",
		Args: args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			spec, ok := engine.SortState(a[0], a[1])
			if !ok {
				return emit(cmd, map[string]any{"saved": false})
			}
			return emit(cmd, map[string]any{"saved": true, "sort": spec})
		},
	}

	var desc bool
	setCmd := &cobra.Command{
		Use:   "set <file> <sheet> <column>",
		Short: "Save a sort column; an empty column clears it",
		Args:  args(3),
		RunE: func(cmd *cobra.Command, a []string) error {
			if err := engine.SetSortState(a[0], a[1], exgrid.SortSpec{Column: a[2], Desc: desc}); err != nil {
				return fmt.Errorf("%w: %v", exgrid.ErrWrite, err)
			}
			return emit(cmd, map[string]bool{"success": true})
		},
	}
	setCmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")

	sortCmd.AddCommand(getCmd, setCmd)
	return sortCmd
}

func addRowRefFlags(cmd *cobra.Command, pk *string, row, expected *int) {
	cmd.Flags().StringVar(pk, "pk", "", "Primary key of the row")
	cmd.Flags().IntVar(row, "row", 0, "Worksheet row number (1-based), used when --pk is empty or not found")
	cmd.Flags().IntVar(expected, "expected-version", 0, "Fail with version-conflict unless the row has this _version")
}

func parseRow(data string) (models.Row, error) {
	var row models.Row
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, fmt.Errorf("%w: --data: %v", exgrid.ErrInvalidArgument, err)
	}
	if row == nil {
		row = models.Row{}
	}
	return row, nil
}
