package main

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/jsontable"
)

func newJSONCmd() *cobra.Command {
	jsonCmd := &cobra.Command{
		Use:   "json",
		Short: "Inspect and edit tables inside JSON files",
	}

	schemaCmd := &cobra.Command{
		Use:   "schema <file>",
		Short: "List the arrays of objects in a JSON file",
		Args:  args(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			schema, err := engine.JSON().Schema(a[0])
			if err != nil {
				return err
			}
			return emit(cmd, schema)
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <file> [path]",
		Short: "Print the document or the value at a path",
		Args: func(cmd *cobra.Command, a []string) error {
			if err := cobra.RangeArgs(1, 2)(cmd, a); err != nil {
				return fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, a []string) error {
			path := ""
			if len(a) == 2 {
				path = a[1]
			}
			v, err := engine.JSON().Get(a[0], path)
			if err != nil {
				return err
			}
			return emit(cmd, v)
		},
	}

	var expected string
	setCmd := &cobra.Command{
		Use:   "set <file> <path> <value>",
		Short: "Set the value at a path",
		Args:  args(3),
		RunE: func(cmd *cobra.Command, a []string) error {
			expect, err := parseExpected(cmd, expected)
			if err != nil {
				return err
			}
			if err := engine.JSON().UpdateScalar(cmd.Context(), a[0], a[1], parseValue(a[2]), expect); err != nil {
				return err
			}
			return emit(cmd, map[string]bool{"success": true})
		},
	}
	setCmd.Flags().StringVar(&expected, "expected", "", "Fail with version-conflict unless the stored value equals this JSON value")

	var fieldExpected string
	setFieldCmd := &cobra.Command{
		Use:   "set-field <file> <table> <id> <field> <value>",
		Short: "Set one field of a table row",
		Args:  args(5),
		RunE: func(cmd *cobra.Command, a []string) error {
			expect, err := parseExpected(cmd, fieldExpected)
			if err != nil {
				return err
			}
			err = engine.JSON().UpdateField(cmd.Context(), a[0], a[1], parseValue(a[2]), a[3], parseValue(a[4]), expect)
			if err != nil {
				return err
			}
			return emit(cmd, map[string]bool{"success": true})
		},
	}
	setFieldCmd.Flags().StringVar(&fieldExpected, "expected", "", "Fail with version-conflict unless the stored value equals this JSON value")

	var data string
	createCmd := &cobra.Command{
		Use:   "create <file> <table>",
		Short: "Append a row to a table",
		Args:  args(2),
		RunE: func(cmd *cobra.Command, a []string) error {
			v, err := oj.ParseString(data)
			if err != nil {
				return fmt.Errorf("%w: --data: %v", exgrid.ErrInvalidArgument, err)
			}
			row, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: --data must be a JSON object", exgrid.ErrInvalidArgument)
			}
			created, err := engine.JSON().CreateRow(cmd.Context(), a[0], a[1], row)
			if err != nil {
				return err
			}
			return emit(cmd, map[string]any{"success": true, "row": created})
		},
	}
	createCmd.Flags().StringVar(&data, "data", "{}", "Row as a JSON object")

	deleteCmd := &cobra.Command{
		Use:   "delete <file> <table> <id>",
		Short: "Remove a row from a table",
		Args:  args(3),
		RunE: func(cmd *cobra.Command, a []string) error {
			if err := engine.JSON().DeleteRow(cmd.Context(), a[0], a[1], parseValue(a[2])); err != nil {
				return err
			}
			return emit(cmd, map[string]bool{"success": true})
		},
	}

	jsonCmd.AddCommand(schemaCmd, getCmd, setCmd, setFieldCmd, createCmd, deleteCmd)
	return jsonCmd
}

// parseValue reads a JSON literal, treating anything unparsable as a bare string.
func parseValue(s string) any {
	v, err := oj.ParseString(s)
	if err != nil {
		return s
	}
	return v
}

func parseExpected(cmd *cobra.Command, s string) (*jsontable.Expected, error) {
	if !cmd.Flags().Changed("expected") {
		return nil, nil
	}
	v, err := oj.ParseString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: --expected: %v", exgrid.ErrInvalidArgument, err)
	}
	return &jsontable.Expected{Value: v}, nil
}
