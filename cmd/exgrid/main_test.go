package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/xuri/excelize/v2"
)

func writeBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "people.xlsx")
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "People"))
	require.NoError(t, f.SetSheetRow("People", "A1", &[]any{"id", "name"}))
	require.NoError(t, f.SetSheetRow("People", "A2", &[]any{1, "ada"}))
	require.NoError(t, f.SaveAs(path))
	return path
}

func run(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cfg := filepath.Join(t.TempDir(), "config.json")
	cmd.SetArgs(append([]string{"--config", cfg, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.Bytes(), err
}

func TestReadAndUpdateCommands(t *testing.T) {
	book := writeBook(t)

	out, err := run(t, "update", book, "People", "--pk", "1", "--data", `{"name":"grace"}`, "--user", "cli")
	require.NoError(t, err)
	var res models.MutationResult
	require.NoError(t, json.Unmarshal(out, &res))
	require.True(t, res.Success)
	require.Equal(t, "cli", res.Row[models.FieldUpdatedBy])

	out, err = run(t, "read", book, "People")
	require.NoError(t, err)
	var page models.SheetPage
	require.NoError(t, json.Unmarshal(out, &page))
	require.Len(t, page.Rows, 1)
	require.Equal(t, "grace", page.Rows[0]["name"])
}

func TestCommandErrors(t *testing.T) {
	book := writeBook(t)

	tests := []struct {
		name string
		args []string
		code exgrid.Code
	}{
		{"missing sheet", []string{"read", book, "Nope"}, exgrid.CodeSheetNotFound},
		{"no row reference", []string{"delete", book, "People"}, exgrid.CodeInvalidArgument},
		{"bad data", []string{"create", book, "People", "--data", "{"}, exgrid.CodeInvalidArgument},
		{"stale version", []string{"update", book, "People", "--pk", "1", "--expected-version", "4"}, exgrid.CodeVersionConflict},
		{"missing args", []string{"header", book}, exgrid.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			require.Equal(t, tt.code, exgrid.CodeOf(err))
		})
	}
}
