package patch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/xuri/excelize/v2"
)

const sheet = "Sheet1"

func newBook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })

	rows := [][]any{
		{"id", "qty", "total"},
		{1, 2, nil},
		{2, 3, nil},
	}
	for r, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, addr, &row))
	}
	require.NoError(t, f.SetCellFormula(sheet, "C2", "B2*10"))
	require.NoError(t, f.SetCellFormula(sheet, "C3", "B3*10"))
	return f
}

func TestApplySkipsFormulas(t *testing.T) {
	f := newBook(t)

	res, err := Apply(f, sheet, []models.CellPatch{
		{Addr: "b2", Value: 7.0},
		{Addr: "C2", Value: 1},
		{Addr: "C3", Value: 5, ReplaceFormula: true},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Written)
	require.Equal(t, []string{"C2"}, res.Skipped)

	v, err := f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	require.Equal(t, "7", v)

	formula, err := f.GetCellFormula(sheet, "C2")
	require.NoError(t, err)
	require.Equal(t, "B2*10", formula)

	formula, err = f.GetCellFormula(sheet, "C3")
	require.NoError(t, err)
	require.Empty(t, formula)

	_, err = Apply(f, sheet, []models.CellPatch{{Addr: "??"}})
	require.Error(t, err)
}

func TestWriteValue(t *testing.T) {
	f := newBook(t)

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"text", "hello", "hello"},
		{"nil clears", nil, ""},
		{"whole float stored as integer", 12.0, "12"},
		{"blank string clears", "  ", ""},
		{"fraction", 1.25, "1.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, WriteValue(f, sheet, "E1", tt.value))
			got, err := f.GetCellValue(sheet, "E1", excelize.Options{RawCellValue: true})
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestWriteValueDropsNumericFormatForText(t *testing.T) {
	f := newBook(t)
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B2", "B3", style))

	require.NoError(t, WriteValue(f, sheet, "B2", "n/a"))
	id, err := f.GetCellStyle(sheet, "B2")
	require.NoError(t, err)
	st, err := f.GetStyle(id)
	require.NoError(t, err)
	require.Equal(t, 0, st.NumFmt)

	require.NoError(t, WriteValue(f, sheet, "B3", 9))
	id, err = f.GetCellStyle(sheet, "B3")
	require.NoError(t, err)
	require.Equal(t, style, id)
}

func TestPrepareRowFillsFormulasDown(t *testing.T) {
	f := newBook(t)
	region := Region{HeaderRow: 1, FirstCol: 1, Headers: []string{"id", "qty", "total"}}

	filled, err := PrepareRow(f, sheet, region, 4, true)
	require.NoError(t, err)
	require.Equal(t, []string{"total"}, filled)
	formula, err := f.GetCellFormula(sheet, "C4")
	require.NoError(t, err)
	require.Equal(t, "B4*10", formula)

	filled, err = PrepareRow(f, sheet, region, 2, true)
	require.NoError(t, err)
	require.Empty(t, filled)
}

func TestRebuildAppendsColumnsAndKeepsFormulas(t *testing.T) {
	f := newBook(t)
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "A1", "C1", bold))

	region := Region{HeaderRow: 1, FirstCol: 1, Headers: []string{"id", "qty", "total"}}
	rows := []models.Row{
		{"id": int64(1), "qty": int64(4), "total": nil, "note": "x", models.FieldRowNumber: 2},
		{"id": int64(2), "qty": int64(3), "total": nil, models.FieldRowNumber: 3},
	}
	out, res, err := Rebuild(f, sheet, region, rows, []string{"note"}, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "qty", "total", "note"}, out.Headers)
	require.Equal(t, []string{"C2", "C3"}, res.Skipped)
	require.Equal(t, "D2", out.Addr("note", 2))

	header, err := f.GetCellValue(sheet, "D1")
	require.NoError(t, err)
	require.Equal(t, "note", header)
	id, err := f.GetCellStyle(sheet, "D1")
	require.NoError(t, err)
	require.Equal(t, bold, id)

	for addr, want := range map[string]string{"B2": "4", "D2": "x", "D3": ""} {
		got, err := f.GetCellValue(sheet, addr)
		require.NoError(t, err)
		require.Equal(t, want, got, addr)
	}
	formula, err := f.GetCellFormula(sheet, "C2")
	require.NoError(t, err)
	require.Equal(t, "B2*10", formula)
}

func TestRebuildAppendsPastUnlabelledColumns(t *testing.T) {
	f := newBook(t)
	require.NoError(t, f.SetCellStr(sheet, "D2", "keep me"))
	require.NoError(t, f.SetCellStr(sheet, "D3", "and me"))

	region := Region{HeaderRow: 1, FirstCol: 1, Headers: []string{"id", "qty", "total"}}
	rows := []models.Row{
		{"id": int64(1), "qty": int64(4), "note": "x", models.FieldRowNumber: 2},
		{"id": int64(2), "qty": int64(3), models.FieldRowNumber: 3},
	}
	out, _, err := Rebuild(f, sheet, region, rows, []string{"note"}, 5)
	require.NoError(t, err)
	require.Equal(t, "E2", out.Addr("note", 2))
	require.Equal(t, "B3", out.Addr("qty", 3))

	for addr, want := range map[string]string{"D1": "", "D2": "keep me", "D3": "and me", "E1": "note", "E2": "x"} {
		got, err := f.GetCellValue(sheet, addr)
		require.NoError(t, err)
		require.Equal(t, want, got, addr)
	}
}
