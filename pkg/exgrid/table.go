package exgrid

import (
	"fmt"

	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
	"github.com/xuri/excelize/v2"
)

// sheetTable is the logical view of a worksheet under a resolved header.
type sheetTable struct {
	grid    *parser.Grid
	layout  headerLayout
	records []models.Row
	// formulaCols holds headers with a formula in at least one record.
	formulaCols map[string]bool
}

// loadTable reads a sheet and resolves its header row.
func (e *Engine) loadTable(f *excelize.File, file, sheet string, cfg config.Config) (*sheetTable, error) {
	if err := checkSheet(f, cfg, sheet); err != nil {
		return nil, err
	}
	g, err := parser.LoadGrid(f, sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	layout, err := e.resolveHeader(file, g, cfg)
	if err != nil {
		return nil, err
	}
	return buildTable(g, layout), nil
}

// buildTable converts the rows below the header into records. Rows without
// any non-formula value are not records.
func buildTable(g *parser.Grid, layout headerLayout) *sheetTable {
	t := &sheetTable{grid: g, layout: layout, formulaCols: map[string]bool{}}
	for r := layout.Index + 1; r <= g.Bounds.EndRow; r++ {
		row := make(models.Row, len(layout.Headers)+1)
		var formulas []string
		hasValue := false
		for i, h := range layout.Headers {
			cell := g.Cell(r, layout.FirstCol+i)
			v := cell.Typed()
			row[h] = v
			if cell.Formula != "" {
				formulas = append(formulas, h)
				continue
			}
			if v != nil {
				hasValue = true
			}
		}
		if !hasValue {
			continue
		}
		for _, h := range formulas {
			t.formulaCols[h] = true
		}
		if v := row.Version(); v > 0 {
			row[models.FieldVersion] = v
		} else {
			row[models.FieldVersion] = 1
		}
		row[models.FieldRowNumber] = r + 1
		t.records = append(t.records, row)
	}
	return t
}

// formulaColumns returns formula headers in sheet order.
func (t *sheetTable) formulaColumns() []string {
	out := []string{}
	for _, h := range t.layout.Headers {
		if t.formulaCols[h] {
			out = append(out, h)
		}
	}
	return out
}

// find locates a record by primary key, then by worksheet row number.
func (t *sheetTable) find(pkName string, ref RowRef) (int, bool) {
	if key := models.KeyString(ref.PK); key != "" {
		for i, r := range t.records {
			if r.Key(pkName) == key {
				return i, true
			}
		}
	}
	if ref.Row > 0 {
		for i, r := range t.records {
			if r.RowNumber() == ref.Row {
				return i, true
			}
		}
	}
	return -1, false
}

// hasHeader reports whether name is a column of the table.
func (t *sheetTable) hasHeader(name string) bool {
	return t.layout.column(name) >= 0
}

// lastRow returns the 1-based number of the last used worksheet row, never
// above the header row.
func (t *sheetTable) lastRow() int {
	last := t.grid.Bounds.EndRow + 1
	if hdr := t.layout.Index + 1; last < hdr {
		last = hdr
	}
	for _, r := range t.records {
		if n := r.RowNumber(); n > last {
			last = n
		}
	}
	return last
}
