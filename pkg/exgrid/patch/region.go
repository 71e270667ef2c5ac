package patch

import (
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
	"github.com/xuri/excelize/v2"
)

// Region locates a table on a worksheet. Coordinates are 1-based.
type Region struct {
	HeaderRow int
	FirstCol  int
	Headers   []string
	// Cols holds the column of each header when the headers are not
	// contiguous from FirstCol.
	Cols []int
}

// Col returns the worksheet column of the i-th header.
func (r Region) Col(i int) int {
	if i < len(r.Cols) {
		return r.Cols[i]
	}
	return r.FirstCol + i
}

// Addr returns the address of a header's cell in a worksheet row, or "" if
// the header is not part of the region.
func (r Region) Addr(header string, row int) string {
	for i, h := range r.Headers {
		if h == header {
			name, err := excelize.CoordinatesToCellName(r.Col(i), row)
			if err != nil {
				return ""
			}
			return name
		}
	}
	return ""
}

// PrepareRow readies a new worksheet row below an existing one: cell styles
// are copied from the row above and, when fill is set, formulas of the row
// above are copied down with their relative row references shifted.
// It returns the headers that received a formula.
func PrepareRow(f *excelize.File, sheet string, region Region, row int, fill bool) ([]string, error) {
	above := row - 1
	if above <= region.HeaderRow {
		return nil, nil
	}
	var filled []string
	for i, h := range region.Headers {
		src, err := excelize.CoordinatesToCellName(region.Col(i), above)
		if err != nil {
			return filled, err
		}
		dst, err := excelize.CoordinatesToCellName(region.Col(i), row)
		if err != nil {
			return filled, err
		}
		style, err := f.GetCellStyle(sheet, src)
		if err != nil {
			return filled, err
		}
		if style != 0 {
			if err := f.SetCellStyle(sheet, dst, dst, style); err != nil {
				return filled, err
			}
		}
		if !fill {
			continue
		}
		formula, err := f.GetCellFormula(sheet, src)
		if err != nil {
			return filled, err
		}
		if formula == "" {
			continue
		}
		if err := f.SetCellFormula(sheet, dst, parser.ShiftRowRefs(formula, row-above)); err != nil {
			return filled, err
		}
		filled = append(filled, h)
	}
	return filled, nil
}

// Rebuild rewrites every record of a region at its own worksheet row, after
// adding extra headers from column appendCol on. appendCol is raised to the
// column right of the region when it would overlap it; callers pass the
// first column that is free in every row. Formula cells are snapshotted
// first, skipped while writing and re-attached afterwards, so the rewrite
// never loses a formula. Records must carry _row.
func Rebuild(f *excelize.File, sheet string, region Region, rows []models.Row, extra []string, appendCol int) (Region, Result, error) {
	var res Result
	n := len(region.Headers)
	out := Region{
		HeaderRow: region.HeaderRow,
		FirstCol:  region.FirstCol,
		Headers:   append(append([]string(nil), region.Headers...), extra...),
		Cols:      make([]int, 0, n+len(extra)),
	}
	next := region.FirstCol
	for i := 0; i < n; i++ {
		out.Cols = append(out.Cols, region.Col(i))
		next = max(next, region.Col(i)+1)
	}
	next = max(next, appendCol)
	for i := range extra {
		out.Cols = append(out.Cols, next+i)
	}

	if len(extra) > 0 {
		style := 0
		if n > 0 {
			last, err := excelize.CoordinatesToCellName(region.Col(n-1), region.HeaderRow)
			if err != nil {
				return region, res, err
			}
			if style, err = f.GetCellStyle(sheet, last); err != nil {
				return region, res, err
			}
		}
		for _, h := range extra {
			addr := out.Addr(h, region.HeaderRow)
			if err := f.SetCellStr(sheet, addr, h); err != nil {
				return region, res, err
			}
			if style != 0 {
				if err := f.SetCellStyle(sheet, addr, addr, style); err != nil {
					return region, res, err
				}
			}
			res.Written++
		}
	}

	formulas := map[string]string{}
	for _, r := range rows {
		for _, h := range out.Headers {
			addr := out.Addr(h, r.RowNumber())
			formula, err := f.GetCellFormula(sheet, addr)
			if err != nil {
				return region, res, err
			}
			if formula != "" {
				formulas[addr] = formula
			}
		}
	}

	for _, r := range rows {
		if r.RowNumber() <= region.HeaderRow {
			continue
		}
		for _, h := range out.Headers {
			addr := out.Addr(h, r.RowNumber())
			if _, ok := formulas[addr]; ok {
				res.Skipped = append(res.Skipped, addr)
				continue
			}
			if err := WriteValue(f, sheet, addr, r[h]); err != nil {
				return region, res, err
			}
			res.Written++
		}
	}

	for addr, formula := range formulas {
		cur, err := f.GetCellFormula(sheet, addr)
		if err != nil {
			return region, res, err
		}
		if cur == "" {
			if err := f.SetCellFormula(sheet, addr, formula); err != nil {
				return region, res, err
			}
		}
	}
	return out, res, nil
}
