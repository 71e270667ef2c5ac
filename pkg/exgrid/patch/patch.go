// Package patch writes values into worksheet cells without disturbing the
// rest of the sheet. Cells holding formulas are never overwritten unless a
// patch asks for it, and styles are kept.
package patch

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
	"github.com/xuri/excelize/v2"
)

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// Result reports what a write touched.
type Result struct {
	Written int
	// Skipped lists addresses left alone because they hold formulas.
	Skipped []string
}

// Apply writes each patch to its cell. Formula cells are skipped unless the
// patch sets ReplaceFormula.
func Apply(f *excelize.File, sheet string, patches []models.CellPatch) (Result, error) {
	var res Result
	for _, p := range patches {
		addr := strings.ToUpper(strings.TrimSpace(p.Addr))
		if _, _, err := excelize.CellNameToCoordinates(addr); err != nil {
			return res, fmt.Errorf("invalid cell reference %q: %w", p.Addr, err)
		}
		formula, err := f.GetCellFormula(sheet, addr)
		if err != nil {
			return res, err
		}
		if formula != "" && !p.ReplaceFormula {
			res.Skipped = append(res.Skipped, addr)
			continue
		}
		if err := WriteValue(f, sheet, addr, p.Value); err != nil {
			return res, fmt.Errorf("write %s: %w", addr, err)
		}
		res.Written++
	}
	return res, nil
}

// WriteValue stores v in a cell, keeping the cell style. Nil and blank
// strings clear the cell. Whole floats are stored as integers. A text value
// written over a numeric format drops that format so the text is not shown
// as a number.
func WriteValue(f *excelize.File, sheet, addr string, v any) error {
	switch t := v.(type) {
	case nil:
		return f.SetCellValue(sheet, addr, nil)
	case string:
		if strings.TrimSpace(t) == "" {
			return f.SetCellValue(sheet, addr, nil)
		}
		if err := clearNumericFormat(f, sheet, addr); err != nil {
			return err
		}
		return f.SetCellStr(sheet, addr, t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < maxExactInt {
			return f.SetCellInt(sheet, addr, int64(t))
		}
		return f.SetCellFloat(sheet, addr, t, -1, 64)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return f.SetCellInt(sheet, addr, n)
		}
		n, err := t.Float64()
		if err != nil {
			return WriteValue(f, sheet, addr, t.String())
		}
		return f.SetCellFloat(sheet, addr, n, -1, 64)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, bool, time.Time:
		return f.SetCellValue(sheet, addr, t)
	}
	return WriteValue(f, sheet, addr, fmt.Sprint(v))
}

func clearNumericFormat(f *excelize.File, sheet, addr string) error {
	id, err := f.GetCellStyle(sheet, addr)
	if err != nil || id == 0 {
		return err
	}
	st, err := f.GetStyle(id)
	if err != nil {
		return err
	}
	custom := ""
	if st.CustomNumFmt != nil {
		custom = *st.CustomNumFmt
	}
	if !parser.IsNumericFormat(st.NumFmt, custom) {
		return nil
	}
	st.NumFmt = 0
	st.CustomNumFmt = nil
	st.DecimalPlaces = nil
	st.NegRed = false
	next, err := f.NewStyle(st)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, addr, addr, next)
}
