package parser

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CellKind classifies a cell's stored value.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindError
)

// Cell is one worksheet cell as stored in the file.
type Cell struct {
	// Value is the raw stored value, without number formatting applied.
	Value string
	Kind  CellKind
	// Formula is the formula text without the leading "=", if any.
	Formula string
}

// Empty reports whether the cell has no visible value.
func (c Cell) Empty() bool {
	return strings.TrimSpace(c.Value) == ""
}

// Typed returns the cell value converted to a Go value.
// Numbers become int64 or float64, booleans bool, everything else string.
// Empty cells return nil.
func (c Cell) Typed() any {
	if c.Empty() {
		return nil
	}
	switch c.Kind {
	case KindNumber:
		return ParseValue(c.Value)
	case KindBool:
		return c.Value == "1" || strings.EqualFold(c.Value, "true")
	}
	return c.Value
}

// Grid is a dense snapshot of the used range of one worksheet.
type Grid struct {
	Sheet  string
	Bounds Range
	cells  [][]Cell
}

// LoadGrid reads the used range of a sheet, including cell kinds and formulas.
func LoadGrid(f *excelize.File, sheetName string) (*Grid, error) {
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	g := &Grid{Sheet: sheetName, Bounds: findDataBounds(rows)}
	if g.Bounds.Empty() {
		return g, nil
	}

	// Rows above and columns left of the bounds are kept so that grid
	// coordinates match worksheet coordinates.
	g.cells = make([][]Cell, g.Bounds.EndRow+1)
	for r := 0; r <= g.Bounds.EndRow; r++ {
		line := make([]Cell, g.Bounds.EndCol+1)
		for c := 0; c <= g.Bounds.EndCol; c++ {
			var raw string
			if r < len(rows) && c < len(rows[r]) {
				raw = rows[r][c]
			}
			if r < g.Bounds.StartRow || c < g.Bounds.StartCol {
				line[c] = Cell{Value: raw, Kind: kindOf(raw, excelize.CellTypeUnset)}
				continue
			}
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			cell := Cell{Value: raw}
			if strings.TrimSpace(raw) != "" {
				typ, err := f.GetCellType(sheetName, name)
				if err != nil {
					return nil, err
				}
				cell.Kind = kindOf(raw, typ)
			}
			formula, err := f.GetCellFormula(sheetName, name)
			if err != nil {
				return nil, err
			}
			cell.Formula = strings.TrimPrefix(formula, "=")
			line[c] = cell
		}
		g.cells[r] = line
	}
	return g, nil
}

// NewGrid builds a grid from plain string rows. Numeric-looking values are
// classified as numbers. It is used for data that does not come from a file.
func NewGrid(sheetName string, rows [][]string) *Grid {
	g := &Grid{Sheet: sheetName, Bounds: findDataBounds(rows)}
	if g.Bounds.Empty() {
		return g
	}
	g.cells = make([][]Cell, g.Bounds.EndRow+1)
	for r := 0; r <= g.Bounds.EndRow; r++ {
		line := make([]Cell, g.Bounds.EndCol+1)
		for c := 0; c <= g.Bounds.EndCol && r < len(rows) && c < len(rows[r]); c++ {
			line[c] = Cell{Value: rows[r][c], Kind: kindOf(rows[r][c], excelize.CellTypeUnset)}
		}
		g.cells[r] = line
	}
	return g
}

// Cell returns the cell at 0-based coordinates; out-of-range yields an empty cell.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || col < 0 || row >= len(g.cells) || col >= len(g.cells[row]) {
		return Cell{}
	}
	return g.cells[row][col]
}

// RowValues returns the raw values of a row between two 0-based columns, inclusive.
func (g *Grid) RowValues(row, firstCol, lastCol int) []string {
	if lastCol < firstCol {
		return nil
	}
	out := make([]string, 0, lastCol-firstCol+1)
	for c := firstCol; c <= lastCol; c++ {
		out = append(out, g.Cell(row, c).Value)
	}
	return out
}

// RowEmpty reports whether a row has no non-empty value within the bounds.
func (g *Grid) RowEmpty(row int) bool {
	return g.NonEmptyCount(row) == 0
}

// NonEmptyCount counts non-empty values of a row within the bounds.
func (g *Grid) NonEmptyCount(row int) int {
	n := 0
	for c := g.Bounds.StartCol; c <= g.Bounds.EndCol; c++ {
		if !g.Cell(row, c).Empty() {
			n++
		}
	}
	return n
}

func kindOf(raw string, typ excelize.CellType) CellKind {
	if strings.TrimSpace(raw) == "" {
		return KindEmpty
	}
	switch typ {
	case excelize.CellTypeBool:
		return KindBool
	case excelize.CellTypeNumber:
		return KindNumber
	case excelize.CellTypeDate:
		return KindDate
	case excelize.CellTypeError:
		return KindError
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return KindString
	}
	// Numbers are usually stored without an explicit type.
	if _, err := strconv.ParseFloat(raw, 64); err == nil {
		return KindNumber
	}
	return KindString
}

// ParseValue attempts to parse a string value as a number.
// Returns int64 for integers, float64 for decimals, or the original string.
func ParseValue(s string) any {
	// Try integer first
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	// Try float
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
