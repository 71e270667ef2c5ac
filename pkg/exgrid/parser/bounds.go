package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Range is a rectangular cell range with 0-based inclusive coordinates.
type Range struct {
	StartRow, EndRow int
	StartCol, EndCol int
}

// Empty reports whether the range holds no cells.
func (r Range) Empty() bool {
	return r.EndRow < 0 || r.EndCol < 0
}

// A1 converts the range to Excel notation (e.g., "A1:D10").
func (r Range) A1() string {
	if r.Empty() {
		return ""
	}
	startCell, _ := excelize.CoordinatesToCellName(r.StartCol+1, r.StartRow+1)
	endCell, _ := excelize.CoordinatesToCellName(r.EndCol+1, r.EndRow+1)
	return fmt.Sprintf("%s:%s", startCell, endCell)
}

// findDataBounds finds the bounding box of non-empty cells.
func findDataBounds(rows [][]string) Range {
	b := Range{StartRow: -1, EndRow: -1, StartCol: -1, EndCol: -1}

	for rowIdx, row := range rows {
		for colIdx, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if b.StartRow < 0 || rowIdx < b.StartRow {
				b.StartRow = rowIdx
			}
			if rowIdx > b.EndRow {
				b.EndRow = rowIdx
			}
			if b.StartCol < 0 || colIdx < b.StartCol {
				b.StartCol = colIdx
			}
			if colIdx > b.EndCol {
				b.EndCol = colIdx
			}
		}
	}

	return b
}
