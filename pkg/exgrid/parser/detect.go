package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// MinHeaderScore is the lowest score a row needs to be accepted as a header.
const MinHeaderScore = 8

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// HeaderScore holds the measurements behind a row's header score.
type HeaderScore struct {
	Row          int
	NonEmpty     int
	Numeric      int
	Unique       int
	Duplicates   int
	NextNonEmpty int
	NextNumeric  int
	Score        int
}

// ScoreRow scores how header-like a row looks.
//
// Non-empty cells and distinct strings raise the score, numbers and repeated
// strings lower it. A following row that is wider or mostly numeric is taken
// as evidence that this row labels data beneath it.
func ScoreRow(g *Grid, row int) HeaderScore {
	s := HeaderScore{Row: row}
	fold := cases.Fold()

	var strs []string
	totalLen := 0
	for c := g.Bounds.StartCol; c <= g.Bounds.EndCol; c++ {
		cell := g.Cell(row, c)
		if cell.Empty() {
			continue
		}
		s.NonEmpty++
		if isNumericCell(cell) {
			s.Numeric++
			continue
		}
		v := strings.TrimSpace(cell.Value)
		strs = append(strs, v)
		totalLen += len([]rune(v))
	}

	seen := make(map[string]struct{}, len(strs))
	for _, v := range strs {
		seen[fold.String(v)] = struct{}{}
	}
	s.Unique = len(seen)
	s.Duplicates = len(strs) - s.Unique

	if row+1 <= g.Bounds.EndRow {
		for c := g.Bounds.StartCol; c <= g.Bounds.EndCol; c++ {
			cell := g.Cell(row+1, c)
			if cell.Empty() {
				continue
			}
			s.NextNonEmpty++
			if isNumericCell(cell) {
				s.NextNumeric++
			}
		}
	}

	s.Score = 3*s.NonEmpty + 2*s.Unique - 2*s.Duplicates - s.Numeric
	if s.NextNumeric > max(1, s.NonEmpty/4) {
		s.Score += 6
	}
	if s.NextNonEmpty > s.NonEmpty {
		s.Score += 2
	}
	if len(strs) > 0 && float64(totalLen)/float64(len(strs)) > 40 {
		s.Score -= 2
	}
	return s
}

// DetectHeaderRow scans the used range up to the absolute row maxScan and
// returns the best scoring row with at least two non-empty cells.
// ok is false when no row reaches MinHeaderScore.
func DetectHeaderRow(g *Grid, maxScan int) (row int, ok bool) {
	if g.Bounds.Empty() {
		return 0, false
	}
	end := min(g.Bounds.EndRow, maxScan)

	best := HeaderScore{Row: -1}
	for r := g.Bounds.StartRow; r <= end; r++ {
		s := ScoreRow(g, r)
		if s.NonEmpty < 2 {
			continue
		}
		if best.Row < 0 || s.Score > best.Score {
			best = s
		}
	}
	if best.Row < 0 || best.Score < MinHeaderScore {
		return 0, false
	}
	return best.Row, true
}

// FirstNonEmptyRow returns the first row within limit rows of the start of the
// used range that has a non-empty cell.
func FirstNonEmptyRow(g *Grid, limit int) (int, bool) {
	if g.Bounds.Empty() {
		return 0, false
	}
	end := min(g.Bounds.EndRow, g.Bounds.StartRow+limit-1)
	for r := g.Bounds.StartRow; r <= end; r++ {
		if !g.RowEmpty(r) {
			return r, true
		}
	}
	return 0, false
}

// IsLikelyDataRow reports whether at least half of the non-empty values look
// like identifiers or numbers rather than labels.
func IsLikelyDataRow(values []string) bool {
	nonEmpty, dataLike := 0, 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		nonEmpty++
		if looksLikeData(v) {
			dataLike++
		}
	}
	return nonEmpty > 0 && dataLike*2 >= nonEmpty
}

func looksLikeData(v string) bool {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return true
	}
	if IsUUID(v) {
		return true
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// IsUUID reports whether s is a hyphenated 8-4-4-4-12 UUID.
func IsUUID(s string) bool {
	if !uuidPattern.MatchString(s) {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isNumericCell(c Cell) bool {
	return c.Kind == KindNumber || c.Kind == KindDate
}
