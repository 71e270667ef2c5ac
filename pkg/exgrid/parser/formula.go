package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/efp"
)

var (
	cellRefPattern = regexp.MustCompile(`^(\$?)([A-Za-z]{1,3})(\$?)([0-9]+)$`)
	rowRefPattern  = regexp.MustCompile(`^(\$?)([0-9]+)$`)
)

// ShiftRowRefs moves every relative row reference in a formula by delta rows.
// Absolute rows ($1), whole-column ranges, names and string literals are left
// alone. The formula is given and returned without a leading "=".
func ShiftRowRefs(formula string, delta int) string {
	body := strings.TrimPrefix(formula, "=")
	if delta == 0 || body == "" {
		return body
	}

	ps := efp.ExcelParser()
	tokens := ps.Parse("=" + body)

	var out strings.Builder
	cursor := 0
	for _, tok := range tokens {
		if tok.TValue == "" {
			continue
		}
		idx := strings.Index(body[cursor:], tok.TValue)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(tok.TValue)
		if tok.TType == efp.TokenTypeOperand && tok.TSubType == efp.TokenSubTypeRange {
			out.WriteString(body[cursor:start])
			out.WriteString(shiftRange(tok.TValue, delta))
			cursor = end
			continue
		}
		out.WriteString(body[cursor:end])
		cursor = end
	}
	out.WriteString(body[cursor:])
	return out.String()
}

// shiftRange shifts a range operand such as "A1", "Sheet1!$B2:C3" or "2:4".
func shiftRange(ref string, delta int) string {
	prefix, area := "", ref
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		prefix, area = ref[:i+1], ref[i+1:]
	}
	parts := strings.Split(area, ":")
	for i, p := range parts {
		parts[i] = shiftPart(p, delta)
	}
	return prefix + strings.Join(parts, ":")
}

func shiftPart(p string, delta int) string {
	if m := cellRefPattern.FindStringSubmatch(p); m != nil {
		if m[3] == "$" {
			return p
		}
		return m[1] + m[2] + shiftRow(m[4], delta)
	}
	if m := rowRefPattern.FindStringSubmatch(p); m != nil {
		if m[1] == "$" {
			return p
		}
		return shiftRow(m[2], delta)
	}
	return p
}

func shiftRow(row string, delta int) string {
	n, err := strconv.Atoi(row)
	if err != nil {
		return row
	}
	return strconv.Itoa(max(1, n+delta))
}
