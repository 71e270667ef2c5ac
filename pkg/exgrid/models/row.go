// Package models defines the data structures exchanged by the grid engine.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved field names carried by every logical row.
const (
	FieldVersion   = "_version"
	FieldCreatedAt = "_created_at"
	FieldCreatedBy = "_created_by"
	FieldUpdatedAt = "_updated_at"
	FieldUpdatedBy = "_updated_by"
	// FieldRowNumber is the 1-based worksheet row a record was read from.
	// It is attached on read and never written to a cell.
	FieldRowNumber = "_row"
)

// SystemFields lists the engine-managed columns in the order they are appended
// to a header row.
var SystemFields = []string{FieldVersion, FieldCreatedAt, FieldCreatedBy, FieldUpdatedAt, FieldUpdatedBy}

// Row is a logical record keyed by column header.
// Values are int64, float64, bool, string or nil.
type Row map[string]any

// Version returns the row's _version as an int. Missing or unparsable values yield 0.
func (r Row) Version() int {
	return toInt(r[FieldVersion])
}

// RowNumber returns the 1-based worksheet row number, or 0 if unknown.
func (r Row) RowNumber() int {
	return toInt(r[FieldRowNumber])
}

// Key returns the string form of a field, used for primary key comparison.
func (r Row) Key(field string) string {
	return KeyString(r[field])
}

// Clone returns a shallow copy; values are scalars so this is a full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// KeyString normalizes a primary key value so that 42, int64(42), 42.0 and "42"
// compare equal.
func KeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// IsEmptyValue reports whether v counts as an empty cell value.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case int32:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(f)
		}
	}
	return 0
}
