package models

// CellPatch is a single cell value change.
type CellPatch struct {
	// Addr is an A1-style cell reference.
	Addr  string `json:"addr"`
	Value any    `json:"value"`
	// ReplaceFormula allows overwriting a cell that holds a formula.
	ReplaceFormula bool `json:"replace_formula,omitempty"`
}

// Write methods reported in MutationResult.Method.
const (
	MethodPatch   = "patch"
	MethodRebuild = "rebuild"
)

// MutationResult is returned by successful row mutations.
type MutationResult struct {
	Success bool `json:"success"`
	// Row is the record as stored after the mutation. Nil for deletes.
	Row Row `json:"row,omitempty"`
	// Replaced is set when a create hit an existing primary key.
	Replaced bool `json:"replaced,omitempty"`
	// Method is "patch" for in-place cell writes or "rebuild" for region rewrites.
	Method string `json:"method"`
	// Cells counts cells written.
	Cells int `json:"cells"`
	// SkippedCells lists addresses left untouched because they hold formulas.
	SkippedCells []string `json:"skipped_cells,omitempty"`
	// Target is the file actually written (differs from the input for sidecars).
	Target string `json:"target,omitempty"`
}

// ErrorResult is the boundary form of a typed error.
type ErrorResult struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Current carries the stored row on version conflicts.
	Current any `json:"current,omitempty"`
}
