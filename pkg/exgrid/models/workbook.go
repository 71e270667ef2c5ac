package models

import "time"

// WorkbookMeta represents workbook-level metadata with per-sheet summaries.
type WorkbookMeta struct {
	// Path is the workbook path as given by the caller.
	Path string `json:"path"`
	// BookName is the workbook file name (no path).
	BookName string `json:"book_name"`
	// Sheets lists visible sheets in workbook order.
	Sheets []SheetMeta `json:"sheets"`
	// HasMacros is set when the package carries a VBA project.
	HasMacros bool `json:"has_macros,omitempty"`
	// Sidecar is the working copy used for reads and writes, if any.
	Sidecar string    `json:"sidecar,omitempty"`
	ModTime time.Time `json:"mod_time"`
}
