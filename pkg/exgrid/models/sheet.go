package models

// SheetPage is one page of logical rows read from a worksheet.
type SheetPage struct {
	// Rows contains the records of the requested page.
	Rows []Row `json:"rows"`
	// Total is the number of records after filtering, across all pages.
	Total int `json:"total"`
	// Page is the 1-based page number actually served.
	Page int `json:"page"`
	// PageSize is the clamped page size.
	PageSize int `json:"page_size"`
	// Headers lists the column headers in sheet order.
	Headers []string `json:"headers"`
	// FormulaColumns lists headers whose cells hold formulas in at least one record.
	FormulaColumns []string `json:"formula_columns"`
	// HeaderRow is the 0-based index of the header row used.
	HeaderRow int `json:"header_row"`
}

// SheetMeta summarizes a worksheet for workbook listings.
type SheetMeta struct {
	Name           string   `json:"name"`
	Columns        []string `json:"columns"`
	Rows           int      `json:"rows"`
	HeaderRow      int      `json:"header_row"`
	UsedRange      string   `json:"used_range,omitempty"`
	FormulaColumns []string `json:"formula_columns,omitempty"`
	ReadOnly       bool     `json:"read_only,omitempty"`
	// Hidden is set for sheets hidden in the workbook itself.
	Hidden bool `json:"hidden,omitempty"`
	// Unavailable is set when no header row could be resolved.
	Unavailable bool   `json:"unavailable,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// HeaderInfo describes the outcome of header row resolution.
type HeaderInfo struct {
	Sheet string `json:"sheet"`
	// Index is the 0-based header row.
	Index int `json:"index"`
	// Source names the resolution branch that produced Index.
	Source   string   `json:"source"`
	Headers  []string `json:"headers"`
	FirstCol int      `json:"first_col"`
	LastCol  int      `json:"last_col"`
	// Corrected is set when a configured index was replaced and persisted.
	Corrected bool `json:"corrected,omitempty"`
	// Previous holds the configured index before a correction.
	Previous *int `json:"previous,omitempty"`
}
