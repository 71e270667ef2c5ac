// Package exgrid reads and edits worksheet tables in place: it locates the
// header row of arbitrary sheets, serves paged reads from a short-lived
// cache and applies row mutations as minimal cell patches under a file lock
// with optimistic versioning.
package exgrid

import (
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
)

// SortSpec orders rows by one column.
type SortSpec = config.SortSpec

// ReadOptions configures a sheet read.
type ReadOptions struct {
	// Page is 1-based. Values below 1 read the first page.
	Page int
	// PageSize is clamped to [1, maxPageSize]. Zero uses the default page size.
	PageSize int
	// Filter keeps rows where any value contains it, case-insensitively.
	Filter string
	// ColumnFilters keeps rows where every named column contains its value.
	ColumnFilters map[string]string
	// Sort orders rows before paging. If nil, rows keep sheet order.
	Sort *SortSpec
}

// normalize clamps paging to the configured limits.
func (o ReadOptions) normalize(cfg config.Config) ReadOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	switch {
	case o.PageSize == 0:
		o.PageSize = cfg.DefaultPageSize
	case o.PageSize < 1:
		o.PageSize = 1
	}
	if o.PageSize > cfg.MaxPageSize {
		o.PageSize = cfg.MaxPageSize
	}
	return o
}

func (o ReadOptions) sortKey() string {
	if o.Sort == nil || o.Sort.Column == "" {
		return ""
	}
	if o.Sort.Desc {
		return o.Sort.Column + ":desc"
	}
	return o.Sort.Column + ":asc"
}

// RowRef addresses a record by primary key, or by its 1-based worksheet
// row number when the key is empty or not found.
type RowRef struct {
	PK  any
	Row int
}

// MutationOptions carries the acting user for audit columns.
type MutationOptions struct {
	// User is recorded in _created_by / _updated_by. Empty uses the configured default.
	User string
}

// CreateOptions configures CreateRow.
type CreateOptions struct {
	MutationOptions
	// Index inserts the new record before the record at this 0-based logical
	// position. If nil, the record is appended.
	Index *int
}

// userOr returns the user or the configured default.
func (o MutationOptions) userOr(cfg config.Config) string {
	if o.User != "" {
		return o.User
	}
	return cfg.DefaultUser
}
