package exgrid

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/cache"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
	"golang.org/x/text/cases"
)

// ReadSheet returns one page of the records of a sheet. Results are cached
// for the configured TTL and dropped when the file changes.
func (e *Engine) ReadSheet(file, sheet string, opts ReadOptions) (*models.SheetPage, error) {
	cfg := e.store.Config()
	opts = opts.normalize(cfg)

	if _, err := statFile(file); err != nil {
		return nil, newOpError("read", file, sheet, err)
	}
	if cfg.IsIgnored(sheet) {
		return nil, newOpError("read", file, sheet, ErrSheetNotFound)
	}
	src := readSource(cfg, file)
	mod, err := statFile(src)
	if err != nil {
		return nil, newOpError("read", file, sheet, err)
	}

	key := cache.Key{
		Path:          canonicalPath(file),
		Sheet:         sheet,
		Page:          opts.Page,
		PageSize:      opts.PageSize,
		Filter:        opts.Filter,
		ColumnFilters: opts.ColumnFilters,
		Sort:          opts.sortKey(),
	}
	if page, ok := e.cache.Get(key, mod); ok {
		return &page, nil
	}

	f, err := openWorkbook(src)
	if err != nil {
		return nil, newOpError("read", file, sheet, err)
	}
	defer f.Close()

	t, err := e.loadTable(f, file, sheet, cfg)
	if err != nil {
		return nil, newOpError("read", file, sheet, err)
	}
	page := t.page(opts)
	if err := e.cache.Set(key, *page, mod); err != nil {
		e.log.WithError(err).Debug("read not cached")
	}
	e.log.WithFields(logrus.Fields{
		"file":  file,
		"sheet": sheet,
		"page":  page.Page,
		"total": page.Total,
	}).Debug("sheet read")
	return page, nil
}

// page filters, sorts and slices the records.
func (t *sheetTable) page(opts ReadOptions) *models.SheetPage {
	rows := filterRows(t.records, opts.Filter, opts.ColumnFilters)
	if opts.Sort != nil && opts.Sort.Column != "" {
		sortRows(rows, *opts.Sort)
	}

	total := len(rows)
	start := (opts.Page - 1) * opts.PageSize
	if start > total {
		start = total
	}
	end := start + opts.PageSize
	if end > total {
		end = total
	}
	out := make([]models.Row, 0, end-start)
	for _, r := range rows[start:end] {
		out = append(out, r.Clone())
	}
	return &models.SheetPage{
		Rows:           out,
		Total:          total,
		Page:           opts.Page,
		PageSize:       opts.PageSize,
		Headers:        append([]string(nil), t.layout.Headers...),
		FormulaColumns: t.formulaColumns(),
		HeaderRow:      t.layout.Index,
	}
}

func filterRows(rows []models.Row, filter string, columns map[string]string) []models.Row {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(filter))
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if needle != "" && !rowContains(r, needle, fold) {
			continue
		}
		ok := true
		for col, want := range columns {
			want = fold.String(strings.TrimSpace(want))
			if want == "" {
				continue
			}
			if !strings.Contains(fold.String(valueString(r[col])), want) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func rowContains(r models.Row, needle string, fold cases.Caser) bool {
	for k, v := range r {
		if k == models.FieldRowNumber {
			continue
		}
		if strings.Contains(fold.String(valueString(v)), needle) {
			return true
		}
	}
	return false
}

func valueString(v any) string {
	if v == nil {
		return ""
	}
	return models.KeyString(v)
}

// sortRows orders rows by one column. Numbers compare numerically, other
// values case-insensitively, and empty values sort last in both directions.
func sortRows(rows []models.Row, spec config.SortSpec) {
	fold := cases.Fold()
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][spec.Column], rows[j][spec.Column]
		aEmpty, bEmpty := models.IsEmptyValue(a), models.IsEmptyValue(b)
		switch {
		case aEmpty && bEmpty:
			return false
		case aEmpty:
			return false
		case bEmpty:
			return true
		}
		c := compareValues(a, b, fold)
		if spec.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any, fold cases.Caser) int {
	af, aNum := number(a)
	bf, bNum := number(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(fold.String(valueString(a)), fold.String(valueString(b)))
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// WorkbookMeta lists the visible sheets of a workbook with their columns and
// record counts. Sheets whose header cannot be resolved are reported as
// unavailable rather than failing the listing.
func (e *Engine) WorkbookMeta(file string) (*models.WorkbookMeta, error) {
	cfg := e.store.Config()
	if _, err := statFile(file); err != nil {
		return nil, newOpError("meta", file, "", err)
	}
	src := readSource(cfg, file)
	mod, err := statFile(src)
	if err != nil {
		return nil, newOpError("meta", file, "", err)
	}
	f, err := openWorkbook(src)
	if err != nil {
		return nil, newOpError("meta", file, "", err)
	}
	defer f.Close()

	meta := &models.WorkbookMeta{
		Path:     file,
		BookName: filepath.Base(file),
		Sheets:   []models.SheetMeta{},
		ModTime:  mod,
	}
	if src != file {
		meta.Sidecar = src
	}
	pkg, err := parser.InspectPackage(src)
	if err != nil {
		e.log.WithError(err).WithField("file", file).Debug("package inspection failed")
	}
	meta.HasMacros = pkg.HasVBA

	for _, name := range f.GetSheetList() {
		if cfg.IsIgnored(name) || cfg.IsHidden(name) {
			continue
		}
		state := pkg.SheetStates[name]
		if state == "veryHidden" {
			continue
		}
		sm := models.SheetMeta{
			Name:     name,
			ReadOnly: cfg.IsReadOnly(name),
			Hidden:   state == "hidden",
		}
		t, err := e.loadTable(f, file, name, cfg)
		if err != nil {
			sm.Unavailable = true
			sm.Reason = err.Error()
			sm.Columns = []string{}
			meta.Sheets = append(meta.Sheets, sm)
			continue
		}
		sm.Columns = append([]string(nil), t.layout.Headers...)
		sm.Rows = len(t.records)
		sm.HeaderRow = t.layout.Index
		sm.UsedRange = t.grid.Bounds.A1()
		sm.FormulaColumns = t.formulaColumns()
		meta.Sheets = append(meta.Sheets, sm)
	}
	return meta, nil
}

