package exgrid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/patch"
	"github.com/xuri/excelize/v2"
)

// mutation is the state of one locked write.
type mutation struct {
	cfg    config.Config
	f      *excelize.File
	sheet  string
	table  *sheetTable
	result models.MutationResult
	dirty  bool
	// rebuilt is the region after columns were appended.
	rebuilt *patch.Region
}

func (m *mutation) region() patch.Region {
	if m.rebuilt != nil {
		return *m.rebuilt
	}
	return patch.Region{
		HeaderRow: m.table.layout.Index + 1,
		FirstCol:  m.table.layout.FirstCol + 1,
		Headers:   m.table.layout.Headers,
	}
}

// mutate runs fn against a freshly loaded sheet while holding the file lock,
// then commits the workbook atomically if fn changed it.
func (e *Engine) mutate(ctx context.Context, op, file, sheet string, fn func(*mutation) error) (*models.MutationResult, error) {
	cfg := e.store.Config()
	if cfg.IsIgnored(sheet) {
		return nil, newOpError(op, file, sheet, ErrSheetNotFound)
	}
	if cfg.IsReadOnly(sheet) {
		return nil, newOpError(op, file, sheet, fmt.Errorf("%w: sheet %q is configured read-only", ErrReadOnly, sheet))
	}
	if _, err := statFile(file); err != nil {
		return nil, newOpError(op, file, sheet, err)
	}

	// The lock is keyed by the workbook even when writes go to its sidecar,
	// and is held before the sidecar is looked up or created.
	lk, err := e.locker.Acquire(ctx, file)
	if err != nil {
		e.log.WithFields(logrus.Fields{"file": file, "op": op}).Warn("lock not acquired")
		return nil, newOpError(op, file, sheet, err)
	}
	defer lk.Release()

	target, err := writeTarget(cfg, file)
	if err != nil {
		return nil, newOpError(op, file, sheet, err)
	}

	f, err := openWorkbook(target)
	if err != nil {
		return nil, newOpError(op, file, sheet, err)
	}
	defer f.Close()

	t, err := e.loadTable(f, file, sheet, cfg)
	if err != nil {
		return nil, newOpError(op, file, sheet, err)
	}
	m := &mutation{cfg: cfg, f: f, sheet: sheet, table: t}
	if err := fn(m); err != nil {
		var opErr *OpError
		if errors.As(err, &opErr) {
			if opErr.Op == "" {
				opErr.Op = op
			}
			return nil, opErr
		}
		return nil, newOpError(op, file, sheet, err)
	}

	if m.dirty {
		if err := commit(f, target); err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{"file": target, "op": op}).Error("commit failed")
			return nil, newOpError(op, file, sheet, err)
		}
		e.InvalidateCache(file)
	}
	m.result.Success = true
	if target != file {
		m.result.Target = target
	}
	e.log.WithFields(logrus.Fields{
		"file":   file,
		"sheet":  sheet,
		"op":     op,
		"method": m.result.Method,
		"cells":  m.result.Cells,
	}).Info("sheet mutated")
	return &m.result, nil
}

// commit serializes the workbook and replaces path in one rename.
func commit(f *excelize.File, path string) error {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// CreateRow adds a record. A missing primary key is generated. A record
// whose key already exists replaces the stored one in place. When opts.Index
// addresses an existing record, a worksheet row is inserted before it;
// otherwise the record goes below the last used row.
func (e *Engine) CreateRow(ctx context.Context, file, sheet string, row models.Row, opts CreateOptions) (*models.MutationResult, error) {
	return e.mutate(ctx, "create", file, sheet, func(m *mutation) error {
		pk := m.cfg.PKName
		rec := make(models.Row, len(row)+len(models.SystemFields))
		for k, v := range row {
			if k == models.FieldRowNumber || isSystemField(k) {
				continue
			}
			rec[k] = v
		}
		if models.IsEmptyValue(rec[pk]) {
			rec[pk] = e.newID()
		}
		now := e.now().UTC().Format(time.RFC3339)
		user := opts.userOr(m.cfg)
		rec[models.FieldVersion] = 1
		rec[models.FieldCreatedAt] = now
		rec[models.FieldCreatedBy] = user

		if idx, ok := m.table.find(pk, RowRef{PK: rec[pk]}); ok {
			cur := m.table.records[idx]
			e.log.WithFields(logrus.Fields{
				"file":  file,
				"sheet": sheet,
				"pk":    models.KeyString(rec[pk]),
				"row":   cur.RowNumber(),
			}).Warn("create hit an existing key, replacing row")
			rec[models.FieldRowNumber] = cur.RowNumber()
			m.table.records[idx] = rec
			m.result.Replaced = true
			keys := unionKeys(rec, m.table.layout.Headers)
			return m.writeRecord(rec, cur, keys, requiredKeys(rec))
		}

		records := m.table.records
		var phys int
		if opts.Index != nil && *opts.Index >= 0 && *opts.Index < len(records) {
			phys = records[*opts.Index].RowNumber()
			if err := m.f.InsertRows(sheet, phys, 1); err != nil {
				return fmt.Errorf("%w: %v", ErrWrite, err)
			}
			for _, r := range records {
				if n := r.RowNumber(); n >= phys {
					r[models.FieldRowNumber] = n + 1
				}
			}
			rec[models.FieldRowNumber] = phys
			records = append(records[:*opts.Index], append([]models.Row{rec}, records[*opts.Index:]...)...)
		} else {
			phys = m.table.lastRow() + 1
			rec[models.FieldRowNumber] = phys
			records = append(records, rec)
		}
		m.table.records = records

		filled, err := patch.PrepareRow(m.f, sheet, m.region(), phys, m.cfg.FillDownFormulas)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		for _, h := range filled {
			delete(rec, h)
		}
		m.dirty = m.dirty || len(filled) > 0
		return m.writeRecord(rec, nil, mapKeys(rec), requiredKeys(rec))
	})
}

// UpdateRow merges updates into a record. When expectedVersion is set it must
// match the stored _version; otherwise the update fails with a conflict that
// carries the stored row.
func (e *Engine) UpdateRow(ctx context.Context, file, sheet string, ref RowRef, updates models.Row, expectedVersion *int, opts MutationOptions) (*models.MutationResult, error) {
	return e.mutate(ctx, "update", file, sheet, func(m *mutation) error {
		idx, ok := m.table.find(m.cfg.PKName, ref)
		if !ok {
			return fmt.Errorf("%w: row %v", ErrRowNotFound, refString(ref))
		}
		cur := m.table.records[idx]
		if err := e.checkVersion(file, sheet, cur, expectedVersion); err != nil {
			return err
		}

		rec := cur.Clone()
		var keys []string
		for k, v := range updates {
			if k == models.FieldRowNumber || isSystemField(k) {
				continue
			}
			rec[k] = v
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec[models.FieldVersion] = cur.Version() + 1
		rec[models.FieldUpdatedAt] = e.now().UTC().Format(time.RFC3339)
		rec[models.FieldUpdatedBy] = opts.userOr(m.cfg)
		m.table.records[idx] = rec

		required := append(append([]string(nil), keys...), models.FieldVersion)
		keys = append(keys, models.FieldVersion, models.FieldUpdatedAt, models.FieldUpdatedBy)
		return m.writeRecord(rec, cur, keys, required)
	})
}

// DeleteRow blanks the cells of a record. Formula cells are kept, so the
// row stops being a record while computed columns stay intact.
func (e *Engine) DeleteRow(ctx context.Context, file, sheet string, ref RowRef, expectedVersion *int, opts MutationOptions) (*models.MutationResult, error) {
	return e.mutate(ctx, "delete", file, sheet, func(m *mutation) error {
		idx, ok := m.table.find(m.cfg.PKName, ref)
		if !ok {
			return fmt.Errorf("%w: row %v", ErrRowNotFound, refString(ref))
		}
		cur := m.table.records[idx]
		if err := e.checkVersion(file, sheet, cur, expectedVersion); err != nil {
			return err
		}

		region := m.region()
		patches := make([]models.CellPatch, 0, len(region.Headers))
		for _, h := range region.Headers {
			patches = append(patches, models.CellPatch{Addr: region.Addr(h, cur.RowNumber())})
		}
		res, err := patch.Apply(m.f, m.sheet, patches)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		m.table.records = append(m.table.records[:idx], m.table.records[idx+1:]...)
		m.dirty = true
		m.result.Method = models.MethodPatch
		m.result.Cells = res.Written
		m.result.SkippedCells = res.Skipped
		e.log.WithFields(logrus.Fields{
			"file":  file,
			"sheet": sheet,
			"row":   cur.RowNumber(),
			"user":  opts.userOr(m.cfg),
		}).Debug("row deleted")
		return nil
	})
}

// PatchCells writes individual cells of a sheet.
func (e *Engine) PatchCells(ctx context.Context, file, sheet string, patches []models.CellPatch, opts MutationOptions) (*models.MutationResult, error) {
	for _, p := range patches {
		if _, _, err := excelize.CellNameToCoordinates(p.Addr); err != nil {
			return nil, newOpError("patch", file, sheet, fmt.Errorf("%w: cell %q", ErrInvalidArgument, p.Addr))
		}
	}
	return e.mutate(ctx, "patch", file, sheet, func(m *mutation) error {
		res, err := patch.Apply(m.f, m.sheet, patches)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		m.dirty = res.Written > 0
		m.result.Method = models.MethodPatch
		m.result.Cells = res.Written
		m.result.SkippedCells = res.Skipped
		return nil
	})
}

// checkVersion enforces optimistic concurrency on a stored record.
func (e *Engine) checkVersion(file, sheet string, cur models.Row, expected *int) error {
	if expected == nil || *expected == cur.Version() {
		return nil
	}
	e.log.WithFields(logrus.Fields{
		"file":     file,
		"sheet":    sheet,
		"row":      cur.RowNumber(),
		"expected": *expected,
		"current":  cur.Version(),
	}).Warn("version conflict")
	opErr := newOpError("", file, sheet, fmt.Errorf("%w: expected version %d, found %d", ErrVersionConflict, *expected, cur.Version()))
	opErr.Current = cur.Clone()
	return opErr
}

// writeRecord writes keys of rec into its worksheet row. prev is the row
// as stored before, if any. When every required key is a column, only those
// cells are patched and formula cells are kept; otherwise the missing
// columns are appended and the whole table is rewritten.
func (m *mutation) writeRecord(rec, prev models.Row, keys, required []string) error {
	var missing []string
	for _, k := range required {
		if !m.table.hasHeader(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		res, err := m.rebuild(missing)
		if err != nil {
			return err
		}
		m.result.Row = m.stored(rec, prev, res.Skipped)
		return nil
	}

	region := m.region()
	row := rec.RowNumber()
	patches := make([]models.CellPatch, 0, len(keys))
	for _, k := range keys {
		addr := region.Addr(k, row)
		if addr == "" {
			continue
		}
		patches = append(patches, models.CellPatch{Addr: addr, Value: rec[k]})
	}
	res, err := patch.Apply(m.f, m.sheet, patches)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	m.dirty = true
	m.result.Method = models.MethodPatch
	m.result.Cells = res.Written
	m.result.SkippedCells = res.Skipped
	m.result.Row = m.stored(rec, prev, res.Skipped)
	return nil
}

// rebuild appends the missing columns, then any absent engine columns, and
// rewrites all records.
func (m *mutation) rebuild(missing []string) (patch.Result, error) {
	var user, system []string
	for _, k := range missing {
		if !isSystemField(k) {
			user = append(user, k)
		}
	}
	sort.Strings(user)
	for _, k := range models.SystemFields {
		if !m.table.hasHeader(k) {
			system = append(system, k)
		}
	}
	extra := append(user, system...)

	// New columns go right of every used cell so unlabelled data is kept.
	appendCol := max(m.table.grid.Bounds.EndCol, m.table.layout.LastCol) + 2
	region, res, err := patch.Rebuild(m.f, m.sheet, m.region(), m.table.records, extra, appendCol)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	m.rebuilt = &region
	m.table.layout.Headers = region.Headers
	m.table.layout.LastCol = region.Col(len(region.Headers)-1) - 1
	m.dirty = true
	m.result.Method = models.MethodRebuild
	m.result.Cells = res.Written
	m.result.SkippedCells = res.Skipped
	return res, nil
}

// stored returns rec as it now reads back: skipped formula cells report
// their previous values.
func (m *mutation) stored(rec, prev models.Row, skipped []string) models.Row {
	out := rec.Clone()
	if len(skipped) == 0 {
		return out
	}
	region := m.region()
	kept := map[string]bool{}
	for _, a := range skipped {
		kept[a] = true
	}
	for _, h := range region.Headers {
		if kept[region.Addr(h, rec.RowNumber())] {
			out[h] = prev[h]
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func isSystemField(k string) bool {
	return indexOf(models.SystemFields, k) >= 0
}

// requiredKeys lists the keys a create needs as columns: every user key
// plus _version. Audit fields are written only where columns exist.
func requiredKeys(rec models.Row) []string {
	var out []string
	for k := range rec {
		switch k {
		case models.FieldRowNumber, models.FieldCreatedAt, models.FieldCreatedBy, models.FieldUpdatedAt, models.FieldUpdatedBy:
			continue
		}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func mapKeys(rec models.Row) []string {
	out := make([]string, 0, len(rec))
	for k := range rec {
		if k != models.FieldRowNumber {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// unionKeys returns the keys of rec plus every header, so a replacing create
// clears columns the new record leaves out.
func unionKeys(rec models.Row, headers []string) []string {
	seen := map[string]bool{}
	out := mapKeys(rec)
	for _, k := range out {
		seen[k] = true
	}
	for _, h := range headers {
		if !seen[h] {
			out = append(out, h)
		}
	}
	return out
}

func refString(ref RowRef) string {
	if key := models.KeyString(ref.PK); key != "" {
		return key
	}
	return fmt.Sprintf("#%d", ref.Row)
}
