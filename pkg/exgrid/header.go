package exgrid

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
)

// Header resolution branches reported in HeaderInfo.Source.
const (
	SourceConfigured        = "configured"
	SourceDetected          = "detected"
	SourceFirstNonEmpty     = "first-non-empty"
	SourceDefault           = "default"
	SourceCorrectedOneBased = "corrected-one-based"
	SourceCorrectedDataRow  = "corrected-data-row"
	SourceCorrectedEmptyRow = "corrected-empty-row"
	SourceRedetected        = "redetected"
)

// headerLayout is a resolved header row. Columns are 0-based worksheet columns.
type headerLayout struct {
	Index     int
	Source    string
	Headers   []string
	FirstCol  int
	LastCol   int
	Corrected bool
	Previous  int
}

func (h headerLayout) info(sheet string) models.HeaderInfo {
	out := models.HeaderInfo{
		Sheet:     sheet,
		Index:     h.Index,
		Source:    h.Source,
		Headers:   append([]string(nil), h.Headers...),
		FirstCol:  h.FirstCol,
		LastCol:   h.LastCol,
		Corrected: h.Corrected,
	}
	if h.Corrected {
		prev := h.Previous
		out.Previous = &prev
	}
	return out
}

// column returns the 0-based worksheet column of a header, or -1.
func (h headerLayout) column(name string) int {
	for i, v := range h.Headers {
		if v == name {
			return h.FirstCol + i
		}
	}
	return -1
}

func compactOptions(cfg config.Config) parser.CompactOptions {
	return parser.CompactOptions{
		EnableTrim:              cfg.HeaderTrim.EnableTrim,
		UseSlidingWindow:        cfg.HeaderTrim.UseSlidingWindow,
		SlidingWindowSize:       cfg.HeaderTrim.SlidingWindowSize,
		SlidingDensityThreshold: cfg.HeaderTrim.SlidingDensityThreshold,
	}
}

// resolveHeader picks the header row of a sheet.
//
// A configured index is validated against the grid: an index one past the
// used range is taken as a 1-based mistake, an empty row falls back to the
// row above it or to detection, and a row that looks like data yields to a
// detected header. Any correction is persisted so the next resolution is
// stable.
func (e *Engine) resolveHeader(file string, g *parser.Grid, cfg config.Config) (headerLayout, error) {
	if g.Bounds.Empty() {
		return headerLayout{}, fmt.Errorf("%w: sheet is empty", ErrSheetUnavailable)
	}

	configured, hasConfig := e.store.HeaderRow(file, g.Sheet)
	var idx int
	var src string
	if !hasConfig {
		idx, src = detectHeader(g, cfg)
	} else {
		idx, src = configured, SourceConfigured
		if idx > g.Bounds.EndRow {
			if idx-1 > g.Bounds.EndRow {
				return headerLayout{}, fmt.Errorf("%w: configured header row %d is beyond the last used row %d",
					ErrSheetUnavailable, configured, g.Bounds.EndRow)
			}
			idx, src = idx-1, SourceCorrectedOneBased
		}
		if g.RowEmpty(idx) {
			if idx > 0 && !g.RowEmpty(idx-1) {
				idx, src = idx-1, SourceCorrectedEmptyRow
			} else {
				idx, _ = detectHeader(g, cfg)
				src = SourceRedetected
			}
		}
		// The row reached so far, shifted or not, must not look like data.
		if src != SourceRedetected && parser.IsLikelyDataRow(g.RowValues(idx, g.Bounds.StartCol, g.Bounds.EndCol)) {
			if d, ok := parser.DetectHeaderRow(g, cfg.HeaderScanRows); ok && d != idx {
				idx, src = d, SourceCorrectedDataRow
			}
		}
	}

	layout, err := layoutAt(g, idx, cfg)
	if err != nil {
		return headerLayout{}, err
	}
	layout.Source = src

	if hasConfig && idx != configured {
		layout.Corrected = true
		layout.Previous = configured
		e.log.WithFields(logrus.Fields{
			"file":     file,
			"sheet":    g.Sheet,
			"previous": configured,
			"resolved": idx,
			"source":   src,
		}).Info("header row corrected")
		if err := e.store.SetHeaderRow(file, g.Sheet, idx); err != nil {
			e.log.WithError(err).Warn("failed to persist header row correction")
		}
		e.InvalidateCache(file)
	}
	return layout, nil
}

func detectHeader(g *parser.Grid, cfg config.Config) (int, string) {
	if idx, ok := parser.DetectHeaderRow(g, cfg.HeaderScanRows); ok {
		return idx, SourceDetected
	}
	if idx, ok := parser.FirstNonEmptyRow(g, cfg.FallbackScanRows); ok {
		return idx, SourceFirstNonEmpty
	}
	return 0, SourceDefault
}

func layoutAt(g *parser.Grid, idx int, cfg config.Config) (headerLayout, error) {
	if g.RowEmpty(idx) {
		return headerLayout{}, fmt.Errorf("%w: header row %d is empty", ErrSheetUnavailable, idx)
	}
	raw := g.RowValues(idx, g.Bounds.StartCol, g.Bounds.EndCol)
	span := parser.CompactHeaders(raw, compactOptions(cfg))
	if len(span.Headers) == 0 {
		return headerLayout{}, fmt.Errorf("%w: header row %d has no columns", ErrSheetUnavailable, idx)
	}
	return headerLayout{
		Index:    idx,
		Headers:  span.Headers,
		FirstCol: g.Bounds.StartCol + span.FirstCol,
		LastCol:  g.Bounds.StartCol + span.LastCol,
	}, nil
}

// ResolveHeaderRow resolves, and if needed corrects, the header row of a sheet.
func (e *Engine) ResolveHeaderRow(file, sheet string) (*models.HeaderInfo, error) {
	cfg := e.store.Config()
	if _, err := statFile(file); err != nil {
		return nil, newOpError("header", file, sheet, err)
	}
	f, err := openWorkbook(readSource(cfg, file))
	if err != nil {
		return nil, newOpError("header", file, sheet, err)
	}
	defer f.Close()

	if err := checkSheet(f, cfg, sheet); err != nil {
		return nil, newOpError("header", file, sheet, err)
	}
	g, err := parser.LoadGrid(f, sheet)
	if err != nil {
		return nil, newOpError("header", file, sheet, fmt.Errorf("%w: %v", ErrRead, err))
	}
	layout, err := e.resolveHeader(file, g, cfg)
	if err != nil {
		return nil, newOpError("header", file, sheet, err)
	}
	info := layout.info(sheet)
	return &info, nil
}
