package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ohler55/ojg/oj"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/jsontable"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
)

type fileRequest struct {
	File string `json:"file"`
}

type sheetRequest struct {
	File  string `json:"file"`
	Sheet string `json:"sheet"`
}

type readRequest struct {
	File          string            `json:"file"`
	Sheet         string            `json:"sheet"`
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
	Filter        string            `json:"filter"`
	ColumnFilters map[string]string `json:"column_filters"`
	// Sort falls back to the saved sort state of the sheet when nil.
	Sort *exgrid.SortSpec `json:"sort"`
}

type createRequest struct {
	File  string     `json:"file"`
	Sheet string     `json:"sheet"`
	Row   models.Row `json:"row"`
	Index *int       `json:"index"`
	User  string     `json:"user"`
}

type rowRequest struct {
	File            string     `json:"file"`
	Sheet           string     `json:"sheet"`
	PK              any        `json:"pk"`
	Row             int        `json:"row"`
	Updates         models.Row `json:"updates"`
	ExpectedVersion *int       `json:"expected_version"`
	User            string     `json:"user"`
}

type patchRequest struct {
	File    string             `json:"file"`
	Sheet   string             `json:"sheet"`
	Patches []models.CellPatch `json:"patches"`
	User    string             `json:"user"`
}

type sortRequest struct {
	File  string          `json:"file"`
	Sheet string          `json:"sheet"`
	Sort  exgrid.SortSpec `json:"sort"`
}

type jsonRequest struct {
	File  string          `json:"file"`
	Path  string          `json:"path"`
	Table string          `json:"table"`
	ID    json.RawMessage `json:"id"`
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
	Row   json.RawMessage `json:"row"`
	// Expected, when present, must equal the stored value. A JSON null
	// expects the value to be null or absent.
	Expected json.RawMessage `json:"expected"`
}

type exportResponse struct {
	Path string `json:"path"`
}

type invalidateResponse struct {
	Entries int `json:"entries"`
}

type sortResponse struct {
	Sort  *exgrid.SortSpec `json:"sort"`
	Saved bool             `json:"saved"`
}

type jsonCreateResponse struct {
	Success bool           `json:"success"`
	Row     map[string]any `json:"row"`
}

var success = map[string]bool{"success": true}

func (s *Server) routes() {
	e := s.engine
	s.mux.HandleFunc("GET /ws", s.hub.ServeWS)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		s.write(w, http.StatusOK, success)
	})

	s.mux.HandleFunc("POST /api/workbook/meta", handle(s, "workbook/meta", func(_ context.Context, req fileRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return e.WorkbookMeta(req.File)
	}))
	s.mux.HandleFunc("POST /api/workbook/export", handle(s, "workbook/export", func(ctx context.Context, req fileRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		path, err := e.ExportWorkbook(ctx, req.File)
		if err != nil {
			return nil, err
		}
		return exportResponse{Path: path}, nil
	}))

	s.mux.HandleFunc("POST /api/sheet/read", handle(s, "sheet/read", func(_ context.Context, req readRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		sort := req.Sort
		if sort == nil {
			if saved, ok := e.SortState(req.File, req.Sheet); ok {
				sort = &saved
			}
		}
		return e.ReadSheet(req.File, req.Sheet, exgrid.ReadOptions{
			Page:          req.Page,
			PageSize:      req.PageSize,
			Filter:        req.Filter,
			ColumnFilters: req.ColumnFilters,
			Sort:          sort,
		})
	}))
	s.mux.HandleFunc("POST /api/sheet/header", handle(s, "sheet/header", func(_ context.Context, req sheetRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return e.ResolveHeaderRow(req.File, req.Sheet)
	}))
	s.mux.HandleFunc("POST /api/sheet/create", handle(s, "sheet/create", func(ctx context.Context, req createRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return e.CreateRow(ctx, req.File, req.Sheet, req.Row, exgrid.CreateOptions{
			MutationOptions: exgrid.MutationOptions{User: req.User},
			Index:           req.Index,
		})
	}))
	s.mux.HandleFunc("POST /api/sheet/update", handle(s, "sheet/update", func(ctx context.Context, req rowRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		ref := exgrid.RowRef{PK: req.PK, Row: req.Row}
		return e.UpdateRow(ctx, req.File, req.Sheet, ref, req.Updates, req.ExpectedVersion, exgrid.MutationOptions{User: req.User})
	}))
	s.mux.HandleFunc("POST /api/sheet/delete", handle(s, "sheet/delete", func(ctx context.Context, req rowRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		ref := exgrid.RowRef{PK: req.PK, Row: req.Row}
		return e.DeleteRow(ctx, req.File, req.Sheet, ref, req.ExpectedVersion, exgrid.MutationOptions{User: req.User})
	}))
	s.mux.HandleFunc("POST /api/sheet/patch", handle(s, "sheet/patch", func(ctx context.Context, req patchRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return e.PatchCells(ctx, req.File, req.Sheet, req.Patches, exgrid.MutationOptions{User: req.User})
	}))

	s.mux.HandleFunc("POST /api/cache/invalidate", handle(s, "cache/invalidate", func(_ context.Context, req fileRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return invalidateResponse{Entries: e.InvalidateCache(req.File)}, nil
	}))
	s.mux.HandleFunc("POST /api/sort/get", handle(s, "sort/get", func(_ context.Context, req sheetRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		spec, saved := e.SortState(req.File, req.Sheet)
		if !saved {
			return sortResponse{}, nil
		}
		return sortResponse{Sort: &spec, Saved: true}, nil
	}))
	s.mux.HandleFunc("POST /api/sort/set", handle(s, "sort/set", func(_ context.Context, req sortRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		if err := e.SetSortState(req.File, req.Sheet, req.Sort); err != nil {
			return nil, fmt.Errorf("%w: %v", exgrid.ErrWrite, err)
		}
		return success, nil
	}))

	s.jsonRoutes()
}

func (s *Server) jsonRoutes() {
	ed := s.engine.JSON()
	s.mux.HandleFunc("POST /api/json/schema", handle(s, "json/schema", func(_ context.Context, req jsonRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return ed.Schema(req.File)
	}))
	s.mux.HandleFunc("POST /api/json/read", handle(s, "json/read", func(_ context.Context, req jsonRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		return ed.Read(req.File)
	}))
	s.mux.HandleFunc("POST /api/json/update-scalar", handle(s, "json/update-scalar", func(ctx context.Context, req jsonRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		value, expect, err := req.payload()
		if err != nil {
			return nil, err
		}
		if err := ed.UpdateScalar(ctx, req.File, req.Path, value, expect); err != nil {
			return nil, err
		}
		return success, nil
	}))
	s.mux.HandleFunc("POST /api/json/update-field", handle(s, "json/update-field", func(ctx context.Context, req jsonRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		value, expect, err := req.payload()
		if err != nil {
			return nil, err
		}
		id, err := parseRaw(req.ID)
		if err != nil {
			return nil, err
		}
		if err := ed.UpdateField(ctx, req.File, req.Table, id, req.Field, value, expect); err != nil {
			return nil, err
		}
		return success, nil
	}))
	s.mux.HandleFunc("POST /api/json/create", handle(s, "json/create", func(ctx context.Context, req jsonRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		v, err := parseRaw(req.Row)
		if err != nil {
			return nil, err
		}
		row, _ := v.(map[string]any)
		if v != nil && row == nil {
			return nil, fmt.Errorf("%w: row must be an object", exgrid.ErrInvalidArgument)
		}
		created, err := ed.CreateRow(ctx, req.File, req.Table, row)
		if err != nil {
			return nil, err
		}
		return jsonCreateResponse{Success: true, Row: created}, nil
	}))
	s.mux.HandleFunc("POST /api/json/delete", handle(s, "json/delete", func(ctx context.Context, req jsonRequest) (any, error) {
		if err := requireFile(req.File); err != nil {
			return nil, err
		}
		id, err := parseRaw(req.ID)
		if err != nil {
			return nil, err
		}
		if err := ed.DeleteRow(ctx, req.File, req.Table, id); err != nil {
			return nil, err
		}
		return success, nil
	}))
}

// payload parses the value and the optional precondition with the same
// number handling as the JSON file reader.
func (r jsonRequest) payload() (any, *jsontable.Expected, error) {
	value, err := parseRaw(r.Value)
	if err != nil {
		return nil, nil, err
	}
	if len(r.Expected) == 0 {
		return value, nil, nil
	}
	want, err := parseRaw(r.Expected)
	if err != nil {
		return nil, nil, err
	}
	return value, &jsontable.Expected{Value: want}, nil
}

func parseRaw(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", exgrid.ErrInvalidArgument, err)
	}
	return v, nil
}

func requireFile(file string) error {
	if file == "" {
		return fmt.Errorf("%w: file is required", exgrid.ErrInvalidArgument)
	}
	return nil
}
