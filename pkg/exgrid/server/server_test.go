package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exgrid-go/pkg/exgrid"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/xuri/excelize/v2"
)

func writeBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.xlsx")
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Items"))
	rows := [][]any{
		{"id", "name", "qty", "_version"},
		{1, "bolt", 5, 1},
		{2, "nut", 7, 2},
	}
	for r, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Items", addr, &row))
	}
	require.NoError(t, f.SaveAs(path))
	return path
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := config.NewStore(cfg, filepath.Join(t.TempDir(), "config.json"), log)
	srv := New(exgrid.New(store, exgrid.WithLogger(log)), log)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Hub().Run(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return srv, ts
}

func post(t *testing.T, ts *httptest.Server, route string, body any) (int, []byte) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+route, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestReadAndUpdate(t *testing.T) {
	_, ts := newTestServer(t, nil)
	book := writeBook(t)

	status, body := post(t, ts, "/api/sheet/read", map[string]any{"file": book, "sheet": "Items"})
	require.Equal(t, http.StatusOK, status, string(body))
	var page models.SheetPage
	require.NoError(t, json.Unmarshal(body, &page))
	require.Equal(t, 2, page.Total)
	require.Equal(t, []string{"id", "name", "qty", "_version"}, page.Headers)

	status, body = post(t, ts, "/api/sheet/update", map[string]any{
		"file": book, "sheet": "Items", "pk": 2,
		"updates": map[string]any{"qty": 9}, "expected_version": 2,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var res models.MutationResult
	require.NoError(t, json.Unmarshal(body, &res))
	require.True(t, res.Success)
	require.Equal(t, models.MethodPatch, res.Method)
	require.EqualValues(t, 3, res.Row[models.FieldVersion])
}

func TestUpdateConflictReturnsCurrent(t *testing.T) {
	_, ts := newTestServer(t, nil)
	book := writeBook(t)

	status, body := post(t, ts, "/api/sheet/update", map[string]any{
		"file": book, "sheet": "Items", "pk": 1,
		"updates": map[string]any{"qty": 1}, "expected_version": 7,
	})
	require.Equal(t, http.StatusConflict, status)
	var res struct {
		Error   string         `json:"error"`
		Current map[string]any `json:"current"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	require.Equal(t, "version-conflict", res.Error)
	require.Equal(t, "bolt", res.Current["name"])
	require.EqualValues(t, 1, res.Current[models.FieldVersion])
}

func TestErrorStatuses(t *testing.T) {
	_, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.ReadOnlySheets = []string{"Items"}
	})
	book := writeBook(t)

	tests := []struct {
		name   string
		route  string
		body   any
		status int
		code   string
	}{
		{"missing file", "/api/sheet/read", map[string]any{"file": filepath.Join(t.TempDir(), "nope.xlsx"), "sheet": "Items"}, http.StatusNotFound, "not-found"},
		{"missing sheet", "/api/sheet/read", map[string]any{"file": book, "sheet": "Nope"}, http.StatusNotFound, "sheet-not-found"},
		{"read-only sheet", "/api/sheet/create", map[string]any{"file": book, "sheet": "Items", "row": map[string]any{"name": "x"}}, http.StatusForbidden, "read-only"},
		{"no file", "/api/workbook/meta", map[string]any{}, http.StatusUnprocessableEntity, "invalid-argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, ts, tt.route, tt.body)
			require.Equal(t, tt.status, status, string(body))
			var res models.ErrorResult
			require.NoError(t, json.Unmarshal(body, &res))
			require.Equal(t, tt.code, res.Error)
		})
	}
}

func TestMalformedBody(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/api/sheet/read", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSortState(t *testing.T) {
	_, ts := newTestServer(t, nil)
	book := writeBook(t)

	status, _ := post(t, ts, "/api/sort/set", map[string]any{
		"file": book, "sheet": "Items", "sort": map[string]any{"column": "qty", "desc": true},
	})
	require.Equal(t, http.StatusOK, status)

	status, body := post(t, ts, "/api/sort/get", map[string]any{"file": book, "sheet": "Items"})
	require.Equal(t, http.StatusOK, status)
	var got sortResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.True(t, got.Saved)
	require.Equal(t, "qty", got.Sort.Column)

	// Reads without an explicit sort use the saved one.
	_, body = post(t, ts, "/api/sheet/read", map[string]any{"file": book, "sheet": "Items"})
	var page models.SheetPage
	require.NoError(t, json.Unmarshal(body, &page))
	require.Equal(t, "nut", page.Rows[0]["name"])
}

func TestJSONRoutes(t *testing.T) {
	_, ts := newTestServer(t, nil)
	file := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"items":[{"id":1,"name":"a"},{"id":2,"name":"b"}]}`), 0o644))

	status, body := post(t, ts, "/api/json/update-field", map[string]any{
		"file": file, "table": "items", "id": 2, "field": "name", "value": "bee", "expected": "b",
	})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = post(t, ts, "/api/json/update-field", map[string]any{
		"file": file, "table": "items", "id": 2, "field": "name", "value": "c", "expected": "b",
	})
	require.Equal(t, http.StatusConflict, status)
	var conflict models.ErrorResult
	require.NoError(t, json.Unmarshal(body, &conflict))
	require.Equal(t, "bee", conflict.Current)

	status, body = post(t, ts, "/api/json/create", map[string]any{
		"file": file, "table": "items", "row": map[string]any{"name": "c"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var created jsonCreateResponse
	require.NoError(t, json.Unmarshal(body, &created))
	require.EqualValues(t, 3, created.Row["id"])

	status, body = post(t, ts, "/api/json/schema", map[string]any{"file": file})
	require.Equal(t, http.StatusOK, status)
	var schema struct {
		ByPath map[string]struct {
			PKField   string `json:"pk_field"`
			ItemCount int    `json:"item_count"`
		} `json:"byPath"`
	}
	require.NoError(t, json.Unmarshal(body, &schema))
	require.Equal(t, "id", schema.ByPath["items"].PKField)
	require.Equal(t, 3, schema.ByPath["items"].ItemCount)
}

func TestWebsocketReceivesInvalidation(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	book := writeBook(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, body := post(t, ts, "/api/sheet/update", map[string]any{
		"file": book, "sheet": "Items", "pk": 1, "updates": map[string]any{"qty": 6},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.Equal(t, EventInvalidated, ev.Type)
	abs, err := filepath.Abs(book)
	require.NoError(t, err)
	require.Equal(t, abs, ev.Path)
}
