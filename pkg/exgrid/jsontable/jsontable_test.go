package jsontable

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/lock"
)

const fixture = `{
  "title": "inventory",
  "items": [
    {"id": 1, "name": "bolt", "qty": 10, "tags": [{"k": "a", "v": 1}]},
    {"id": 2, "name": "nut", "qty": 0, "tags": []}
  ],
  "groups": {
    "a": [{"uuid": "3f1c2a9e-0b7d-4c1e-9a55-2f1e6f0d9c11", "label": "x"}],
    "b": [{"label": "same"}, {"label": "same"}]
  },
  "matrix": [[1, 2], [3, 4]]
}`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	return path
}

func newTestEditor(t *testing.T) (*Editor, *[]string) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	var written []string
	e := NewEditor(lock.New(time.Second, 10*time.Millisecond),
		WithLogger(log),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
		WithInvalidate(func(p string) { written = append(written, p) }),
	)
	return e, &written
}

func TestAnalyze(t *testing.T) {
	e, _ := newTestEditor(t)
	s, err := e.Schema(writeFixture(t))
	require.NoError(t, err)

	paths := make([]string, 0, len(s.ByPath))
	for p := range s.ByPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	want := []string{"groups.a", "groups.b", "items", "items[0].tags"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}

	items := s.ByPath["items"]
	require.Equal(t, TypeArrayOfObjects, items.Type)
	require.Equal(t, []string{"id", "name", "qty", "tags"}, items.Columns)
	require.False(t, items.IsLeaf)
	require.Equal(t, "id", items.PKField)
	require.True(t, items.AllowCRUD)
	require.Equal(t, 2, items.ItemCount)

	require.Equal(t, "uuid", s.ByPath["groups.a"].PKField)
	require.Equal(t, IndexPK, s.ByPath["groups.b"].PKField)
	require.Equal(t, "k", s.ByPath["items[0].tags"].PKField)
	require.True(t, s.ByPath["items[0].tags"].IsLeaf)
}

func TestUpdateScalar(t *testing.T) {
	e, written := newTestEditor(t)
	path := writeFixture(t)
	ctx := context.Background()

	require.NoError(t, e.UpdateScalar(ctx, path, "title", "stock", &Expected{Value: "inventory"}))
	doc, err := e.Read(path)
	require.NoError(t, err)
	got, _, err := lookup(doc, "title")
	require.NoError(t, err)
	require.Equal(t, "stock", got)
	require.Equal(t, []string{path}, *written)

	err = e.UpdateScalar(ctx, path, "items[1].qty", 5, &Expected{Value: 3})
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, int64(0), conflict.Current)

	require.NoError(t, e.UpdateScalar(ctx, path, "items[1].qty", 5, &Expected{Value: 0.0}))
	doc, err = e.Read(path)
	require.NoError(t, err)
	got, _, err = lookup(doc, "items[1].qty")
	require.NoError(t, err)
	require.Equal(t, int64(5), got)
}

func TestUpdateField(t *testing.T) {
	e, _ := newTestEditor(t)
	path := writeFixture(t)
	ctx := context.Background()

	require.NoError(t, e.UpdateField(ctx, path, "items", "2", "name", "washer", nil))
	doc, err := e.Read(path)
	require.NoError(t, err)
	got, _, err := lookup(doc, "items[1].name")
	require.NoError(t, err)
	require.Equal(t, "washer", got)

	err = e.UpdateField(ctx, path, "items", 9, "name", "x", nil)
	require.ErrorIs(t, err, ErrNotFound)

	err = e.UpdateField(ctx, path, "items", 1, "qty", 1, &Expected{Value: 11})
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, e.UpdateField(ctx, path, "groups.b", 1, "label", "other", nil))
	got, _, err = lookup(mustRead(t, e, path), "groups.b[1].label")
	require.NoError(t, err)
	require.Equal(t, "other", got)
}

func mustRead(t *testing.T, e *Editor, path string) any {
	t.Helper()
	doc, err := e.Read(path)
	require.NoError(t, err)
	return doc
}

func TestCreateRow(t *testing.T) {
	e, _ := newTestEditor(t)
	path := writeFixture(t)
	ctx := context.Background()

	row, err := e.CreateRow(ctx, path, "items", map[string]any{"name": "screw"})
	require.NoError(t, err)
	require.Equal(t, int64(3), row["id"])
	require.Equal(t, "screw", row["name"])
	require.Equal(t, int64(0), row["qty"])
	require.Equal(t, []any{map[string]any{"k": "", "v": int64(0)}}, row["tags"])

	s, err := e.Schema(path)
	require.NoError(t, err)
	require.Equal(t, 3, s.ByPath["items"].ItemCount)

	_, err = e.CreateRow(ctx, path, "items", map[string]any{"id": 1})
	require.ErrorIs(t, err, ErrInvalid)

	row, err = e.CreateRow(ctx, path, "groups.a", map[string]any{})
	require.NoError(t, err)
	_, err = uuid.Parse(row["uuid"].(string))
	require.NoError(t, err)
	require.Equal(t, "New label", row["label"])

	_, err = e.CreateRow(ctx, path, "nowhere", map[string]any{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRowGeneratesTimestampKeys(t *testing.T) {
	e, _ := newTestEditor(t)
	path := filepath.Join(t.TempDir(), "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"email": "a@x"}, {"email": "b@x"}]`), 0o644))

	row, err := e.CreateRow(context.Background(), path, "", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "item-1700000000000", row["email"])

	s, err := e.Schema(path)
	require.NoError(t, err)
	require.Equal(t, 3, s.ByPath[""].ItemCount)
}

func TestDeleteRow(t *testing.T) {
	e, _ := newTestEditor(t)
	path := writeFixture(t)
	ctx := context.Background()

	require.NoError(t, e.DeleteRow(ctx, path, "items", 1))
	s, err := e.Schema(path)
	require.NoError(t, err)
	require.Equal(t, 1, s.ByPath["items"].ItemCount)

	require.ErrorIs(t, e.DeleteRow(ctx, path, "items", 1), ErrNotFound)
	require.ErrorIs(t, e.DeleteRow(ctx, path, "groups.b", 5), ErrNotFound)
	require.NoError(t, e.DeleteRow(ctx, path, "groups.b", "0"))
}

func TestReadErrors(t *testing.T) {
	e, _ := newTestEditor(t)
	_, err := e.Read(filepath.Join(t.TempDir(), "none.json"))
	require.ErrorIs(t, err, ErrNotFound)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"a": `), 0o644))
	_, err = e.Read(bad)
	require.ErrorIs(t, err, ErrParse)
}

func TestCompilePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "$"},
		{"a", "$.a"},
		{"a.b[2].c", "$.a.b[2].c"},
		{"[0].x", "$[0].x"},
	}
	for _, tt := range tests {
		x, err := compilePath(tt.path)
		require.NoError(t, err)
		require.Equal(t, tt.want, x.String(), tt.path)
	}
	_, err := compilePath("a[x]")
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	e, _ := newTestEditor(t)
	file := writeFixture(t)

	v, err := e.Get(file, "title")
	require.NoError(t, err)
	require.Equal(t, "inventory", v)

	_, err = e.Get(file, "missing.key")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.Get(file, "items[x]")
	require.ErrorIs(t, err, ErrInvalid)
}
