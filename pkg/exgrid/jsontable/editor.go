package jsontable

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"github.com/ohler55/ojg/oj"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/lock"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrReadOnly = errors.New("read-only table")
	ErrConflict = errors.New("value changed")
	ErrParse    = errors.New("invalid JSON")
	ErrWrite    = errors.New("write failed")
	ErrInvalid  = errors.New("invalid argument")
)

// ConflictError reports a failed precondition with the stored value.
type ConflictError struct {
	Path    string
	Current any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v at %q", ErrConflict, e.Path)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Expected is a precondition on the stored value. A nil *Expected skips the
// check; a zero Expected requires the value to be null or absent.
type Expected struct {
	Value any
}

// maxTemplateDepth bounds how deep nested arrays and objects are templated.
const maxTemplateDepth = 3

// Editor applies locked, atomic edits to JSON files.
type Editor struct {
	locker     *lock.Locker
	log        logrus.FieldLogger
	now        func() time.Time
	newUUID    func() string
	invalidate func(path string)
}

// Option configures an Editor.
type Option func(*Editor)

func WithLogger(log logrus.FieldLogger) Option { return func(e *Editor) { e.log = log } }

func WithClock(now func() time.Time) Option { return func(e *Editor) { e.now = now } }

// WithInvalidate sets the hook called with the file path after every write.
func WithInvalidate(fn func(path string)) Option { return func(e *Editor) { e.invalidate = fn } }

// NewEditor returns an Editor that serializes writers through locker.
func NewEditor(locker *lock.Locker, opts ...Option) *Editor {
	e := &Editor{
		locker:     locker,
		log:        logrus.StandardLogger(),
		now:        time.Now,
		newUUID:    uuid.NewString,
		invalidate: func(string) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Read parses a JSON file.
func (e *Editor) Read(file string) (any, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file)
		}
		return nil, err
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc, nil
}

// Schema reads a file and analyzes its tables.
func (e *Editor) Schema(file string) (Schema, error) {
	doc, err := e.Read(file)
	if err != nil {
		return Schema{}, err
	}
	return Analyze(doc), nil
}

// Get returns the value at path in a file.
func (e *Editor) Get(file, path string) (any, error) {
	doc, err := e.Read(file)
	if err != nil {
		return nil, err
	}
	v, found, err := lookup(doc, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: nothing at %q", ErrNotFound, path)
	}
	return v, nil
}

// edit runs fn on the parsed document under the file lock and writes the
// returned document back atomically.
func (e *Editor) edit(ctx context.Context, op, file string, fields logrus.Fields, fn func(doc any) (any, error)) error {
	err := e.locker.With(ctx, file, func() error {
		doc, err := e.Read(file)
		if err != nil {
			return err
		}
		if doc, err = fn(doc); err != nil {
			return err
		}
		out := oj.JSON(doc, &oj.Options{Indent: 2, Sort: true}) + "\n"
		if err := atomic.WriteFile(file, strings.NewReader(out)); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		return nil
	})
	log := e.log.WithFields(fields).WithFields(logrus.Fields{"file": file, "op": op})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			log.Warn("json precondition failed")
		} else {
			log.WithError(err).Error("json edit failed")
		}
		return err
	}
	e.invalidate(file)
	log.Info("json file updated")
	return nil
}

// UpdateScalar sets the value at path.
func (e *Editor) UpdateScalar(ctx context.Context, file, path string, value any, expect *Expected) error {
	return e.edit(ctx, "update-scalar", file, logrus.Fields{"path": path}, func(doc any) (any, error) {
		current, _, err := lookup(doc, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if expect != nil && canonical(current) != canonical(expect.Value) {
			return nil, &ConflictError{Path: path, Current: current}
		}
		out, err := assign(doc, path, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return out, nil
	})
}

// UpdateField sets one field of the item whose primary key is id.
func (e *Editor) UpdateField(ctx context.Context, file, tablePath string, id any, field string, value any, expect *Expected) error {
	fields := logrus.Fields{"table": tablePath, "pk": models.KeyString(id), "field": field}
	return e.edit(ctx, "update-field", file, fields, func(doc any) (any, error) {
		arr, meta, err := table(doc, tablePath)
		if err != nil {
			return nil, err
		}
		i, err := findItem(arr, meta.PKField, id)
		if err != nil {
			return nil, err
		}
		item := arr[i].(map[string]any)
		if expect != nil && canonical(item[field]) != canonical(expect.Value) {
			return nil, &ConflictError{Path: fmt.Sprintf("%s[%d].%s", tablePath, i, field), Current: item[field]}
		}
		item[field] = value
		return doc, nil
	})
}

// CreateRow appends an item to a table. A missing primary key is generated,
// a duplicate one is rejected, and fields the new item lacks are filled from
// the shape of the first item. The stored item is returned.
func (e *Editor) CreateRow(ctx context.Context, file, tablePath string, row map[string]any) (map[string]any, error) {
	var created map[string]any
	err := e.edit(ctx, "create", file, logrus.Fields{"table": tablePath}, func(doc any) (any, error) {
		arr, meta, err := table(doc, tablePath)
		if err != nil {
			return nil, err
		}
		item := make(map[string]any, len(row))
		for k, v := range row {
			item[k] = v
		}

		if pk := meta.PKField; pk != IndexPK {
			if item[pk] == nil {
				item[pk] = e.generatePK(arr, pk)
			}
			if _, err := findItem(arr, pk, item[pk]); err == nil {
				return nil, fmt.Errorf("%w: duplicate key %v", ErrInvalid, item[pk])
			}
		}
		if len(arr) > 0 {
			if sample, ok := arr[0].(map[string]any); ok {
				for k, v := range sample {
					if _, ok := item[k]; !ok {
						item[k] = topLevelTemplate(k, v)
					}
				}
			}
		}

		created = item
		return assign(doc, tablePath, append(arr, item))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteRow removes the item whose primary key is id.
func (e *Editor) DeleteRow(ctx context.Context, file, tablePath string, id any) error {
	fields := logrus.Fields{"table": tablePath, "pk": models.KeyString(id)}
	return e.edit(ctx, "delete", file, fields, func(doc any) (any, error) {
		arr, meta, err := table(doc, tablePath)
		if err != nil {
			return nil, err
		}
		i, err := findItem(arr, meta.PKField, id)
		if err != nil {
			return nil, err
		}
		next := append(append([]any{}, arr[:i]...), arr[i+1:]...)
		return assign(doc, tablePath, next)
	})
}

// table resolves a CRUD-enabled table in doc.
func table(doc any, tablePath string) ([]any, TableMeta, error) {
	meta, ok := Analyze(doc).ByPath[tablePath]
	if !ok {
		return nil, TableMeta{}, fmt.Errorf("%w: no table at %q", ErrNotFound, tablePath)
	}
	if !meta.AllowCRUD {
		return nil, meta, fmt.Errorf("%w: %q", ErrReadOnly, tablePath)
	}
	v, _, err := lookup(doc, tablePath)
	if err != nil {
		return nil, meta, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, meta, fmt.Errorf("%w: %q is not an array", ErrInvalid, tablePath)
	}
	return arr, meta, nil
}

func findItem(arr []any, pk string, id any) (int, error) {
	key := models.KeyString(id)
	if pk == IndexPK {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(arr) {
			return -1, fmt.Errorf("%w: row index %s out of bounds (%d items)", ErrNotFound, key, len(arr))
		}
		return i, nil
	}
	if key != "" {
		for i, v := range arr {
			if item, ok := v.(map[string]any); ok && models.KeyString(item[pk]) == key {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%w: no row with %s = %s", ErrNotFound, pk, key)
}

func (e *Editor) generatePK(arr []any, pk string) any {
	switch pk {
	case "id", "rowId":
		var max int64
		for _, v := range arr {
			item, _ := v.(map[string]any)
			switch n := item[pk].(type) {
			case int64:
				if n > max {
					max = n
				}
			case float64:
				if int64(n) > max {
					max = int64(n)
				}
			}
		}
		return max + 1
	case "uuid":
		return e.newUUID()
	}
	return "item-" + strconv.FormatInt(e.now().UnixMilli(), 10)
}

func topLevelTemplate(key string, sample any) any {
	if _, ok := sample.(string); ok {
		return "New " + key
	}
	return templateValue(sample, 1)
}

// templateValue returns an empty value of the same shape as sample.
func templateValue(sample any, depth int) any {
	switch v := sample.(type) {
	case string:
		return ""
	case int64, float64:
		return int64(0)
	case bool:
		return false
	case []any:
		items, ok := objectItems(v)
		if !ok || depth >= maxTemplateDepth {
			return []any{}
		}
		return []any{templateObject(items, depth+1)}
	case map[string]any:
		if depth >= maxTemplateDepth {
			return map[string]any{}
		}
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = templateValue(x, depth+1)
		}
		return out
	}
	return nil
}

// templateObject merges the keys of the first few items of an array.
func templateObject(items []map[string]any, depth int) map[string]any {
	if len(items) > 5 {
		items = items[:5]
	}
	out := map[string]any{}
	for _, item := range items {
		for k, v := range item {
			if _, ok := out[k]; !ok || out[k] == nil {
				out[k] = templateValue(v, depth)
			}
		}
	}
	return out
}
