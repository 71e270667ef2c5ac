package exgrid

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/cache"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/jsontable"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/lock"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
	"github.com/xuri/excelize/v2"
)

// Engine serves reads and mutations of worksheet tables.
// It is safe for concurrent use.
type Engine struct {
	store  *config.Store
	cache  *cache.Cache[models.SheetPage]
	locker *lock.Locker
	log    logrus.FieldLogger
	now    func() time.Time
	newID  func() string
	json   *jsontable.Editor
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock sets the time source used for audit stamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the primary key generator for created rows.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New returns an Engine backed by store. Cache and lock timings are taken
// from the store's config at construction.
func New(store *config.Store, opts ...Option) *Engine {
	cfg := store.Config()
	e := &Engine{
		store:  store,
		cache:  cache.New[models.SheetPage](cfg.CacheTTL()),
		locker: lock.New(cfg.LockTimeout(), cfg.LockRetry()),
		log:    logrus.StandardLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cache.SetClock(e.now)
	e.json = jsontable.NewEditor(e.locker,
		jsontable.WithLogger(e.log),
		jsontable.WithClock(e.now),
		jsontable.WithInvalidate(func(path string) { e.InvalidateCache(path) }),
	)
	return e
}

// JSON returns the editor for JSON file tables. It shares the engine's
// locks and invalidation subscribers.
func (e *Engine) JSON() *jsontable.Editor {
	return e.json
}

// Store returns the config store.
func (e *Engine) Store() *config.Store {
	return e.store
}

// Locker returns the file locker shared by all writers of this engine.
func (e *Engine) Locker() *lock.Locker {
	return e.locker
}

// InvalidateCache drops every cached read of path and notifies subscribers.
func (e *Engine) InvalidateCache(path string) int {
	n := e.cache.Invalidate(canonicalPath(path))
	e.log.WithFields(logrus.Fields{"file": path, "entries": n}).Debug("cache invalidated")
	return n
}

// OnInvalidate registers fn to be called with the canonical path of every
// invalidated file.
func (e *Engine) OnInvalidate(fn func(path string)) {
	e.cache.OnInvalidate(fn)
}

// SortState returns the saved sort choice of a sheet.
func (e *Engine) SortState(file, sheet string) (SortSpec, bool) {
	return e.store.SortState(file, sheet)
}

// SetSortState saves a sort choice; an empty column clears it.
func (e *Engine) SetSortState(file, sheet string, spec SortSpec) error {
	return e.store.SetSortState(file, sheet, spec)
}

// canonicalPath is the form of a path used for cache keys and events.
func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// statFile returns the modification time of path, mapping a missing file to
// ErrFileNotFound.
func statFile(path string) (time.Time, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, ErrFileNotFound
		}
		return time.Time{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if st.IsDir() {
		return time.Time{}, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, path)
	}
	return st.ModTime(), nil
}

// openWorkbook opens path with excelize and classifies failures.
func openWorkbook(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	format, sniffErr := parser.SniffContainer(path)
	if sniffErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, sniffErr)
	}
	switch format {
	case parser.ContainerEncrypted:
		return nil, fmt.Errorf("%w: workbook is password protected", ErrInvalidFormat)
	case parser.ContainerLegacyXLS:
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported", ErrInvalidFormat)
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
}

// checkSheet verifies the sheet exists and is not ignored.
func checkSheet(f *excelize.File, cfg config.Config, sheet string) error {
	if cfg.IsIgnored(sheet) {
		return ErrSheetNotFound
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return ErrSheetNotFound
	}
	return nil
}
