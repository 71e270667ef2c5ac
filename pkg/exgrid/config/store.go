package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
	"github.com/tiendc/go-deepcopy"
)

// Store owns the live configuration. Header row corrections and sort
// choices are written back to the config file atomically.
// A Store is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  Config
	log  logrus.FieldLogger
}

// NewStore wraps cfg. An empty path keeps changes in memory only.
func NewStore(cfg Config, path string, log logrus.FieldLogger) *Store {
	if cfg.HeaderRowConfig == nil {
		cfg.HeaderRowConfig = map[string]map[string]int{}
	}
	if cfg.SortState == nil {
		cfg.SortState = map[string]map[string]SortSpec{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{path: path, cfg: cfg, log: log}
}

// OpenStore loads the config file at path, falling back to defaults when it
// does not exist yet.
func OpenStore(path string, log logrus.FieldLogger) (*Store, error) {
	cfg, loaded, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	s := NewStore(cfg, path, log)
	s.log.WithFields(logrus.Fields{"path": path, "loaded": loaded}).Debug("config opened")
	return s, nil
}

// Path returns the backing file path, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Config
	if err := deepcopy.Copy(&out, s.cfg); err != nil {
		// Fall back to a shallow copy; callers only read it.
		return s.cfg
	}
	return out
}

// HeaderRow returns the configured header row for a sheet, looked up by
// absolute path first and basename second.
func (s *Store) HeaderRow(file, sheet string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range fileKeys(file) {
		if sheets, ok := s.cfg.HeaderRowConfig[key]; ok {
			if idx, ok := sheets[sheet]; ok && idx >= 0 {
				return idx, true
			}
		}
	}
	return 0, false
}

// SetHeaderRow records a header row under both the absolute path and the
// basename of file, then persists the config.
func (s *Store) SetHeaderRow(file, sheet string, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range fileKeys(file) {
		sheets := s.cfg.HeaderRowConfig[key]
		if sheets == nil {
			sheets = map[string]int{}
			s.cfg.HeaderRowConfig[key] = sheets
		}
		sheets[sheet] = idx
	}
	s.log.WithFields(logrus.Fields{"file": file, "sheet": sheet, "header_row": idx}).Info("header row saved")
	return s.saveLocked()
}

// SortState returns the saved sort choice for a sheet.
func (s *Store) SortState(file, sheet string) (SortSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.cfg.SortState[absKey(file)][sheet]
	return spec, ok
}

// SetSortState saves a sort choice. An empty column clears it.
func (s *Store) SetSortState(file, sheet string, spec SortSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := absKey(file)
	sheets := s.cfg.SortState[key]
	if spec.Column == "" {
		delete(sheets, sheet)
		if len(sheets) == 0 {
			delete(s.cfg.SortState, key)
		}
		return s.saveLocked()
	}
	if sheets == nil {
		sheets = map[string]SortSpec{}
		s.cfg.SortState[key] = sheets
	}
	sheets[sheet] = spec
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		s.log.WithError(err).WithField("path", s.path).Error("config write failed")
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func fileKeys(file string) []string {
	abs := absKey(file)
	base := filepath.Base(file)
	if abs == base {
		return []string{abs}
	}
	return []string{abs, base}
}

func absKey(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return file
}
