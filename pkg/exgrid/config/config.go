// Package config holds the typed configuration of the grid engine and the
// store that persists header corrections and sort state.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
)

var (
	errConfigFileRead = errors.New("cannot read config file")
	errConfigInvalid  = errors.New("invalid config file")
	errPKNameEmpty    = errors.New("pkName cannot be empty")
	errPageSize       = errors.New("maxPageSize and defaultPageSize must be positive")
	errLockTiming     = errors.New("lockTimeoutMs and lockRetryMs must be positive")
	errWindow         = errors.New("headerTrim.slidingWindowSize must be positive")
)

// HeaderTrim configures compaction of sparse header rows.
type HeaderTrim struct {
	EnableTrim              bool    `json:"enableTrim"`
	UseSlidingWindow        bool    `json:"useSlidingWindow"`
	SlidingWindowSize       int     `json:"slidingWindowSize"`
	SlidingDensityThreshold float64 `json:"slidingDensityThreshold"`
}

// SortSpec is a persisted sort choice for one sheet.
type SortSpec struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Config holds all configuration options.
type Config struct {
	// PKName is the primary key column.
	PKName string `json:"pkName"`
	// HeaderRowConfig maps a workbook key (absolute path or basename) to
	// sheet name to 0-based header row index.
	HeaderRowConfig map[string]map[string]int `json:"headerRowConfig,omitempty"`
	CacheTTLMs      int                       `json:"cacheTtlMs"`
	MaxPageSize     int                       `json:"maxPageSize"`
	DefaultPageSize int                       `json:"defaultPageSize"`
	// HiddenSheets are left out of workbook listings but stay readable.
	HiddenSheets []string `json:"hiddenSheets,omitempty"`
	// IgnoreSheets are treated as absent.
	IgnoreSheets   []string `json:"ignoreSheets,omitempty"`
	ReadOnlySheets []string `json:"readOnlySheets,omitempty"`
	// UseSidecarForXlsm routes writes for macro workbooks to a sidecar copy.
	UseSidecarForXlsm bool `json:"useSidecarForXlsm"`
	// AllowWriteBackToXlsm permits writing macro workbooks directly.
	AllowWriteBackToXlsm bool `json:"allowWriteBackToXlsm"`
	LockTimeoutMs        int  `json:"lockTimeoutMs"`
	LockRetryMs          int  `json:"lockRetryMs"`
	HeaderScanRows       int  `json:"headerScanRows"`
	FallbackScanRows     int  `json:"fallbackScanRows"`
	// FillDownFormulas copies formulas from the row above into created rows.
	FillDownFormulas bool       `json:"fillDownFormulas"`
	HeaderTrim       HeaderTrim `json:"headerTrim"`
	DefaultUser      string     `json:"defaultUser"`
	// SortState maps a workbook path to sheet name to sort choice.
	SortState map[string]map[string]SortSpec `json:"sortState,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PKName:            "id",
		HeaderRowConfig:   map[string]map[string]int{},
		CacheTTLMs:        2000,
		MaxPageSize:       200,
		DefaultPageSize:   25,
		UseSidecarForXlsm: true,
		LockTimeoutMs:     5000,
		LockRetryMs:       200,
		HeaderScanRows:    50,
		FallbackScanRows:  200,
		FillDownFormulas:  true,
		HeaderTrim: HeaderTrim{
			EnableTrim:              true,
			UseSlidingWindow:        true,
			SlidingWindowSize:       10,
			SlidingDensityThreshold: 0.25,
		},
		DefaultUser: "system",
		SortState:   map[string]map[string]SortSpec{},
	}
}

// CacheTTL returns the read cache lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMs) * time.Millisecond
}

// LockTimeout returns how long to wait for a file lock.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// LockRetry returns the delay between lock attempts.
func (c Config) LockRetry() time.Duration {
	return time.Duration(c.LockRetryMs) * time.Millisecond
}

// IsReadOnly reports whether a sheet rejects mutations.
func (c Config) IsReadOnly(sheet string) bool {
	return containsFold(c.ReadOnlySheets, sheet)
}

// IsIgnored reports whether a sheet is treated as absent.
func (c Config) IsIgnored(sheet string) bool {
	return containsFold(c.IgnoreSheets, sheet)
}

// IsHidden reports whether a sheet is left out of listings.
func (c Config) IsHidden(sheet string) bool {
	return containsFold(c.HiddenSheets, sheet)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

// GlobalConfigPath returns the path to the user config file.
// Uses $XDG_CONFIG_HOME/exgrid/config.json if set, otherwise ~/.config/exgrid/config.json.
// Returns empty string if home directory cannot be determined.
func GlobalConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "exgrid", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "exgrid", "config.json")
	}

	return ""
}

// LoadFile loads a config file on top of the defaults.
// A missing file yields the defaults and loaded == false.
func LoadFile(path string) (cfg Config, loaded bool, err error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), false, nil
		}
		return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	cfg, err = Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse decodes JSONC config data. Keys absent from data keep their defaults.
func Parse(data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	cfg := DefaultConfig()

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	if cfg.HeaderRowConfig == nil {
		cfg.HeaderRowConfig = map[string]map[string]int{}
	}
	if cfg.SortState == nil {
		cfg.SortState = map[string]map[string]SortSpec{}
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.PKName) == "" {
		return errPKNameEmpty
	}
	if cfg.MaxPageSize < 1 || cfg.DefaultPageSize < 1 {
		return errPageSize
	}
	if cfg.LockTimeoutMs < 1 || cfg.LockRetryMs < 1 {
		return errLockTiming
	}
	if cfg.HeaderTrim.SlidingWindowSize < 1 {
		return errWindow
	}
	return nil
}

// Format returns the config as formatted JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
