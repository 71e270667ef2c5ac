package exgrid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/config"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/parser"
)

// SidecarPath returns the hidden working copy used for a macro workbook.
func SidecarPath(file string) string {
	dir, base := filepath.Split(file)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, "."+stem+".sidecar"+ext)
}

func isMacroExt(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".xlsm")
}

func sidecarMode(cfg config.Config) bool {
	return cfg.UseSidecarForXlsm && !cfg.AllowWriteBackToXlsm
}

// readSource returns the file reads should come from: the sidecar once one
// exists, the workbook itself otherwise.
func readSource(cfg config.Config, file string) string {
	if !isMacroExt(file) || !sidecarMode(cfg) {
		return file
	}
	side := SidecarPath(file)
	if _, err := os.Stat(side); err == nil {
		return side
	}
	return file
}

// writeTarget returns the file mutations go to. Macro workbooks are written
// directly only when allowed; otherwise a sidecar copy is created on first
// write, or the workbook is read-only. Callers hold the workbook's lock.
func writeTarget(cfg config.Config, file string) (string, error) {
	if !isMacroExt(file) {
		return file, nil
	}
	info, err := parser.InspectPackage(file)
	if err != nil || !info.HasVBA {
		// Not a readable macro package; let the open report the problem.
		return file, nil
	}
	if cfg.AllowWriteBackToXlsm {
		return file, nil
	}
	if !cfg.UseSidecarForXlsm {
		return "", fmt.Errorf("%w: workbook contains macros and write-back is disabled", ErrReadOnly)
	}

	side := SidecarPath(file)
	if _, err := os.Stat(side); err == nil {
		return side, nil
	}
	src, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer src.Close()
	if err := atomic.WriteFile(side, src); err != nil {
		return "", fmt.Errorf("%w: creating sidecar: %v", ErrWrite, err)
	}
	return side, nil
}
