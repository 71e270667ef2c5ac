package exgrid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/sirupsen/logrus"
)

// ExportWorkbook copies the current state of a workbook, including any
// sidecar edits, next to it as <stem>.copy.<unix-ms><ext>. It returns the
// path of the copy.
func (e *Engine) ExportWorkbook(ctx context.Context, file string) (string, error) {
	cfg := e.store.Config()
	if _, err := statFile(file); err != nil {
		return "", newOpError("export", file, "", err)
	}

	var dest string
	err := e.locker.With(ctx, file, func() error {
		src, err := os.Open(readSource(cfg, file))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRead, err)
		}
		defer src.Close()

		dest = ExportPath(file, e.now().UnixMilli())
		if err := atomic.WriteFile(dest, src); err != nil {
			return fmt.Errorf("%w: %v", ErrWrite, err)
		}
		return nil
	})
	if err != nil {
		return "", newOpError("export", file, "", err)
	}
	e.log.WithFields(logrus.Fields{"file": file, "copy": dest}).Info("workbook exported")
	return dest, nil
}

// ExportPath returns the name of an export copy taken at ms.
func ExportPath(file string, ms int64) string {
	ext := filepath.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	return stem + ".copy." + strconv.FormatInt(ms, 10) + ext
}
