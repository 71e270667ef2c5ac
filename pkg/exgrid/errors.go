package exgrid

import (
	"errors"
	"fmt"

	"github.com/ukaji3/exgrid-go/pkg/exgrid/jsontable"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/lock"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
)

// Code is the stable identifier of an error kind, as reported to clients.
type Code string

const (
	CodeNotFound         Code = "not-found"
	CodeSheetNotFound    Code = "sheet-not-found"
	CodeSheetUnavailable Code = "sheet-unavailable"
	CodeReadOnly         Code = "read-only"
	CodeVersionConflict  Code = "version-conflict"
	CodeLockTimeout      Code = "lock-timeout"
	CodeWriteError       Code = "write-error"
	CodeReadError        Code = "read-error"
	CodeParseError       Code = "parse-error"
	CodeInvalidArgument  Code = "invalid-argument"
)

// ErrFileNotFound indicates the input file does not exist.
var ErrFileNotFound = errors.New("not found")

// ErrRowNotFound indicates no data row matches the given primary key or index.
var ErrRowNotFound = errors.New("row not found")

// ErrInvalidFormat indicates the input file could not be parsed.
var ErrInvalidFormat = errors.New("invalid workbook format")

var (
	ErrSheetNotFound    = errors.New("sheet not found")
	ErrSheetUnavailable = errors.New("sheet has no usable header row")
	ErrReadOnly         = errors.New("read-only")
	ErrVersionConflict  = errors.New("version conflict")
	ErrLockTimeout      = lock.ErrTimeout
	ErrWrite            = errors.New("write failed")
	ErrRead             = errors.New("read failed")
	ErrInvalidArgument  = errors.New("invalid argument")
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrVersionConflict, CodeVersionConflict},
	{ErrLockTimeout, CodeLockTimeout},
	{ErrReadOnly, CodeReadOnly},
	{ErrSheetUnavailable, CodeSheetUnavailable},
	{ErrSheetNotFound, CodeSheetNotFound},
	{ErrFileNotFound, CodeNotFound},
	{ErrRowNotFound, CodeNotFound},
	{ErrInvalidFormat, CodeParseError},
	{ErrWrite, CodeWriteError},
	{ErrRead, CodeReadError},
	{ErrInvalidArgument, CodeInvalidArgument},
	{jsontable.ErrConflict, CodeVersionConflict},
	{jsontable.ErrReadOnly, CodeReadOnly},
	{jsontable.ErrNotFound, CodeNotFound},
	{jsontable.ErrParse, CodeParseError},
	{jsontable.ErrWrite, CodeWriteError},
	{jsontable.ErrInvalid, CodeInvalidArgument},
}

// OpError represents a failed engine operation.
type OpError struct {
	Op    string // "read", "create", "update", "delete", "patch", "header", "meta", "export"
	Path  string
	Sheet string
	// Current is the stored row, set on version conflicts.
	Current models.Row
	Err     error
}

func (e *OpError) Error() string {
	if e.Sheet != "" {
		return fmt.Sprintf("%s %s [%s]: %v", e.Op, e.Path, e.Sheet, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// newOpError creates a new OpError.
func newOpError(op, path, sheet string, err error) *OpError {
	return &OpError{
		Op:    op,
		Path:  path,
		Sheet: sheet,
		Err:   err,
	}
}

// CodeOf maps an error to its client-facing code. Unknown errors map to
// write-error for mutations and read-error otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	var op *OpError
	if errors.As(err, &op) {
		switch op.Op {
		case "create", "update", "delete", "patch", "export":
			return CodeWriteError
		}
	}
	return CodeReadError
}

// ResultFor converts an error into its boundary form.
func ResultFor(err error) models.ErrorResult {
	res := models.ErrorResult{Error: string(CodeOf(err)), Message: err.Error()}
	var op *OpError
	if errors.As(err, &op) && op.Current != nil {
		current := op.Current.Clone()
		delete(current, models.FieldRowNumber)
		res.Current = current
	}
	var conflict *jsontable.ConflictError
	if errors.As(err, &conflict) {
		res.Current = conflict.Current
	}
	return res
}
