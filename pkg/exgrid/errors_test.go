package exgrid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ukaji3/exgrid-go/pkg/exgrid/jsontable"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/lock"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err      error
		expected Code
	}{
		{newOpError("read", "a.xlsx", "", ErrFileNotFound), CodeNotFound},
		{newOpError("update", "a.xlsx", "S", fmt.Errorf("%w: row 42", ErrRowNotFound)), CodeNotFound},
		{newOpError("read", "a.xlsx", "S", ErrSheetNotFound), CodeSheetNotFound},
		{newOpError("update", "a.xlsx", "S", ErrVersionConflict), CodeVersionConflict},
		{newOpError("update", "a.xlsx", "S", fmt.Errorf("%w: a.xlsx", lock.ErrTimeout)), CodeLockTimeout},
		{newOpError("create", "a.xlsx", "S", errors.New("disk full")), CodeWriteError},
		{newOpError("read", "a.xlsx", "S", errors.New("zip: not a valid zip file")), CodeReadError},
		{fmt.Errorf("wrapped: %w", ErrInvalidFormat), CodeParseError},
		{&jsontable.ConflictError{Path: "a"}, CodeVersionConflict},
		{fmt.Errorf("%w: items", jsontable.ErrReadOnly), CodeReadOnly},
		{fmt.Errorf("%w: x.json", jsontable.ErrNotFound), CodeNotFound},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.expected {
			t.Errorf("CodeOf(%v) = %q, expected %q", tt.err, got, tt.expected)
		}
	}
}

func TestResultForConflictCarriesCurrent(t *testing.T) {
	err := newOpError("update", "a.xlsx", "S", ErrVersionConflict)
	err.Current = models.Row{"id": "42", "_version": 5, models.FieldRowNumber: 7}

	res := ResultFor(err)
	if res.Error != "version-conflict" {
		t.Errorf("Error = %q", res.Error)
	}
	current, ok := res.Current.(models.Row)
	if !ok {
		t.Fatalf("Current has type %T", res.Current)
	}
	if current["_version"] != 5 {
		t.Errorf("current version = %v", current["_version"])
	}
	if _, ok := current[models.FieldRowNumber]; ok {
		t.Errorf("row number leaked into boundary result")
	}
}

func TestResultForJSONConflict(t *testing.T) {
	res := ResultFor(&jsontable.ConflictError{Path: "items[0].name", Current: "bolt"})
	if res.Error != "version-conflict" || res.Current != "bolt" {
		t.Errorf("ResultFor = %+v", res)
	}
}
