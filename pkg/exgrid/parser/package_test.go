package parser

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestInspectPackage(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("Secret"); err != nil {
		t.Fatalf("NewSheet failed: %v", err)
	}
	if err := f.SetSheetVisible("Secret", false); err != nil {
		t.Fatalf("SetSheetVisible failed: %v", err)
	}

	dir := t.TempDir()
	plain := filepath.Join(dir, "book.xlsx")
	if err := f.SaveAs(plain); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	info, err := InspectPackage(plain)
	if err != nil {
		t.Fatalf("InspectPackage failed: %v", err)
	}
	if info.HasVBA || info.MacroEnabled {
		t.Errorf("plain workbook reported macros: %+v", info)
	}
	if info.SheetStates["Sheet1"] != "visible" || info.SheetStates["Secret"] != "hidden" {
		t.Errorf("SheetStates = %v", info.SheetStates)
	}

	macro := filepath.Join(dir, "book.xlsm")
	if err := f.SaveAs(macro); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}
	withVBA := filepath.Join(dir, "vba.xlsm")
	addZipPart(t, macro, withVBA, "xl/vbaProject.bin", []byte("not really vba"))

	info, err = InspectPackage(withVBA)
	if err != nil {
		t.Fatalf("InspectPackage failed: %v", err)
	}
	if !info.HasVBA || !info.MacroEnabled {
		t.Errorf("macro workbook not detected: %+v", info)
	}
}

func TestSniffContainer(t *testing.T) {
	dir := t.TempDir()

	f := excelize.NewFile()
	defer f.Close()
	book := filepath.Join(dir, "book.xlsx")
	if err := f.SaveAs(book); err != nil {
		t.Fatalf("Failed to save test file: %v", err)
	}

	text := filepath.Join(dir, "notes.xlsx")
	if err := os.WriteFile(text, []byte("id,name\n1,a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.xlsx")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path     string
		expected ContainerFormat
	}{
		{book, ContainerOOXML},
		{text, ContainerUnknown},
		{empty, ContainerUnknown},
	}
	for _, tt := range tests {
		got, err := SniffContainer(tt.path)
		if err != nil {
			t.Fatalf("SniffContainer(%s) failed: %v", tt.path, err)
		}
		if got != tt.expected {
			t.Errorf("SniffContainer(%s) = %q, expected %q", filepath.Base(tt.path), got, tt.expected)
		}
	}

	if _, err := SniffContainer(filepath.Join(dir, "missing.xlsx")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

// addZipPart copies the zip at src to dst with one extra part appended.
func addZipPart(t *testing.T, src, dst, name string, data []byte) {
	t.Helper()

	r, err := zip.OpenReader(src)
	if err != nil {
		t.Fatalf("open %s: %v", src, err)
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, zf := range r.File {
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		part, err := w.Create(zf.Name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.Copy(part, rc); err != nil {
			t.Fatal(err)
		}
		rc.Close()
	}
	part, err := w.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
