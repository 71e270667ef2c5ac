package parser

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"
)

// Package part names inspected directly in the OOXML zip.
const (
	partVBAProject   = "xl/vbaProject.bin"
	partContentTypes = "[Content_Types].xml"
	partWorkbook     = "xl/workbook.xml"
)

// PackageInfo describes an OOXML workbook package.
type PackageInfo struct {
	// HasVBA is set when the package carries a VBA project.
	HasVBA bool
	// MacroEnabled is set when the workbook content type is macro-enabled.
	MacroEnabled bool
	// SheetStates maps sheet name to its visibility ("visible", "hidden", "veryHidden").
	SheetStates map[string]string
}

// InspectPackage reads package-level facts that excelize does not expose.
func InspectPackage(xlsxPath string) (PackageInfo, error) {
	r, err := zip.OpenReader(xlsxPath)
	if err != nil {
		return PackageInfo{}, err
	}
	defer r.Close()

	var info PackageInfo
	for _, f := range r.File {
		if strings.EqualFold(f.Name, partVBAProject) {
			info.HasVBA = true
			break
		}
	}

	types, err := readZipFile(&r.Reader, partContentTypes)
	if err != nil {
		return PackageInfo{}, err
	}
	info.MacroEnabled = strings.Contains(string(types), "macroEnabled")

	wb, err := readZipFile(&r.Reader, partWorkbook)
	if err != nil {
		return PackageInfo{}, err
	}
	info.SheetStates = parseWorkbookSheetStates(wb)

	return info, nil
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, nil
}

func parseWorkbookSheetStates(data []byte) map[string]string {
	result := make(map[string]string) // sheet name -> state
	decoder := xml.NewDecoder(strings.NewReader(string(data)))

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		if se, ok := token.(xml.StartElement); ok && se.Name.Local == "sheet" {
			name, state := "", "visible"
			for _, attr := range se.Attr {
				switch attr.Name.Local {
				case "name":
					name = attr.Value
				case "state":
					state = attr.Value
				}
			}
			if name != "" {
				result[name] = state
			}
		}
	}

	return result
}
