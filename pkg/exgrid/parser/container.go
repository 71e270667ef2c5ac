package parser

import (
	"bytes"
	"io"
	"os"

	"github.com/richardlehane/mscfb"
)

// ContainerFormat identifies the physical container of a spreadsheet file.
type ContainerFormat string

const (
	ContainerOOXML     ContainerFormat = "ooxml"
	ContainerEncrypted ContainerFormat = "encrypted-ooxml"
	ContainerLegacyXLS ContainerFormat = "legacy-xls"
	ContainerCFB       ContainerFormat = "compound-file"
	ContainerUnknown   ContainerFormat = "unknown"
)

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// SniffContainer inspects the file signature. Compound files are walked to
// tell password-protected OOXML apart from legacy BIFF workbooks.
func SniffContainer(path string) (ContainerFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerUnknown, err
	}
	defer f.Close()

	head := make([]byte, len(cfbMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return ContainerUnknown, nil
		}
		return ContainerUnknown, err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return ContainerOOXML, nil
	case !bytes.Equal(head, cfbMagic):
		return ContainerUnknown, nil
	}

	doc, err := mscfb.New(f)
	if err != nil {
		return ContainerCFB, nil
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptedPackage", "EncryptionInfo":
			return ContainerEncrypted, nil
		case "Workbook", "Book":
			return ContainerLegacyXLS, nil
		}
	}
	return ContainerCFB, nil
}
