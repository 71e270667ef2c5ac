// Package output serializes engine results for the CLI and the HTTP API.
package output

import (
	"bytes"
	"encoding/json"
	"io"
)

// ToJSON encodes v. HTML characters are not escaped so cell text is
// emitted as-is.
func ToJSON(v any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, v, pretty); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write encodes v to w followed by a newline.
func Write(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
