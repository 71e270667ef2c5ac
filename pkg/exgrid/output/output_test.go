package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exgrid-go/pkg/exgrid/models"
)

func TestToJSON(t *testing.T) {
	res := models.ErrorResult{Error: "not-found", Message: "a < b"}

	tests := []struct {
		name   string
		pretty bool
		want   string
	}{
		{"compact", false, `{"error":"not-found","message":"a < b"}`},
		{"pretty", true, "{\n  \"error\": \"not-found\",\n  \"message\": \"a < b\"\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToJSON(res, tt.pretty)
			require.NoError(t, err)
			require.Equal(t, tt.want, string(got))
		})
	}
}

func TestWriteAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string]int{"n": 1}, false))
	require.Equal(t, "{\"n\":1}\n", buf.String())
}
