package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roster = Dataset{
	Title:   "Users",
	Headers: []string{"username", "email", "status"},
	Rows: [][]string{
		{"testuser", "testuser@example.com", "active"},
		{"quote", "a,b@example.com", "locked"},
	},
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(roster)
	require.NoError(t, err)
	assert.Equal(t, "username,email,status\ntestuser,testuser@example.com,active\nquote,\"a,b@example.com\",locked\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := Render(FormatPDF, roster)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRejectsBadDatasets(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{})
	assert.Error(t, err)

	_, err = Render(FormatPDF, Dataset{Headers: []string{"a", "b"}, Rows: [][]string{{"only-one"}}})
	assert.Error(t, err)

	_, err = Render(Format("xml"), roster)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
