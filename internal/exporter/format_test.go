package exporter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"", FormatTSV, false},
		{"tsv", FormatTSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormat_ContentTypeAndFilename(t *testing.T) {
	assert.Equal(t, "application/vnd.ms-excel; charset=UTF-16LE", FormatTSV.ContentType("UTF-16LE"))
	assert.Equal(t, "text/csv; charset=UTF-8", FormatCSV.ContentType("UTF-8"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", FormatXLSX.ContentType(""))

	assert.Equal(t, "query_explorer.tsv", FormatTSV.Filename("query_explorer.tsv"))
	assert.Equal(t, "query_explorer.csv", FormatCSV.Filename("query_explorer.tsv"))
	assert.Equal(t, "report.xlsx", FormatXLSX.Filename("report"))
}

func TestNewSink(t *testing.T) {
	tests := []struct {
		format      Format
		encoding    string
		wantCharset string
	}{
		{FormatTSV, "", "UTF-16LE"},
		{FormatCSV, "utf-8", "UTF-8"},
		{FormatXLSX, "utf-8", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			sink, charset, err := NewSink(tt.format, &buf, tt.encoding)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCharset, charset)

			require.NoError(t, sink.WriteRecord(Record{"a", "b"}))
			require.NoError(t, sink.Close())
			assert.NotZero(t, buf.Len())
		})
	}
}
