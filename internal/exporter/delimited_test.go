package exporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gadevtools/pkg/contracts/domain"
)

func TestDelimitedWriter_UTF16LE(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewDelimitedWriter(&buf, WriterOptions{})
	require.NoError(t, err)
	assert.Equal(t, "UTF-16LE", w.Charset())

	require.NoError(t, w.WriteRecord(Record{"a", "é"}))
	require.NoError(t, w.Close())

	expected := []byte{
		'a', 0x00,
		'\t', 0x00,
		0xE9, 0x00,
		'\r', 0x00,
		'\n', 0x00,
	}
	assert.Equal(t, expected, buf.Bytes())
}

func TestDelimitedWriter_UTF16Surrogates(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewDelimitedWriter(&buf, WriterOptions{})
	require.NoError(t, err)

	require.NoError(t, w.WriteRecord(Record{"😀"}))

	// U+1F600 as a surrogate pair, little endian
	assert.Equal(t, []byte{0x3D, 0xD8, 0x00, 0xDE, '\r', 0x00, '\n', 0x00}, buf.Bytes())
}

func TestDelimitedWriter_Quoting(t *testing.T) {
	tests := []struct {
		name     string
		comma    rune
		record   Record
		expected string
	}{
		{
			name:     "tab separated plain",
			comma:    '\t',
			record:   Record{"ga:date", "ga:sessions"},
			expected: "ga:date\tga:sessions\r\n",
		},
		{
			name:     "tab inside field is quoted",
			comma:    '\t',
			record:   Record{"a\tb", "c"},
			expected: "\"a\tb\"\tc\r\n",
		},
		{
			name:     "comma is literal in tsv",
			comma:    '\t',
			record:   Record{"a,b,c"},
			expected: "a,b,c\r\n",
		},
		{
			name:     "comma quoted in csv",
			comma:    ',',
			record:   Record{"a,b", "c"},
			expected: "\"a,b\",c\r\n",
		},
		{
			name:     "embedded quotes doubled",
			comma:    ',',
			record:   Record{`say "hi"`},
			expected: "\"say \"\"hi\"\"\"\r\n",
		},
		{
			name:     "newline quoted",
			comma:    '\t',
			record:   Record{"line1\nline2"},
			expected: "\"line1\r\nline2\"\r\n",
		},
		{
			name:     "blank record",
			comma:    '\t',
			record:   Record{},
			expected: "\r\n",
		},
		{
			name:     "single empty cell",
			comma:    '\t',
			record:   Record{""},
			expected: "\"\"\r\n",
		},
		{
			name:     "two empty cells",
			comma:    ',',
			record:   Record{"", ""},
			expected: ",\r\n",
		},
		{
			name:     "escaped value untouched",
			comma:    '\t',
			record:   Record{"'-5"},
			expected: "'-5\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewDelimitedWriter(&buf, WriterOptions{Comma: tt.comma, Encoding: EncodingUTF8})
			require.NoError(t, err)

			require.NoError(t, w.WriteRecord(tt.record))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestDelimitedWriter_FlushesEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewDelimitedWriter(&buf, WriterOptions{})
	require.NoError(t, err)

	require.NoError(t, w.WriteRecord(Record{"x"}))
	first := buf.Len()
	assert.Equal(t, 6, first)

	require.NoError(t, w.WriteRecord(Record{"yz"}))
	assert.Equal(t, first+8, buf.Len())
}

func TestDelimitedWriter_SingleColumnReport(t *testing.T) {
	rep := &domain.AnalyticsReport{
		ColumnHeaders: []domain.ColumnHeader{{Name: "ga:date", ColumnType: "DIMENSION", DataType: "STRING"}},
		Rows:          [][]string{{""}, {"20200101"}},
	}

	var buf bytes.Buffer
	p, err := NewWriterPrinter(&buf, WriterOptions{Encoding: EncodingUTF8}, Options{})
	require.NoError(t, err)
	_, err = p.Output(rep)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ga:date\r\n\"\"\r\n20200101\r\n\r\n")
	assert.True(t, strings.HasSuffix(out, "Totals For All Rows Matched\r\n\"\"\r\n"), out)
}

func TestDelimitedWriter_WriteRecords(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewDelimitedWriter(&buf, WriterOptions{Encoding: "utf8"})
	require.NoError(t, err)

	require.NoError(t, w.WriteRecords([]Record{
		{"Rows Returned", "2"},
		{"Rows Matched", "2"},
	}))
	assert.Equal(t, "Rows Returned\t2\r\nRows Matched\t2\r\n", buf.String())
}

func TestDelimitedWriter_UTF8BOM(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewDelimitedWriter(&buf, WriterOptions{Encoding: EncodingUTF8BOM})
	require.NoError(t, err)

	require.NoError(t, w.WriteRecord(Record{"a"}))
	require.NoError(t, w.WriteRecord(Record{"b"}))
	assert.Equal(t, "\xEF\xBB\xBFa\r\nb\r\n", buf.String())
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestDelimitedWriter_DestinationError(t *testing.T) {
	w, err := NewDelimitedWriter(errWriter{}, WriterOptions{})
	require.NoError(t, err)

	assert.Error(t, w.WriteRecord(Record{"a"}))
}

func TestLookupEncoding(t *testing.T) {
	tests := []struct {
		name        string
		wantCharset string
		wantErr     bool
	}{
		{name: "", wantCharset: "UTF-16LE"},
		{name: "UTF-16LE", wantCharset: "UTF-16LE"},
		{name: "utf_16le", wantCharset: "UTF-16LE"},
		{name: "utf-16be", wantCharset: "UTF-16BE"},
		{name: "utf-8", wantCharset: "UTF-8"},
		{name: "utf-8-bom", wantCharset: "UTF-8"},
		{name: "windows-1252", wantCharset: "windows-1252"},
		{name: "klingon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, charset, err := LookupEncoding(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, enc)
			assert.Equal(t, tt.wantCharset, charset)
		})
	}
}
