package exporter

import (
	"fmt"
	"io"
	"strings"
)

// Format is an export file format.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat resolves a format name; the empty string selects TSV.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatTSV:
		return FormatTSV, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", name)
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type for the format with the given charset.
func (f Format) ContentType(charset string) string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=" + charset
	default:
		return "application/vnd.ms-excel; charset=" + charset
	}
}

// Filename replaces the extension of base with the format's own.
func (f Format) Filename(base string) string {
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base + f.Extension()
}

// ClosableSink is a sink that must be closed to complete its output.
type ClosableSink interface {
	Sink
	io.Closer
}

// NewSink creates the sink for format on dst. Delimited formats use encoding;
// it is ignored for XLSX. charset is the label to advertise to clients.
func NewSink(format Format, dst io.Writer, encoding string) (sink ClosableSink, charset string, err error) {
	switch format {
	case FormatXLSX:
		w, err := NewXLSXWriter(dst, "")
		if err != nil {
			return nil, "", err
		}
		return w, "", nil
	case FormatCSV:
		w, err := NewDelimitedWriter(dst, WriterOptions{Comma: ',', Encoding: encoding})
		if err != nil {
			return nil, "", err
		}
		return w, w.Charset(), nil
	default:
		w, err := NewDelimitedWriter(dst, WriterOptions{Comma: '\t', Encoding: encoding})
		if err != nil {
			return nil, "", err
		}
		return w, w.Charset(), nil
	}
}
