package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported encoding names. Any other WHATWG label (e.g. "windows-1252") is
// resolved through htmlindex.
const (
	EncodingUTF16LE = "utf-16le"
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
)

// WriterOptions configures a DelimitedWriter.
type WriterOptions struct {
	// Comma is the field delimiter; zero means tab.
	Comma rune
	// Encoding of the output bytes; empty means UTF-16LE without a BOM.
	Encoding string
}

// DelimitedWriter writes records as delimited text in the target encoding.
// Every record is quoted by encoding/csv rules, terminated by CRLF, transcoded
// and handed to the destination before WriteRecord returns.
//
// A DelimitedWriter is not safe for concurrent use.
type DelimitedWriter struct {
	csv     *csv.Writer
	encoder *transform.Writer
	charset string
}

// NewDelimitedWriter creates a writer on dst.
func NewDelimitedWriter(dst io.Writer, opts WriterOptions) (*DelimitedWriter, error) {
	enc, charset, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	return newDelimitedWriter(dst, opts.Comma, enc, charset), nil
}

func newDelimitedWriter(dst io.Writer, comma rune, enc encoding.Encoding, charset string) *DelimitedWriter {
	if comma == 0 {
		comma = '\t'
	}

	encoder := transform.NewWriter(dst, enc.NewEncoder())
	w := csv.NewWriter(encoder)
	w.Comma = comma
	w.UseCRLF = true

	return &DelimitedWriter{csv: w, encoder: encoder, charset: charset}
}

// WriteRecord encodes one record and flushes it to the destination.
// A record holding a single empty cell is written as "" so it stays
// distinguishable from a blank record.
func (w *DelimitedWriter) WriteRecord(rec Record) error {
	if len(rec) == 1 && rec[0] == "" {
		w.csv.Flush()
		if err := w.csv.Error(); err != nil {
			return err
		}
		_, err := io.WriteString(w.encoder, `""`+"\r\n")
		return err
	}
	if err := w.csv.Write(rec); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// WriteRecords writes each record in turn.
func (w *DelimitedWriter) WriteRecords(recs []Record) error {
	return writeAll(w.WriteRecord, recs)
}

// Charset is the IANA name of the output encoding, for Content-Type headers.
func (w *DelimitedWriter) Charset() string {
	return w.charset
}

// Close flushes any pending encoder state. It does not close the destination.
func (w *DelimitedWriter) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.encoder.Close()
}

// LookupEncoding resolves an encoding name to an encoder and its charset label.
func LookupEncoding(name string) (encoding.Encoding, string, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", EncodingUTF16LE, "utf16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "UTF-16LE", nil
	case "utf-16be", "utf16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "UTF-16BE", nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), "UTF-16", nil
	case EncodingUTF8, "utf8":
		return unicode.UTF8, "UTF-8", nil
	case EncodingUTF8BOM, "utf8-bom", "utf-8-sig":
		return unicode.UTF8BOM, "UTF-8", nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, "", fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	label, err := htmlindex.Name(enc)
	if err != nil {
		label = name
	}
	return enc, label, nil
}
