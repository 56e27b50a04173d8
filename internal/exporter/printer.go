package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"

	"gadevtools/pkg/contracts/domain"
)

// Printer binds an Exporter to a sink.
type Printer struct {
	exporter *Exporter
	sink     Sink
	closers  []io.Closer
}

// NewPrinter writes reports exported with opts to sink.
func NewPrinter(sink Sink, opts Options) *Printer {
	p := &Printer{exporter: New(opts), sink: sink}
	if c, ok := sink.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
	return p
}

// NewWriterPrinter prints to w using the given writer options.
func NewWriterPrinter(w io.Writer, wopts WriterOptions, opts Options) (*Printer, error) {
	sink, err := NewDelimitedWriter(w, wopts)
	if err != nil {
		return nil, err
	}
	return NewPrinter(sink, opts), nil
}

// NewScreenPrinter prints tab-separated UTF-8 to a terminal, normally
// os.Stdout.
func NewScreenPrinter(w io.Writer, opts Options) *Printer {
	return NewPrinter(newDelimitedWriter(w, '\t', unicode.UTF8, "UTF-8"), opts)
}

// NewFilePrinter creates path and prints tab-separated UTF-16LE to it.
// The file is closed by Printer.Close.
func NewFilePrinter(path string, opts Options) (*Printer, error) {
	return NewFilePrinterWith(path, WriterOptions{}, opts)
}

// NewFilePrinterWith is NewFilePrinter with explicit writer options.
func NewFilePrinterWith(path string, wopts WriterOptions, opts Options) (*Printer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	sink, err := NewDelimitedWriter(file, wopts)
	if err != nil {
		file.Close()
		return nil, err
	}

	p := NewPrinter(sink, opts)
	p.closers = append(p.closers, file)
	return p, nil
}

// Output writes the full export of rep and returns the number of records written.
func (p *Printer) Output(rep *domain.AnalyticsReport) (int, error) {
	return p.exporter.Write(p.sink, rep)
}

// Close closes the sink and, for file printers, the file.
func (p *Printer) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
