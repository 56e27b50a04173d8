// Command tsvexport converts a Core Reporting API response into the Query
// Explorer download format.
//
// Usage:
//
//	tsvexport [flags] [report.json]
//
// The report is read from standard input when no file is given. Output goes
// to standard output unless -o is set.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gadevtools/internal/config"
	"gadevtools/internal/exporter"
	"gadevtools/internal/infrastructure"
	"gadevtools/internal/report"
	"gadevtools/internal/validation"
	"gadevtools/pkg/contracts"
	"gadevtools/pkg/contracts/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type options struct {
	format   exporter.Format
	output   string
	encoding string
	strict   bool
	input    string
}

// errVersion stops flag handling after -version was printed.
var errVersion = errors.New("version requested")

func parseFlags(args []string, stderr io.Writer) (*options, *slog.Logger, error) {
	fs := flag.NewFlagSet("tsvexport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	format := fs.String("format", "tsv", "output format: tsv, csv or xlsx")
	output := fs.String("o", "", "output file (defaults to standard output)")
	encoding := fs.String("encoding", "", "text encoding of tsv/csv output (utf-8 on standard output, utf-16le for files)")
	strict := fs.Bool("strict", false, "reject totals for metrics missing from the column headers")
	logLevel := fs.String("log-level", "warn", "log level: debug, info, warn or error")
	version := fs.Bool("version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if *version {
		return nil, nil, errVersion
	}
	if fs.NArg() > 1 {
		return nil, nil, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}

	f, err := exporter.ParseFormat(*format)
	if err != nil {
		return nil, nil, err
	}

	opts := &options{
		format:   f,
		output:   *output,
		encoding: *encoding,
		strict:   *strict,
		input:    fs.Arg(0),
	}
	if opts.encoding == "" {
		opts.encoding = exporter.EncodingUTF16LE
		if opts.output == "" {
			opts.encoding = exporter.EncodingUTF8
		}
	}

	logger := infrastructure.NewLogger(stderr, config.LoggingConfig{Level: *logLevel})
	return opts, logger, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, logger, err := parseFlags(args, stderr)
	if err == errVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintln(stderr, "tsvexport:", err)
		}
		return 2
	}

	files := validation.NewFileValidator(logger, 0)

	rep, err := readReport(files, opts.input, stdin)
	if err != nil {
		logger.Error("failed to read report", slog.String("input", opts.input), slog.String("error", err.Error()))
		fmt.Fprintln(stderr, "tsvexport:", err)
		return 1
	}

	if opts.output != "" {
		if err := files.ValidateOutputPath(opts.output, opts.format); err != nil {
			fmt.Fprintln(stderr, "tsvexport:", err)
			return 1
		}
	}

	n, err := export(rep, opts, stdout)
	if err != nil {
		logger.Error("export failed", slog.String("format", string(opts.format)), slog.String("error", err.Error()))
		fmt.Fprintln(stderr, "tsvexport:", err)
		return 1
	}

	logger.Info("export completed",
		slog.String("format", string(opts.format)),
		slog.String("output", opts.output),
		slog.Int("records", n),
	)
	return 0
}

func readReport(files *validation.FileValidator, path string, stdin io.Reader) (*domain.AnalyticsReport, error) {
	if path == "" || path == "-" {
		return report.Parse(stdin)
	}
	if err := files.ValidateInputFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return report.Parse(f)
}

func export(rep *domain.AnalyticsReport, opts *options, stdout io.Writer) (int, error) {
	exportOpts := exporter.Options{StrictTotals: opts.strict}

	if opts.format == exporter.FormatXLSX {
		return exportWorkbook(rep, opts, stdout, exportOpts)
	}

	comma := '\t'
	if opts.format == exporter.FormatCSV {
		comma = ','
	}
	wopts := exporter.WriterOptions{Comma: comma, Encoding: opts.encoding}

	var p *exporter.Printer
	switch {
	case opts.output != "":
		fp, err := exporter.NewFilePrinterWith(opts.output, wopts, exportOpts)
		if err != nil {
			return 0, err
		}
		p = fp
	case opts.format == exporter.FormatTSV && isUTF8(opts.encoding):
		p = exporter.NewScreenPrinter(stdout, exportOpts)
	default:
		wp, err := exporter.NewWriterPrinter(stdout, wopts, exportOpts)
		if err != nil {
			return 0, err
		}
		p = wp
	}

	n, err := p.Output(rep)
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// exportWorkbook builds every record before the workbook is created, so a
// failing export leaves no partial file behind.
func exportWorkbook(rep *domain.AnalyticsReport, opts *options, stdout io.Writer, exportOpts exporter.Options) (int, error) {
	records, err := exporter.New(exportOpts).Export(rep)
	if err != nil {
		return 0, err
	}

	dst := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return 0, fmt.Errorf("failed to create file: %w", err)
		}
		defer f.Close()
		dst = f
	}

	w, err := exporter.NewXLSXWriter(dst, "")
	if err != nil {
		return 0, err
	}
	if err := w.WriteRecords(records); err != nil {
		w.Discard()
		return 0, err
	}
	return len(records), w.Close()
}

func isUTF8(name string) bool {
	switch strings.ToLower(name) {
	case exporter.EncodingUTF8, "utf8":
		return true
	}
	return false
}
