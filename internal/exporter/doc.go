// Package exporter turns a Core Reporting API response into a tabular report.
//
// The package has three parts:
//
// Exporter: produces the ordered sequence of records for a report (profile,
// sampling notice, query parameters, header, escaped data rows, row counts and
// column-aligned totals). It is pure and safe for concurrent use.
//
// Sinks: DelimitedWriter writes tab- or comma-separated text transcoded to the
// target encoding (UTF-16LE by default, the encoding spreadsheet applications
// detect for tab-separated files) and flushes after every record.
// XLSXWriter writes the same records as rows of a workbook.
//
// Printer: binds an Exporter to a sink. NewScreenPrinter, NewFilePrinter and
// NewWriterPrinter cover the console, file and arbitrary writer cases.
//
// Example usage:
//
//	rep, err := report.Parse(body)
//	if err != nil {
//		return err
//	}
//	p, err := exporter.NewFilePrinter("query_explorer.tsv", exporter.Options{})
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//	_, err = p.Output(rep)
//	return err
//
// Sinks are not safe for concurrent use.
package exporter
