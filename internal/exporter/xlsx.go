package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the worksheet XLSXWriter writes to.
const DefaultSheetName = "Query Explorer"

// XLSXWriter writes records as rows of a single worksheet. Rows go through
// the excelize stream writer; the workbook reaches the destination on Close.
//
// An XLSXWriter is not safe for concurrent use.
type XLSXWriter struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	dst    io.Writer
	row    int
}

// NewXLSXWriter creates a workbook with one sheet that is written to dst on Close.
func NewXLSXWriter(dst io.Writer, sheet string) (*XLSXWriter, error) {
	if sheet == "" {
		sheet = DefaultSheetName
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating stream writer: %w", err)
	}

	return &XLSXWriter{file: f, stream: stream, dst: dst}, nil
}

// WriteRecord appends rec as the next row. Cells are written as strings.
func (w *XLSXWriter) WriteRecord(rec Record) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}

	values := make([]interface{}, len(rec))
	for i, v := range rec {
		values[i] = v
	}
	return w.stream.SetRow(cell, values)
}

// WriteRecords writes each record in turn.
func (w *XLSXWriter) WriteRecords(recs []Record) error {
	return writeAll(w.WriteRecord, recs)
}

// Close finalizes the workbook and writes it to the destination.
func (w *XLSXWriter) Close() error {
	defer w.file.Close()

	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("flushing rows: %w", err)
	}
	if err := w.file.Write(w.dst); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Discard releases the workbook without writing anything to the destination.
func (w *XLSXWriter) Discard() error {
	return w.file.Close()
}
