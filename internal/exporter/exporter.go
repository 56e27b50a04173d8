package exporter

import (
	"fmt"
	"iter"

	"gadevtools/internal/report"
	"gadevtools/pkg/contracts/domain"
)

// Fixed texts of the report layout.
const (
	NoResultsMessage   = "No Results found"
	ProfileLabel       = "Report For View (Profile): "
	SampledMessage     = "These results contain sampled data."
	NotSampledMessage  = "These results do not contain sampled data."
	QueryParamsLabel   = "These query parameters were used:"
	RowsReturnedLabel  = "Rows Returned"
	RowsMatchedLabel   = "Rows Matched"
	TotalsSectionLabel = "Totals For All Rows Matched"
)

// Record is one output line; an empty Record is a blank line.
type Record []string

// Options tunes the exporter.
type Options struct {
	// StrictTotals makes a total for a metric that has no METRIC column an
	// error instead of silently dropping it.
	StrictTotals bool
}

// Exporter builds the record sequence for a report.
type Exporter struct {
	opts Options
}

// New creates an exporter.
func New(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// section emits part of the report and returns false once the consumer
// stopped or an error was yielded.
type section func(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool

// Records returns the records of rep in output order. The report is expected
// to have passed report.Validate.
func (e *Exporter) Records(rep *domain.AnalyticsReport) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if !rep.HasRows() {
			yield(Record{NoResultsMessage}, nil)
			return
		}

		sections := []section{
			profileName,
			blankLine,
			sampledNotice,
			blankLine,
			queryInfo,
			blankLine,
			headerRow,
			dataRows,
			blankLine,
			rowCounts,
			e.totalsForAllResults,
		}
		for _, s := range sections {
			if !s(rep, yield) {
				return
			}
		}
	}
}

// Export collects the whole record sequence.
func (e *Exporter) Export(rep *domain.AnalyticsReport) ([]Record, error) {
	var records []Record
	for rec, err := range e.Records(rep) {
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Write streams the records of rep into sink, stopping at the first error.
// It returns the number of records written.
func (e *Exporter) Write(sink Sink, rep *domain.AnalyticsReport) (int, error) {
	written := 0
	for rec, err := range e.Records(rep) {
		if err != nil {
			return written, err
		}
		if err := sink.WriteRecord(rec); err != nil {
			return written, fmt.Errorf("writing record %d: %w", written, err)
		}
		written++
	}
	return written, nil
}

func blankLine(_ *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	return yield(Record{}, nil)
}

func profileName(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	return yield(Record{ProfileLabel, rep.ProfileName()}, nil)
}

func sampledNotice(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	if rep.ContainsSampledData {
		return yield(Record{SampledMessage}, nil)
	}
	return yield(Record{NotSampledMessage}, nil)
}

func queryInfo(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	if !yield(Record{QueryParamsLabel}, nil) {
		return false
	}
	for _, p := range rep.Query {
		if !yield(Record{p.Name, ExcelEscape(p.Value.String())}, nil) {
			return false
		}
	}
	return true
}

func headerRow(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	names := make(Record, len(rep.ColumnHeaders))
	for i, h := range rep.ColumnHeaders {
		names[i] = h.Name
	}
	return yield(names, nil)
}

func dataRows(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	for _, row := range rep.Rows {
		cells := make(Record, len(row))
		for i, cell := range row {
			cells[i] = ExcelEscape(cell)
		}
		if !yield(cells, nil) {
			return false
		}
	}
	return true
}

func rowCounts(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	return yield(Record{RowsReturnedLabel, rep.ItemsPerPage.String()}, nil) &&
		yield(Record{RowsMatchedLabel, rep.TotalResults.String()}, nil)
}

// totalsForAllResults places every total under the METRIC column carrying the
// same name; the other cells stay empty.
func (e *Exporter) totalsForAllResults(rep *domain.AnalyticsReport, yield func(Record, error) bool) bool {
	if !yield(Record{TotalsSectionLabel}, nil) {
		return false
	}

	metricIndex := make(map[string]int)
	for i, h := range rep.ColumnHeaders {
		if h.IsMetric() {
			metricIndex[h.Name] = i
		}
	}

	totals := make(Record, len(rep.ColumnHeaders))
	for _, total := range rep.TotalsForAllResults {
		i, ok := metricIndex[total.Name]
		if !ok {
			if e.opts.StrictTotals {
				yield(nil, report.NewMalformedReportError(
					"totalsForAllResults."+total.Name,
					"has no matching METRIC column",
				))
				return false
			}
			continue
		}
		totals[i] = total.Value
	}
	return yield(totals, nil)
}
