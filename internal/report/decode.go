package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gadevtools/pkg/contracts/domain"
)

// Decode reads one JSON report from r. It does not validate the result.
func Decode(r io.Reader) (*domain.AnalyticsReport, error) {
	var rep domain.AnalyticsReport
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rep); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewMalformedReportError("report", "is empty")
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, NewMalformedReportError("report", "is truncated")
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, NewMalformedReportError("report", fmt.Sprintf("is not valid JSON at offset %d", syntaxErr.Offset))
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, NewMalformedReportError(typeErr.Field, fmt.Sprintf("has type %s, want %s", typeErr.Value, typeErr.Type))
		}
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &rep, nil
}

// Parse decodes and validates a report.
func Parse(r io.Reader) (*domain.AnalyticsReport, error) {
	rep, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(rep); err != nil {
		return nil, err
	}
	return rep, nil
}
