package report

import "fmt"

// MalformedReportError reports a structurally invalid report. Field names the
// offending member the way it appears in the JSON document, e.g.
// "columnHeaders[1].name" or "rows[2]".
type MalformedReportError struct {
	Field  string
	Reason string
}

func (e *MalformedReportError) Error() string {
	return fmt.Sprintf("malformed report: %s %s", e.Field, e.Reason)
}

// NewMalformedReportError creates a MalformedReportError.
func NewMalformedReportError(field, reason string) *MalformedReportError {
	return &MalformedReportError{Field: field, Reason: reason}
}
