// Package report decodes Core Reporting API responses and validates them once
// at the boundary, so the exporter can rely on a well-formed
// domain.AnalyticsReport.
//
// Reports without rows are always valid: they export as a single
// "No Results found" record and never look at the column headers.
package report
