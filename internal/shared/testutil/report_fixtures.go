package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// DemoViewReportJSON is a small two-row report used across package tests.
const DemoViewReportJSON = `{
	"kind": "analytics#gaData",
	"query": {"ids": "ga:1", "metrics": "ga:sessions", "dimensions": "ga:date"},
	"itemsPerPage": "2",
	"totalResults": "2",
	"profileInfo": {"profileName": "Demo View"},
	"containsSampledData": false,
	"columnHeaders": [
		{"name": "ga:date", "columnType": "DIMENSION", "dataType": "STRING"},
		{"name": "ga:sessions", "columnType": "METRIC", "dataType": "INTEGER"}
	],
	"totalsForAllResults": {"ga:sessions": "15"},
	"rows": [["20200101", "10"], ["20200102", "-5"]]
}`

// EmptyReportJSON is a report that matched nothing.
const EmptyReportJSON = `{
	"kind": "analytics#gaData",
	"query": {"ids": "ga:1", "metrics": "ga:sessions"},
	"itemsPerPage": 1000,
	"totalResults": 0,
	"containsSampledData": false,
	"columnHeaders": [{"name": "ga:sessions", "columnType": "METRIC"}],
	"totalsForAllResults": {"ga:sessions": "0"}
}`

// MalformedReportJSON has rows but no column headers.
const MalformedReportJSON = `{"rows": [["a", "b"]]}`

// WriteFile writes content to name inside a per-test temporary directory and
// returns the full path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}
