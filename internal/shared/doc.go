// Package shared holds code used across packages that belongs to no single
// layer.
//
// The testutil subpackage provides:
//
//	- BufferedSlogHandler and NewTestLogger for asserting on log output
//	- Report fixtures (DemoViewReportJSON, EmptyReportJSON, MalformedReportJSON)
//	- WriteFile for per-test input files
//
// Nothing here may import the domain packages.
package shared
