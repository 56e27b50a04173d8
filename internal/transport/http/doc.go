// Package http implements the HTTP handlers of the demos server. Handlers are
// a thin layer over the services package: they parse and validate the
// request, call a service, and render the result.
//
// # Handlers
//
//	ExportHandler    report downloads (/explorer/csvhandler.csv, /api/export)
//	MetadataHandler  cached Metadata API documents (/api/metadata, /api/cubes)
//	TokenHandler     service-account access token (/api/access-token)
//	BitlyHandler     bit.ly OAuth callback and code exchange
//	PageHandler      site pages described by meta.yaml
//	HealthHandler    health, readiness, liveness and version
//
// # Errors
//
// Failures are written as RFC 7807 problem documents through
// errors.ErrorHandler, which maps domain errors to status codes:
//
//	report.MalformedReportError   422 Unprocessable Entity
//	reporting.UpstreamError       4xx passed through, otherwise 502
//	auth.ErrNoCredentials         503 Service Unavailable
//	http.MaxBytesError            413 Payload Too Large
//
// Transport failures and unusable documents from the reporting and metadata
// APIs are wrapped as network or upstream AppErrors and answered with 502.
//
// The bit.ly endpoints are the exception. Their plain-text error bodies are
// part of the contract with the url-shortener page and are written as is.
//
// # Downloads
//
// Export records are built before the response starts, so content errors
// still produce a problem document. Once the first byte is written a failure
// aborts the connection instead of ending a truncated file cleanly.
package http
