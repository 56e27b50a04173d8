// Package services implements the business logic behind the HTTP handlers.
//
// # Available Services
//
//	- ExportService: fetches Core Reporting API reports and turns them into
//	  TSV, CSV or XLSX downloads
//	- HealthService: health, readiness and version information
//
// # Export Flow
//
// An export runs in two steps so that content errors never reach the wire:
//
//	rep, err := svc.FetchReport(ctx, query, accessToken)
//	d, err := svc.Prepare(ctx, rep, exporter.FormatTSV)  // builds every record
//	n, err := svc.Write(ctx, w, d)                       // only I/O can fail here
//
// FetchReport uses the caller's access token when one is given and the
// service account otherwise.
//
// # Testing
//
// Dependencies are interfaces mocked with testify:
//
//	fetcher := new(MockReportFetcher)
//	fetcher.On("Fetch", query, mock.Anything).Return(rep, nil)
//	svc := NewExportService(fetcher, nil, cfg, nil, logger)
package services
