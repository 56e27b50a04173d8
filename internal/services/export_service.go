package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"gadevtools/internal/auth"
	"gadevtools/internal/config"
	apierrors "gadevtools/internal/errors"
	"gadevtools/internal/exporter"
	"gadevtools/internal/infrastructure"
	"gadevtools/pkg/contracts/domain"
)

// ReportFetcher runs a Core Reporting API query.
type ReportFetcher interface {
	Fetch(ctx context.Context, query url.Values, ts oauth2.TokenSource) (*domain.AnalyticsReport, error)
}

// ExportService fetches reports and turns them into downloadable files.
type ExportService struct {
	fetcher  ReportFetcher
	tokens   auth.TokenProvider
	exporter *exporter.Exporter
	cfg      config.ExportConfig
	metrics  *infrastructure.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// NewExportService creates the service. tokens and metrics may be nil; without
// tokens every query must carry the caller's own access token.
func NewExportService(fetcher ReportFetcher, tokens auth.TokenProvider, cfg config.ExportConfig, metrics *infrastructure.Metrics, logger *slog.Logger) *ExportService {
	return &ExportService{
		fetcher:  fetcher,
		tokens:   tokens,
		exporter: exporter.New(exporter.Options{StrictTotals: cfg.StrictTotals}),
		cfg:      cfg,
		metrics:  metrics,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "export_service")),
	}
}

// FetchReport queries the reporting API with accessToken, or with the service
// account when accessToken is empty.
func (s *ExportService) FetchReport(ctx context.Context, query url.Values, accessToken string) (*domain.AnalyticsReport, error) {
	var ts oauth2.TokenSource
	switch {
	case accessToken != "":
		ts = auth.StaticTokenSource(accessToken)
	case s.tokens != nil:
		ts = auth.NewTokenSource(ctx, s.tokens)
	default:
		return nil, auth.ErrNoCredentials
	}

	start := s.now()
	rep, err := s.fetcher.Fetch(ctx, query, ts)
	s.metrics.RecordUpstream(ctx, "reporting", s.now().Sub(start), err)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// Download is an export whose records are fully built, so nothing can fail
// for reasons of report content once writing starts.
type Download struct {
	Format      exporter.Format
	Filename    string
	ContentType string

	records []exporter.Record
	started time.Time
}

// Prepare builds the export of rep in format.
func (s *ExportService) Prepare(ctx context.Context, rep *domain.AnalyticsReport, format exporter.Format) (*Download, error) {
	started := s.now()

	records, err := s.exporter.Export(rep)
	if err != nil {
		s.metrics.RecordExport(ctx, string(format), 0, s.now().Sub(started), err)
		return nil, err
	}

	charset := ""
	if format != exporter.FormatXLSX {
		_, charset, err = exporter.LookupEncoding(s.cfg.Encoding)
		if err != nil {
			return nil, apierrors.NewConfigError("export encoding", err).WithContext("encoding", s.cfg.Encoding)
		}
	}

	return &Download{
		Format:      format,
		Filename:    format.Filename(s.cfg.Filename),
		ContentType: format.ContentType(charset),
		records:     records,
		started:     started,
	}, nil
}

// Records returns the number of records in the download.
func (d *Download) Records() int {
	return len(d.records)
}

// Write encodes the download onto dst and returns the number of records
// written.
func (s *ExportService) Write(ctx context.Context, dst io.Writer, d *Download) (int, error) {
	written, err := s.write(dst, d)
	s.metrics.RecordExport(ctx, string(d.Format), written, s.now().Sub(d.started), err)

	if err != nil {
		s.logger.ErrorContext(ctx, "export failed",
			slog.String("format", string(d.Format)),
			slog.Int("records_written", written),
			slog.String("error", err.Error()),
		)
		return written, err
	}

	s.logger.InfoContext(ctx, "export completed",
		slog.String("format", string(d.Format)),
		slog.Int("records", written),
		slog.Duration("duration", s.now().Sub(d.started)),
	)
	return written, nil
}

func (s *ExportService) write(dst io.Writer, d *Download) (int, error) {
	sink, _, err := exporter.NewSink(d.Format, dst, s.cfg.Encoding)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, rec := range d.records {
		if err := sink.WriteRecord(rec); err != nil {
			sink.Close()
			return written, fmt.Errorf("writing record %d: %w", written, err)
		}
		written++
	}

	if err := sink.Close(); err != nil {
		return written, fmt.Errorf("closing %s sink: %w", d.Format, err)
	}
	return written, nil
}
