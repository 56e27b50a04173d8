package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"gadevtools/internal/config"
	"gadevtools/internal/exporter"
	"gadevtools/internal/report"
	"gadevtools/internal/reporting"
	"gadevtools/internal/services"
	"gadevtools/internal/shared/testutil"
	"gadevtools/pkg/contracts/domain"
)

// MockReportFetcher is a mock implementation of services.ReportFetcher
type MockReportFetcher struct {
	mock.Mock
}

func (m *MockReportFetcher) Fetch(ctx context.Context, query url.Values, ts oauth2.TokenSource) (*domain.AnalyticsReport, error) {
	args := m.Called(query, ts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsReport), args.Error(1)
}

func tokenIs(want string) interface{} {
	return mock.MatchedBy(func(ts oauth2.TokenSource) bool {
		tok, err := ts.Token()
		return err == nil && tok.AccessToken == want
	})
}

func utf8ExportConfig() config.ExportConfig {
	cfg := config.Default().Export
	cfg.Encoding = "utf-8"
	return cfg
}

func newExportHandler(t *testing.T, fetcher services.ReportFetcher, cfg config.ExportConfig) *ExportHandler {
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewExportService(fetcher, nil, cfg, nil, logger)
	return NewExportHandler(svc, cfg.MaxBodyBytes, logger, newErrorHandler(t))
}

func parsedDemoReport(t *testing.T) *domain.AnalyticsReport {
	t.Helper()
	rep, err := report.Parse(strings.NewReader(testutil.DemoViewReportJSON))
	require.NoError(t, err)
	return rep
}

func TestExportHandler_QueryExplorerDownload(t *testing.T) {
	fetcher := new(MockReportFetcher)
	want := url.Values{"ids": {"ga:1"}, "metrics": {"ga:sessions"}}
	fetcher.On("Fetch", want, tokenIs("user-token")).Return(parsedDemoReport(t), nil)

	h := newExportHandler(t, fetcher, utf8ExportConfig())
	req := httptest.NewRequest(http.MethodGet,
		"/explorer/csvhandler.csv?ids=ga:1&metrics=ga:sessions&access_token=user-token&format=csv", nil)
	w := serve(t, http.MethodGet, "/explorer/csvhandler.csv", h.QueryExplorerDownload, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=UTF-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=query_explorer.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "Report For View (Profile): ,Demo View\r\n"))
	assert.Contains(t, w.Body.String(), "20200102,'-5\r\n")
	fetcher.AssertExpectations(t)
}

func TestExportHandler_QueryExplorerDownloadDefaultsToUTF16TSV(t *testing.T) {
	fetcher := new(MockReportFetcher)
	fetcher.On("Fetch", mock.Anything, tokenIs("user-token")).Return(parsedDemoReport(t), nil)

	h := newExportHandler(t, fetcher, config.Default().Export)
	req := httptest.NewRequest(http.MethodGet, "/explorer/csvhandler.csv?ids=ga:1&access_token=user-token", nil)
	w := serve(t, http.MethodGet, "/explorer/csvhandler.csv", h.QueryExplorerDownload, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.ms-excel; charset=UTF-16LE", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=query_explorer.tsv", w.Header().Get("Content-Disposition"))
	// "R" followed by its UTF-16LE high byte.
	assert.Equal(t, []byte{'R', 0}, w.Body.Bytes()[:2])
}

func TestExportHandler_QueryExplorerDownloadErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		fetchErr   error
		wantStatus int
		wantType   string
	}{
		{
			name:       "unknown format",
			query:      "?ids=ga:1&access_token=t&format=pdf",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rejected query",
			query:      "?ids=ga:1&access_token=t",
			fetchErr:   &reporting.UpstreamError{StatusCode: http.StatusBadRequest, Message: "Invalid metric"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "upstream outage",
			query:      "?ids=ga:1&access_token=t",
			fetchErr:   &reporting.UpstreamError{StatusCode: http.StatusServiceUnavailable},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "no credentials",
			query:      "?ids=ga:1",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "reporting api unreachable",
			query:      "?ids=ga:1&access_token=t",
			fetchErr:   &url.Error{Op: "Get", URL: "https://www.googleapis.com/analytics/v3/data/ga", Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "deadline exceeded",
			query:      "?ids=ga:1&access_token=t",
			fetchErr:   &url.Error{Op: "Get", URL: "https://www.googleapis.com/analytics/v3/data/ga", Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(MockReportFetcher)
			if tt.fetchErr != nil {
				fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, tt.fetchErr)
			}

			h := newExportHandler(t, fetcher, utf8ExportConfig())
			req := httptest.NewRequest(http.MethodGet, "/explorer/csvhandler.csv"+tt.query, nil)
			w := serve(t, http.MethodGet, "/explorer/csvhandler.csv", h.QueryExplorerDownload, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			assert.Empty(t, w.Header().Get("Content-Disposition"))
			fetcher.AssertExpectations(t)
		})
	}
}

func TestExportHandler_ExportReport(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		query           string
		strict          bool
		maxBody         int64
		wantStatus      int
		wantContentType string
	}{
		{
			name:            "tsv",
			body:            testutil.DemoViewReportJSON,
			wantStatus:      http.StatusOK,
			wantContentType: "application/vnd.ms-excel; charset=UTF-8",
		},
		{
			name:            "xlsx",
			body:            testutil.DemoViewReportJSON,
			query:           "?format=xlsx",
			wantStatus:      http.StatusOK,
			wantContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		},
		{
			name:            "empty report",
			body:            testutil.EmptyReportJSON,
			wantStatus:      http.StatusOK,
			wantContentType: "application/vnd.ms-excel; charset=UTF-8",
		},
		{
			name:            "malformed",
			body:            testutil.MalformedReportJSON,
			wantStatus:      http.StatusUnprocessableEntity,
			wantContentType: "application/problem+json",
		},
		{
			name:            "unknown totals in strict mode",
			body:            strings.Replace(testutil.DemoViewReportJSON, `{"ga:sessions": "15"}`, `{"ga:sessions": "15", "ga:typo": "1"}`, 1),
			strict:          true,
			wantStatus:      http.StatusUnprocessableEntity,
			wantContentType: "application/problem+json",
		},
		{
			name:            "body too large",
			body:            testutil.DemoViewReportJSON,
			maxBody:         16,
			wantStatus:      http.StatusRequestEntityTooLarge,
			wantContentType: "application/problem+json",
		},
		{
			name:            "bad format",
			body:            testutil.DemoViewReportJSON,
			query:           "?format=ods",
			wantStatus:      http.StatusBadRequest,
			wantContentType: "application/problem+json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := utf8ExportConfig()
			cfg.StrictTotals = tt.strict
			if tt.maxBody > 0 {
				cfg.MaxBodyBytes = tt.maxBody
			}

			h := newExportHandler(t, nil, cfg)
			req := httptest.NewRequest(http.MethodPost, "/api/export"+tt.query, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve(t, http.MethodPost, "/api/export", h.ExportReport, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantContentType, w.Header().Get("Content-Type"))
			if tt.wantStatus == http.StatusOK {
				assert.NotZero(t, w.Body.Len())
				assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=query_explorer.")
			}
		})
	}
}

// stubExportService prepares every report and fails on Write after
// writing written bytes.
type stubExportService struct {
	written string
}

func (s *stubExportService) FetchReport(context.Context, url.Values, string) (*domain.AnalyticsReport, error) {
	return nil, errors.New("not used")
}

func (s *stubExportService) Prepare(context.Context, *domain.AnalyticsReport, exporter.Format) (*services.Download, error) {
	return &services.Download{Format: exporter.FormatTSV, Filename: "query_explorer.tsv", ContentType: "text/plain"}, nil
}

func (s *stubExportService) Write(_ context.Context, dst io.Writer, _ *services.Download) (int, error) {
	if s.written != "" {
		io.WriteString(dst, s.written)
	}
	return 0, errors.New("connection reset")
}

func TestExportHandler_WriteFailureBeforeFirstByte(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewExportHandler(&stubExportService{}, 0, logger, newErrorHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(testutil.DemoViewReportJSON))
	w := httptest.NewRecorder()
	h.ExportReport(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
}

func TestExportHandler_WriteFailureMidStreamAborts(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewExportHandler(&stubExportService{written: "partial"}, 0, logger, newErrorHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(testutil.DemoViewReportJSON))
	w := httptest.NewRecorder()

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ExportReport(w, req)
	})
}

func TestExportHandler_MisconfiguredEncoding(t *testing.T) {
	cfg := utf8ExportConfig()
	cfg.Encoding = "klingon"
	h := newExportHandler(t, nil, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/export?format=csv", strings.NewReader(testutil.DemoViewReportJSON))
	w := httptest.NewRecorder()
	h.ExportReport(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), `"error_type":"CONFIG"`)
}
