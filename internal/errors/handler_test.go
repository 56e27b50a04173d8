package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gadevtools/internal/auth"
	"gadevtools/internal/bitly"
	"gadevtools/internal/metadata"
	"gadevtools/internal/report"
	"gadevtools/internal/reporting"
	"gadevtools/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantExt    map[string]any
	}{
		{
			name:       "deadline exceeded",
			err:        fmt.Errorf("fetching report: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantType:   TypeTimeout,
		},
		{
			name:       "malformed report",
			err:        fmt.Errorf("decoding: %w", report.NewMalformedReportError("columnHeaders[1].name", "is required")),
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   TypeMalformedReport,
			wantExt:    map[string]any{"field": "columnHeaders[1].name"},
		},
		{
			name:       "upstream client error passes through",
			err:        &reporting.UpstreamError{StatusCode: http.StatusForbidden, Message: "User does not have sufficient permissions", Reason: "insufficientPermissions"},
			wantStatus: http.StatusForbidden,
			wantType:   TypeUpstream,
			wantExt:    map[string]any{"upstream_status": float64(403), "reason": "insufficientPermissions"},
		},
		{
			name:       "upstream rate limit becomes bad gateway",
			err:        &reporting.UpstreamError{StatusCode: http.StatusTooManyRequests},
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
		},
		{
			name:       "upstream server error",
			err:        &reporting.UpstreamError{StatusCode: http.StatusServiceUnavailable},
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
		},
		{
			name:       "metadata fetch failure",
			err:        &metadata.FetchError{URL: "https://example.com/columns", StatusCode: 500},
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
		},
		{
			name:       "bitly status",
			err:        &bitly.StatusError{StatusCode: 401},
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
		},
		{
			name:       "metadata not configured",
			err:        metadata.ErrNotConfigured,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeNotConfigured,
		},
		{
			name:       "no service account",
			err:        fmt.Errorf("token: %w", auth.ErrNoCredentials),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeNotConfigured,
		},
		{
			name:       "body too large",
			err:        fmt.Errorf("reading body: %w", &http.MaxBytesError{Limit: 10}),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantType:   TypePayloadTooLarge,
		},
		{
			name:       "api error",
			err:        ErrValidation("format", "format must be one of: tsv, csv, xlsx"),
			wantStatus: http.StatusBadRequest,
			wantType:   TypeValidation,
			wantExt:    map[string]any{"error_code": "VALIDATION_FAILED"},
		},
		{
			name:       "feature switched off",
			err:        ErrServiceUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeServiceDown,
		},
		{
			name:       "network error",
			err:        NewNetworkError("reporting unreachable", fmt.Errorf("dial tcp: connection refused")).WithContext("service", "reporting"),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
			wantExt:    map[string]any{"error_type": "NETWORK", "context": map[string]any{"service": "reporting"}},
		},
		{
			name:       "unusable upstream document",
			err:        NewUpstreamError("metadata returned an unusable document", nil),
			wantStatus: http.StatusBadGateway,
			wantType:   TypeUpstream,
			wantExt:    map[string]any{"error_type": "UPSTREAM"},
		},
		{
			name:       "config error",
			err:        NewConfigError("export encoding", fmt.Errorf("unsupported encoding")),
			wantStatus: http.StatusServiceUnavailable,
			wantType:   TypeNotConfigured,
			wantExt:    map[string]any{"error_type": "CONFIG"},
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("something odd"),
			wantStatus: http.StatusInternalServerError,
			wantType:   TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/explorer/csvhandler.csv", nil)
			h.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/explorer/csvhandler.csv", body["instance"])
			for k, v := range tt.wantExt {
				assert.Equal(t, v, body[k], k)
			}
			assert.NotContains(t, body, "stack")

			testutil.AssertLogAttr(t, logs, "status", int64(tt.wantStatus))
			testutil.AssertLogAttr(t, logs, "component", "error_handler")
		})
	}
}

func TestErrorHandler_HandleError_Nil(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	w := httptest.NewRecorder()
	NewErrorHandler(logger, false).HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, w.Body.Len())
	assert.Equal(t, 0, logs.Count())
}

func TestErrorHandler_ClientCancelled(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/api/cubes", nil), fmt.Errorf("fetching cubes: %w", context.Canceled))

	assert.Equal(t, 0, w.Body.Len())
	assert.Empty(t, w.Header().Get("Content-Type"))
	testutil.AssertLogContains(t, logs, slog.LevelInfo, "request cancelled")
	assert.Empty(t, logs.GetRecordsByLevel(slog.LevelError))
}

func TestErrorHandler_LogLevels(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	h.HandleError(httptest.NewRecorder(), r, ErrValidation("group", "group must be true or false"))
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "request failed")

	h.HandleError(httptest.NewRecorder(), r, fmt.Errorf("boom"))
	testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
}

func TestErrorHandler_RequestIDAndStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, "req-1"))

	w := httptest.NewRecorder()
	h.HandleError(w, r, fmt.Errorf("boom"))

	body := decodeProblem(t, w)
	assert.Equal(t, "req-1", body["trace_id"])
	assert.Contains(t, body, "stack")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/export", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decodeProblem(t, w)["detail"], "DELETE")
}
