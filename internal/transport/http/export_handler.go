package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "gadevtools/internal/errors"
	"gadevtools/internal/exporter"
	custommw "gadevtools/internal/middleware"
	"gadevtools/internal/report"
	"gadevtools/pkg/contracts/domain"
)

var exportFormats = []string{
	string(exporter.FormatTSV),
	string(exporter.FormatCSV),
	string(exporter.FormatXLSX),
}

// Query parameters consumed by the download handler and never forwarded to
// the reporting API.
const (
	accessTokenParam = "access_token"
	formatParam      = "format"
)

// ExportHandler serves report downloads.
type ExportHandler struct {
	service      ExportService
	params       *custommw.QueryParamValidator
	maxBodyBytes int64
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates an export handler. Uploaded reports larger than
// maxBodyBytes are rejected.
func NewExportHandler(service ExportService, maxBodyBytes int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	return &ExportHandler{
		service:      service,
		params:       custommw.NewQueryParamValidator(errorHandler),
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// QueryExplorerDownload handles GET /explorer/csvhandler.csv. The query string
// is the Core Reporting API query; access_token and format are consumed here.
func (h *ExportHandler) QueryExplorerDownload(w http.ResponseWriter, r *http.Request) {
	format, ok := h.params.ValidateEnum(w, r, formatParam, exportFormats, string(exporter.FormatTSV))
	if !ok {
		return
	}

	query := r.URL.Query()
	accessToken := query.Get(accessTokenParam)
	query.Del(accessTokenParam)
	query.Del(formatParam)

	h.logger.InfoContext(r.Context(), "query explorer download",
		slog.String("format", format),
		slog.Bool("caller_token", accessToken != ""),
		slog.String("metrics", query.Get("metrics")),
	)

	rep, err := h.service.FetchReport(r.Context(), query, accessToken)
	if err != nil {
		h.errorHandler.HandleError(w, r, upstreamFailure("reporting", err))
		return
	}

	h.serve(w, r, rep, exporter.Format(format))
}

// ExportReport handles POST /api/export. The body is a report document.
func (h *ExportHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	format, ok := h.params.ValidateEnum(w, r, formatParam, exportFormats, string(exporter.FormatTSV))
	if !ok {
		return
	}

	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	rep, err := report.Parse(r.Body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.serve(w, r, rep, exporter.Format(format))
}

func (h *ExportHandler) serve(w http.ResponseWriter, r *http.Request, rep *domain.AnalyticsReport, format exporter.Format) {
	ctx := r.Context()

	d, err := h.service.Prepare(ctx, rep, format)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Header().Set("Content-Type", d.ContentType)
	ww.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", d.Filename))
	ww.Header().Set("Cache-Control", "no-store")

	if _, err := h.service.Write(ctx, ww, d); err != nil {
		if ww.Status() == 0 {
			ww.Header().Del("Content-Disposition")
			h.errorHandler.HandleError(w, r, err)
			return
		}
		// Part of the file is on the wire; abort so the client sees a
		// broken download rather than a short one.
		panic(http.ErrAbortHandler)
	}
}
