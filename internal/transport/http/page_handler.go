package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "gadevtools/internal/errors"
)

// DataProvider loads extra template data for one page.
type DataProvider func(ctx context.Context) (map[string]interface{}, error)

// PageHandler renders the site pages described by meta.yaml.
type PageHandler struct {
	renderer     PageRenderer
	providers    map[string]DataProvider
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewPageHandler creates a page handler.
func NewPageHandler(renderer PageRenderer, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *PageHandler {
	return &PageHandler{
		renderer:     renderer,
		providers:    make(map[string]DataProvider),
		logger:       logger.With(slog.String("component", "page_handler")),
		errorHandler: errorHandler,
	}
}

// WithData registers a data provider for a page. Use an empty page for the
// project's landing page.
func (h *PageHandler) WithData(project, page string, provider DataProvider) *PageHandler {
	h.providers[project+"/"+page] = provider
	return h
}

// Routes returns the page routes
func (h *PageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Index)
	r.Get("/{project}", addSlash)
	r.Get("/{project}/", h.Project)
	r.Get("/{project}/{page}", addSlash)
	r.Get("/{project}/{page}/", h.Page)

	return r
}

// Index handles GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "", "")
}

// Project handles GET /{project}/
func (h *PageHandler) Project(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, chi.URLParam(r, "project"), "")
}

// Page handles GET /{project}/{page}/
func (h *PageHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, chi.URLParam(r, "project"), chi.URLParam(r, "page"))
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, project, page string) {
	ctx := r.Context()

	var data map[string]interface{}
	if provider, ok := h.providers[project+"/"+page]; ok {
		var err error
		if data, err = provider(ctx); err != nil {
			// The page still renders; templates handle missing data.
			h.logger.WarnContext(ctx, "page data unavailable",
				slog.String("project", project),
				slog.String("page", page),
				slog.String("error", err.Error()),
			)
		}
	}

	var buf bytes.Buffer
	found, err := h.renderer.RenderPage(ctx, &buf, project, page, data)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !found {
		w.WriteHeader(http.StatusNotFound)
	}
	buf.WriteTo(w)
}

func addSlash(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path + "/"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}
