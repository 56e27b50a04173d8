package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "gadevtools/internal/errors"
	custommw "gadevtools/internal/middleware"
)

// MetadataHandler serves the cached Metadata API documents.
type MetadataHandler struct {
	service      MetadataService
	params       *custommw.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewMetadataHandler creates a metadata handler.
func NewMetadataHandler(service MetadataService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *MetadataHandler {
	return &MetadataHandler{
		service:      service,
		params:       custommw.NewQueryParamValidator(errorHandler),
		logger:       logger.With(slog.String("component", "metadata_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the metadata routes
func (h *MetadataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/columns", h.Columns)

	return r
}

// Columns handles GET /api/metadata/columns. With group=true the columns are
// returned grouped by their attributes.group; otherwise the upstream document
// is returned unchanged.
func (h *MetadataHandler) Columns(w http.ResponseWriter, r *http.Request) {
	grouped, ok := h.params.ValidateBool(w, r, "group")
	if !ok {
		return
	}

	if grouped {
		groups, err := h.service.GroupedColumns(r.Context())
		if err != nil {
			h.errorHandler.HandleError(w, r, upstreamFailure("metadata", err))
			return
		}
		render.JSON(w, r, groups)
		return
	}

	body, err := h.service.RawColumns(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, upstreamFailure("metadata", err))
		return
	}
	writeRawJSON(w, body)
}

// Cubes handles GET /api/cubes
func (h *MetadataHandler) Cubes(w http.ResponseWriter, r *http.Request) {
	body, err := h.service.Cubes(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, upstreamFailure("cubes", err))
		return
	}
	writeRawJSON(w, body)
}

func writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
