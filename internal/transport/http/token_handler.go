package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"gadevtools/internal/auth"
	apierrors "gadevtools/internal/errors"
)

// TokenHandler exposes the service-account access token to the demo pages.
type TokenHandler struct {
	provider     auth.TokenProvider
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewTokenHandler creates a token handler. provider is nil when no service
// account is configured.
func NewTokenHandler(provider auth.TokenProvider, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *TokenHandler {
	return &TokenHandler{
		provider:     provider,
		logger:       logger.With(slog.String("component", "token_handler")),
		errorHandler: errorHandler,
	}
}

// AccessToken handles GET /api/access-token
func (h *TokenHandler) AccessToken(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.errorHandler.HandleError(w, r, auth.ErrNoCredentials)
		return
	}

	tok, err := h.provider.Token(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "access token unavailable", slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, tok)
}
