package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"gadevtools/internal/bitly"
	apierrors "gadevtools/internal/errors"
	custommw "gadevtools/internal/middleware"
)

// BitlyAuthTemplate receives the token at the end of the OAuth redirect.
const BitlyAuthTemplate = "bitly-auth.html"

// BitlyHandler completes the bit.ly OAuth flow.
type BitlyHandler struct {
	exchanger    bitly.Exchanger
	renderer     PageRenderer
	validator    *custommw.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewBitlyHandler creates a bit.ly handler. exchanger is nil when bit.ly is
// not configured.
func NewBitlyHandler(exchanger bitly.Exchanger, renderer PageRenderer, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *BitlyHandler {
	return &BitlyHandler{
		exchanger:    exchanger,
		renderer:     renderer,
		validator:    custommw.NewValidator(),
		logger:       logger.With(slog.String("component", "bitly_handler")),
		errorHandler: errorHandler,
	}
}

// bitlyAuthPage is the data of BitlyAuthTemplate.
type bitlyAuthPage struct {
	Token string
	State string
}

// Callback handles GET /bitly-auth, the redirect target bit.ly sends the user
// back to with an authorization code.
func (h *BitlyHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		plainError(w, http.StatusBadRequest, "Missing query parameter: code")
		return
	}
	if h.exchanger == nil {
		plainError(w, http.StatusServiceUnavailable, "bit.ly is not configured")
		return
	}

	tok, err := h.exchanger.Exchange(r.Context(), code, false)
	if err != nil {
		var statusErr *bitly.StatusError
		if errors.As(err, &statusErr) {
			plainError(w, http.StatusInternalServerError, fmt.Sprintf("Error: bitly returned error code %d", statusErr.StatusCode))
			return
		}
		h.logger.ErrorContext(r.Context(), "bit.ly exchange failed", slog.String("error", err.Error()))
		plainError(w, http.StatusInternalServerError, "Error getting access token from bit.ly")
		return
	}

	var buf bytes.Buffer
	page := bitlyAuthPage{Token: tok.AccessToken, State: r.URL.Query().Get("state")}
	if err := h.renderer.RenderTemplate(r.Context(), &buf, BitlyAuthTemplate, page); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

// exchangeRequest is the body of POST /api/bitly-auth.
type exchangeRequest struct {
	Code        string `json:"code" validate:"required"`
	Integration bool   `json:"integration"`
}

// Exchange handles /api/bitly-auth. Only POST is served; the body is a JSON
// object carrying the authorization code. bit.ly's own status and body are
// passed through when it rejects the code.
func (h *BitlyHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		plainError(w, http.StatusForbidden, "Only POST requests are supported.")
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		plainError(w, http.StatusForbidden, "Request requires a `code` parameter.")
		return
	}
	if h.exchanger == nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrServiceUnavailable)
		return
	}

	tok, err := h.exchanger.Exchange(r.Context(), req.Code, req.Integration)
	if err != nil {
		var statusErr *bitly.StatusError
		if errors.As(err, &statusErr) {
			h.passThrough(w, statusErr)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, tok)
}

func (h *BitlyHandler) passThrough(w http.ResponseWriter, statusErr *bitly.StatusError) {
	contentType := "text/plain; charset=utf-8"
	if json.Valid(statusErr.Body) {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusErr.StatusCode)
	w.Write(statusErr.Body)
}

func plainError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	fmt.Fprint(w, message)
}
