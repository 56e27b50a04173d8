package errors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// RecoveryMiddleware turns panics into problem responses. When the handler
// had already started the response the body cannot be replaced, so the
// panic is only logged and the connection is left to be cut.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if ww.Status() != 0 {
					handler.logger.ErrorContext(r.Context(), "panic after response started",
						slog.Any("panic", rec),
						slog.Int("status", ww.Status()),
						slog.String("path", r.URL.Path),
					)
					return
				}
				handler.HandlePanic(ww, r, rec)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
