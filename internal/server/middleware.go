package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	derrors "git.home.luguber.info/inful/deploybuilder/internal/errors"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// requestLogger logs method, path, status, duration, user agent and remote addr.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debug("HTTP request",
				logfields.Method(r.Method),
				logfields.Path(r.URL.Path),
				slog.Int(logfields.KeyStatus, status),
				slog.Duration("duration", time.Since(start)),
				logfields.UserAgent(r.UserAgent()),
				logfields.RemoteAddr(r.RemoteAddr),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// recoverer turns handler panics into a structured 500 response.
func recoverer(logger *slog.Logger, adapter *derrors.HTTPErrorAdapter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("HTTP handler panic",
						slog.Any("panic", rec),
						logfields.Path(r.URL.Path),
						logfields.Method(r.Method),
						logfields.RemoteAddr(r.RemoteAddr))

					panicErr := derrors.New(derrors.CategoryInternal, derrors.SeverityError, "internal server error").
						WithContext("path", r.URL.Path).
						WithContext("method", r.Method)
					adapter.WriteErrorResponse(w, r, panicErr)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
