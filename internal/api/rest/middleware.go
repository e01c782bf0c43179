package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/fire-watch/internal/logger"
)

// requestLogger attaches a request-scoped logger and logs each completed request.
func requestLogger(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx := logger.ToContext(r.Context(), logger.FromContext(base).With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			))

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				// Hijacked (websocket) or nothing written.
				status = http.StatusOK
			}

			kvs := []any{
				"status", status,
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(started),
				"remote", r.RemoteAddr,
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.ErrorKV(ctx, "Request failed", kvs...)
			case status >= http.StatusBadRequest:
				logger.WarnKV(ctx, "Request rejected", kvs...)
			default:
				logger.DebugKV(ctx, "Request served", kvs...)
			}
		})
	}
}

// allowCORS lets browser dashboards served from other origins call the API.
func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, "+actorHeader)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(w, r)
	})
}
