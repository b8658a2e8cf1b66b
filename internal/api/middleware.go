package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader is the response header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// GetRequestID returns the chi request ID from the context. Empty when
// middleware.RequestID is not in the chain.
func GetRequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// RequestIDResponse echoes the request ID back to the client so a failed
// catalog query can be quoted when reporting a problem. Must sit after
// chi's middleware.RequestID.
func RequestIDResponse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := GetRequestID(r.Context()); reqID != "" {
			w.Header().Set(RequestIDHeader, reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger emits one structured line per catalog request with outcome
// and timing.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			args := []any{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			// Search and items URLs carry their parameters in the query
			// string; log it only when there is one.
			if r.URL.RawQuery != "" {
				args = append(args, slog.String("query", r.URL.RawQuery))
			}
			logger.Info("http request", args...)
		})
	}
}

// ContentTypeJSON sets a default application/json Content-Type. The GeoJSON
// handlers override it per response.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Recovery converts a handler panic into a logged 500 carrying the request
// ID, keeping one bad holdings record from taking the server down.
func Recovery(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				reqID := GetRequestID(r.Context())
				logger.Error("panic recovered",
					slog.String("request_id", reqID),
					slog.String("error", fmt.Sprint(rec)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteInternalErrorWithRequestID(w, "internal server error", reqID)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
