// Package middleware contains the HTTP middleware enforcing the service's
// request conventions: correlation IDs, idempotent creation, bearer
// authentication, metrics and panic recovery.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mwhitford/edgegate/internal/api/shared"
	"github.com/mwhitford/edgegate/internal/platform/logger"
)

// Correlation resolves the per-request correlation ID and makes it
// available everywhere it is needed for the lifetime of the request. It
// should be applied early in the middleware chain so that error responses
// and all subsequent log lines carry the ID.
//
// The resolved ID is written onto the response headers before the handler
// runs, so it reaches the client on every path, including failures rendered
// by the problem responder.
func Correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := shared.ResolveCorrelationID(r.Header)
		w.Header().Set(shared.CorrelationHeader, correlationID)

		ctx := shared.WithCorrelationID(r.Context(), correlationID)

		// Scope a logger with the correlation ID so every line logged
		// below the boundary, dependency calls included, can be traced
		// back from a failure report.
		log := slog.Default().With(slog.String("correlation_id", correlationID))
		ctx = logger.WithContext(ctx, log)

		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
