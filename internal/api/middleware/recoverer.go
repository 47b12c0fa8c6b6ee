package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/mwhitford/edgegate/internal/fault"
	"github.com/mwhitford/edgegate/internal/problem"
)

// Recoverer converts handler panics into internal-kind problem responses
// instead of letting chi's default plain-text recoverer answer. The panic
// value and stack go to the log only; the client sees the generic 500
// problem body with the correlation ID.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					// Propagate: the server uses this to abort in-flight writes.
					panic(rec)
				}
				slog.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())))
				problem.Respond(w, r, fault.New(fault.KindInternal, "an unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
