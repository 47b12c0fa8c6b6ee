// Package health exposes liveness and readiness endpoints. The service
// itself performs no dependency checks; callers register named check
// functions and the readiness handler runs them with a bounded timeout.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// checkTimeout bounds each registered check so one slow dependency cannot
// stall the readiness probe.
const checkTimeout = 2 * time.Second

// CheckFunc reports whether a single dependency is healthy. A nil return
// means healthy.
type CheckFunc func(ctx context.Context) error

// Registry holds named readiness checks.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewRegistry creates an empty check registry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]CheckFunc)}
}

// Register adds a named check. Registering the same name twice replaces the
// earlier check.
func (r *Registry) Register(name string, check CheckFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// checkResult is the per-check section of the readiness body.
type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// response is the body shape shared by both endpoints.
type response struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

// HandleLive handles GET /health/live. It returns 200 whenever the process
// is serving; no dependencies are consulted.
func (r *Registry) HandleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReady handles GET /health/ready. It runs every registered check and
// returns 503 when any fails, with the per-check outcomes in the body.
func (r *Registry) HandleReady(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]CheckFunc, len(names))
	for _, name := range names {
		checks[name] = r.checks[name]
	}
	r.mu.RUnlock()

	status := http.StatusOK
	resp := response{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]checkResult, len(checks)),
	}

	for _, name := range names {
		ctx, cancel := context.WithTimeout(req.Context(), checkTimeout)
		err := checks[name](ctx)
		cancel()

		if err != nil {
			status = http.StatusServiceUnavailable
			resp.Status = "fail"
			resp.Checks[name] = checkResult{Status: "fail", Message: err.Error()}
			slog.WarnContext(req.Context(), "readiness check failed",
				"check", name,
				"error", err)
			continue
		}
		resp.Checks[name] = checkResult{Status: "ok"}
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
