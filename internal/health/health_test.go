package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwhitford/edgegate/internal/health"
)

func TestHandleLiveAlwaysOK(t *testing.T) {
	registry := health.NewRegistry()
	registry.Register("broken", func(ctx context.Context) error {
		return errors.New("down")
	})

	w := httptest.NewRecorder()
	registry.HandleLive(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	// Liveness ignores dependency state entirely.
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReady(t *testing.T) {
	t.Run("no checks registered", func(t *testing.T) {
		registry := health.NewRegistry()

		w := httptest.NewRecorder()
		registry.HandleReady(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("all checks healthy", func(t *testing.T) {
		registry := health.NewRegistry()
		registry.Register("idempotency_store", func(ctx context.Context) error { return nil })
		registry.Register("downstream", func(ctx context.Context) error { return nil })

		w := httptest.NewRecorder()
		registry.HandleReady(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])

		checks := body["checks"].(map[string]interface{})
		assert.Len(t, checks, 2)
	})

	t.Run("one failing check makes the probe fail", func(t *testing.T) {
		registry := health.NewRegistry()
		registry.Register("database", func(ctx context.Context) error {
			return errors.New("connection refused")
		})
		registry.Register("cache", func(ctx context.Context) error { return nil })

		w := httptest.NewRecorder()
		registry.HandleReady(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "fail", body["status"])

		checks := body["checks"].(map[string]interface{})
		db := checks["database"].(map[string]interface{})
		assert.Equal(t, "fail", db["status"])
		assert.Equal(t, "connection refused", db["message"])
		cache := checks["cache"].(map[string]interface{})
		assert.Equal(t, "ok", cache["status"])
	})

	t.Run("re-registering a name replaces the check", func(t *testing.T) {
		registry := health.NewRegistry()
		registry.Register("dep", func(ctx context.Context) error { return errors.New("down") })
		registry.Register("dep", func(ctx context.Context) error { return nil })

		w := httptest.NewRecorder()
		registry.HandleReady(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
