package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestLiveness(t *testing.T) {
	w, body := serve(t, New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestStatus(t *testing.T) {
	w, body := serve(t, New("production"), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "production", body["environment"])
	assert.Equal(t, Version, body["version"])
}

func TestReadiness(t *testing.T) {
	t.Run("all checks up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", func(context.Context) error { return nil })

		w, body := serve(t, h, "/health/ready")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ready", body["status"])
		assert.Equal(t, map[string]any{"database": "up"}, body["checks"])
	})

	t.Run("one check down", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("database", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return errors.New("dial tcp 10.0.0.5:6379: refused") })

		w, body := serve(t, h, "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, map[string]any{"database": "up", "redis": "down"}, body["checks"])
		assert.NotContains(t, w.Body.String(), "10.0.0.5")
	})
}

func TestReadinessCheckTimeout(t *testing.T) {
	h := New("test", WithCheckTimeout(10*time.Millisecond))
	h.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, map[string]any{"slow": "down"}, body["checks"])
}

func TestRegisterCheckReplaces(t *testing.T) {
	h := New("test")
	h.RegisterCheck("database", func(context.Context) error { return errors.New("down") })
	h.RegisterCheck("database", func(context.Context) error { return nil })

	w, _ := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}
