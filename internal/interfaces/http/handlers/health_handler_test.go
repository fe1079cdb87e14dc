package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                    { return s.name }
func (s stubChecker) Check(ctx context.Context) error { return s.err }

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", []HealthChecker{stubChecker{name: "postgres", err: stderrors.New("down")}})
	w := httptest.NewRecorder()

	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_ReadinessNoCheckers(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler("dev", nil).Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_Readiness(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	observer := func(component string, up bool) {
		mu.Lock()
		seen[component] = up
		mu.Unlock()
	}

	t.Run("all healthy", func(t *testing.T) {
		h := NewHealthHandler("dev", []HealthChecker{stubChecker{name: "postgres"}, stubChecker{name: "redis"}}, WithHealthObserver(observer))
		w := httptest.NewRecorder()
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Len(t, resp.Components, 2)
	})

	t.Run("one unhealthy", func(t *testing.T) {
		h := NewHealthHandler("dev", []HealthChecker{
			stubChecker{name: "postgres"},
			stubChecker{name: "redis", err: stderrors.New("connection refused")},
		}, WithHealthObserver(observer))
		w := httptest.NewRecorder()
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "unhealthy", resp.Components["redis"].Status)
		assert.Equal(t, "connection refused", resp.Components["redis"].Error)
		assert.Equal(t, "healthy", resp.Components["postgres"].Status)

		mu.Lock()
		defer mu.Unlock()
		assert.True(t, seen["postgres"])
		assert.False(t, seen["redis"])
	})
}
