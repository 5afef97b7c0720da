package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		expected Status
	}{
		{"healthy", nil, StatusHealthy},
		{"unhealthy", errors.New("connection refused"), StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewCheckerRegistry()
			registry.Register(NewObjectStorageChecker(pingerFunc(func(ctx context.Context) error {
				return tt.pingErr
			})))

			h := registry.Check(context.Background())
			assert.Equal(t, tt.expected, h.Status)
			assert.Equal(t, tt.expected, h.Checks["object_storage"].Status)
			if tt.pingErr != nil {
				assert.Contains(t, h.Checks["object_storage"].Message, "connection refused")
			}
		})
	}
}

func TestCheckerRegistry_OneFailureIsEnough(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(&pingChecker{name: "a", ping: func(ctx context.Context) error { return nil }})
	registry.Register(&pingChecker{name: "b", ping: func(ctx context.Context) error { return errors.New("down") }})

	h := registry.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, StatusHealthy, h.Checks["a"].Status)
	assert.Equal(t, StatusUnhealthy, h.Checks["b"].Status)
}

func TestCheckerRegistry_Timeout(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.Register(&pingChecker{name: "slow", ping: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	h := registry.Check(ctx)
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Contains(t, h.Checks["slow"].Message, "deadline exceeded")
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := NewCheckerRegistry()
	registry.Register(NewObjectStorageChecker(pingerFunc(func(ctx context.Context) error {
		return errors.New("no route to host")
	})))

	router := gin.New()
	router.GET("/health", Handler(registry))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Status)
}
